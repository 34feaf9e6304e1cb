package utils

import (
	"context"
	"fmt"
	"time"

	"vigila/src/logger"
)

// MarketScheduler runs a job once per trading day at a fixed exchange-local time.
type MarketScheduler struct {
	Calendar *TradingCalendar
	Hour     int
	Minute   int
	Logger   *logger.Logger

	// now is replaceable in tests
	now func() time.Time
}

// -----------------------------------------------------------------------------

// NewMarketScheduler parses runAt as HH:MM in the calendar's timezone.
func NewMarketScheduler(cal *TradingCalendar, runAt string, l *logger.Logger) (*MarketScheduler, error) {
	t, err := time.Parse("15:04", runAt)
	if err != nil {
		return nil, fmt.Errorf("invalid run time %q: %w", runAt, err)
	}
	return &MarketScheduler{
		Calendar: cal,
		Hour:     t.Hour(),
		Minute:   t.Minute(),
		Logger:   l,
		now:      time.Now,
	}, nil
}

// -----------------------------------------------------------------------------

// NextRun returns the first trading-day slot strictly after t.
func (ms *MarketScheduler) NextRun(t time.Time) time.Time {
	loc := ms.Calendar.Location()
	local := t.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), ms.Hour, ms.Minute, 0, 0, loc)
	if !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	// a year of non-trading days cannot happen; the bound guards a broken calendar
	for i := 0; i < 366 && !ms.Calendar.IsTradingDay(candidate); i++ {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// -----------------------------------------------------------------------------

// Run blocks until ctx is done, invoking job at every slot.
func (ms *MarketScheduler) Run(ctx context.Context, job func(context.Context)) {
	for {
		next := ms.NextRun(ms.now())
		wait := time.Until(next)
		ms.Logger.Info("Next run at %s (in %s)", next.Format(time.RFC3339), wait.Round(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		job(ctx)
	}
}
