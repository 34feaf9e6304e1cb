package alerts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"vigila/src/interfaces"
	"vigila/src/logger"
	"vigila/src/models"
	"vigila/src/utils"

	"github.com/shopspring/decimal"
)

// ErrAlreadyRunning is returned when a run overlaps a previous one.
var ErrAlreadyRunning = errors.New("alert job already running")

// -----------------------------------------------------------------------------
// Job scans every watchlist, fetches each distinct symbol's volume once and
// notifies users whose symbols traded above the threshold.
// -----------------------------------------------------------------------------

type Job struct {
	Store     interfaces.IWatchlistStore
	Source    interfaces.IVolumeSource
	Notifier  interfaces.IAlertNotifier // nil only logs
	Threshold decimal.Decimal
	Exchange  *utils.TradingCalendar
	Logger    *logger.Logger

	mu        sync.Mutex
	running   bool
	calendars map[string]*utils.TradingCalendar
	now       func() time.Time
}

// -----------------------------------------------------------------------------

func NewJob(store interfaces.IWatchlistStore, source interfaces.IVolumeSource, notifier interfaces.IAlertNotifier,
	threshold float64, exchange *utils.TradingCalendar, log *logger.Logger) *Job {
	return &Job{
		Store:     store,
		Source:    source,
		Notifier:  notifier,
		Threshold: decimal.NewFromFloat(threshold),
		Exchange:  exchange,
		Logger:    log,
		calendars: make(map[string]*utils.TradingCalendar),
		now:       time.Now,
	}
}

// -----------------------------------------------------------------------------

// Run executes one pass. Without force, a non-trading day on the configured
// exchange skips the pass.
func (j *Job) Run(ctx context.Context, force bool) (models.MAlertReport, error) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return models.MAlertReport{}, ErrAlreadyRunning
	}
	j.running = true
	j.mu.Unlock()
	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	now := j.now()
	var report models.MAlertReport

	if !force && j.Exchange != nil && !j.Exchange.IsTradingDay(now) {
		report.Skipped = true
		report.Message = "Market closed, skipped"
		j.Logger.Info("%s is not a trading day on %s, skipping", now.Format("2006-01-02"), j.Exchange.MIC)
		return report, nil
	}

	docs, err := j.Store.ListDocuments(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list watchlists: %w", err)
	}

	// Collect all unique symbols first
	unique := make(map[string]struct{})
	for _, doc := range docs {
		for _, r := range doc.Indicators.Volume {
			if r.Symbol != "" {
				unique[r.Symbol] = struct{}{}
			}
		}
	}
	report.UsersProcessed = len(docs)

	symbols := make([]string, 0, len(unique))
	for s := range unique {
		if j.tradedOn(s, now) {
			symbols = append(symbols, s)
		}
	}
	sort.Strings(symbols)

	volumes := map[string]models.MVolumeSnapshot{}
	if len(symbols) > 0 {
		volumes, err = j.Source.FetchVolumes(ctx, symbols)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			j.Logger.Error("Volume fetch failed: %v", err)
			report.Failures = append(report.Failures, fmt.Sprintf("volume fetch: %v", err))
			volumes = map[string]models.MVolumeSnapshot{}
		}
	}
	report.SymbolsFetched = len(volumes)

	for _, doc := range docs {
		hits := j.alertsFor(doc, volumes)
		if len(hits) == 0 {
			continue
		}
		if doc.Email == "" {
			j.Logger.Warning("User %s has %d alerts but no contact address", doc.UserID, len(hits))
			report.Failures = append(report.Failures, fmt.Sprintf("%s: no contact address", doc.UserID))
			continue
		}
		if j.Notifier == nil {
			j.Logger.Info("Alert for %s: %d symbols (no notifier configured)", doc.UserID, len(hits))
			continue
		}
		if err := j.Notifier.Notify(ctx, doc.Email, hits); err != nil {
			j.Logger.Error("Failed to notify %s: %v", doc.UserID, err)
			report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", doc.UserID, err))
			continue
		}
		report.AlertsSent++
	}

	report.Message = fmt.Sprintf("Processed %d users", report.UsersProcessed)
	j.Logger.Info("%s, %d symbols fetched, %d alerts sent, %d failures",
		report.Message, report.SymbolsFetched, report.AlertsSent, len(report.Failures))
	return report, nil
}

// -----------------------------------------------------------------------------

// alertsFor keeps the user's symbols at or above the threshold, in watchlist order.
func (j *Job) alertsFor(doc models.MWatchlistDocument, volumes map[string]models.MVolumeSnapshot) []models.MVolumeSnapshot {
	var hits []models.MVolumeSnapshot
	seen := make(map[string]struct{})
	for _, r := range doc.Indicators.Volume {
		if _, dup := seen[r.Symbol]; dup {
			continue
		}
		seen[r.Symbol] = struct{}{}
		snap, ok := volumes[r.Symbol]
		if ok && snap.Ratio.GreaterThanOrEqual(j.Threshold) {
			hits = append(hits, snap)
		}
	}
	return hits
}

// -----------------------------------------------------------------------------

// tradedOn reports whether the symbol's own exchange had a session on day.
func (j *Job) tradedOn(symbol string, day time.Time) bool {
	mic := utils.MICForSymbol(symbol)

	j.mu.Lock()
	cal, ok := j.calendars[mic]
	if !ok {
		cal = utils.NewTradingCalendar(mic)
		j.calendars[mic] = cal
	}
	j.mu.Unlock()

	return cal.IsTradingDay(day)
}
