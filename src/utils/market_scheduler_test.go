package utils

import (
	"testing"
	"time"

	"vigila/src/logger"
)

func TestMICForSymbol(t *testing.T) {
	cases := map[string]string{
		"AAPL":    "xnys",
		"VOD.L":   "xlon",
		"7203.T":  "xtks",
		"SHOP.TO": "xtse",
		"abc.v":   "xtsx",
	}
	for sym, want := range cases {
		if got := MICForSymbol(sym); got != want {
			t.Fatalf("MICForSymbol(%q) = %q; want %q", sym, got, want)
		}
	}
}

func TestFallbackCalendarSkipsWeekends(t *testing.T) {
	cal := &TradingCalendar{Fallback: true, Timezone: time.UTC}
	sat := time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC)
	mon := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	if cal.IsTradingDay(sat) {
		t.Fatalf("IsTradingDay(Saturday) = true; want false")
	}
	if !cal.IsTradingDay(mon) {
		t.Fatalf("IsTradingDay(Monday) = false; want true")
	}
}

func TestNextRunSkipsNonTradingDays(t *testing.T) {
	cal := &TradingCalendar{Fallback: true, Timezone: time.UTC}
	ms, err := NewMarketScheduler(cal, "16:30", logger.NewLogger("test"))
	if err != nil {
		t.Fatalf("NewMarketScheduler() error = %v", err)
	}

	// Friday before the slot runs the same day
	fri := time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC)
	if got, want := ms.NextRun(fri), time.Date(2025, 3, 7, 16, 30, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("NextRun(Fri 10:00) = %v; want %v", got, want)
	}

	// Friday after the slot rolls to Monday
	late := time.Date(2025, 3, 7, 17, 0, 0, 0, time.UTC)
	if got, want := ms.NextRun(late), time.Date(2025, 3, 10, 16, 30, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("NextRun(Fri 17:00) = %v; want %v", got, want)
	}

	// exactly on the slot counts as past
	onSlot := time.Date(2025, 3, 10, 16, 30, 0, 0, time.UTC)
	if got, want := ms.NextRun(onSlot), time.Date(2025, 3, 11, 16, 30, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("NextRun(on slot) = %v; want %v", got, want)
	}
}

func TestNewMarketSchedulerRejectsBadTime(t *testing.T) {
	if _, err := NewMarketScheduler(&TradingCalendar{Fallback: true}, "4pm", logger.NewLogger("test")); err == nil {
		t.Fatalf("NewMarketScheduler(4pm) error = nil; want parse failure")
	}
}

func TestNYSECalendarHoliday(t *testing.T) {
	cal := NewTradingCalendar("xnys")
	year := time.Now().Year()

	// Christmas is either a holiday or a weekend
	christmas := time.Date(year, 12, 25, 15, 0, 0, 0, time.UTC)
	if cal.IsTradingDay(christmas) {
		t.Fatalf("IsTradingDay(%d-12-25) = true; want non-trading", year)
	}

	wed := time.Date(year, 3, 8, 15, 0, 0, 0, time.UTC)
	for wed.Weekday() != time.Wednesday {
		wed = wed.AddDate(0, 0, 1)
	}
	if !cal.IsTradingDay(wed) {
		t.Fatalf("IsTradingDay(%s) = false; want trading day", wed.Format("2006-01-02"))
	}
}
