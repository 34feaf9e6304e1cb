package utils

import (
	"strings"
	"time"

	"vigila/src/logger"

	"github.com/scmhub/calendar"
)

// Yahoo ticker suffix to MIC code (ISO 10383). No suffix means a US listing.
var suffixMIC = []struct {
	suffix string
	mic    string
}{
	{".L", "xlon"}, {".PA", "xpar"}, {".DE", "xfra"}, {".AS", "xams"},
	{".BR", "xbru"}, {".MI", "xmil"}, {".MC", "xmad"}, {".ST", "xsto"},
	{".CO", "xcse"}, {".HE", "xhel"}, {".VI", "xwbo"}, {".SW", "xswx"},
	{".TO", "xtse"}, {".V", "xtsx"}, {".T", "xtks"}, {".HK", "xhkg"},
	{".AX", "xasx"}, {".KS", "xkrx"}, {".TW", "xtai"}, {".SS", "xshg"},
	{".SZ", "xshe"},
}

// TradingCalendar calculates trading days using scmhub/calendar.
type TradingCalendar struct {
	MIC      string
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

// MICForSymbol maps a ticker to the exchange it trades on.
func MICForSymbol(symbol string) string {
	upper := strings.ToUpper(symbol)
	for _, e := range suffixMIC {
		if strings.HasSuffix(upper, e.suffix) {
			return e.mic
		}
	}
	return "xnys"
}

// -----------------------------------------------------------------------------

// GetCalendar returns the calendar of the exchange a symbol trades on.
func GetCalendar(symbol string) *TradingCalendar {
	return NewTradingCalendar(MICForSymbol(symbol))
}

// -----------------------------------------------------------------------------

// NewTradingCalendar loads the calendar for mic, falling back to NYSE and then
// to a plain Mon-Fri calendar in New York time.
func NewTradingCalendar(mic string) *TradingCalendar {
	mic = strings.ToLower(mic)
	cal := calendar.GetCalendar(mic)
	if cal == nil {
		// Fallback to xnys if not found
		cal = calendar.GetCalendar("xnys")
	}

	if cal == nil {
		logger.NewLogger("TradingCalendar").Warning(
			"Failed to load calendar for MIC '%s' and fallback 'xnys'. Using simple fallback (Mon-Fri).", mic)
		nyLoc, _ := time.LoadLocation("America/New_York")
		if nyLoc == nil {
			nyLoc = time.UTC
		}
		return &TradingCalendar{MIC: mic, Fallback: true, Timezone: nyLoc}
	}

	return &TradingCalendar{MIC: mic, Calendar: cal, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	// Normalize to timezone if available
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Fallback {
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	// Library handles IsHoliday / IsBusinessDay
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// Location returns the exchange timezone, UTC when unknown.
func (tc *TradingCalendar) Location() *time.Location {
	if tc.Timezone == nil {
		return time.UTC
	}
	return tc.Timezone
}
