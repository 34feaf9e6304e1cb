package widget

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"vigila/src/helpers"
	"vigila/src/interfaces"
	"vigila/src/models"
)

// SearchFailedMessage is shown when a lookup does not complete.
const SearchFailedMessage = "Failed to fetch data. Please check your API key and network connection."

// SearchState is the debouncer output at one instant.
type SearchState struct {
	Query       string
	Loading     bool
	Suggestions []models.MSymbolRecord
	Error       string
}

// -----------------------------------------------------------------------------
// Debouncer rate-limits lookups: a call is issued only after the query has been
// stable for the window. At most one call is in flight and only the newest
// generation may apply its result.
// -----------------------------------------------------------------------------

type Debouncer struct {
	lookup    interfaces.ISymbolLookup
	scheduler Scheduler
	window    time.Duration
	minLength int
	onChange  func()
	errors    *helpers.ErrorHandler

	mu          sync.Mutex
	generation  uint64
	pending     Handle
	cancel      context.CancelFunc
	closed      bool
	query       string
	loading     bool
	suggestions []models.MSymbolRecord
	err         string
}

// -----------------------------------------------------------------------------

func NewDebouncer(lookup interfaces.ISymbolLookup, scheduler Scheduler, window time.Duration, minLength int, onChange func()) *Debouncer {
	if scheduler == nil {
		scheduler = RealScheduler
	}
	if minLength < 1 {
		minLength = 1
	}
	return &Debouncer{
		lookup:    lookup,
		scheduler: scheduler,
		window:    window,
		minLength: minLength,
		onChange:  onChange,
		errors:    helpers.NewErrorHandler("Debouncer"),
	}
}

// -----------------------------------------------------------------------------

// Input records a keystroke. Short queries clear suggestions without a call;
// anything else restarts the quiescence window.
func (d *Debouncer) Input(query string) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}

	d.generation++
	gen := d.generation
	d.stopLocked()
	d.query = query
	d.loading = false

	term := strings.TrimSpace(query)
	if utf8.RuneCountInString(term) < d.minLength {
		d.suggestions = nil
		d.err = ""
		d.mu.Unlock()
		d.notify()
		return
	}

	d.pending = d.scheduler.AfterFunc(d.window, func() { d.fire(gen, term) })
	d.mu.Unlock()
}

// -----------------------------------------------------------------------------

func (d *Debouncer) fire(gen uint64, term string) {
	d.mu.Lock()
	if d.closed || gen != d.generation {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.pending = nil
	d.cancel = cancel
	d.loading = true
	d.err = ""
	d.mu.Unlock()
	d.notify()

	records, err := d.lookup.Search(ctx, term)
	cancel()

	d.mu.Lock()
	if d.closed || gen != d.generation {
		d.mu.Unlock()
		return
	}
	d.cancel = nil
	d.loading = false
	if err != nil {
		d.suggestions = nil
		d.err = d.errors.UserMessage(err, "symbol lookup", SearchFailedMessage)
	} else {
		d.suggestions = records
		d.err = ""
	}
	d.mu.Unlock()
	d.notify()
}

// -----------------------------------------------------------------------------

// stopLocked cancels the scheduled call and any in-flight lookup.
func (d *Debouncer) stopLocked() {
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

// -----------------------------------------------------------------------------

// Close cancels pending work. No state changes are applied afterwards.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.generation++
	d.stopLocked()
	d.loading = false
	d.suggestions = nil
}

// -----------------------------------------------------------------------------

func (d *Debouncer) State() SearchState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return SearchState{
		Query:       d.query,
		Loading:     d.loading,
		Suggestions: cloneRecords(d.suggestions),
		Error:       d.err,
	}
}

// -----------------------------------------------------------------------------

func (d *Debouncer) notify() {
	if d.onChange != nil {
		d.onChange()
	}
}

// -----------------------------------------------------------------------------

func cloneRecords(records []models.MSymbolRecord) []models.MSymbolRecord {
	if records == nil {
		return nil
	}
	out := make([]models.MSymbolRecord, len(records))
	copy(out, records)
	return out
}
