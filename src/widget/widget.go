package widget

import (
	"context"
	"strings"
	"sync"
	"time"

	"vigila/src/config"
	"vigila/src/helpers"
	"vigila/src/interfaces"
	"vigila/src/models"
)

// Options tune a widget. Built from config by OptionsFromConfig.
type Options struct {
	DebounceWindow time.Duration
	MinQueryLength int
	MaxSuggestions int
	CheckSaved     bool // false: duplicates are checked against the session only
	AllowWithdraw  bool
	Scheduler      Scheduler
}

// -----------------------------------------------------------------------------

func OptionsFromConfig(cfg models.MWidgetConfig) Options {
	return Options{
		DebounceWindow: time.Duration(cfg.DebounceMs) * time.Millisecond,
		MinQueryLength: cfg.MinQueryLength,
		MaxSuggestions: cfg.MaxSuggestions,
		CheckSaved:     cfg.DuplicateScope != config.DuplicateScopeLocal,
		AllowWithdraw:  cfg.WithdrawAllowed(),
		Scheduler:      RealScheduler,
	}
}

// -----------------------------------------------------------------------------
// Widget is one open search-and-select session. It combines a Debouncer for
// suggestions with a SelectionManager for the pending set.
// -----------------------------------------------------------------------------

type Widget struct {
	ID     string
	UserID string

	opts      Options
	debouncer *Debouncer
	selection *SelectionManager
	onChange  func(models.MWidgetState)

	mu     sync.Mutex
	closed bool
}

// -----------------------------------------------------------------------------

// Open creates a widget with an empty selection, seeding the saved set from the
// view. onCommitted runs after a successful batch so the caller can refresh.
func Open(id, userID string, view *WatchlistView, lookup interfaces.ISymbolLookup, store interfaces.IWatchlistStore,
	opts Options, onChange func(models.MWidgetState), onCommitted func([]models.MSymbolRecord)) *Widget {

	w := &Widget{
		ID:       id,
		UserID:   userID,
		opts:     opts,
		onChange: onChange,
	}

	var saved map[string]struct{}
	if view != nil {
		saved = view.SavedSymbols()
	}
	w.selection = NewSelectionManager(store, userID, saved, opts.CheckSaved, onCommitted)
	w.selection.OnChange = w.notify
	w.debouncer = NewDebouncer(lookup, opts.Scheduler, opts.DebounceWindow, opts.MinQueryLength, w.notify)
	return w
}

// -----------------------------------------------------------------------------

func (w *Widget) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// -----------------------------------------------------------------------------

// Input feeds a keystroke to the debouncer and clears a previous commit success.
func (w *Widget) Input(query string) error {
	if w.isClosed() {
		return helpers.ErrWidgetClosed
	}
	w.selection.ClearSuccess()
	w.debouncer.Input(query)
	return nil
}

// -----------------------------------------------------------------------------

// Propose stages candidate. A duplicate returns false without error.
func (w *Widget) Propose(candidate models.MSymbolRecord) (bool, error) {
	if w.isClosed() {
		return false, helpers.ErrWidgetClosed
	}
	candidate.Symbol = strings.TrimSpace(candidate.Symbol)
	if candidate.Symbol == "" {
		return false, helpers.NewValidationError("candidate symbol cannot be empty")
	}
	added := w.selection.Propose(candidate)
	if added {
		w.notify()
	}
	return added, nil
}

// -----------------------------------------------------------------------------

// Withdraw unstages symbol. Absent symbols return false without error.
func (w *Widget) Withdraw(symbol string) (bool, error) {
	if w.isClosed() {
		return false, helpers.ErrWidgetClosed
	}
	if !w.opts.AllowWithdraw {
		return false, helpers.NewValidationError("withdrawing pending symbols is disabled")
	}
	removed := w.selection.Withdraw(symbol)
	if removed {
		w.notify()
	}
	return removed, nil
}

// -----------------------------------------------------------------------------

// Commit persists the pending selection. Returns ErrCommitInProgress while a
// previous commit is outstanding.
func (w *Widget) Commit(ctx context.Context) error {
	if w.isClosed() {
		return helpers.ErrWidgetClosed
	}
	return w.selection.Commit(ctx)
}

// -----------------------------------------------------------------------------

// Close discards the selection and cancels any pending lookup. Idempotent.
func (w *Widget) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	w.debouncer.Close()
	w.selection.Discard()
}

// -----------------------------------------------------------------------------

// State renders the widget. Suggestions are cut to the top N and flagged with
// the current membership predicate.
func (w *Widget) State() models.MWidgetState {
	search := w.debouncer.State()
	sel := w.selection.State()

	suggestions := search.Suggestions
	if w.opts.MaxSuggestions > 0 && len(suggestions) > w.opts.MaxSuggestions {
		suggestions = suggestions[:w.opts.MaxSuggestions]
	}

	state := models.MWidgetState{
		ID:            w.ID,
		Query:         search.Query,
		Loading:       search.Loading,
		Suggestions:   w.selection.Decorate(suggestions),
		SearchError:   search.Error,
		Pending:       sel.Pending,
		CanCommit:     len(sel.Pending) > 0 && !sel.Committing,
		CommitError:   sel.CommitErr,
		CommitSuccess: sel.CommitOK,
	}

	switch {
	case w.isClosed():
		state.State = models.WidgetClosed
		state.Suggestions = []models.MSuggestion{}
		state.CanCommit = false
	case sel.Committing:
		state.State = models.WidgetCommitting
	case len(sel.Pending) > 0:
		state.State = models.WidgetOpenPending
	default:
		state.State = models.WidgetOpenEmpty
	}
	return state
}

// -----------------------------------------------------------------------------

func (w *Widget) notify() {
	if w.onChange == nil || w.isClosed() {
		return
	}
	w.onChange(w.State())
}
