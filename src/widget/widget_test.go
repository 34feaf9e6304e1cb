package widget

import (
	"context"
	"errors"
	"sync"
	"testing"

	"vigila/src/helpers"
	"vigila/src/models"
)

type harness struct {
	store  *flakyStore
	lookup *fakeLookup
	sched  *ManualScheduler
	view   *WatchlistView
	widget *Widget

	mu     sync.Mutex
	states []models.MWidgetState
}

func newHarness(t *testing.T, opts Options, seed ...models.MSymbolRecord) *harness {
	t.Helper()
	h := &harness{
		store:  newFlakyStore(),
		lookup: &fakeLookup{results: map[string][]models.MSymbolRecord{}},
		sched:  NewManualScheduler(),
	}
	h.view = loadedView(t, h.store, seed...)
	opts.Scheduler = h.sched
	h.widget = Open("w1", "u1", h.view, h.lookup, h.store, opts,
		func(s models.MWidgetState) {
			h.mu.Lock()
			h.states = append(h.states, s)
			h.mu.Unlock()
		},
		func([]models.MSymbolRecord) { h.view.Refresh(context.Background()) },
	)
	return h
}

func defaultOptions() Options {
	return OptionsFromConfig(models.MWidgetConfig{
		DebounceMs:     400,
		MinQueryLength: 2,
		MaxSuggestions: 3,
		DuplicateScope: "session_and_saved",
	})
}

func (h *harness) sawState(state string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.states {
		if s.State == state {
			return true
		}
	}
	return false
}

func TestOptionsFromConfig(t *testing.T) {
	off := false
	opts := OptionsFromConfig(models.MWidgetConfig{DebounceMs: 250, MinQueryLength: 3, MaxSuggestions: 5, DuplicateScope: "session_only", AllowWithdraw: &off})
	if opts.DebounceWindow.Milliseconds() != 250 || opts.MinQueryLength != 3 || opts.MaxSuggestions != 5 {
		t.Fatalf("OptionsFromConfig() = %+v; want numeric fields copied", opts)
	}
	if opts.CheckSaved || opts.AllowWithdraw {
		t.Fatalf("OptionsFromConfig() = %+v; want session-only scope and withdraw disabled", opts)
	}
	if !defaultOptions().CheckSaved || !defaultOptions().AllowWithdraw {
		t.Fatalf("defaultOptions() = %+v; want both sets checked and withdraw allowed", defaultOptions())
	}
}

func TestScenarioSavedCandidateRenderedAsAdded(t *testing.T) {
	h := newHarness(t, defaultOptions(), aapl)
	h.lookup.results["AA"] = []models.MSymbolRecord{aapl, aal, aa, aap}

	if err := h.widget.Input("AA"); err != nil {
		t.Fatalf("Input() error = %v", err)
	}
	h.sched.Fire()

	st := h.widget.State()
	if len(st.Suggestions) != 3 {
		t.Fatalf("Suggestions = %v; want top 3", st.Suggestions)
	}
	first := st.Suggestions[0]
	if first.Record.Symbol != "AAPL" || !first.AlreadyAdded || first.CanAdd {
		t.Fatalf("Suggestions[0] = %+v; want AAPL already added with add disabled", first)
	}
	if st.Suggestions[1].AlreadyAdded || !st.Suggestions[1].CanAdd {
		t.Fatalf("Suggestions[1] = %+v; want addable", st.Suggestions[1])
	}

	if added, err := h.widget.Propose(aapl); added || err != nil {
		t.Fatalf("Propose(AAPL) = %v, %v; want silent no-op", added, err)
	}
}

func TestScenarioCommitTwoSymbols(t *testing.T) {
	h := newHarness(t, defaultOptions(), aapl)

	if st := h.widget.State(); st.State != models.WidgetOpenEmpty || st.CanCommit {
		t.Fatalf("State() = %+v; want open_empty without commit affordance", st)
	}
	h.widget.Propose(msft)
	h.widget.Propose(goog)
	if st := h.widget.State(); st.State != models.WidgetOpenPending || !st.CanCommit {
		t.Fatalf("State() = %+v; want open_pending with commit enabled", st)
	}

	if err := h.widget.Commit(context.Background()); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	persisted, _ := h.store.Fetch(context.Background(), "u1")
	if !sameSymbols(persisted, "AAPL", "MSFT", "GOOG") {
		t.Fatalf("persisted = %v; want AAPL, MSFT, GOOG", persisted)
	}
	st := h.widget.State()
	if st.State != models.WidgetOpenEmpty || len(st.Pending) != 0 || !st.CommitSuccess {
		t.Fatalf("State() = %+v; want open_empty with success message", st)
	}
	if got := h.view.Snapshot(); !sameSymbols(got, "AAPL", "MSFT", "GOOG") {
		t.Fatalf("view Snapshot() = %v; want refreshed after commit", got)
	}
	if !h.sawState(models.WidgetCommitting) {
		t.Fatalf("no committing state was published during the commit")
	}

	h.widget.Input("N")
	if st := h.widget.State(); st.CommitSuccess {
		t.Fatalf("State() = %+v; want success cleared once the user types again", st)
	}
}

func TestScenarioRemovalFailureRestoresRecord(t *testing.T) {
	h := newHarness(t, defaultOptions(), aapl, msft, goog)
	h.store.removeErr["AAPL"] = helpers.NewNetworkError("remove failed", errors.New("timeout"))

	if err := h.view.Remove(context.Background(), aapl); !helpers.IsNetwork(err) {
		t.Fatalf("Remove() error = %v; want network failure", err)
	}
	st := h.view.State()
	if !sameSymbols(st.Records, "AAPL", "MSFT", "GOOG") {
		t.Fatalf("Records = %v; want AAPL restored and others untouched", st.Records)
	}
	if st.Error == "" {
		t.Fatalf("State().Error empty; want inline message")
	}
}

func TestCommitFailureMovesBackToPendingWithError(t *testing.T) {
	h := newHarness(t, defaultOptions())
	h.store.addErr = errUnavailable
	h.widget.Propose(msft)

	if err := h.widget.Commit(context.Background()); err == nil {
		t.Fatalf("Commit() error = nil; want failure")
	}
	st := h.widget.State()
	if st.State != models.WidgetOpenPending || st.CommitError != CommitFailedMessage || !st.CanCommit {
		t.Fatalf("State() = %+v; want open_pending with error and retry available", st)
	}
}

func TestCommittingDisablesCommit(t *testing.T) {
	h := newHarness(t, defaultOptions())
	h.store.addGate = make(chan struct{})
	h.widget.Propose(msft)

	done := make(chan error, 1)
	go func() { done <- h.widget.Commit(context.Background()) }()
	waitFor(t, func() bool { return h.widget.State().State == models.WidgetCommitting })

	if st := h.widget.State(); st.CanCommit {
		t.Fatalf("State() = %+v; commit affordance must be disabled while committing", st)
	}
	if err := h.widget.Commit(context.Background()); !errors.Is(err, helpers.ErrCommitInProgress) {
		t.Fatalf("second Commit() error = %v; want ErrCommitInProgress", err)
	}
	close(h.store.addGate)
	if err := <-done; err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
}

func TestCloseDiscardsSelectionAndCancelsSearch(t *testing.T) {
	h := newHarness(t, defaultOptions())
	h.widget.Propose(msft)
	h.widget.Input("GO")
	h.widget.Close()
	h.widget.Close()

	if n := h.sched.Fire(); n != 0 {
		t.Fatalf("Fire() ran %d tasks; want pending lookup cancelled on close", n)
	}
	st := h.widget.State()
	if st.State != models.WidgetClosed || len(st.Pending) != 0 || st.CanCommit {
		t.Fatalf("State() = %+v; want closed with selection discarded", st)
	}
	persisted, _ := h.store.Fetch(context.Background(), "u1")
	if len(persisted) != 0 {
		t.Fatalf("persisted = %v; closing must not persist the selection", persisted)
	}

	if err := h.widget.Input("MS"); !errors.Is(err, helpers.ErrWidgetClosed) {
		t.Fatalf("Input() after Close error = %v; want ErrWidgetClosed", err)
	}
	if _, err := h.widget.Propose(goog); !errors.Is(err, helpers.ErrWidgetClosed) {
		t.Fatalf("Propose() after Close error = %v; want ErrWidgetClosed", err)
	}
	if err := h.widget.Commit(context.Background()); !errors.Is(err, helpers.ErrWidgetClosed) {
		t.Fatalf("Commit() after Close error = %v; want ErrWidgetClosed", err)
	}
}

func TestWithdrawRespectsConfiguration(t *testing.T) {
	h := newHarness(t, defaultOptions())
	h.widget.Propose(msft)
	if removed, err := h.widget.Withdraw("GOOG"); removed || err != nil {
		t.Fatalf("Withdraw(GOOG) = %v, %v; want no-op", removed, err)
	}
	if removed, err := h.widget.Withdraw("MSFT"); !removed || err != nil {
		t.Fatalf("Withdraw(MSFT) = %v, %v; want removed", removed, err)
	}

	opts := defaultOptions()
	opts.AllowWithdraw = false
	locked := newHarness(t, opts)
	locked.widget.Propose(msft)
	if _, err := locked.widget.Withdraw("MSFT"); !helpers.IsValidation(err) {
		t.Fatalf("Withdraw() error = %v; want validation error when disabled", err)
	}
}

func TestProposeRejectsEmptySymbol(t *testing.T) {
	h := newHarness(t, defaultOptions())
	if _, err := h.widget.Propose(models.MSymbolRecord{Symbol: "  "}); !helpers.IsValidation(err) {
		t.Fatalf("Propose(empty) error = %v; want validation error", err)
	}
}
