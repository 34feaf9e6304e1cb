package widget

import (
	"context"
	"errors"
	"testing"

	"vigila/src/helpers"
	"vigila/src/models"
)

func saved(symbols ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		out[s] = struct{}{}
	}
	return out
}

func TestProposeTwiceKeepsOneEntry(t *testing.T) {
	m := NewSelectionManager(newFlakyStore(), "u1", nil, true, nil)

	if !m.Propose(msft) {
		t.Fatalf("Propose(MSFT) = false; want true")
	}
	if m.Propose(msft) {
		t.Fatalf("second Propose(MSFT) = true; want no-op")
	}
	if got := m.State().Pending; !sameSymbols(got, "MSFT") {
		t.Fatalf("Pending = %v; want [MSFT]", got)
	}
}

func TestProposeSavedSymbolIsSuppressed(t *testing.T) {
	m := NewSelectionManager(newFlakyStore(), "u1", saved("AAPL"), true, nil)

	other := aapl
	other.Name = "Apple (renamed)"
	if m.Propose(aapl) || m.Propose(other) {
		t.Fatalf("Propose(AAPL) = true; saved symbols must never be staged")
	}
	if got := m.State().Pending; len(got) != 0 {
		t.Fatalf("Pending = %v; want empty", got)
	}
	if !m.IsAdded("AAPL") {
		t.Fatalf("IsAdded(AAPL) = false; want true")
	}
}

func TestSessionOnlyScopeIgnoresSavedSet(t *testing.T) {
	m := NewSelectionManager(newFlakyStore(), "u1", saved("AAPL"), false, nil)

	if m.IsAdded("AAPL") {
		t.Fatalf("IsAdded(AAPL) = true; session-only scope must ignore saved symbols")
	}
	if !m.Propose(aapl) {
		t.Fatalf("Propose(AAPL) = false; want staged under session-only scope")
	}
	if m.Propose(aapl) {
		t.Fatalf("Propose(AAPL) twice = true; session duplicates are still suppressed")
	}
}

func TestWithdrawAbsentIsNoop(t *testing.T) {
	m := NewSelectionManager(newFlakyStore(), "u1", nil, true, nil)
	m.Propose(msft)
	before := m.State()

	if m.Withdraw("GOOG") {
		t.Fatalf("Withdraw(GOOG) = true; want false for absent symbol")
	}
	after := m.State()
	if !sameSymbols(after.Pending, "MSFT") || after.CommitErr != before.CommitErr || after.CommitOK != before.CommitOK {
		t.Fatalf("State() = %+v; want unchanged %+v", after, before)
	}

	if !m.Withdraw("MSFT") {
		t.Fatalf("Withdraw(MSFT) = false; want true")
	}
	if got := m.State().Pending; len(got) != 0 {
		t.Fatalf("Pending = %v; want empty", got)
	}
}

func TestCommitEmptyIsNoop(t *testing.T) {
	store := newFlakyStore()
	m := NewSelectionManager(store, "u1", nil, true, nil)
	if err := m.Commit(context.Background()); err != nil {
		t.Fatalf("Commit() error = %v; want nil", err)
	}
	if store.adds() != 0 {
		t.Fatalf("AddToSet calls = %d; want 0", store.adds())
	}
}

func TestCommitRoundTrip(t *testing.T) {
	store := newFlakyStore()
	ctx := context.Background()
	_ = store.AddToSet(ctx, "u1", []models.MSymbolRecord{aapl})

	var committed []models.MSymbolRecord
	m := NewSelectionManager(store, "u1", saved("AAPL"), true, func(b []models.MSymbolRecord) { committed = b })
	m.Propose(msft)
	m.Propose(goog)

	if err := m.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	persisted, _ := store.Fetch(ctx, "u1")
	if !sameSymbols(persisted, "AAPL", "MSFT", "GOOG") {
		t.Fatalf("persisted = %v; want AAPL, MSFT, GOOG", persisted)
	}
	st := m.State()
	if len(st.Pending) != 0 || !st.CommitOK || st.CommitErr != "" {
		t.Fatalf("State() = %+v; want empty selection with success", st)
	}
	if !sameSymbols(committed, "MSFT", "GOOG") {
		t.Fatalf("OnCommitted batch = %v; want MSFT, GOOG", committed)
	}
	if !m.IsAdded("MSFT") {
		t.Fatalf("IsAdded(MSFT) = false; committed symbols count as saved")
	}
	if store.adds() != 2 {
		t.Fatalf("AddToSet calls = %d; want one batch after the seed", store.adds())
	}
}

func TestCommitFailurePreservesSelection(t *testing.T) {
	store := newFlakyStore()
	store.addErr = errUnavailable
	called := false
	m := NewSelectionManager(store, "u1", nil, true, func([]models.MSymbolRecord) { called = true })
	m.Propose(msft)
	m.Propose(goog)

	err := m.Commit(context.Background())
	if !errors.Is(err, errUnavailable) {
		t.Fatalf("Commit() error = %v; want %v", err, errUnavailable)
	}
	st := m.State()
	if !sameSymbols(st.Pending, "MSFT", "GOOG") {
		t.Fatalf("Pending = %v; want selection preserved", st.Pending)
	}
	if st.CommitErr != CommitFailedMessage || st.CommitOK || st.Committing {
		t.Fatalf("State() = %+v; want failure message and open state", st)
	}
	if called {
		t.Fatalf("OnCommitted called after failure")
	}

	// retry succeeds
	store.mu.Lock()
	store.addErr = nil
	store.mu.Unlock()
	if err := m.Commit(context.Background()); err != nil {
		t.Fatalf("retry Commit() error = %v", err)
	}
	if got := m.State().Pending; len(got) != 0 {
		t.Fatalf("Pending after retry = %v; want empty", got)
	}
}

func TestCommitWithoutIdentity(t *testing.T) {
	m := NewSelectionManager(newFlakyStore(), "", nil, true, nil)
	m.Propose(msft)

	if err := m.Commit(context.Background()); !helpers.IsNotAuthenticated(err) {
		t.Fatalf("Commit() error = %v; want NotAuthenticated", err)
	}
	if got := m.State().Pending; !sameSymbols(got, "MSFT") {
		t.Fatalf("Pending = %v; want preserved", got)
	}
}

func TestSecondCommitWhileInFlightIsRejected(t *testing.T) {
	store := newFlakyStore()
	store.addGate = make(chan struct{})
	m := NewSelectionManager(store, "u1", nil, true, nil)
	m.Propose(msft)

	first := make(chan error, 1)
	go func() { first <- m.Commit(context.Background()) }()
	waitFor(t, func() bool { return m.State().Committing })

	if err := m.Commit(context.Background()); !errors.Is(err, helpers.ErrCommitInProgress) {
		t.Fatalf("second Commit() error = %v; want ErrCommitInProgress", err)
	}

	// staged during the commit, so it survives the success
	m.Propose(goog)
	close(store.addGate)
	if err := <-first; err != nil {
		t.Fatalf("first Commit() error = %v", err)
	}
	if store.adds() != 1 {
		t.Fatalf("AddToSet calls = %d; want 1", store.adds())
	}
	if got := m.State().Pending; !sameSymbols(got, "GOOG") {
		t.Fatalf("Pending = %v; want [GOOG] left for the next commit", got)
	}
}

func TestDecorateFlagsMembership(t *testing.T) {
	m := NewSelectionManager(newFlakyStore(), "u1", saved("AAPL"), true, nil)
	m.Propose(aal)

	got := m.Decorate([]models.MSymbolRecord{aapl, aal, aa})
	want := []bool{true, true, false}
	for i, s := range got {
		if s.AlreadyAdded != want[i] || s.CanAdd == want[i] {
			t.Fatalf("Decorate()[%d] = %+v; want already_added=%v can_add=%v", i, s, want[i], !want[i])
		}
	}
}
