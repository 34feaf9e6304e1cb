package widget

import (
	"context"
	"errors"
	"testing"

	"vigila/src/helpers"
	"vigila/src/models"
)

func loadedView(t *testing.T, store *flakyStore, records ...models.MSymbolRecord) *WatchlistView {
	t.Helper()
	ctx := context.Background()
	if len(records) > 0 {
		if err := store.MemoryStore.AddToSet(ctx, "u1", records); err != nil {
			t.Fatalf("seed AddToSet() error = %v", err)
		}
	}
	v := NewWatchlistView(store, "u1", nil)
	if err := v.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return v
}

func TestLoadMirrorsStore(t *testing.T) {
	v := loadedView(t, newFlakyStore(), aapl, msft)
	if got := v.Snapshot(); !sameSymbols(got, "AAPL", "MSFT") {
		t.Fatalf("Snapshot() = %v; want AAPL, MSFT", got)
	}
	if _, ok := v.SavedSymbols()["MSFT"]; !ok {
		t.Fatalf("SavedSymbols() missing MSFT")
	}
}

func TestLoadFailureSetsError(t *testing.T) {
	store := newFlakyStore()
	store.fetchErr = errUnavailable
	v := NewWatchlistView(store, "u1", nil)

	if err := v.Load(context.Background()); !errors.Is(err, errUnavailable) {
		t.Fatalf("Load() error = %v; want %v", err, errUnavailable)
	}
	if got := v.State().Error; got != LoadFailedMessage {
		t.Fatalf("State().Error = %q; want %q", got, LoadFailedMessage)
	}
}

func TestRemoveSuccess(t *testing.T) {
	store := newFlakyStore()
	v := loadedView(t, store, aapl, msft)

	if err := v.RemoveSymbol(context.Background(), "AAPL"); err != nil {
		t.Fatalf("RemoveSymbol() error = %v", err)
	}
	if got := v.Snapshot(); !sameSymbols(got, "MSFT") {
		t.Fatalf("Snapshot() = %v; want [MSFT]", got)
	}
	persisted, _ := store.Fetch(context.Background(), "u1")
	if !sameSymbols(persisted, "MSFT") {
		t.Fatalf("persisted = %v; want [MSFT]", persisted)
	}
}

func TestRemoveIsOptimisticAndRollsBack(t *testing.T) {
	store := newFlakyStore()
	v := loadedView(t, store, aapl, msft, goog)
	before := v.Snapshot()

	gate := make(chan struct{})
	store.remGate["AAPL"] = gate
	store.removeErr["AAPL"] = errUnavailable

	done := make(chan error, 1)
	go func() { done <- v.Remove(context.Background(), aapl) }()

	waitFor(t, func() bool { return !containsSymbol(v.Snapshot(), "AAPL") })
	close(gate)

	if err := <-done; !errors.Is(err, errUnavailable) {
		t.Fatalf("Remove() error = %v; want %v", err, errUnavailable)
	}
	after := v.Snapshot()
	if !sameSymbols(after, symbolNames(before)...) {
		t.Fatalf("Snapshot() = %v; want pre-removal set %v", after, before)
	}
	if got := v.State().Error; got != RemoveFailedMessage {
		t.Fatalf("State().Error = %q; want %q", got, RemoveFailedMessage)
	}
}

func TestConcurrentRemovalsRollBackIndependently(t *testing.T) {
	store := newFlakyStore()
	v := loadedView(t, store, aapl, msft, goog)

	aaplGate, msftGate := make(chan struct{}), make(chan struct{})
	store.remGate["AAPL"] = aaplGate
	store.remGate["MSFT"] = msftGate
	store.removeErr["AAPL"] = errUnavailable

	aaplDone := make(chan error, 1)
	msftDone := make(chan error, 1)
	go func() { aaplDone <- v.Remove(context.Background(), aapl) }()
	go func() { msftDone <- v.Remove(context.Background(), msft) }()
	waitFor(t, func() bool { return sameSymbols(v.Snapshot(), "GOOG") })

	// failure resolves first, then the success
	close(aaplGate)
	<-aaplDone
	if got := v.Snapshot(); !sameSymbols(got, "GOOG", "AAPL") {
		t.Fatalf("Snapshot() = %v; want AAPL restored while MSFT removal is in flight", got)
	}
	close(msftGate)
	if err := <-msftDone; err != nil {
		t.Fatalf("Remove(MSFT) error = %v", err)
	}

	if got := v.Snapshot(); !sameSymbols(got, "AAPL", "GOOG") {
		t.Fatalf("Snapshot() = %v; want AAPL, GOOG", got)
	}
	persisted, _ := store.Fetch(context.Background(), "u1")
	if !sameSymbols(persisted, "AAPL", "GOOG") {
		t.Fatalf("persisted = %v; want AAPL, GOOG", persisted)
	}
}

func TestRemoveUnknownSymbol(t *testing.T) {
	v := loadedView(t, newFlakyStore(), aapl)
	if err := v.RemoveSymbol(context.Background(), "MSFT"); !errors.Is(err, helpers.ErrSymbolNotFound) {
		t.Fatalf("RemoveSymbol(MSFT) error = %v; want ErrSymbolNotFound", err)
	}
	if got := v.Snapshot(); !sameSymbols(got, "AAPL") {
		t.Fatalf("Snapshot() = %v; want unchanged", got)
	}
}

func TestRefreshKeepsInFlightRemovalHidden(t *testing.T) {
	store := newFlakyStore()
	v := loadedView(t, store, aapl, msft)

	gate := make(chan struct{})
	store.remGate["AAPL"] = gate
	done := make(chan error, 1)
	go func() { done <- v.Remove(context.Background(), aapl) }()
	waitFor(t, func() bool { return !containsSymbol(v.Snapshot(), "AAPL") })

	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got := v.Snapshot(); !sameSymbols(got, "MSFT") {
		t.Fatalf("Snapshot() = %v; in-flight removal must stay hidden", got)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
}

func symbolNames(records []models.MSymbolRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Symbol)
	}
	return out
}
