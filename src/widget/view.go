package widget

import (
	"context"
	"sync"

	"vigila/src/helpers"
	"vigila/src/interfaces"
	"vigila/src/models"
)

// Inline messages for the watchlist view.
const (
	LoadFailedMessage   = "Failed to load your watchlist."
	RemoveFailedMessage = "Failed to remove symbol. Please try again."
)

// -----------------------------------------------------------------------------
// WatchlistView mirrors the persisted Volume sequence of one user. Removals are
// applied to the mirror first and rolled back by symbol if the store rejects them.
// -----------------------------------------------------------------------------

type WatchlistView struct {
	store    interfaces.IWatchlistStore
	userID   string
	onChange func()
	errors   *helpers.ErrorHandler

	mu       sync.Mutex
	mirror   []models.MSymbolRecord
	removing map[string]models.MSymbolRecord
	loaded   bool
	err      string
}

// -----------------------------------------------------------------------------

func NewWatchlistView(store interfaces.IWatchlistStore, userID string, onChange func()) *WatchlistView {
	return &WatchlistView{
		store:    store,
		userID:   userID,
		onChange: onChange,
		errors:   helpers.NewErrorHandler("WatchlistView"),
		mirror:   []models.MSymbolRecord{},
		removing: make(map[string]models.MSymbolRecord),
	}
}

// -----------------------------------------------------------------------------

// Load fetches the persisted sequence and replaces the mirror. Symbols with a
// removal in flight stay hidden.
func (v *WatchlistView) Load(ctx context.Context) error {
	records, err := v.store.Fetch(ctx, v.userID)

	v.mu.Lock()
	if err != nil {
		v.err = v.errors.UserMessage(err, "watchlist load", LoadFailedMessage)
		v.mu.Unlock()
		v.notify()
		return err
	}
	mirror := make([]models.MSymbolRecord, 0, len(records))
	for _, r := range records {
		if _, busy := v.removing[r.Symbol]; !busy {
			mirror = append(mirror, r)
		}
	}
	v.mirror = mirror
	v.loaded = true
	v.err = ""
	v.mu.Unlock()
	v.notify()
	return nil
}

// -----------------------------------------------------------------------------

// EnsureLoaded loads the mirror once.
func (v *WatchlistView) EnsureLoaded(ctx context.Context) error {
	v.mu.Lock()
	loaded := v.loaded
	v.mu.Unlock()
	if loaded {
		return nil
	}
	return v.Load(ctx)
}

// -----------------------------------------------------------------------------

// Refresh re-reads the store, typically after a commit.
func (v *WatchlistView) Refresh(ctx context.Context) error {
	return v.Load(ctx)
}

// -----------------------------------------------------------------------------

// RemoveSymbol resolves symbol against the mirror and removes that record.
func (v *WatchlistView) RemoveSymbol(ctx context.Context, symbol string) error {
	v.mu.Lock()
	var (
		record models.MSymbolRecord
		found  bool
	)
	for _, r := range v.mirror {
		if r.Symbol == symbol {
			record, found = r, true
			break
		}
	}
	v.mu.Unlock()

	if !found {
		return helpers.ErrSymbolNotFound
	}
	return v.Remove(ctx, record)
}

// -----------------------------------------------------------------------------

// Remove drops record from the mirror immediately, then asks the store to
// remove exactly that record. A failure appends it back.
func (v *WatchlistView) Remove(ctx context.Context, record models.MSymbolRecord) error {
	v.mu.Lock()
	if _, busy := v.removing[record.Symbol]; busy || !containsSymbol(v.mirror, record.Symbol) {
		v.mu.Unlock()
		return helpers.ErrSymbolNotFound
	}
	v.mirror = withoutSymbol(v.mirror, record.Symbol)
	v.removing[record.Symbol] = record
	v.err = ""
	v.mu.Unlock()
	v.notify()

	err := v.store.RemoveFromSet(ctx, v.userID, record)

	v.mu.Lock()
	delete(v.removing, record.Symbol)
	if err == nil {
		v.mu.Unlock()
		return nil
	}
	if !containsSymbol(v.mirror, record.Symbol) {
		v.mirror = append(v.mirror, record)
	}
	v.err = v.errors.UserMessage(err, "watchlist removal", RemoveFailedMessage)
	v.mu.Unlock()
	v.notify()
	return err
}

// -----------------------------------------------------------------------------

// Snapshot returns a copy of the mirror.
func (v *WatchlistView) Snapshot() []models.MSymbolRecord {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]models.MSymbolRecord, len(v.mirror))
	copy(out, v.mirror)
	return out
}

// -----------------------------------------------------------------------------

// SavedSymbols returns the mirror's symbols as a fresh set.
func (v *WatchlistView) SavedSymbols() map[string]struct{} {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[string]struct{}, len(v.mirror))
	for _, r := range v.mirror {
		out[r.Symbol] = struct{}{}
	}
	return out
}

// -----------------------------------------------------------------------------

// Busy reports whether a removal is still waiting on the store.
func (v *WatchlistView) Busy() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.removing) > 0
}

// -----------------------------------------------------------------------------

func (v *WatchlistView) State() models.MWatchlistState {
	v.mu.Lock()
	defer v.mu.Unlock()
	records := make([]models.MSymbolRecord, len(v.mirror))
	copy(records, v.mirror)
	return models.MWatchlistState{Records: records, Error: v.err}
}

// -----------------------------------------------------------------------------

func (v *WatchlistView) notify() {
	if v.onChange != nil {
		v.onChange()
	}
}

// -----------------------------------------------------------------------------

func containsSymbol(records []models.MSymbolRecord, symbol string) bool {
	for _, r := range records {
		if r.Symbol == symbol {
			return true
		}
	}
	return false
}

func withoutSymbol(records []models.MSymbolRecord, symbol string) []models.MSymbolRecord {
	out := make([]models.MSymbolRecord, 0, len(records))
	for _, r := range records {
		if r.Symbol != symbol {
			out = append(out, r)
		}
	}
	return out
}
