package widget

import (
	"context"
	"sync"

	"vigila/src/helpers"
	"vigila/src/interfaces"
	"vigila/src/models"
)

// CommitFailedMessage is shown when a batch add does not persist.
const CommitFailedMessage = "Failed to save symbols. Please try again."

// -----------------------------------------------------------------------------
// SelectionManager owns the pending selection of one widget. The saved set is
// a snapshot taken at open time and only grows with symbols this manager commits.
// -----------------------------------------------------------------------------

type SelectionManager struct {
	store       interfaces.IWatchlistStore
	userID      string
	checkSaved  bool
	onCommitted func(batch []models.MSymbolRecord)
	errors      *helpers.ErrorHandler

	// OnChange runs outside the lock when a commit starts and resolves.
	OnChange func()

	mu         sync.Mutex
	saved      map[string]struct{}
	pending    []models.MSymbolRecord
	committing bool
	commitErr  string
	commitOK   bool
}

// -----------------------------------------------------------------------------

func NewSelectionManager(store interfaces.IWatchlistStore, userID string, saved map[string]struct{}, checkSaved bool, onCommitted func([]models.MSymbolRecord)) *SelectionManager {
	own := make(map[string]struct{}, len(saved))
	for s := range saved {
		own[s] = struct{}{}
	}
	return &SelectionManager{
		store:       store,
		userID:      userID,
		checkSaved:  checkSaved,
		onCommitted: onCommitted,
		errors:      helpers.NewErrorHandler("Selection"),
		saved:       own,
	}
}

// -----------------------------------------------------------------------------

// Propose adds candidate unless its symbol is already pending or saved.
func (m *SelectionManager) Propose(candidate models.MSymbolRecord) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isAddedLocked(candidate.Symbol) {
		return false
	}
	m.pending = append(m.pending, candidate)
	m.commitOK = false
	return true
}

// -----------------------------------------------------------------------------

// Withdraw removes symbol from the pending selection. Absent symbols are a no-op.
func (m *SelectionManager) Withdraw(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.pending {
		if r.Symbol == symbol {
			m.pending = append(m.pending[:i:i], m.pending[i+1:]...)
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------

// Commit persists the pending selection as one batch. On failure the selection
// is kept for retry. Records proposed while the batch is in flight stay pending.
func (m *SelectionManager) Commit(ctx context.Context) error {
	m.mu.Lock()
	if m.committing {
		m.mu.Unlock()
		return helpers.ErrCommitInProgress
	}
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return nil
	}
	batch := cloneRecords(m.pending)
	m.committing = true
	m.commitErr = ""
	m.commitOK = false
	m.mu.Unlock()
	m.notify()

	err := m.store.EnsureExists(ctx, m.userID)
	if err == nil {
		err = m.store.AddToSet(ctx, m.userID, batch)
	}

	m.mu.Lock()
	m.committing = false
	if err != nil {
		m.commitErr = m.errors.UserMessage(err, "commit", CommitFailedMessage)
		m.mu.Unlock()
		m.notify()
		return err
	}

	committed := make(map[string]struct{}, len(batch))
	for _, r := range batch {
		committed[r.Symbol] = struct{}{}
		m.saved[r.Symbol] = struct{}{}
	}
	kept := m.pending[:0:0]
	for _, r := range m.pending {
		if _, ok := committed[r.Symbol]; !ok {
			kept = append(kept, r)
		}
	}
	m.pending = kept
	m.commitOK = true
	m.mu.Unlock()
	m.notify()

	if m.onCommitted != nil {
		m.onCommitted(batch)
	}
	return nil
}

// -----------------------------------------------------------------------------

// IsAdded is the display predicate for a suggestion.
func (m *SelectionManager) IsAdded(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isAddedLocked(symbol)
}

func (m *SelectionManager) isAddedLocked(symbol string) bool {
	for _, r := range m.pending {
		if r.Symbol == symbol {
			return true
		}
	}
	if !m.checkSaved {
		return false
	}
	_, ok := m.saved[symbol]
	return ok
}

// -----------------------------------------------------------------------------

// Discard drops the pending selection without persisting it.
func (m *SelectionManager) Discard() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
	m.commitErr = ""
	m.commitOK = false
}

// -----------------------------------------------------------------------------

// ClearSuccess hides the success message once the user moves on.
func (m *SelectionManager) ClearSuccess() {
	m.mu.Lock()
	m.commitOK = false
	m.mu.Unlock()
}

// -----------------------------------------------------------------------------

// SelectionState is the manager output at one instant.
type SelectionState struct {
	Pending    []models.MSymbolRecord
	Committing bool
	CommitErr  string
	CommitOK   bool
}

func (m *SelectionManager) State() SelectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	pending := cloneRecords(m.pending)
	if pending == nil {
		pending = []models.MSymbolRecord{}
	}
	return SelectionState{
		Pending:    pending,
		Committing: m.committing,
		CommitErr:  m.commitErr,
		CommitOK:   m.commitOK,
	}
}

// -----------------------------------------------------------------------------

// Decorate flags each record with the display predicate.
func (m *SelectionManager) Decorate(records []models.MSymbolRecord) []models.MSuggestion {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.MSuggestion, 0, len(records))
	for _, r := range records {
		added := m.isAddedLocked(r.Symbol)
		out = append(out, models.MSuggestion{Record: r, AlreadyAdded: added, CanAdd: !added})
	}
	return out
}

// -----------------------------------------------------------------------------

func (m *SelectionManager) notify() {
	if m.OnChange != nil {
		m.OnChange()
	}
}
