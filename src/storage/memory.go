package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"vigila/src/logger"
	"vigila/src/models"
)

// -----------------------------------------------------------------------------
// MemoryStore keeps documents in process. Used for development and tests.
// -----------------------------------------------------------------------------

type MemoryStore struct {
	mu     sync.Mutex
	docs   map[string]*models.MWatchlistDocument
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewMemoryStore(log *logger.Logger) *MemoryStore {
	return &MemoryStore{
		docs:   make(map[string]*models.MWatchlistDocument),
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

func (m *MemoryStore) Initialize() error {
	if m.Logger != nil {
		m.Logger.Info("MemoryStore initialized")
	}
	return nil
}

// -----------------------------------------------------------------------------

func (m *MemoryStore) doc(userID string) *models.MWatchlistDocument {
	d, ok := m.docs[userID]
	if !ok {
		d = &models.MWatchlistDocument{
			UserID:     userID,
			Indicators: models.MIndicators{Volume: []models.MSymbolRecord{}},
			UpdatedAt:  time.Now().UTC(),
		}
		m.docs[userID] = d
	}
	return d
}

// -----------------------------------------------------------------------------

func (m *MemoryStore) EnsureExists(ctx context.Context, userID string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc(userID)
	return nil
}

// -----------------------------------------------------------------------------

func (m *MemoryStore) AddToSet(ctx context.Context, userID string, records []models.MSymbolRecord) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.doc(userID)
	d.Indicators.Volume = unionRecords(d.Indicators.Volume, records)
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// -----------------------------------------------------------------------------

func (m *MemoryStore) RemoveFromSet(ctx context.Context, userID string, record models.MSymbolRecord) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[userID]
	if !ok {
		return nil
	}
	d.Indicators.Volume = removeRecord(d.Indicators.Volume, record)
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// -----------------------------------------------------------------------------

func (m *MemoryStore) Fetch(ctx context.Context, userID string) ([]models.MSymbolRecord, error) {
	if userID == "" {
		return []models.MSymbolRecord{}, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[userID]
	if !ok {
		return []models.MSymbolRecord{}, nil
	}
	return cloneRecords(d.Indicators.Volume), nil
}

// -----------------------------------------------------------------------------

func (m *MemoryStore) SetContact(ctx context.Context, userID, email string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc(userID).Email = email
	return nil
}

// -----------------------------------------------------------------------------

func (m *MemoryStore) ListDocuments(ctx context.Context) ([]models.MWatchlistDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.MWatchlistDocument, 0, len(m.docs))
	for _, d := range m.docs {
		cp := *d
		cp.Indicators.Volume = cloneRecords(d.Indicators.Volume)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// -----------------------------------------------------------------------------

func (m *MemoryStore) Close() error {
	return nil
}
