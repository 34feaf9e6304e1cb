package widget

import (
	"context"
	"errors"
	"sync"

	"vigila/src/helpers"
	"vigila/src/logger"
	"vigila/src/models"
	"vigila/src/storage"
)

var (
	aapl = models.MSymbolRecord{Symbol: "AAPL", Name: "Apple Inc.", Currency: "USD", Exchange: "NASDAQ", ExchangeFullName: "NASDAQ Global Select"}
	aal  = models.MSymbolRecord{Symbol: "AAL", Name: "American Airlines Group Inc.", Currency: "USD", Exchange: "NASDAQ", ExchangeFullName: "NASDAQ Global Select"}
	aa   = models.MSymbolRecord{Symbol: "AA", Name: "Alcoa Corporation", Currency: "USD", Exchange: "NYSE", ExchangeFullName: "New York Stock Exchange"}
	aap  = models.MSymbolRecord{Symbol: "AAP", Name: "Advance Auto Parts, Inc.", Currency: "USD", Exchange: "NYSE", ExchangeFullName: "New York Stock Exchange"}
	msft = models.MSymbolRecord{Symbol: "MSFT", Name: "Microsoft Corporation", Currency: "USD", Exchange: "NASDAQ", ExchangeFullName: "NASDAQ Global Select"}
	goog = models.MSymbolRecord{Symbol: "GOOG", Name: "Alphabet Inc.", Currency: "USD", Exchange: "NASDAQ", ExchangeFullName: "NASDAQ Global Select"}
)

var errUnavailable = helpers.NewNetworkError("store unavailable", errors.New("connection reset"))

// -----------------------------------------------------------------------------

type fakeLookup struct {
	mu      sync.Mutex
	queries []string
	results map[string][]models.MSymbolRecord
	err     error
	gate    chan struct{} // when set, Search blocks until closed or ctx done
}

func (f *fakeLookup) Search(ctx context.Context, query string) ([]models.MSymbolRecord, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	gate, err, res := f.gate, f.err, f.results[query]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (f *fakeLookup) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// -----------------------------------------------------------------------------

// flakyStore wraps the memory store with failure injection and an optional
// gate that holds writes until released.
type flakyStore struct {
	*storage.MemoryStore

	mu        sync.Mutex
	addErr    error
	removeErr map[string]error
	fetchErr  error
	addCalls  int
	addGate   chan struct{}
	remGate   map[string]chan struct{}
}

func newFlakyStore() *flakyStore {
	return &flakyStore{
		MemoryStore: storage.NewMemoryStore(logger.NewLogger("test")),
		removeErr:   make(map[string]error),
		remGate:     make(map[string]chan struct{}),
	}
}

func (s *flakyStore) AddToSet(ctx context.Context, userID string, records []models.MSymbolRecord) error {
	s.mu.Lock()
	s.addCalls++
	gate, err := s.addGate, s.addErr
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return err
	}
	return s.MemoryStore.AddToSet(ctx, userID, records)
}

func (s *flakyStore) RemoveFromSet(ctx context.Context, userID string, record models.MSymbolRecord) error {
	s.mu.Lock()
	gate, err := s.remGate[record.Symbol], s.removeErr[record.Symbol]
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return err
	}
	return s.MemoryStore.RemoveFromSet(ctx, userID, record)
}

func (s *flakyStore) Fetch(ctx context.Context, userID string) ([]models.MSymbolRecord, error) {
	s.mu.Lock()
	err := s.fetchErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.MemoryStore.Fetch(ctx, userID)
}

func (s *flakyStore) adds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addCalls
}

// -----------------------------------------------------------------------------

func symbolsOf(records []models.MSymbolRecord) map[string]int {
	out := make(map[string]int, len(records))
	for _, r := range records {
		out[r.Symbol]++
	}
	return out
}

func sameSymbols(records []models.MSymbolRecord, want ...string) bool {
	got := symbolsOf(records)
	if len(got) != len(want) || len(records) != len(want) {
		return false
	}
	for _, s := range want {
		if got[s] != 1 {
			return false
		}
	}
	return true
}
