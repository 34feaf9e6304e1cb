package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"vigila/src/interfaces"
	"vigila/src/logger"
	"vigila/src/models"

	"github.com/shopspring/decimal"
)

const chartURL = "https://query1.finance.yahoo.com/v8/finance/chart/%s"

var hundred = decimal.NewFromInt(100)

type YahooFinanceSource struct {
	Config  *models.MConfig
	Network interfaces.INetworkManager
	Logger  *logger.Logger

	// BaseURL overrides chartURL; must contain one %s for the symbol.
	BaseURL string
	// Pause between requests of one worker to stay under rate limits.
	Pause time.Duration
}

// -----------------------------------------------------------------------------

func (s *YahooFinanceSource) Name() string {
	return "yahoo"
}

// -----------------------------------------------------------------------------

func NewYahooFinanceSource(cfg *models.MConfig, netMgr interfaces.INetworkManager) *YahooFinanceSource {
	return &YahooFinanceSource{
		Config:  cfg,
		Network: netMgr,
		Logger:  logger.NewLogger("YahooFinanceSource"),
		BaseURL: chartURL,
		Pause:   10 * time.Millisecond,
	}
}

// -----------------------------------------------------------------------------

// FetchVolumes returns the latest two daily volumes of each symbol. Symbols
// without two valid sessions or with a zero previous volume are left out.
func (s *YahooFinanceSource) FetchVolumes(ctx context.Context, symbols []string) (map[string]models.MVolumeSnapshot, error) {
	if len(symbols) == 0 {
		return make(map[string]models.MVolumeSnapshot), nil
	}

	results := make(map[string]models.MVolumeSnapshot)
	var mu sync.Mutex
	var wg sync.WaitGroup
	errors := make([]error, 0, len(symbols))
	var errorsMu sync.Mutex

	limit := s.Config.Network.ConcurrentRequests
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)

	for _, symbol := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			if s.Pause > 0 {
				time.Sleep(s.Pause)
			}

			snap, err := s.fetchSymbol(ctx, sym)
			if err != nil {
				s.Logger.Info("Error fetching symbol %s: %v", sym, err)
				errorsMu.Lock()
				errors = append(errors, err)
				errorsMu.Unlock()
				return
			}
			if snap == nil {
				return
			}

			mu.Lock()
			results[sym] = *snap
			mu.Unlock()
		}(symbol)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.Logger.Info("YahooFinance: Fetched %d/%d symbols successfully", len(results), len(symbols))

	// Return errors if all failed, otherwise return results
	if len(results) == 0 && len(errors) > 0 {
		return nil, fmt.Errorf("all fetches failed: %w", errors[0])
	}

	return results, nil
}

// -----------------------------------------------------------------------------

func (s *YahooFinanceSource) fetchSymbol(ctx context.Context, symbol string) (*models.MVolumeSnapshot, error) {
	params := map[string]string{
		"interval":       "1d",
		"range":          "5d",
		"includePrePost": "false",
	}

	respBytes, err := s.Network.Get(ctx, fmt.Sprintf(s.BaseURL, url.PathEscape(symbol)), params)
	if err != nil {
		return nil, fmt.Errorf("network error for %s: %w", symbol, err)
	}

	return s.parseChartResponse(symbol, respBytes)
}

// -----------------------------------------------------------------------------

type YahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency          string `json:"currency"`
				Symbol            string `json:"symbol"`
				ExchangeName      string `json:"exchangeName"`
				RegularMarketTime int64  `json:"regularMarketTime"`
				Timezone          string `json:"timezone"`
				DataGranularity   string `json:"dataGranularity"`
				Range             string `json:"range"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close  []*float64 `json:"close"`  // Use pointers to handle null
					Volume []*float64 `json:"volume"` // Use pointers to handle null
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// -----------------------------------------------------------------------------

// parseChartResponse returns nil without error when fewer than two sessions
// carry a volume or the previous session traded nothing.
func (s *YahooFinanceSource) parseChartResponse(symbol string, data []byte) (*models.MVolumeSnapshot, error) {
	var resp YahooChartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("json unmarshal failed: %w", err)
	}

	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s - %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}

	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("no result in response for %s", symbol)
	}

	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no quote data in response for %s", symbol)
	}
	quote := result.Indicators.Quote[0]

	if len(result.Timestamp) != len(quote.Volume) {
		s.Logger.Info("Data alignment error for %s: Mismatched array lengths", symbol)
		return nil, fmt.Errorf("data alignment error for %s", symbol)
	}

	type session struct {
		timestamp int64
		volume    int64
	}

	var sessions []session
	for i, ts := range result.Timestamp {
		// Yahoo leaves null entries for halted or not yet settled sessions
		if quote.Volume[i] == nil || *quote.Volume[i] < 0 {
			continue
		}
		sessions = append(sessions, session{timestamp: ts, volume: int64(*quote.Volume[i])})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].timestamp < sessions[j].timestamp
	})

	if len(sessions) < 2 {
		return nil, nil
	}

	current := sessions[len(sessions)-1]
	previous := sessions[len(sessions)-2]
	if previous.volume <= 0 {
		return nil, nil
	}

	ratio := decimal.NewFromInt(current.volume).
		Div(decimal.NewFromInt(previous.volume)).
		Mul(hundred)

	return &models.MVolumeSnapshot{
		Symbol:         symbol,
		CurrentVolume:  current.volume,
		PreviousVolume: previous.volume,
		Ratio:          ratio,
		Timestamp:      current.timestamp,
	}, nil
}
