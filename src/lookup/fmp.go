package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"vigila/src/helpers"
	"vigila/src/logger"
	"vigila/src/models"

	"github.com/go-resty/resty/v2"
)

const searchPath = "/stable/search-symbol"

// FMPClient queries the Financial Modeling Prep symbol search.
type FMPClient struct {
	client *resty.Client
	apiKey string
	logger *logger.Logger
}

// NewFMPClient creates a search client. Lookups are not retried; the widget
// surfaces the failure and the next keystroke issues a fresh query.
func NewFMPClient(cfg models.MLookupConfig, log *logger.Logger) *FMPClient {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	client.SetTimeout(time.Duration(cfg.RequestTimeout) * time.Second)
	client.SetHeader("Accept", "application/json")

	return &FMPClient{
		client: client,
		apiKey: cfg.APIKey,
		logger: log,
	}
}

// Search returns the provider's candidates for query in relevance order.
func (c *FMPClient) Search(ctx context.Context, query string) ([]models.MSymbolRecord, error) {
	if c.apiKey == "" {
		return nil, helpers.NewNetworkError("symbol lookup failed", fmt.Errorf("API key not configured"))
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"query":  query,
			"apikey": c.apiKey,
		}).
		Get(searchPath)
	if err != nil {
		return nil, helpers.NewNetworkError("symbol lookup failed", err)
	}

	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, helpers.NewNetworkError("symbol lookup failed",
			fmt.Errorf("API error %d: %s", resp.StatusCode(), truncate(resp.String(), 200)))
	}

	var records []models.MSymbolRecord
	if err := json.Unmarshal(resp.Body(), &records); err != nil {
		return nil, helpers.NewNetworkError("symbol lookup failed", fmt.Errorf("failed to parse search response: %w", err))
	}

	c.logger.Debug("Lookup %q returned %d candidates", query, len(records))
	return records, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
