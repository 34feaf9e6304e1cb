package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"vigila/src/helpers"
	"vigila/src/interfaces"
	"vigila/src/logger"
	"vigila/src/models"
)

type AsyncNetworkManager struct {
	Config       *models.MConfig
	ProxyManager interfaces.IProxyManager
	Client       *http.Client
	Logger       *logger.Logger

	// Backoff is the base delay; attempt i waits Backoff*i*i.
	Backoff time.Duration
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg *models.MConfig, log *logger.Logger) *AsyncNetworkManager {
	var proxies []string
	if cfg.Network.Enabled {
		proxies = cfg.Network.Proxies
	}

	nm := &AsyncNetworkManager{
		Config:       cfg,
		ProxyManager: helpers.NewProxyManager(proxies, cfg.Network.UserAgent),
		Logger:       log,
		Backoff:      time.Second,
	}
	nm.Client = nm.createClient(nil)
	return nm
}

// -----------------------------------------------------------------------------

// createClient builds a client whose proxy follows the proxy manager's rotation.
// A nil base uses a clone of http.DefaultTransport.
func (nm *AsyncNetworkManager) createClient(base http.RoundTripper) *http.Client {
	if base == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = nm.currentProxy
		base = transport
	}

	return &http.Client{
		Transport: base,
		Timeout:   time.Duration(nm.Config.Network.RequestTimeout) * time.Second,
	}
}

// -----------------------------------------------------------------------------

// WithTransport swaps the underlying round tripper, keeping timeouts.
func (nm *AsyncNetworkManager) WithTransport(rt http.RoundTripper) *AsyncNetworkManager {
	nm.Client = nm.createClient(rt)
	return nm
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) currentProxy(*http.Request) (*url.URL, error) {
	if !nm.ProxyManager.HasProxies() {
		return nil, nil
	}
	proxyStr, err := nm.ProxyManager.GetCurrentProxy()
	if err != nil || proxyStr == "" {
		return nil, err
	}
	return url.Parse(proxyStr)
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries and proxy rotation.
func (nm *AsyncNetworkManager) Get(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	reqUrl, err := url.Parse(urlStr)
	if err != nil {
		return nil, helpers.NewValidationError(fmt.Sprintf("invalid url %q: %v", urlStr, err))
	}

	q := reqUrl.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	reqUrl.RawQuery = q.Encode()

	finalUrl := reqUrl.String()

	maxRetries := nm.Config.Network.MaxRetries
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			select {
			case <-time.After(nm.Backoff * time.Duration(i*i)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			nm.ProxyManager.RotateProxy()
		}

		body, retry, err := nm.do(ctx, finalUrl)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry {
			break
		}
		nm.Logger.Info("Request failed (attempt %d/%d): %v", i+1, maxRetries+1, err)
	}

	return nil, helpers.NewNetworkError("max retries exceeded", lastErr)
}

// -----------------------------------------------------------------------------

// do performs one attempt. retry reports whether another attempt may help.
func (nm *AsyncNetworkManager) do(ctx context.Context, finalUrl string) (body []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalUrl, nil)
	if err != nil {
		return nil, false, err
	}

	// Use dynamic User-Agent
	req.Header.Set("User-Agent", nm.ProxyManager.GetUserAgent())

	resp, err := nm.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
		nm.Logger.Info("Request blocked (%d). Rotating proxy.", resp.StatusCode)
		return nil, true, fmt.Errorf("blocked (status %d)", resp.StatusCode)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, fmt.Errorf("not found (status %d)", resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, true, fmt.Errorf("bad status: %d", resp.StatusCode)
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	return body, false, nil
}
