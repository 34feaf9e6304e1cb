package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vigila/src/models"
)

// NtfyNotifier posts alerts to an ntfy topic. The recipient is forwarded in
// the Email header so ntfy can relay the message.
type NtfyNotifier struct {
	Endpoint  string
	Threshold float64
	Team      string
	Client    *http.Client

	now func() time.Time
}

func NewNtfyNotifier(endpoint string, threshold float64, team string, client *http.Client) *NtfyNotifier {
	return &NtfyNotifier{
		Endpoint:  endpoint,
		Threshold: threshold,
		Team:      team,
		Client:    client,
		now:       time.Now,
	}
}

func (n *NtfyNotifier) Notify(ctx context.Context, recipient string, alerts []models.MVolumeSnapshot) error {
	if len(alerts) == 0 {
		return nil
	}
	headers := map[string]string{
		"Title":    Subject(n.now()),
		"Markdown": "yes",
		"Tags":     "chart_with_upwards_trend",
	}
	if recipient != "" {
		headers["Email"] = recipient
	}
	return Send(ctx, n.Client, n.Endpoint, Markdown(n.Threshold, n.Team, alerts), headers)
}

// Send sends a message to the requested endpoint using HTTP POST.
func Send(ctx context.Context, client *http.Client, endpoint, message string, headers map[string]string) error {
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "text/markdown")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
