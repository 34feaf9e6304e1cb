package yahoo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"vigila/src/models"
)

type fakeNetwork struct {
	mu     sync.Mutex
	bodies map[string]string
	params []map[string]string
}

func (f *fakeNetwork) Get(ctx context.Context, url string, params map[string]string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params = append(f.params, params)
	sym := url[strings.LastIndex(url, "/")+1:]
	body, ok := f.bodies[sym]
	if !ok {
		return nil, errors.New("status 404")
	}
	return []byte(body), nil
}

func chart(volumes ...string) string {
	ts := make([]string, len(volumes))
	for i := range volumes {
		ts[i] = fmt.Sprint(1700000000 + i*86400)
	}
	return fmt.Sprintf(`{"chart":{"result":[{"meta":{"symbol":"X"},"timestamp":[%s],"indicators":{"quote":[{"volume":[%s]}]}}],"error":null}}`,
		strings.Join(ts, ","), strings.Join(volumes, ","))
}

func newSource(net *fakeNetwork) *YahooFinanceSource {
	cfg := &models.MConfig{}
	cfg.Network.ConcurrentRequests = 2
	s := NewYahooFinanceSource(cfg, net)
	s.BaseURL = "https://chart.test/%s"
	s.Pause = 0
	return s
}

func TestFetchVolumesComputesRatio(t *testing.T) {
	net := &fakeNetwork{bodies: map[string]string{
		"AAPL": chart("100", "200", "300"),
		"MSFT": chart("1000", "null", "500"),
	}}

	got, err := newSource(net).FetchVolumes(context.Background(), []string{"AAPL", "MSFT"})
	if err != nil {
		t.Fatalf("FetchVolumes() error = %v", err)
	}

	aapl := got["AAPL"]
	if aapl.CurrentVolume != 300 || aapl.PreviousVolume != 200 || aapl.Ratio.String() != "150" {
		t.Fatalf("AAPL = %+v; want 300/200 ratio 150", aapl)
	}
	msft := got["MSFT"]
	if msft.CurrentVolume != 500 || msft.PreviousVolume != 1000 || msft.Ratio.String() != "50" {
		t.Fatalf("MSFT = %+v; null sessions must be skipped", msft)
	}

	for _, p := range net.params {
		if p["interval"] != "1d" || p["range"] != "5d" {
			t.Fatalf("params = %v; want daily bars over 5d", p)
		}
	}
}

func TestFetchVolumesSkipsUnusableSymbols(t *testing.T) {
	net := &fakeNetwork{bodies: map[string]string{
		"AAPL": chart("100", "200"),
		"ONE":  chart("100"),
		"ZERO": chart("0", "100"),
		"ERR":  `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`,
	}}

	got, err := newSource(net).FetchVolumes(context.Background(), []string{"AAPL", "ONE", "ZERO", "ERR", "MISSING"})
	if err != nil {
		t.Fatalf("FetchVolumes() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("FetchVolumes() = %v; want only AAPL", got)
	}
	if _, ok := got["AAPL"]; !ok {
		t.Fatalf("FetchVolumes() missing AAPL")
	}
}

func TestFetchVolumesAllFailed(t *testing.T) {
	net := &fakeNetwork{bodies: map[string]string{}}
	if _, err := newSource(net).FetchVolumes(context.Background(), []string{"A", "B"}); err == nil {
		t.Fatalf("FetchVolumes() error = nil; want failure when every symbol fails")
	}
}

func TestFetchVolumesEmpty(t *testing.T) {
	got, err := newSource(&fakeNetwork{}).FetchVolumes(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("FetchVolumes(nil) = %v, %v; want empty", got, err)
	}
}
