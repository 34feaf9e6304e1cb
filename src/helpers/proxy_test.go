package helpers

import "testing"

func TestProxyManagerRotation(t *testing.T) {
	pm := NewProxyManager([]string{"10.0.0.1:8080", "ftp://bad", "", "https://10.0.0.2:3128"}, "")
	if !pm.HasProxies() {
		t.Fatalf("HasProxies() = false; want true")
	}

	first, _ := pm.GetCurrentProxy()
	if first != "http://10.0.0.1:8080" {
		t.Fatalf("GetCurrentProxy() = %q; want scheme added", first)
	}
	pm.RotateProxy()
	second, _ := pm.GetCurrentProxy()
	if second != "https://10.0.0.2:3128" {
		t.Fatalf("GetCurrentProxy() after rotate = %q; want second proxy", second)
	}
	pm.RotateProxy()
	if again, _ := pm.GetCurrentProxy(); again != first {
		t.Fatalf("GetCurrentProxy() = %q; want rotation to wrap to %q", again, first)
	}
}

func TestProxyManagerPinnedUserAgent(t *testing.T) {
	pm := NewProxyManager(nil, "vigila/1.0")
	if pm.HasProxies() {
		t.Fatalf("HasProxies() = true; want false")
	}
	if got := pm.GetUserAgent(); got != "vigila/1.0" {
		t.Fatalf("GetUserAgent() = %q; want pinned agent", got)
	}
	if p, err := pm.GetCurrentProxy(); p != "" || err != nil {
		t.Fatalf("GetCurrentProxy() = %q, %v; want empty", p, err)
	}
}
