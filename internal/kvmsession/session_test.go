package kvmsession

import (
	"strings"
	"testing"

	"github.com/northwind-rmm/agent/internal/kvmconfig"
)

func TestBuildURL_RewritesHTTPSToWSS(t *testing.T) {
	s := New(kvmconfig.Line{ServerURL: "https://relay.example.com/agent", Tenant: "acme", UUID: "abc-123"})
	u, err := s.buildURL()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := u; got[:6] != "wss://" {
		t.Fatalf("expected wss:// scheme, got %s", got)
	}
}

func TestBuildURL_PreservesWSScheme(t *testing.T) {
	s := New(kvmconfig.Line{ServerURL: "ws://relay.example.com", Tenant: "acme", UUID: "abc"})
	u, err := s.buildURL()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u[:5] != "ws://" {
		t.Fatalf("expected ws:// preserved, got %s", u)
	}
}

func TestBuildURL_IncludesTenantAndUUID(t *testing.T) {
	s := New(kvmconfig.Line{ServerURL: "wss://relay.example.com", Tenant: "acme-corp", UUID: "uuid-1"})
	u, err := s.buildURL()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !containsAll(u, "tenant=acme-corp", "uuid=uuid-1") {
		t.Fatalf("expected query params in %s", u)
	}
}

func TestProxyURL_IncludesAuthWhenSet(t *testing.T) {
	s := New(kvmconfig.Line{ProxyHost: "proxy.example.com", ProxyPort: "8080", ProxyAuth: "user:pass"})
	u := s.proxyURL()
	if u.Host != "proxy.example.com:8080" {
		t.Fatalf("unexpected proxy host: %s", u.Host)
	}
	if u.User == nil {
		t.Fatalf("expected proxy auth to be set")
	}
}

func TestProxyURL_NoAuthWhenDashSentinel(t *testing.T) {
	s := New(kvmconfig.Line{ProxyHost: "proxy.example.com", ProxyPort: "8080", ProxyAuth: "-"})
	u := s.proxyURL()
	if u.User != nil {
		t.Fatalf("expected no proxy auth for '-' sentinel")
	}
}

func TestWriteBinary_FailsWhenNotConnected(t *testing.T) {
	s := New(kvmconfig.Line{})
	if err := s.WriteBinary([]byte("x")); err == nil {
		t.Fatalf("expected error writing to unconnected session")
	}
}

func TestReadMessage_FailsWhenNotConnected(t *testing.T) {
	s := New(kvmconfig.Line{})
	if _, err := s.ReadMessage(); err == nil {
		t.Fatalf("expected error reading from unconnected session")
	}
}

func containsAll(haystack string, needles ...string) bool {
	for _, n := range needles {
		if !strings.Contains(haystack, n) {
			return false
		}
	}
	return true
}
