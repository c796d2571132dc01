package authapi

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP_XForwardedFor(t *testing.T) {
	r := httptest.NewRequest("POST", "/login", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")

	if got := clientIP(r); got != "203.0.113.50" {
		t.Errorf("clientIP() = %q, want %q", got, "203.0.113.50")
	}
}

func TestClientIP_RemoteAddrFallback(t *testing.T) {
	r := httptest.NewRequest("POST", "/login", nil)
	r.RemoteAddr = "192.0.2.1:54321"

	if got := clientIP(r); got != "192.0.2.1" {
		t.Errorf("clientIP() = %q, want %q", got, "192.0.2.1")
	}
}

func TestClientIP_RemoteAddrWithoutPort(t *testing.T) {
	r := httptest.NewRequest("POST", "/login", nil)
	r.RemoteAddr = "192.0.2.1"

	if got := clientIP(r); got != "192.0.2.1" {
		t.Errorf("clientIP() = %q, want %q", got, "192.0.2.1")
	}
}
