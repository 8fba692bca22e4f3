package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIPIgnoresForwardedHeaderByDefault(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/emit", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")

	got := clientIP(req, false)
	if got != "203.0.113.9" {
		t.Fatalf("want RemoteAddr used when trustProxy is false, got %q", got)
	}
}

func TestClientIPHonorsForwardedHeaderWhenTrusted(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/emit", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	req.Header.Set("X-Forwarded-For", "198.51.100.1, 203.0.113.9")

	got := clientIP(req, true)
	if got != "198.51.100.1" {
		t.Fatalf("want first routable XFF entry, got %q", got)
	}
}

func TestClientIPSkipsLoopbackInForwardedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/emit", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	req.Header.Set("X-Forwarded-For", "127.0.0.1, 198.51.100.1")

	got := clientIP(req, true)
	if got != "198.51.100.1" {
		t.Fatalf("want loopback entry skipped, got %q", got)
	}
}

func TestClientIPAllowsPrivateRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/emit", nil)
	req.RemoteAddr = "10.0.1.4:5555"

	got := clientIP(req, false)
	if got != "10.0.1.4" {
		t.Fatalf("want private RemoteAddr accepted when there is no proxy to distrust, got %q", got)
	}
}
