package http

import (
	"net/http/httptest"
	"testing"
)

func TestExtractClientIP_RemoteAddr(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.9:51234"

	ip := ExtractClientIP(r, nil)
	if ip != "203.0.113.9" {
		t.Errorf("got %q, want 203.0.113.9", ip)
	}
}

func TestExtractClientIP_UntrustedProxyHeadersIgnored(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.9:51234"
	r.Header.Set("X-Forwarded-For", "198.51.100.1")

	ip := ExtractClientIP(r, &IPConfig{})
	if ip != "203.0.113.9" {
		t.Errorf("spoofed header should be ignored, got %q", ip)
	}
}

func TestExtractClientIP_TrustedProxy(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.5:51234"
	r.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.5")

	config := &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}
	ip := ExtractClientIP(r, config)
	if ip != "198.51.100.1" {
		t.Errorf("got %q, want 198.51.100.1", ip)
	}
}

func TestExtractClientIP_TrustedProxyXRealIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.5:51234"
	r.Header.Set("X-Real-IP", "198.51.100.7")

	config := &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}
	ip := ExtractClientIP(r, config)
	if ip != "198.51.100.7" {
		t.Errorf("got %q, want 198.51.100.7", ip)
	}
}

func TestExtractClientIP_InvalidForwardedValue(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.5:51234"
	r.Header.Set("X-Forwarded-For", "not-an-ip")

	config := &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}
	ip := ExtractClientIP(r, config)
	if ip != "10.0.0.5" {
		t.Errorf("got %q, want fallback 10.0.0.5", ip)
	}
}
