package helpers

import (
	"net"
	"testing"
)

func TestClassifyIP(t *testing.T) {
	tests := map[string]IPClassification{
		"0.0.0.0":              IPClassificationUnspecified,
		"::":                   IPClassificationUnspecified,
		"127.0.0.1":            IPClassificationLoopback,
		"127.255.255.255":      IPClassificationLoopback,
		"::1":                  IPClassificationLoopback,
		"169.254.0.1":          IPClassificationLinkLocal,
		"169.254.169.254":      IPClassificationLinkLocal,
		"fe80::1":              IPClassificationLinkLocal,
		"ff02::1":              IPClassificationLinkLocal,
		"10.0.0.1":             IPClassificationPrivate,
		"172.16.0.1":           IPClassificationPrivate,
		"192.168.1.1":          IPClassificationPrivate,
		"fd00::1":              IPClassificationPrivate,
		"8.8.8.8":              IPClassificationPublic,
		"2001:4860:4860::8888": IPClassificationPublic,
	}
	for addr, want := range tests {
		ip := net.ParseIP(addr)
		if ip == nil {
			t.Fatalf("net.ParseIP(%q) failed", addr)
		}
		if got := ClassifyIP(ip); got != want {
			t.Errorf("ClassifyIP(%s) = %v, want %v", addr, got, want)
		}
	}

	if got := ClassifyIP(nil); got != IPClassificationUnspecified {
		t.Errorf("ClassifyIP(nil) = %v, want unspecified", got)
	}
}

func TestIPClassification_String(t *testing.T) {
	for c, want := range map[IPClassification]string{
		IPClassificationPublic:      "public",
		IPClassificationLoopback:    "loopback",
		IPClassificationPrivate:     "private",
		IPClassificationLinkLocal:   "link_local",
		IPClassificationUnspecified: "unspecified",
		IPClassification(99):        "unknown",
	} {
		if got := c.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}

func TestIsLoopbackHostname(t *testing.T) {
	tests := map[string]bool{
		"localhost":       true,
		"127.0.0.1":       true,
		"127.255.255.255": true,
		"::1":             true,
		"[::1]":           true,
		"0.0.0.0":         false,
		"10.0.0.1":        false,
		"example.com":     false,
		"":                false,
	}
	for hostname, want := range tests {
		if got := IsLoopbackHostname(hostname); got != want {
			t.Errorf("IsLoopbackHostname(%q) = %v, want %v", hostname, got, want)
		}
	}
}
