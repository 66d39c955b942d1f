// Package helpers classifies IP addresses and hostnames for redirect
// URI validation.
package helpers

import "net"

// IPClassification buckets an address by how it may be used in a
// registered redirect URI.
type IPClassification int

const (
	// IPClassificationPublic is any routable address.
	IPClassificationPublic IPClassification = iota
	// IPClassificationLoopback covers 127.0.0.0/8 and ::1, usable by
	// native apps per RFC 8252 section 7.3.
	IPClassificationLoopback
	// IPClassificationPrivate covers RFC 1918 ranges and fc00::/7.
	IPClassificationPrivate
	// IPClassificationLinkLocal covers 169.254.0.0/16 and fe80::/10,
	// which includes cloud metadata endpoints.
	IPClassificationLinkLocal
	// IPClassificationUnspecified covers 0.0.0.0 and ::.
	IPClassificationUnspecified
)

func (c IPClassification) String() string {
	switch c {
	case IPClassificationPublic:
		return "public"
	case IPClassificationLoopback:
		return "loopback"
	case IPClassificationPrivate:
		return "private"
	case IPClassificationLinkLocal:
		return "link_local"
	case IPClassificationUnspecified:
		return "unspecified"
	}
	return "unknown"
}

// ClassifyIP classifies ip. A nil ip classifies as unspecified.
func ClassifyIP(ip net.IP) IPClassification {
	switch {
	case ip == nil, ip.IsUnspecified():
		return IPClassificationUnspecified
	case ip.IsLoopback():
		return IPClassificationLoopback
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return IPClassificationLinkLocal
	case ip.IsPrivate():
		return IPClassificationPrivate
	}
	return IPClassificationPublic
}

// IsLoopbackHostname reports whether hostname resolves lexically to a
// loopback address: "localhost", anything in 127.0.0.0/8, ::1, or the
// IPv4-mapped form. It expects the hostname without a port, as returned
// by url.URL.Hostname, and accepts bracketed IPv6 literals. 0.0.0.0 is
// unspecified, not loopback.
func IsLoopbackHostname(hostname string) bool {
	if hostname == "localhost" {
		return true
	}
	if len(hostname) > 2 && hostname[0] == '[' && hostname[len(hostname)-1] == ']' {
		hostname = hostname[1 : len(hostname)-1]
	}
	if ip := net.ParseIP(hostname); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
