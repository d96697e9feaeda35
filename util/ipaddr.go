package util

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrIPUnavailable signals that no usable public address could be derived
// from the request. It is a distinct outcome, not a failure: the login flow
// answers it with a fail-safe "verification required" response instead of
// trusting an address it does not have.
var ErrIPUnavailable = errors.New("client IP address unavailable")

// NormalizeIP canonicalizes an address string into the single comparable
// form used as the trust-record key: dotted quad for IPv4 (including
// 4-in-6 mapped addresses) and compressed lower-case text for IPv6.
func NormalizeIP(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty IP address")
	}
	// Tolerate a client pasting host:port from some lookup tools.
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	s = strings.Trim(s, "[]")
	ip := net.ParseIP(s)
	if ip == nil {
		return "", fmt.Errorf("invalid IP address: %q", s)
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.String(), nil
	}
	return ip.String(), nil
}

// IsPublicIP reports whether ip is routable from the open internet.
// Loopback, private, link-local and unspecified ranges all fail.
func IsPublicIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return false
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast() {
		return false
	}
	return true
}

// ResolveClientIP produces the normalized public address for a login
// attempt. A client-supplied hint wins when present (the caller typically
// obtained it from an external "what is my IP" service); otherwise the
// proxy-derived remote address is used but discarded when it is not a
// public address. Returns ErrIPUnavailable when neither yields a usable
// address.
func ResolveClientIP(hint, remote string) (string, error) {
	if strings.TrimSpace(hint) != "" {
		normalized, err := NormalizeIP(hint)
		if err != nil {
			return "", err
		}
		return normalized, nil
	}

	if strings.TrimSpace(remote) == "" {
		return "", ErrIPUnavailable
	}
	normalized, err := NormalizeIP(remote)
	if err != nil {
		return "", ErrIPUnavailable
	}
	if !IsPublicIP(net.ParseIP(normalized)) {
		return "", ErrIPUnavailable
	}
	return normalized, nil
}
