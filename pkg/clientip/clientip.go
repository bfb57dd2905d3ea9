// Package clientip extracts the originating client address from proxied
// HTTP requests. Used for logging on the public webhook and email tracking
// endpoints, which carry no session.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// GetIP returns the client IP, preferring proxy headers over the socket
// address. Header order: CF-Connecting-IP, X-Forwarded-For (first valid
// entry), X-Real-IP, then RemoteAddr.
func GetIP(r *http.Request) string {
	if ip := parseIP(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		for _, part := range strings.Split(forwarded, ",") {
			if ip := parseIP(strings.TrimSpace(part)); ip != "" {
				return ip
			}
		}
	}

	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		if ip := parseIP(host); ip != "" {
			return ip
		}
	}
	return parseIP(r.RemoteAddr)
}

// parseIP validates and canonicalizes an IP string, returning "" for
// anything that does not parse. Strips an optional port and IPv6 brackets.
func parseIP(s string) string {
	if s == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	s = strings.Trim(s, "[]")

	ip := net.ParseIP(s)
	if ip == nil {
		return ""
	}
	return ip.String()
}
