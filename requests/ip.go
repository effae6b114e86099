package requests

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP is the caller's address as seen by the reverse proxy in front
// of the service: the first valid X-Forwarded-For entry, then X-Real-IP,
// then RemoteAddr. Header values that do not parse as an ip are skipped.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip, ok := parseIP(first); ok {
			return ip
		}
	}
	if ip, ok := parseIP(r.Header.Get("X-Real-IP")); ok {
		return ip
	}
	// direct peer (or the proxy itself)
	if ip, ok := parseIP(r.RemoteAddr); ok {
		return ip
	}
	return r.RemoteAddr
}

// parseIP accepts "ip" and "ip:port" forms and returns the canonical ip.
func parseIP(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	ip := net.ParseIP(strings.Trim(s, "[]"))
	if ip == nil {
		return "", false
	}
	return ip.String(), true
}
