package net

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the host part of RemoteAddr. Only when trustProxy is set is the
// leftmost X-Forwarded-For entry used instead
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
