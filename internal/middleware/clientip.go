package middleware

import (
	"net"
	"net/http"
)

// ClientIP extracts the caller's network origin, used as the anonymous quota
// key. X-Forwarded-For is checked first, then X-Real-IP, then the socket
// address. The forwarded headers are only trustworthy when a fronting proxy
// strips client-supplied values; deployed without one, a caller could rotate
// the header to mint fresh origin keys, so the service must sit behind the
// reverse proxy that sets these headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Take the first IP
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
