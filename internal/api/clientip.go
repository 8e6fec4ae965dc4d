package api

import (
	"net"
	"net/http"
	"strings"
)

// clientIP resolves the requester's address. With trustProxy set, the first
// entry of X-Forwarded-For wins; otherwise the socket peer address is used.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			parts := strings.Split(fwd, ",")
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
