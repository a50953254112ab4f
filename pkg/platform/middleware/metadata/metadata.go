// Package metadata records who is calling: client IP, User-Agent and a coarse
// device class derived from it.
package metadata

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"docbridge/pkg/requestcontext"
)

// Device classes stored in the request context.
const (
	DeviceAPI     = "api"
	DeviceBot     = "bot"
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
)

// ClientMetadata extracts client IP address and User-Agent from the request
// and adds them to the context for use by handlers and services.
// This middleware should be applied early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.Header.Get("User-Agent")
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), ua, DeviceClass(ua))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DeviceClass classifies a User-Agent string.
func DeviceClass(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return DeviceAPI
	}
	ua := useragent.New(userAgent)
	switch {
	case ua.Bot():
		return DeviceBot
	case ua.Mozilla() == "":
		return DeviceAPI
	case ua.Mobile():
		return DeviceMobile
	default:
		return DeviceDesktop
	}
}

// ClientIPFromRequest extracts the real client IP from the request, handling proxies and load balancers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs (client, proxy1, proxy2, ...)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "ip:port", or "[::1]:port" for IPv6
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return strings.Trim(addr[:idx], "[]")
		}
		return addr
	}

	return "unknown"
}
