package testutil

import (
	"net/http"
	"time"

	"docbridge/pkg/requestcontext"
)

// WithSubject simulates the bearer-auth middleware for handler tests.
func WithSubject(req *http.Request, subject string) *http.Request {
	return req.WithContext(requestcontext.WithSubject(req.Context(), subject))
}

// WithRequestMeta injects the request id and request time the platform
// middleware would normally set.
func WithRequestMeta(req *http.Request, requestID string, now time.Time) *http.Request {
	ctx := requestcontext.WithRequestID(req.Context(), requestID)
	ctx = requestcontext.WithTime(ctx, now)
	return req.WithContext(ctx)
}
