// Package ratelimit throttles requests per client IP.
package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	dErrors "docbridge/pkg/domain-errors"
	"docbridge/pkg/platform/httputil"
	"docbridge/pkg/requestcontext"
)

const (
	defaultIdleTTL  = 10 * time.Minute
	sweepInterval   = time.Minute
	retryAfterFloor = 1
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per client IP. Buckets idle for longer than
// the idle TTL are evicted by Run.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

func WithIdleTTL(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.idleTTL = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New allows perSecond requests per second per IP with the given burst.
func New(perSecond float64, burst int, opts ...Option) *Limiter {
	l := &Limiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		idleTTL:  defaultIdleTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow reports whether a request from key may proceed now. When it may not,
// it also returns how long until a token is available.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	l.mu.Unlock()

	r := entry.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	delay := r.DelayFrom(now)
	if delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Sweep evicts idle buckets and returns how many were removed.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-l.idleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
			removed++
		}
	}
	return removed
}

// Run sweeps idle buckets until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// Middleware rejects requests over the limit with 429 and a Retry-After header.
// It keys on the client IP stored by the metadata middleware.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := requestcontext.ClientIP(r.Context())
		if key == "" {
			key = r.RemoteAddr
		}
		ok, wait := l.Allow(key)
		if !ok {
			secs := max(int(wait.Round(time.Second)/time.Second), retryAfterFloor)
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
