// Package refresher keeps the requirements catalog in sync with its source.
package refresher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"docbridge/internal/compliance/catalog/source"
	"docbridge/internal/compliance/metrics"
	"docbridge/internal/compliance/models"
	dErrors "docbridge/pkg/domain-errors"
)

// Replacer is the write side of the requirements catalog.
type Replacer interface {
	Replace(records []models.JurisdictionRequirement) error
	Len() int
}

// invalidator is implemented by caching sources.
type invalidator interface {
	Invalidate(ctx context.Context) error
}

// degradable is implemented by sources that can answer from fallback records.
type degradable interface {
	Degraded() bool
}

// ErrServingFallback is reported by Status while the catalog holds fallback
// records instead of the configured source's.
var ErrServingFallback = errors.New("requirements catalog is serving fallback records")

// Refresher periodically replaces the catalog snapshot with the source's
// records. A failed refresh leaves the previous snapshot in place.
type Refresher struct {
	catalog  Replacer
	source   source.Source
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu          sync.Mutex
	lastSuccess time.Time
	lastErr     error
}

// Option configures a Refresher.
type Option func(*Refresher)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Refresher) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Refresher) {
		r.metrics = m
	}
}

func New(catalog Replacer, src source.Source, interval time.Duration, opts ...Option) *Refresher {
	r := &Refresher{
		catalog:  catalog,
		source:   src,
		interval: interval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run refreshes every interval until ctx is cancelled. Refresh failures are
// logged and counted, never returned. A non-positive interval disables the
// loop and Run just waits for cancellation.
func (r *Refresher) Run(ctx context.Context) error {
	if r.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = r.RefreshNow(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RefreshNow fetches from the source and replaces the catalog. It returns the
// number of jurisdictions in the new snapshot.
func (r *Refresher) RefreshNow(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	records, err := r.source.Fetch(ctx)
	if err == nil {
		err = r.catalog.Replace(records)
	}
	if err != nil {
		r.lastErr = err
		r.metrics.RecordCatalogRefresh(err, 0)
		r.logger.ErrorContext(ctx, "requirements catalog refresh failed",
			"source", r.source.Name(),
			"error", err,
		)
		if dErrors.CodeOf(err) == dErrors.CodeConfiguration {
			return 0, err
		}
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "requirements source unavailable")
	}

	n := r.catalog.Len()
	r.lastErr = nil
	if d, ok := r.source.(degradable); ok && d.Degraded() {
		r.lastErr = ErrServingFallback
		r.logger.WarnContext(ctx, "requirements catalog loaded from fallback",
			"source", r.source.Name(),
			"countries", n,
		)
	}
	r.lastSuccess = time.Now()
	r.metrics.RecordCatalogRefresh(nil, n)
	r.logger.InfoContext(ctx, "requirements catalog refreshed",
		"source", r.source.Name(),
		"countries", n,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return n, nil
}

// Reload drops any cached copy of the records and refreshes from the source.
func (r *Refresher) Reload(ctx context.Context) (int, error) {
	if inv, ok := r.source.(invalidator); ok {
		if err := inv.Invalidate(ctx); err != nil {
			r.logger.WarnContext(ctx, "requirements cache invalidation failed", "error", err)
		}
	}
	return r.RefreshNow(ctx)
}

// Status reports the time of the last successful refresh and the last error.
func (r *Refresher) Status() (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSuccess, r.lastErr
}
