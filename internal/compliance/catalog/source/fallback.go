package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"docbridge/internal/compliance/models"
	"docbridge/pkg/platform/circuit"
)

// ErrCircuitOpen is returned while the breaker skips the primary and the
// fallback is not permitted.
var ErrCircuitOpen = errors.New("requirements source circuit open")

// FallbackSource reads from primary behind a circuit breaker. The fallback
// records are served only while needFallback reports true, which the server
// ties to a catalog that has never loaded. Otherwise a primary failure is
// returned so the live snapshot stays in place. A nil needFallback permits
// the fallback on every primary failure.
type FallbackSource struct {
	primary      Source
	fallback     Source
	breaker      *circuit.Breaker
	needFallback func() bool
	logger       *slog.Logger
	served       atomic.Bool
}

func NewFallbackSource(primary, fallback Source, breaker *circuit.Breaker, needFallback func() bool, logger *slog.Logger) *FallbackSource {
	if breaker == nil {
		breaker = circuit.New(primary.Name())
	}
	if needFallback == nil {
		needFallback = func() bool { return true }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackSource{
		primary:      primary,
		fallback:     fallback,
		breaker:      breaker,
		needFallback: needFallback,
		logger:       logger,
	}
}

func (s *FallbackSource) Name() string { return s.primary.Name() + "|" + s.fallback.Name() }

// Degraded reports whether the last successful Fetch returned fallback records.
func (s *FallbackSource) Degraded() bool { return s.served.Load() }

func (s *FallbackSource) Fetch(ctx context.Context) ([]models.JurisdictionRequirement, error) {
	if !s.breaker.Allow() {
		return s.fetchFallback(ctx, ErrCircuitOpen)
	}

	records, err := s.primary.Fetch(ctx)
	if err != nil {
		_, change := s.breaker.RecordFailure()
		if change.Opened {
			s.logger.WarnContext(ctx, "requirements source circuit opened",
				"source", s.primary.Name(), "error", err)
		}
		s.logger.WarnContext(ctx, "primary requirements source failed",
			"source", s.primary.Name(), "error", err)
		return s.fetchFallback(ctx, err)
	}

	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "requirements source circuit closed", "source", s.primary.Name())
	}
	s.served.Store(false)
	return records, nil
}

func (s *FallbackSource) fetchFallback(ctx context.Context, cause error) ([]models.JurisdictionRequirement, error) {
	if !s.needFallback() {
		return nil, fmt.Errorf("%s: %w", s.primary.Name(), cause)
	}
	records, err := s.fallback.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.WarnContext(ctx, "serving fallback requirements",
		"source", s.fallback.Name(), "cause", cause)
	s.served.Store(true)
	return records, nil
}

// Invalidate forwards to the primary when it caches.
func (s *FallbackSource) Invalidate(ctx context.Context) error {
	if inv, ok := s.primary.(interface{ Invalidate(context.Context) error }); ok {
		return inv.Invalidate(ctx)
	}
	return nil
}
