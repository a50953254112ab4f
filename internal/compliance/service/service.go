// Package service orchestrates compliance validation: it evaluates documents,
// persists the reports and emits report events.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Evaluator,ReportStore,EventPublisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"docbridge/internal/compliance/metrics"
	"docbridge/internal/compliance/models"
	"docbridge/internal/compliance/publisher"
)

// Evaluator runs the compliance check pipeline.
type Evaluator interface {
	ValidateDocumentAt(text string, meta models.DocumentMetadata, now time.Time) (*models.Report, error)
}

// RequirementsReader is the read side of the requirements catalog.
type RequirementsReader interface {
	Get(countryCode string) (models.JurisdictionRequirement, bool)
	All() []models.JurisdictionRequirement
}

// ReportStore persists reports.
type ReportStore interface {
	Save(ctx context.Context, report *models.StoredReport) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.StoredReport, error)
	ListBySubject(ctx context.Context, subject string, limit int) ([]*models.StoredReport, error)
}

// EventPublisher emits report events.
type EventPublisher interface {
	Publish(ctx context.Context, event publisher.ReportEvent) error
}

const (
	defaultBatchLimit  = 8
	defaultMaxBatch    = 50
	referenceAlphabet  = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	referenceLength    = 10
	defaultListLimit   = 20
	maxListLimit       = 100
	instrumentationLib = "docbridge/internal/compliance/service"
)

// Service is the compliance application service.
type Service struct {
	evaluator  Evaluator
	catalog    RequirementsReader
	store      ReportStore
	publisher  EventPublisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	batchLimit int
	maxBatch   int
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPublisher sets where report events go. Defaults to discarding them.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithBatchLimits sets how many documents of a batch are evaluated
// concurrently and how many a single batch may contain.
func WithBatchLimits(concurrency, maxBatch int) Option {
	return func(s *Service) {
		if concurrency > 0 {
			s.batchLimit = concurrency
		}
		if maxBatch > 0 {
			s.maxBatch = maxBatch
		}
	}
}

func New(evaluator Evaluator, catalog RequirementsReader, store ReportStore, opts ...Option) (*Service, error) {
	if evaluator == nil {
		return nil, errors.New("evaluator is required")
	}
	if catalog == nil {
		return nil, errors.New("requirements catalog is required")
	}
	if store == nil {
		return nil, errors.New("report store is required")
	}
	s := &Service{
		evaluator:  evaluator,
		catalog:    catalog,
		store:      store,
		publisher:  publisher.NopPublisher{},
		logger:     slog.Default(),
		tracer:     otel.Tracer(instrumentationLib),
		batchLimit: defaultBatchLimit,
		maxBatch:   defaultMaxBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func newReference() (string, error) {
	id, err := gonanoid.Generate(referenceAlphabet, referenceLength)
	if err != nil {
		return "", fmt.Errorf("generate report reference: %w", err)
	}
	return "CR-" + id, nil
}
