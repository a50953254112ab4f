package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"docbridge/internal/compliance/models"
	"docbridge/internal/compliance/publisher"
	dErrors "docbridge/pkg/domain-errors"
	"docbridge/pkg/requestcontext"
)

// ValidateRequest is one document to validate.
type ValidateRequest struct {
	Text     string
	Metadata models.DocumentMetadata
}

// BatchResult is the outcome of one batch entry. Exactly one field is set.
type BatchResult struct {
	Report *models.StoredReport
	Err    error
}

// Validate evaluates a document as of the request time, stores the report and
// publishes a report event. Non-compliant documents are a successful result;
// only configuration and infrastructure failures return an error.
func (s *Service) Validate(ctx context.Context, req ValidateRequest) (*models.StoredReport, error) {
	ctx, span := s.tracer.Start(ctx, "compliance.Validate", trace.WithAttributes(
		attribute.String("document.type", req.Metadata.DocumentType),
		attribute.String("document.target_country", req.Metadata.TargetCountry),
	))
	defer span.End()

	stored, err := s.validate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Bool("report.compliant", stored.Report.IsCompliant),
		attribute.Int("report.score", stored.Report.ComplianceScore),
	)
	return stored, nil
}

func (s *Service) validate(ctx context.Context, req ValidateRequest) (*models.StoredReport, error) {
	now := requestcontext.Now(ctx)
	target := models.NormalizeCountry(req.Metadata.TargetCountry)

	start := time.Now()
	report, err := s.evaluator.ValidateDocumentAt(req.Text, req.Metadata, now)
	s.metrics.ObserveEvaluateLatency(time.Since(start))
	if err != nil {
		s.metrics.IncrementValidation(s.countryLabel(target), "error")
		s.logger.ErrorContext(ctx, "compliance evaluation failed",
			"request_id", requestcontext.RequestID(ctx),
			"target_country", target,
			"error", err,
		)
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to evaluate document")
		}
		return nil, err
	}

	reference, err := newReference()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create report")
	}
	stored := &models.StoredReport{
		ID:            uuid.New(),
		Reference:     reference,
		RequestID:     requestcontext.RequestID(ctx),
		Subject:       requestcontext.Subject(ctx),
		DocumentType:  strings.ToLower(strings.TrimSpace(req.Metadata.DocumentType)),
		SourceCountry: models.NormalizeCountry(req.Metadata.SourceCountry),
		TargetCountry: target,
		Report:        *report,
		CreatedAt:     now,
	}
	if err := s.store.Save(ctx, stored); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save report")
	}

	s.recordOutcome(stored)
	s.publish(ctx, stored)

	s.logger.InfoContext(ctx, "document validated",
		"request_id", stored.RequestID,
		"report_id", stored.ID,
		"reference", stored.Reference,
		"target_country", stored.TargetCountry,
		"compliant", stored.Report.IsCompliant,
		"score", stored.Report.ComplianceScore,
	)
	return stored, nil
}

// ValidateBatch evaluates independent documents concurrently. Results are in
// input order; a failing entry does not affect the others.
func (s *Service) ValidateBatch(ctx context.Context, reqs []ValidateRequest) ([]BatchResult, error) {
	if len(reqs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "batch must contain at least one document")
	}
	if len(reqs) > s.maxBatch {
		return nil, dErrors.Newf(dErrors.CodeValidation, "batch exceeds %d documents", s.maxBatch)
	}

	ctx, span := s.tracer.Start(ctx, "compliance.ValidateBatch",
		trace.WithAttributes(attribute.Int("batch.size", len(reqs))))
	defer span.End()
	s.metrics.ObserveBatchSize(len(reqs))

	results := make([]BatchResult, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchLimit)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = BatchResult{Err: err}
				return nil
			}
			report, err := s.Validate(gctx, req)
			results[i] = BatchResult{Report: report, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) recordOutcome(stored *models.StoredReport) {
	outcome := "compliant"
	if !stored.Report.IsCompliant {
		outcome = "non_compliant"
	}
	s.metrics.IncrementValidation(s.countryLabel(stored.TargetCountry), outcome)
	s.metrics.ObserveScore(stored.Report.ComplianceScore)
	for _, e := range stored.Report.Errors {
		s.metrics.IncrementFinding("error", e.Field)
	}
	for _, w := range stored.Report.Warnings {
		s.metrics.IncrementFinding("warning", w.Field)
	}
}

// countryLabel bounds the metric label to catalog codes.
func (s *Service) countryLabel(code string) string {
	if _, ok := s.catalog.Get(code); ok {
		return code
	}
	return "unknown"
}

// publish is fail-open: a lost event is logged and counted.
func (s *Service) publish(ctx context.Context, stored *models.StoredReport) {
	if err := s.publisher.Publish(ctx, publisher.NewReportEvent(stored)); err != nil {
		s.metrics.IncrementPublishFailure()
		s.logger.WarnContext(ctx, "report event publish failed",
			"report_id", stored.ID,
			"error", err,
		)
	}
}
