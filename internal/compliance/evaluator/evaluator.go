// Package evaluator decides whether a document satisfies the acceptance rules
// of its target jurisdiction.
//
// Evaluation is pure domain logic: no I/O, no shared mutable state. The only
// inputs are the document text, its metadata, the catalog snapshot and the
// evaluation time, so identical inputs always produce identical reports.
package evaluator

import (
	"errors"
	"strings"
	"time"

	"docbridge/internal/compliance/models"
	dErrors "docbridge/pkg/domain-errors"
)

// Lookup is the read side of the requirements catalog.
type Lookup interface {
	Get(countryCode string) (models.JurisdictionRequirement, bool)
	Loaded() bool
}

// Evaluator runs the compliance check pipeline.
type Evaluator struct {
	catalog Lookup
	now     func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithClock overrides the clock used by ValidateDocument.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
	}
}

// New constructs an Evaluator reading from catalog.
func New(catalog Lookup, opts ...Option) (*Evaluator, error) {
	if catalog == nil {
		return nil, errors.New("requirements catalog is required")
	}
	e := &Evaluator{catalog: catalog, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ValidateDocument evaluates a document at the evaluator's current time.
func (e *Evaluator) ValidateDocument(text string, meta models.DocumentMetadata) (*models.Report, error) {
	return e.ValidateDocumentAt(text, meta, e.now())
}

// ValidateDocumentAt evaluates a document as of now.
//
// It only returns an error (CodeConfiguration) when the catalog was never
// loaded or the document type or target country is missing. Every rule
// failure is reported as data inside the Report.
func (e *Evaluator) ValidateDocumentAt(text string, meta models.DocumentMetadata, now time.Time) (*models.Report, error) {
	if !e.catalog.Loaded() {
		return nil, dErrors.New(dErrors.CodeConfiguration, "requirements catalog has not been loaded")
	}
	meta.DocumentType = strings.ToLower(strings.TrimSpace(meta.DocumentType))
	meta.TargetCountry = models.NormalizeCountry(meta.TargetCountry)
	meta.SourceCountry = models.NormalizeCountry(meta.SourceCountry)
	if meta.DocumentType == "" {
		return nil, dErrors.New(dErrors.CodeConfiguration, "document type is required")
	}
	if meta.TargetCountry == "" {
		return nil, dErrors.New(dErrors.CodeConfiguration, "target country is required")
	}

	ev := newEvaluation(text, meta, now)
	if req, ok := e.catalog.Get(meta.TargetCountry); ok {
		ev.jurisdiction = &req
	}

	for _, st := range pipeline {
		if st.needsJurisdiction && ev.jurisdiction == nil {
			continue
		}
		st.run(ev)
	}

	return ev.finish(), nil
}

// stage is one entry of the ordered check pipeline.
type stage struct {
	name              string
	needsJurisdiction bool
	run               func(*evaluation)
}

// pipeline order is part of the report contract; renderers rely on it.
var pipeline = []stage{
	{name: "jurisdiction", run: checkJurisdiction},
	{name: "document_type", needsJurisdiction: true, run: checkDocumentType},
	{name: "apostille", needsJurisdiction: true, run: checkApostille},
	{name: "translation", needsJurisdiction: true, run: checkTranslation},
	{name: "validity", needsJurisdiction: true, run: checkValidity},
	{name: "additional_requirements", needsJurisdiction: true, run: checkAdditionalRequirements},
	{name: "common_issues", run: checkCommonIssues},
}

// StageNames lists the pipeline stages in execution order.
func StageNames() []string {
	names := make([]string, len(pipeline))
	for i, st := range pipeline {
		names[i] = st.name
	}
	return names
}

// evaluation accumulates findings for one ValidateDocument call.
type evaluation struct {
	text         string
	lowerText    string
	meta         models.DocumentMetadata
	jurisdiction *models.JurisdictionRequirement
	now          time.Time

	apostilleFound bool
	errors         []models.ValidationError
	warnings       []models.ValidationWarning
	checks         []models.RequirementCheck
}

func newEvaluation(text string, meta models.DocumentMetadata, now time.Time) *evaluation {
	return &evaluation{
		text:      text,
		lowerText: strings.ToLower(text),
		meta:      meta,
		now:       now,
		errors:    []models.ValidationError{},
		warnings:  []models.ValidationWarning{},
		checks:    []models.RequirementCheck{},
	}
}

func (ev *evaluation) check(requirement string, status models.CheckStatus, detail string) {
	ev.checks = append(ev.checks, models.RequirementCheck{Requirement: requirement, Status: status, Detail: detail})
}

func (ev *evaluation) fail(field, message string, severity models.Severity) {
	ev.errors = append(ev.errors, models.ValidationError{Field: field, Message: message, Severity: severity})
}

func (ev *evaluation) warn(field, message string) {
	ev.warnings = append(ev.warnings, models.ValidationWarning{Field: field, Message: message})
}

func (ev *evaluation) finish() *models.Report {
	report := &models.Report{
		IsCompliant:               len(ev.errors) == 0,
		Errors:                    ev.errors,
		Warnings:                  ev.warnings,
		Checks:                    ev.checks,
		Recommendations:           recommendations(ev),
		CertificationRequirements: certificationRequirements(ev),
		EvaluatedAt:               ev.now,
	}
	if ev.jurisdiction != nil && ev.jurisdiction.ProcessingTimeEstimateDays != nil {
		days := *ev.jurisdiction.ProcessingTimeEstimateDays
		report.ProcessingTimeEstimateDays = &days
	}
	report.ComplianceScore = Score(report)
	return report
}
