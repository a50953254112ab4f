// Package models defines the compliance domain types shared by the catalog,
// the evaluator and the transport/storage layers.
//
// Domain purity: nothing in this package performs I/O or reads the clock.
package models

import (
	"time"

	"github.com/google/uuid"
)

// CheckStatus is the outcome of one evaluated rule.
type CheckStatus string

const (
	CheckPassed        CheckStatus = "passed"
	CheckFailed        CheckStatus = "failed"
	CheckWarning       CheckStatus = "warning"
	CheckNotApplicable CheckStatus = "not_applicable"
)

// Severity grades a ValidationError and drives score deductions.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

// ParseSeverity accepts the catalog spelling of a severity.
// Unknown or empty values return ok=false.
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(s) {
	case SeverityCritical, SeverityHigh, SeverityMedium:
		return Severity(s), true
	}
	return "", false
}

// JurisdictionRequirement is the acceptance rule set of one target country.
// Records are immutable once loaded into the catalog.
type JurisdictionRequirement struct {
	TargetCountry          string   `json:"target_country" yaml:"target_country"`
	CountryName            string   `json:"country_name,omitempty" yaml:"country_name,omitempty"`
	AcceptedDocumentTypes  []string `json:"accepted_document_types" yaml:"accepted_document_types"`
	ApostilleRequired      bool     `json:"apostille_required" yaml:"apostille_required"`
	TranslationRequired    bool     `json:"translation_required" yaml:"translation_required"`
	NotarizationRequired   bool     `json:"notarization_required" yaml:"notarization_required"`
	AdditionalRequirements []string `json:"additional_requirements,omitempty" yaml:"additional_requirements,omitempty"`
	// EnforcedRequirements lists the AdditionalRequirements entries that are
	// hard errors unless evidenced by a matching certification tag.
	EnforcedRequirements []string `json:"enforced_requirements,omitempty" yaml:"enforced_requirements,omitempty"`
	// ApostilleSeverity overrides the severity of a failed apostille check.
	// Empty means SeverityHigh.
	ApostilleSeverity Severity `json:"apostille_severity,omitempty" yaml:"apostille_severity,omitempty"`
	// PaperSize overrides the expected paper size for this jurisdiction.
	PaperSize                  string `json:"paper_size,omitempty" yaml:"paper_size,omitempty"`
	ValidityPeriodMonths       *int   `json:"validity_period_months,omitempty" yaml:"validity_period_months,omitempty"`
	ProcessingTimeEstimateDays *int   `json:"processing_time_estimate_days,omitempty" yaml:"processing_time_estimate_days,omitempty"`
}

// AcceptsDocumentType reports whether docType is in AcceptedDocumentTypes.
func (j JurisdictionRequirement) AcceptsDocumentType(docType string) bool {
	for _, t := range j.AcceptedDocumentTypes {
		if t == docType {
			return true
		}
	}
	return false
}

// IsEnforced reports whether an additional requirement is promoted to an error.
// Names compare by NormalizeTag.
func (j JurisdictionRequirement) IsEnforced(requirement string) bool {
	tag := NormalizeTag(requirement)
	for _, r := range j.EnforcedRequirements {
		if NormalizeTag(r) == tag {
			return true
		}
	}
	return false
}

// EffectiveApostilleSeverity returns the configured severity or SeverityHigh.
func (j JurisdictionRequirement) EffectiveApostilleSeverity() Severity {
	if s, ok := ParseSeverity(string(j.ApostilleSeverity)); ok {
		return s
	}
	return SeverityHigh
}

// DocumentMetadata describes the document under validation.
//
// Pointer fields distinguish "not evaluated" (nil) from an evaluated value;
// HasSignature=false means the signature was looked for and is missing.
type DocumentMetadata struct {
	DocumentType   string
	SourceCountry  string
	TargetCountry  string
	IssueDate      *time.Time
	ExpiryDate     *time.Time
	Certifications []string
	ScanQualityDPI *int
	PaperSize      *string
	HasSignature   *bool
	HasSeal        *bool
}

// HasCertification reports whether tag is among the obtained certifications.
// Comparison ignores case and surrounding whitespace.
func (m DocumentMetadata) HasCertification(tag string) bool {
	want := NormalizeTag(tag)
	for _, c := range m.Certifications {
		if NormalizeTag(c) == want {
			return true
		}
	}
	return false
}

// RequirementCheck is one evaluated rule, in pipeline order.
type RequirementCheck struct {
	Requirement string      `json:"requirement"`
	Status      CheckStatus `json:"status"`
	Detail      string      `json:"detail,omitempty"`
}

// ValidationError is a rule failure. It is report data, never a Go error.
type ValidationError struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// ValidationWarning is an advisory finding that never blocks compliance.
type ValidationWarning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// CertificationRequirement describes a certification the target jurisdiction expects.
type CertificationRequirement struct {
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
	Obtained    bool   `json:"obtained"`
}

// Report is the evaluator output for one document.
type Report struct {
	IsCompliant                bool                       `json:"is_compliant"`
	ComplianceScore            int                        `json:"compliance_score"`
	Errors                     []ValidationError          `json:"errors"`
	Warnings                   []ValidationWarning        `json:"warnings"`
	Checks                     []RequirementCheck         `json:"checks"`
	Recommendations            []string                   `json:"recommendations"`
	CertificationRequirements  []CertificationRequirement `json:"certification_requirements"`
	ProcessingTimeEstimateDays *int                       `json:"processing_time_estimate_days,omitempty"`
	EvaluatedAt                time.Time                  `json:"evaluated_at"`
}

// CountBySeverity returns how many errors carry severity s.
func (r *Report) CountBySeverity(s Severity) int {
	n := 0
	for _, e := range r.Errors {
		if e.Severity == s {
			n++
		}
	}
	return n
}

// StoredReport is a persisted evaluation together with its request context.
type StoredReport struct {
	ID            uuid.UUID `json:"id"`
	Reference     string    `json:"reference"`
	RequestID     string    `json:"request_id,omitempty"`
	Subject       string    `json:"subject,omitempty"`
	DocumentType  string    `json:"document_type"`
	SourceCountry string    `json:"source_country,omitempty"`
	TargetCountry string    `json:"target_country"`
	Report        Report    `json:"report"`
	CreatedAt     time.Time `json:"created_at"`
}
