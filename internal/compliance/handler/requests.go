package handler

import (
	"fmt"
	"strings"
	"time"

	"docbridge/internal/compliance/models"
	"docbridge/internal/compliance/service"
	dErrors "docbridge/pkg/domain-errors"
	strs "docbridge/pkg/platform/strings"
)

const (
	maxTextBytes          = 1 << 20
	maxCertifications     = 32
	maxCertificationChars = 128
	maxDocumentTypeChars  = 64
	maxCountryChars       = 64
)

// ValidateRequest is the HTTP request body for POST /compliance/validate.
type ValidateRequest struct {
	Text     string          `json:"text"`
	Metadata MetadataRequest `json:"metadata"`

	// Parsed values (populated by Validate)
	parsed models.DocumentMetadata
}

// MetadataRequest carries the document metadata. Dates are YYYY-MM-DD or RFC 3339.
type MetadataRequest struct {
	DocumentType   string   `json:"document_type"`
	SourceCountry  string   `json:"source_country"`
	TargetCountry  string   `json:"target_country"`
	IssueDate      string   `json:"issue_date,omitempty"`
	ExpiryDate     string   `json:"expiry_date,omitempty"`
	Certifications []string `json:"certifications,omitempty"`
	ScanQualityDPI *int     `json:"scan_quality_dpi,omitempty"`
	PaperSize      *string  `json:"paper_size,omitempty"`
	HasSignature   *bool    `json:"has_signature,omitempty"`
	HasSeal        *bool    `json:"has_seal,omitempty"`
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *ValidateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	// Size validation (fail fast)
	if len(r.Text) > maxTextBytes {
		return dErrors.Newf(dErrors.CodeValidation, "text must be at most %d bytes", maxTextBytes)
	}
	m := &r.Metadata
	if len(m.DocumentType) > maxDocumentTypeChars {
		return dErrors.Newf(dErrors.CodeValidation, "metadata.document_type must be at most %d characters", maxDocumentTypeChars)
	}
	if len(m.TargetCountry) > maxCountryChars || len(m.SourceCountry) > maxCountryChars {
		return dErrors.Newf(dErrors.CodeValidation, "metadata country fields must be at most %d characters", maxCountryChars)
	}
	if len(m.Certifications) > maxCertifications {
		return dErrors.Newf(dErrors.CodeValidation, "metadata.certifications must have at most %d entries", maxCertifications)
	}
	for _, c := range m.Certifications {
		if len(c) > maxCertificationChars {
			return dErrors.Newf(dErrors.CodeValidation, "metadata.certifications entries must be at most %d characters", maxCertificationChars)
		}
	}

	// Required fields
	m.DocumentType = strings.TrimSpace(m.DocumentType)
	if m.DocumentType == "" {
		return dErrors.New(dErrors.CodeValidation, "metadata.document_type is required")
	}
	m.TargetCountry = strings.TrimSpace(m.TargetCountry)
	if m.TargetCountry == "" {
		return dErrors.New(dErrors.CodeValidation, "metadata.target_country is required")
	}
	if m.ScanQualityDPI != nil && *m.ScanQualityDPI < 0 {
		return dErrors.New(dErrors.CodeValidation, "metadata.scan_quality_dpi must not be negative")
	}

	issue, err := parseDate("metadata.issue_date", m.IssueDate)
	if err != nil {
		return err
	}
	expiry, err := parseDate("metadata.expiry_date", m.ExpiryDate)
	if err != nil {
		return err
	}

	r.parsed = models.DocumentMetadata{
		DocumentType:   m.DocumentType,
		SourceCountry:  strings.TrimSpace(m.SourceCountry),
		TargetCountry:  m.TargetCountry,
		IssueDate:      issue,
		ExpiryDate:     expiry,
		Certifications: strs.DedupeAndTrim(m.Certifications),
		ScanQualityDPI: m.ScanQualityDPI,
		PaperSize:      m.PaperSize,
		HasSignature:   m.HasSignature,
		HasSeal:        m.HasSeal,
	}
	return nil
}

// ToServiceRequest returns the validated request for the service layer.
func (r *ValidateRequest) ToServiceRequest() service.ValidateRequest {
	return service.ValidateRequest{Text: r.Text, Metadata: r.parsed}
}

// BatchValidateRequest is the HTTP request body for POST /compliance/validate/batch.
type BatchValidateRequest struct {
	Documents []ValidateRequest `json:"documents"`
}

// Validate validates every document. The first invalid entry rejects the batch.
func (r *BatchValidateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Documents) == 0 {
		return dErrors.New(dErrors.CodeValidation, "documents must contain at least one entry")
	}
	for i := range r.Documents {
		if err := r.Documents[i].Validate(); err != nil {
			if de, ok := dErrors.As(err); ok {
				return dErrors.Newf(de.Code, "documents[%d]: %s", i, de.Message)
			}
			return fmt.Errorf("documents[%d]: %w", i, err)
		}
	}
	return nil
}

// ToServiceRequests returns the validated batch for the service layer.
func (r *BatchValidateRequest) ToServiceRequests() []service.ValidateRequest {
	out := make([]service.ValidateRequest, len(r.Documents))
	for i := range r.Documents {
		out[i] = r.Documents[i].ToServiceRequest()
	}
	return out
}

func parseDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, dErrors.Newf(dErrors.CodeValidation, "%s must be a date (YYYY-MM-DD)", field)
	}
	t = t.UTC()
	return &t, nil
}
