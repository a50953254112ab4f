package handler

import (
	"time"

	"docbridge/internal/compliance/models"
	"docbridge/internal/compliance/service"
	dErrors "docbridge/pkg/domain-errors"
)

// ReportResponse is the HTTP representation of a stored compliance report.
type ReportResponse struct {
	ID            string        `json:"id"`
	Reference     string        `json:"reference"`
	DocumentType  string        `json:"document_type"`
	SourceCountry string        `json:"source_country,omitempty"`
	TargetCountry string        `json:"target_country"`
	CreatedAt     time.Time     `json:"created_at"`
	Report        models.Report `json:"report"`
}

// FromStoredReport converts a stored report to an HTTP response.
func FromStoredReport(r *models.StoredReport) *ReportResponse {
	report := r.Report
	// Empty collections render as [] rather than null.
	if report.Errors == nil {
		report.Errors = []models.ValidationError{}
	}
	if report.Warnings == nil {
		report.Warnings = []models.ValidationWarning{}
	}
	if report.Checks == nil {
		report.Checks = []models.RequirementCheck{}
	}
	if report.Recommendations == nil {
		report.Recommendations = []string{}
	}
	if report.CertificationRequirements == nil {
		report.CertificationRequirements = []models.CertificationRequirement{}
	}
	return &ReportResponse{
		ID:            r.ID.String(),
		Reference:     r.Reference,
		DocumentType:  r.DocumentType,
		SourceCountry: r.SourceCountry,
		TargetCountry: r.TargetCountry,
		CreatedAt:     r.CreatedAt,
		Report:        report,
	}
}

// ReportListResponse is the HTTP response for GET /compliance/reports.
type ReportListResponse struct {
	Reports []*ReportResponse `json:"reports"`
	Count   int               `json:"count"`
}

func FromStoredReports(reports []*models.StoredReport) *ReportListResponse {
	out := make([]*ReportResponse, 0, len(reports))
	for _, r := range reports {
		out = append(out, FromStoredReport(r))
	}
	return &ReportListResponse{Reports: out, Count: len(out)}
}

// BatchItemResponse is one entry of a batch response. Exactly one of Report
// and Error is set.
type BatchItemResponse struct {
	Index  int             `json:"index"`
	Report *ReportResponse `json:"report,omitempty"`
	Error  *BatchItemError `json:"error,omitempty"`
}

// BatchItemError mirrors the error envelope for a single failed entry.
type BatchItemError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// BatchResponse is the HTTP response for POST /compliance/validate/batch.
type BatchResponse struct {
	Results   []BatchItemResponse `json:"results"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
}

// FromBatchResults converts service batch results, keeping input order.
func FromBatchResults(results []service.BatchResult) *BatchResponse {
	resp := &BatchResponse{Results: make([]BatchItemResponse, len(results))}
	for i, res := range results {
		item := BatchItemResponse{Index: i}
		if res.Err != nil {
			item.Error = toBatchItemError(res.Err)
			resp.Failed++
		} else {
			item.Report = FromStoredReport(res.Report)
			resp.Succeeded++
		}
		resp.Results[i] = item
	}
	return resp
}

func toBatchItemError(err error) *BatchItemError {
	code := dErrors.CodeOf(err)
	out := &BatchItemError{Code: string(code)}
	switch code {
	case dErrors.CodeInternal, dErrors.CodeConfiguration:
	default:
		if de, ok := dErrors.As(err); ok {
			out.Description = de.Message
		}
	}
	return out
}

// CountryResponse is one entry of the supported-country listing.
type CountryResponse struct {
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
}

// CountryListResponse is the HTTP response for GET /compliance/requirements.
type CountryListResponse struct {
	Countries []CountryResponse `json:"countries"`
	Count     int               `json:"count"`
}

func FromCountries(countries []service.CountrySummary) *CountryListResponse {
	out := make([]CountryResponse, 0, len(countries))
	for _, c := range countries {
		out = append(out, CountryResponse{Code: c.Code, Name: c.Name})
	}
	return &CountryListResponse{Countries: out, Count: len(out)}
}

// RequirementResponse is the HTTP response for GET /compliance/requirements/{country}.
type RequirementResponse struct {
	TargetCountry              string   `json:"target_country"`
	CountryName                string   `json:"country_name,omitempty"`
	AcceptedDocumentTypes      []string `json:"accepted_document_types"`
	ApostilleRequired          bool     `json:"apostille_required"`
	TranslationRequired        bool     `json:"translation_required"`
	NotarizationRequired       bool     `json:"notarization_required"`
	AdditionalRequirements     []string `json:"additional_requirements"`
	ValidityPeriodMonths       *int     `json:"validity_period_months,omitempty"`
	ProcessingTimeEstimateDays *int     `json:"processing_time_estimate_days,omitempty"`
}

func FromRequirement(r models.JurisdictionRequirement) *RequirementResponse {
	accepted := r.AcceptedDocumentTypes
	if accepted == nil {
		accepted = []string{}
	}
	additional := r.AdditionalRequirements
	if additional == nil {
		additional = []string{}
	}
	return &RequirementResponse{
		TargetCountry:              r.TargetCountry,
		CountryName:                r.CountryName,
		AcceptedDocumentTypes:      accepted,
		ApostilleRequired:          r.ApostilleRequired,
		TranslationRequired:        r.TranslationRequired,
		NotarizationRequired:       r.NotarizationRequired,
		AdditionalRequirements:     additional,
		ValidityPeriodMonths:       r.ValidityPeriodMonths,
		ProcessingTimeEstimateDays: r.ProcessingTimeEstimateDays,
	}
}

// ReloadResponse is the HTTP response for the admin catalog reload.
type ReloadResponse struct {
	Countries  int       `json:"countries"`
	ReloadedAt time.Time `json:"reloaded_at"`
}
