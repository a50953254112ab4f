package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"docbridge/internal/compliance/models"
	dErrors "docbridge/pkg/domain-errors"
	"docbridge/pkg/platform/sentinel"
	"docbridge/pkg/requestcontext"
)

// CountrySummary is one entry of the supported-country listing.
type CountrySummary struct {
	Code string
	Name string
}

// GetReport returns a stored report. Reports belonging to another subject are
// reported as not found.
func (s *Service) GetReport(ctx context.Context, id uuid.UUID) (*models.StoredReport, error) {
	report, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "report not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load report")
	}
	if subject := requestcontext.Subject(ctx); subject != "" && report.Subject != subject {
		return nil, dErrors.New(dErrors.CodeNotFound, "report not found")
	}
	return report, nil
}

// ListReports returns the caller's most recent reports.
func (s *Service) ListReports(ctx context.Context, limit int) ([]*models.StoredReport, error) {
	subject := requestcontext.Subject(ctx)
	if subject == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	reports, err := s.store.ListBySubject(ctx, subject, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list reports")
	}
	return reports, nil
}

// Requirements returns the rule set for one country.
func (s *Service) Requirements(countryCode string) (models.JurisdictionRequirement, error) {
	code := models.NormalizeCountry(countryCode)
	if code == "" {
		return models.JurisdictionRequirement{}, dErrors.New(dErrors.CodeBadRequest, "country code is required")
	}
	req, ok := s.catalog.Get(code)
	if !ok {
		return models.JurisdictionRequirement{}, dErrors.Newf(dErrors.CodeNotFound, "no requirements for %s", code)
	}
	return req, nil
}

// Countries lists the jurisdictions in the active catalog, sorted by code.
func (s *Service) Countries() []CountrySummary {
	all := s.catalog.All()
	out := make([]CountrySummary, 0, len(all))
	for _, r := range all {
		out = append(out, CountrySummary{Code: r.TargetCountry, Name: r.CountryName})
	}
	return out
}
