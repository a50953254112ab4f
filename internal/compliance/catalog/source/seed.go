package source

import (
	"context"

	"docbridge/internal/compliance/models"
)

// StaticSource serves a fixed set of records.
type StaticSource struct {
	name    string
	records []models.JurisdictionRequirement
}

func NewStaticSource(name string, records []models.JurisdictionRequirement) *StaticSource {
	return &StaticSource{name: name, records: records}
}

func (s *StaticSource) Name() string { return s.name }

func (s *StaticSource) Fetch(ctx context.Context) ([]models.JurisdictionRequirement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]models.JurisdictionRequirement, len(s.records))
	copy(out, s.records)
	return out, nil
}

// SeedSource serves the built-in corridor records.
func SeedSource() *StaticSource {
	return NewStaticSource("seed", Seed())
}

func intPtr(n int) *int { return &n }

// Seed returns the curated requirement records for the most common
// destination countries.
func Seed() []models.JurisdictionRequirement {
	return []models.JurisdictionRequirement{
		{
			TargetCountry:              "US",
			CountryName:                "United States",
			AcceptedDocumentTypes:      []string{"degree", "transcript", "diploma", "birth_certificate", "marriage_certificate"},
			ApostilleRequired:          true,
			ApostilleSeverity:          models.SeverityCritical,
			ProcessingTimeEstimateDays: intPtr(15),
		},
		{
			TargetCountry:              "CA",
			CountryName:                "Canada",
			AcceptedDocumentTypes:      []string{"degree", "transcript", "diploma"},
			ApostilleRequired:          true,
			AdditionalRequirements:     []string{"Educational Credential Assessment"},
			ProcessingTimeEstimateDays: intPtr(14),
		},
		{
			TargetCountry:              "GB",
			CountryName:                "United Kingdom",
			AcceptedDocumentTypes:      []string{"degree", "transcript", "diploma", "birth_certificate"},
			AdditionalRequirements:     []string{"NYSC certificate", "HEC verification", "Ecctis statement of comparability"},
			ProcessingTimeEstimateDays: intPtr(10),
		},
		{
			TargetCountry:              "PT",
			CountryName:                "Portugal",
			AcceptedDocumentTypes:      []string{"degree", "transcript", "birth_certificate", "criminal_record"},
			ApostilleRequired:          true,
			TranslationRequired:        true,
			NotarizationRequired:       true,
			ValidityPeriodMonths:       intPtr(6),
			ProcessingTimeEstimateDays: intPtr(30),
		},
		{
			TargetCountry:              "PL",
			CountryName:                "Poland",
			AcceptedDocumentTypes:      []string{"degree", "transcript", "diploma"},
			ApostilleRequired:          true,
			TranslationRequired:        true,
			AdditionalRequirements:     []string{"Sworn translation into Polish"},
			ProcessingTimeEstimateDays: intPtr(21),
		},
		{
			TargetCountry:              "ES",
			CountryName:                "Spain",
			AcceptedDocumentTypes:      []string{"degree", "transcript", "birth_certificate", "criminal_record"},
			ApostilleRequired:          true,
			TranslationRequired:        true,
			AdditionalRequirements:     []string{"Sworn translation into Spanish"},
			ValidityPeriodMonths:       intPtr(3),
			ProcessingTimeEstimateDays: intPtr(45),
		},
		{
			TargetCountry:              "SA",
			CountryName:                "Saudi Arabia",
			AcceptedDocumentTypes:      []string{"degree", "transcript", "experience_letter"},
			AdditionalRequirements:     []string{"MOFA attestation", "Embassy attestation"},
			EnforcedRequirements:       []string{"MOFA attestation", "Embassy attestation"},
			ProcessingTimeEstimateDays: intPtr(20),
		},
		{
			TargetCountry:              "DE",
			CountryName:                "Germany",
			AcceptedDocumentTypes:      []string{"degree", "transcript", "diploma", "birth_certificate"},
			ApostilleRequired:          true,
			TranslationRequired:        true,
			AdditionalRequirements:     []string{"anabin recognition check"},
			ProcessingTimeEstimateDays: intPtr(28),
		},
	}
}
