package evaluator

import (
	"fmt"

	"docbridge/internal/compliance/models"
)

// Score deductions per finding.
const (
	deductCritical = 20
	deductHigh     = 15
	deductMedium   = 10
	deductWarning  = 5
)

// Score computes the 0..100 compliance score of a report.
// Compliance itself is decided by IsCompliant; the score is informational.
func Score(r *models.Report) int {
	score := 100
	for _, e := range r.Errors {
		switch e.Severity {
		case models.SeverityCritical:
			score -= deductCritical
		case models.SeverityHigh:
			score -= deductHigh
		case models.SeverityMedium:
			score -= deductMedium
		}
	}
	score -= deductWarning * len(r.Warnings)
	return max(0, min(100, score))
}

var (
	notarizationTags = []string{"notarization", "notarized", "notary_authentication"}
	translationTags  = []string{"certified_translation", "translation_certification", "sworn_translation"}
)

func recommendations(ev *evaluation) []string {
	out := []string{}
	for _, e := range ev.errors {
		if e.Severity == models.SeverityCritical {
			out = append(out, "Fix all critical issues before submitting the document")
			break
		}
	}
	j := ev.jurisdiction
	if j == nil {
		return out
	}
	if j.ApostilleRequired && !ev.apostilleFound {
		out = append(out, fmt.Sprintf("Obtain apostille certification from the competent authority in %s", sourceOrIssuing(ev.meta.SourceCountry)))
	}
	if j.NotarizationRequired && !hasAnyCertification(ev.meta, notarizationTags) {
		out = append(out, "Have the document notarized by a licensed notary public")
	}
	if j.TranslationRequired && !hasAnyCertification(ev.meta, translationTags) {
		out = append(out, "Ensure the translation is certified by a qualified translator")
	}
	if d := j.ProcessingTimeEstimateDays; d != nil && *d > 0 {
		out = append(out, fmt.Sprintf("Allow %d business days for processing", *d))
	}
	return out
}

func certificationRequirements(ev *evaluation) []models.CertificationRequirement {
	out := []models.CertificationRequirement{}
	j := ev.jurisdiction
	if j == nil {
		return out
	}
	if j.ApostilleRequired {
		out = append(out, models.CertificationRequirement{
			Type:        "Apostille",
			Required:    true,
			Description: "Document must be apostilled by the competent authority",
			Obtained:    ev.apostilleFound,
		})
	}
	if j.NotarizationRequired {
		out = append(out, models.CertificationRequirement{
			Type:        "Notarization",
			Required:    true,
			Description: "Document must be notarized by a licensed notary",
			Obtained:    hasAnyCertification(ev.meta, notarizationTags),
		})
	}
	if j.TranslationRequired {
		out = append(out, models.CertificationRequirement{
			Type:        "Translation Certification",
			Required:    true,
			Description: "Translation must be certified by a qualified translator",
			Obtained:    hasAnyCertification(ev.meta, translationTags),
		})
	}
	return out
}

func sourceOrIssuing(source string) string {
	if source == "" {
		return "the issuing country"
	}
	return source
}
