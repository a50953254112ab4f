package evaluator

import (
	"fmt"
	"strings"

	"docbridge/internal/compliance/models"
)

// Requirement names as they appear in RequirementCheck.Requirement.
const (
	RequirementJurisdiction   = "Jurisdiction Requirements"
	RequirementDocumentType   = "Document Type"
	RequirementApostille      = "Apostille"
	RequirementTranslation    = "Translation"
	RequirementExpiry         = "Document Validity"
	RequirementValidityPeriod = "Validity Period"
)

const dateLayout = "2006-01-02"

// apostilleTags are certification tags that evidence an apostille.
var apostilleTags = []string{"apostille", "apostille_certificate", "hague_apostille"}

// apostilleKeywords are matched case-insensitively against document text.
var apostilleKeywords = []string{
	"apostille",
	"apostilla",
	"apostila",
	"hague convention",
	"convention de la haye",
}

func checkJurisdiction(ev *evaluation) {
	if ev.jurisdiction == nil {
		msg := fmt.Sprintf("requirements not found for %s; using generic validation", ev.meta.TargetCountry)
		ev.check(RequirementJurisdiction, models.CheckWarning, msg)
		ev.warn("targetCountry", msg)
		return
	}
	ev.check(RequirementJurisdiction, models.CheckPassed,
		fmt.Sprintf("requirements loaded for %s", ev.jurisdiction.TargetCountry))
}

func checkDocumentType(ev *evaluation) {
	j := ev.jurisdiction
	if j.AcceptsDocumentType(ev.meta.DocumentType) {
		ev.check(RequirementDocumentType, models.CheckPassed,
			fmt.Sprintf("%s is accepted", ev.meta.DocumentType))
		return
	}
	ev.check(RequirementDocumentType, models.CheckFailed,
		fmt.Sprintf("%s is not accepted. Accepted types: %s", ev.meta.DocumentType, strings.Join(j.AcceptedDocumentTypes, ", ")))
	ev.fail("documentType",
		fmt.Sprintf("Document type %s is not accepted for %s", ev.meta.DocumentType, j.TargetCountry),
		models.SeverityCritical)
}

func checkApostille(ev *evaluation) {
	j := ev.jurisdiction
	if !j.ApostilleRequired {
		ev.check(RequirementApostille, models.CheckNotApplicable, "apostille not required")
		return
	}

	switch {
	case hasAnyCertification(ev.meta, apostilleTags):
		ev.apostilleFound = true
		ev.check(RequirementApostille, models.CheckPassed, "apostille listed in certifications")
	case containsAny(ev.lowerText, apostilleKeywords):
		ev.apostilleFound = true
		ev.check(RequirementApostille, models.CheckPassed, "apostille detected in document")
	default:
		ev.check(RequirementApostille, models.CheckFailed, "apostille required but not found")
		ev.fail("apostille",
			fmt.Sprintf("Apostille required for %s documents submitted to %s", ev.meta.DocumentType, j.TargetCountry),
			j.EffectiveApostilleSeverity())
	}
}

// checkTranslation never passes or fails: a certified translation cannot be
// proven from text content and always needs manual review.
func checkTranslation(ev *evaluation) {
	j := ev.jurisdiction
	if !j.TranslationRequired {
		ev.check(RequirementTranslation, models.CheckNotApplicable, "translation not required")
		return
	}
	ev.check(RequirementTranslation, models.CheckWarning, "document requires certified translation")
	ev.warn("translation",
		fmt.Sprintf("Document must carry a certified translation for %s authorities", j.TargetCountry))
}

func checkValidity(ev *evaluation) {
	if exp := ev.meta.ExpiryDate; exp != nil {
		if ev.now.After(*exp) {
			ev.check(RequirementExpiry, models.CheckFailed,
				fmt.Sprintf("document expired on %s", exp.Format(dateLayout)))
			ev.fail("expiryDate", "Document has expired", models.SeverityCritical)
		} else {
			ev.check(RequirementExpiry, models.CheckPassed,
				fmt.Sprintf("document valid until %s", exp.Format(dateLayout)))
		}
	}

	months := ev.jurisdiction.ValidityPeriodMonths
	switch {
	case months == nil:
		ev.check(RequirementValidityPeriod, models.CheckNotApplicable, "no validity period defined")
	case ev.meta.IssueDate == nil:
		ev.check(RequirementValidityPeriod, models.CheckNotApplicable, "issue date not provided")
	default:
		limit := ev.meta.IssueDate.AddDate(0, *months, 0)
		if ev.now.After(limit) {
			ev.check(RequirementValidityPeriod, models.CheckFailed,
				fmt.Sprintf("document exceeds %d month validity period (ended %s)", *months, limit.Format(dateLayout)))
			ev.fail("validityPeriod",
				fmt.Sprintf("Document exceeds %d month validity period", *months),
				models.SeverityHigh)
		} else {
			ev.check(RequirementValidityPeriod, models.CheckPassed,
				fmt.Sprintf("document is within %d month validity period", *months))
		}
	}
}

// checkAdditionalRequirements surfaces every jurisdiction-specific item.
// Plain entries are always a manual-verification warning; enforced entries
// pass when a matching certification tag is present and fail otherwise.
func checkAdditionalRequirements(ev *evaluation) {
	j := ev.jurisdiction
	for _, req := range j.AdditionalRequirements {
		if !j.IsEnforced(req) {
			ev.check(req, models.CheckWarning, "manual verification required")
			ev.warn("additionalRequirement", fmt.Sprintf("%s: manual verification required", req))
			continue
		}
		if ev.meta.HasCertification(req) {
			ev.check(req, models.CheckPassed, "evidenced by certification")
			continue
		}
		ev.check(req, models.CheckFailed, "required certification not provided")
		ev.fail("additionalRequirement",
			fmt.Sprintf("%s required for %s submissions", req, j.TargetCountry),
			models.SeverityHigh)
	}
}

func hasAnyCertification(meta models.DocumentMetadata, tags []string) bool {
	for _, tag := range tags {
		if meta.HasCertification(tag) {
			return true
		}
	}
	return false
}

func containsAny(lowerText string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lowerText, kw) {
			return true
		}
	}
	return false
}
