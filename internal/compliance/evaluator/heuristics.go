package evaluator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"docbridge/internal/compliance/models"
)

const (
	RequirementLegibility  = "Scan Legibility"
	RequirementDate        = "Date Presence"
	RequirementSignature   = "Signature"
	RequirementSeal        = "Official Seal"
	RequirementScanQuality = "Scan Quality"
	RequirementPaperSize   = "Paper Size"
)

const (
	maxIllegibleRatio = 0.2
	minScanDPI        = 300
	paperA4           = "A4"
	paperLetter       = "Letter"
)

var signatureKeywords = []string{
	"signature",
	"signed",
	"firma",
	"assinatura",
	"unterschrift",
	"подпись",
}

var sealKeywords = []string{
	"seal",
	"stamp",
	"notary",
	"certified",
	"official",
	"embassy",
	"consulate",
	"ministry",
	"department",
}

const monthNames = `(january|february|march|april|may|june|july|august|september|october|november|december)`

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}`),
	regexp.MustCompile(`\d{4}[/\-.]\d{1,2}[/\-.]\d{1,2}`),
	regexp.MustCompile(`(?i)` + monthNames + `\s+\d{1,2},?\s+\d{4}`),
	regexp.MustCompile(`(?i)\d{1,2}\s+` + monthNames + `\s+\d{4}`),
}

// letterPaperCountries use US Letter; everyone else is expected to use A4.
var letterPaperCountries = map[string]struct{}{
	"US": {}, "CA": {}, "MX": {}, "PH": {}, "CL": {}, "CO": {},
	"VE": {}, "GT": {}, "CR": {}, "PA": {}, "DO": {}, "SV": {},
	"NI": {}, "PR": {},
}

// legibleMarks are the punctuation characters OCR output legitimately contains.
const legibleMarks = `.,;:!?'"()-_`

// checkCommonIssues runs the text and scan heuristics. It runs whether or not
// the jurisdiction is known.
func checkCommonIssues(ev *evaluation) {
	checkLegibility(ev)
	checkDatePresence(ev)
	checkSignature(ev)
	checkSeal(ev)
	checkScanQuality(ev)
	checkPaperSize(ev)
}

func checkLegibility(ev *evaluation) {
	ratio := IllegibleRatio(ev.text)
	if ratio > maxIllegibleRatio {
		ev.check(RequirementLegibility, models.CheckWarning,
			fmt.Sprintf("%.0f%% of characters look like OCR noise", ratio*100))
		ev.warn("quality", "Document may have poor scan quality. Consider re-scanning.")
		return
	}
	ev.check(RequirementLegibility, models.CheckPassed, "text is legible")
}

func checkDatePresence(ev *evaluation) {
	if ContainsDate(ev.text) {
		ev.check(RequirementDate, models.CheckPassed, "date found in document")
		return
	}
	ev.check(RequirementDate, models.CheckWarning, "no date found in document")
	ev.warn("date", "No date found in document")
}

// checkSignature prefers structured evidence over text search: an explicit
// HasSignature=false is an error even when the text mentions a signature.
func checkSignature(ev *evaluation) {
	if has := ev.meta.HasSignature; has != nil {
		if !*has {
			ev.check(RequirementSignature, models.CheckFailed, "signature reported missing")
			ev.fail("signature", "Document appears to be missing official signature", models.SeverityHigh)
			return
		}
		ev.check(RequirementSignature, models.CheckPassed, "signature confirmed")
		return
	}
	if containsAny(ev.lowerText, signatureKeywords) {
		ev.check(RequirementSignature, models.CheckPassed, "signature detected in document")
		return
	}
	ev.check(RequirementSignature, models.CheckWarning, "no signature detected in document")
	ev.warn("signature", "No signature detected in document")
}

func checkSeal(ev *evaluation) {
	if has := ev.meta.HasSeal; has != nil {
		if !*has {
			ev.check(RequirementSeal, models.CheckFailed, "seal reported missing")
			ev.fail("seal", "Document appears to be missing official seal", models.SeverityHigh)
			return
		}
		ev.check(RequirementSeal, models.CheckPassed, "seal confirmed")
		return
	}
	if containsAny(ev.lowerText, sealKeywords) {
		ev.check(RequirementSeal, models.CheckPassed, "official marks detected in document")
		return
	}
	ev.check(RequirementSeal, models.CheckWarning, "no official stamps or seals detected")
	ev.warn("authentication", "No official stamps or seals detected")
}

func checkScanQuality(ev *evaluation) {
	dpi := ev.meta.ScanQualityDPI
	if dpi == nil {
		return
	}
	if *dpi < minScanDPI {
		ev.check(RequirementScanQuality, models.CheckWarning, fmt.Sprintf("scanned at %d DPI", *dpi))
		ev.warn("scanQuality",
			fmt.Sprintf("Document scan quality is below recommended %d DPI (got %d)", minScanDPI, *dpi))
		return
	}
	ev.check(RequirementScanQuality, models.CheckPassed, fmt.Sprintf("scanned at %d DPI", *dpi))
}

func checkPaperSize(ev *evaluation) {
	size := ev.meta.PaperSize
	if size == nil {
		return
	}
	expected := ExpectedPaperSize(ev.meta.TargetCountry, ev.jurisdiction)
	got := strings.TrimSpace(*size)
	if strings.EqualFold(got, expected) {
		ev.check(RequirementPaperSize, models.CheckPassed, fmt.Sprintf("%s matches expected size", got))
		return
	}
	ev.check(RequirementPaperSize, models.CheckWarning, fmt.Sprintf("%s does not match expected %s", got, expected))
	ev.warn("paperSize",
		fmt.Sprintf("Document paper size is %s, %s expected for %s", got, expected, ev.meta.TargetCountry))
}

// ExpectedPaperSize returns the jurisdiction override, Letter for Letter-using
// countries, A4 otherwise.
func ExpectedPaperSize(country string, j *models.JurisdictionRequirement) string {
	if j != nil && strings.TrimSpace(j.PaperSize) != "" {
		return strings.TrimSpace(j.PaperSize)
	}
	if _, ok := letterPaperCountries[models.NormalizeCountry(country)]; ok {
		return paperLetter
	}
	return paperA4
}

// IllegibleRatio is the share of characters that are neither letters, digits,
// whitespace nor common punctuation. Letters of any script count as legible.
func IllegibleRatio(text string) float64 {
	total, noise := 0, 0
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || strings.ContainsRune(legibleMarks, r) {
			continue
		}
		noise++
	}
	if total == 0 {
		return 0
	}
	return float64(noise) / float64(total)
}

// ContainsDate reports whether text contains a numeric or month-name date.
func ContainsDate(text string) bool {
	for _, p := range datePatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
