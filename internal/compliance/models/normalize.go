package models

import "strings"

// NormalizeCountry upper-cases and trims an ISO country code.
func NormalizeCountry(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeTag turns free text such as "NYSC certificate" or "HEC-Verification"
// into the certification tag spelling ("nysc_certificate", "hec_verification").
func NormalizeTag(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '/':
			return '_'
		}
		return r
	}, s)
}
