// Package catalog holds the in-memory jurisdiction requirements lookup.
//
// The catalog publishes an immutable snapshot through an atomic pointer. Loads
// build a fresh map and swap it in, so concurrent Get calls never observe a
// partially applied batch and never need a lock.
package catalog

import (
	"cmp"
	"slices"
	"sync/atomic"

	"docbridge/internal/compliance/models"
	dErrors "docbridge/pkg/domain-errors"
	"docbridge/pkg/platform/strings"
)

type snapshot struct {
	byCountry map[string]models.JurisdictionRequirement
}

// Catalog maps target country codes to their JurisdictionRequirement.
type Catalog struct {
	current atomic.Pointer[snapshot]
}

// New returns an empty, unloaded catalog.
func New() *Catalog {
	return &Catalog{}
}

// Load merges records into the current entries keyed by country code.
// Within a batch the last record for a country wins. A record without a
// country code fails the whole batch and leaves the catalog untouched.
func (c *Catalog) Load(records []models.JurisdictionRequirement) error {
	prepared, err := prepare(records)
	if err != nil {
		return err
	}
	for {
		old := c.current.Load()
		next := make(map[string]models.JurisdictionRequirement, len(prepared))
		if old != nil {
			for k, v := range old.byCountry {
				next[k] = v
			}
		}
		for _, rec := range prepared {
			next[rec.TargetCountry] = rec
		}
		if c.current.CompareAndSwap(old, &snapshot{byCountry: next}) {
			return nil
		}
	}
}

// Replace swaps in a snapshot containing exactly records.
func (c *Catalog) Replace(records []models.JurisdictionRequirement) error {
	prepared, err := prepare(records)
	if err != nil {
		return err
	}
	next := make(map[string]models.JurisdictionRequirement, len(prepared))
	for _, rec := range prepared {
		next[rec.TargetCountry] = rec
	}
	c.current.Store(&snapshot{byCountry: next})
	return nil
}

// Get looks up a country case-insensitively. Unknown countries are not an error.
func (c *Catalog) Get(countryCode string) (models.JurisdictionRequirement, bool) {
	snap := c.current.Load()
	if snap == nil {
		return models.JurisdictionRequirement{}, false
	}
	req, ok := snap.byCountry[models.NormalizeCountry(countryCode)]
	return req, ok
}

// CountryCodes returns all loaded codes in sorted order.
func (c *Catalog) CountryCodes() []string {
	snap := c.current.Load()
	if snap == nil {
		return []string{}
	}
	codes := make([]string, 0, len(snap.byCountry))
	for code := range snap.byCountry {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}

// All returns every loaded record ordered by country code.
func (c *Catalog) All() []models.JurisdictionRequirement {
	snap := c.current.Load()
	if snap == nil {
		return []models.JurisdictionRequirement{}
	}
	out := make([]models.JurisdictionRequirement, 0, len(snap.byCountry))
	for _, rec := range snap.byCountry {
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b models.JurisdictionRequirement) int {
		return cmp.Compare(a.TargetCountry, b.TargetCountry)
	})
	return out
}

// Loaded reports whether any Load or Replace has succeeded.
func (c *Catalog) Loaded() bool {
	return c.current.Load() != nil
}

// Len returns the number of loaded jurisdictions.
func (c *Catalog) Len() int {
	snap := c.current.Load()
	if snap == nil {
		return 0
	}
	return len(snap.byCountry)
}

// prepare validates and normalizes a batch. Slices are copied so callers
// cannot mutate records visible to readers.
func prepare(records []models.JurisdictionRequirement) ([]models.JurisdictionRequirement, error) {
	out := make([]models.JurisdictionRequirement, 0, len(records))
	for i, rec := range records {
		code := models.NormalizeCountry(rec.TargetCountry)
		if code == "" {
			return nil, dErrors.Newf(dErrors.CodeConfiguration, "jurisdiction record %d has no target country", i)
		}
		if rec.ApostilleSeverity != "" {
			if _, ok := models.ParseSeverity(string(rec.ApostilleSeverity)); !ok {
				return nil, dErrors.Newf(dErrors.CodeConfiguration, "jurisdiction %s has unknown apostille severity %q", code, rec.ApostilleSeverity)
			}
		}
		rec.TargetCountry = code
		rec.AcceptedDocumentTypes = strings.DedupeAndTrimLower(slices.Clone(rec.AcceptedDocumentTypes))
		rec.AdditionalRequirements = strings.DedupeAndTrim(slices.Clone(rec.AdditionalRequirements))
		rec.EnforcedRequirements = strings.DedupeAndTrim(slices.Clone(rec.EnforcedRequirements))
		if err := checkEnforced(code, rec); err != nil {
			return nil, err
		}
		rec.ValidityPeriodMonths = cloneInt(rec.ValidityPeriodMonths)
		rec.ProcessingTimeEstimateDays = cloneInt(rec.ProcessingTimeEstimateDays)
		out = append(out, rec)
	}
	return out, nil
}

// checkEnforced requires every enforced name to match an additional
// requirement by tag.
func checkEnforced(code string, rec models.JurisdictionRequirement) error {
	additional := make(map[string]struct{}, len(rec.AdditionalRequirements))
	for _, r := range rec.AdditionalRequirements {
		additional[models.NormalizeTag(r)] = struct{}{}
	}
	for _, r := range rec.EnforcedRequirements {
		if _, ok := additional[models.NormalizeTag(r)]; !ok {
			return dErrors.Newf(dErrors.CodeConfiguration,
				"jurisdiction %s enforces %q which is not an additional requirement", code, r)
		}
	}
	return nil
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
