// Package source loads jurisdiction requirement records for the catalog from
// files, Postgres, S3-compatible object storage or built-in seed data.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"docbridge/internal/compliance/models"
	dErrors "docbridge/pkg/domain-errors"
)

// Source fetches the full set of jurisdiction requirement records.
type Source interface {
	Fetch(ctx context.Context) ([]models.JurisdictionRequirement, error)
	Name() string
}

// Format is the serialization of a record document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the format from a file name or object key extension.
// Anything other than .yaml/.yml is treated as JSON.
func FormatFor(name string) Format {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode parses a document holding an array of flat requirement records.
func Decode(data []byte, format Format) ([]models.JurisdictionRequirement, error) {
	var records []models.JurisdictionRequirement
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "invalid requirements yaml")
		}
	default:
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "invalid requirements json")
		}
	}
	return records, nil
}

// Encode serializes records as a JSON array. It is the cache wire format.
func Encode(records []models.JurisdictionRequirement) ([]byte, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode requirements: %w", err)
	}
	return data, nil
}
