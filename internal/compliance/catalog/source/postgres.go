package source

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"docbridge/internal/compliance/models"
	"docbridge/pkg/platform/tx"
)

// RequirementsSchema creates the table PostgresSource reads from.
const RequirementsSchema = `
CREATE TABLE IF NOT EXISTS country_requirements (
    country_code                  TEXT PRIMARY KEY,
    country_name                  TEXT NOT NULL DEFAULT '',
    document_types                TEXT[] NOT NULL DEFAULT '{}',
    apostille_required            BOOLEAN NOT NULL DEFAULT FALSE,
    translation_required          BOOLEAN NOT NULL DEFAULT FALSE,
    notarization_required         BOOLEAN NOT NULL DEFAULT FALSE,
    additional_requirements       TEXT[] NOT NULL DEFAULT '{}',
    enforced_requirements         TEXT[] NOT NULL DEFAULT '{}',
    apostille_severity            TEXT NOT NULL DEFAULT '',
    paper_size                    TEXT NOT NULL DEFAULT '',
    validity_period_months        INTEGER,
    processing_time_estimate_days INTEGER
)`

// PostgresSource reads records from the country_requirements table.
type PostgresSource struct {
	db *sql.DB
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) Name() string { return "postgres" }

func (s *PostgresSource) Fetch(ctx context.Context) ([]models.JurisdictionRequirement, error) {
	query := `
		SELECT country_code, country_name, document_types, apostille_required,
		       translation_required, notarization_required, additional_requirements,
		       enforced_requirements, apostille_severity, paper_size,
		       validity_period_months, processing_time_estimate_days
		FROM country_requirements
		ORDER BY country_code
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query country requirements: %w", err)
	}
	defer rows.Close()

	var records []models.JurisdictionRequirement
	for rows.Next() {
		var (
			r          models.JurisdictionRequirement
			severity   string
			validity   sql.NullInt32
			processing sql.NullInt32
		)
		if err := rows.Scan(
			&r.TargetCountry,
			&r.CountryName,
			pq.Array(&r.AcceptedDocumentTypes),
			&r.ApostilleRequired,
			&r.TranslationRequired,
			&r.NotarizationRequired,
			pq.Array(&r.AdditionalRequirements),
			pq.Array(&r.EnforcedRequirements),
			&severity,
			&r.PaperSize,
			&validity,
			&processing,
		); err != nil {
			return nil, fmt.Errorf("scan country requirement: %w", err)
		}
		r.ApostilleSeverity = models.Severity(severity)
		r.ValidityPeriodMonths = nullableInt(validity)
		r.ProcessingTimeEstimateDays = nullableInt(processing)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate country requirements: %w", err)
	}
	return records, nil
}

// Upsert writes records, replacing existing rows for the same country.
func (s *PostgresSource) Upsert(ctx context.Context, records []models.JurisdictionRequirement) error {
	query := `
		INSERT INTO country_requirements (
			country_code, country_name, document_types, apostille_required,
			translation_required, notarization_required, additional_requirements,
			enforced_requirements, apostille_severity, paper_size,
			validity_period_months, processing_time_estimate_days
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (country_code) DO UPDATE SET
			country_name = EXCLUDED.country_name,
			document_types = EXCLUDED.document_types,
			apostille_required = EXCLUDED.apostille_required,
			translation_required = EXCLUDED.translation_required,
			notarization_required = EXCLUDED.notarization_required,
			additional_requirements = EXCLUDED.additional_requirements,
			enforced_requirements = EXCLUDED.enforced_requirements,
			apostille_severity = EXCLUDED.apostille_severity,
			paper_size = EXCLUDED.paper_size,
			validity_period_months = EXCLUDED.validity_period_months,
			processing_time_estimate_days = EXCLUDED.processing_time_estimate_days
	`
	return tx.NewRunner(s.db, 0).RunInTx(ctx, func(ctx context.Context) error {
		exec := tx.Executor(ctx, s.db)
		for _, r := range records {
			if _, err := exec.ExecContext(ctx, query,
				models.NormalizeCountry(r.TargetCountry),
				r.CountryName,
				pq.Array(nonNil(r.AcceptedDocumentTypes)),
				r.ApostilleRequired,
				r.TranslationRequired,
				r.NotarizationRequired,
				pq.Array(nonNil(r.AdditionalRequirements)),
				pq.Array(nonNil(r.EnforcedRequirements)),
				string(r.ApostilleSeverity),
				r.PaperSize,
				r.ValidityPeriodMonths,
				r.ProcessingTimeEstimateDays,
			); err != nil {
				return fmt.Errorf("upsert %s: %w", r.TargetCountry, err)
			}
		}
		return nil
	})
}

func nullableInt(v sql.NullInt32) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int32)
	return &n
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
