package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"docbridge/internal/compliance/models"
	"docbridge/pkg/platform/sentinel"
	"docbridge/pkg/platform/tx"
)

// ReportsSchema creates the table PostgresStore writes to.
const ReportsSchema = `
CREATE TABLE IF NOT EXISTS compliance_reports (
    id               UUID PRIMARY KEY,
    reference        TEXT NOT NULL UNIQUE,
    request_id       TEXT NOT NULL DEFAULT '',
    subject          TEXT NOT NULL DEFAULT '',
    document_type    TEXT NOT NULL,
    source_country   TEXT NOT NULL DEFAULT '',
    target_country   TEXT NOT NULL,
    is_compliant     BOOLEAN NOT NULL,
    compliance_score INTEGER NOT NULL,
    report           JSONB NOT NULL,
    created_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS compliance_reports_subject_idx ON compliance_reports (subject, created_at DESC);
`

const uniqueViolation = "23505"

// PostgresStore persists reports in PostgreSQL with the report body as JSONB.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, report *models.StoredReport) error {
	body, err := json.Marshal(report.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	query := `
		INSERT INTO compliance_reports (
			id, reference, request_id, subject, document_type, source_country,
			target_country, is_compliant, compliance_score, report, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = tx.Executor(ctx, s.db).ExecContext(ctx, query,
		report.ID,
		report.Reference,
		report.RequestID,
		report.Subject,
		report.DocumentType,
		report.SourceCountry,
		report.TargetCountry,
		report.Report.IsCompliant,
		report.Report.ComplianceScore,
		body,
		report.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT id, reference, request_id, subject, document_type, source_country,
	       target_country, report, created_at
	FROM compliance_reports
`

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.StoredReport, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id)
	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find report by id: %w", err)
	}
	return report, nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subject string, limit int) ([]*models.StoredReport, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE subject = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		subject, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := []*models.StoredReport{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (*models.StoredReport, error) {
	var (
		r    models.StoredReport
		body []byte
	)
	if err := row.Scan(
		&r.ID,
		&r.Reference,
		&r.RequestID,
		&r.Subject,
		&r.DocumentType,
		&r.SourceCountry,
		&r.TargetCountry,
		&body,
		&r.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &r.Report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &r, nil
}
