package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"docbridge/internal/compliance/publisher"
	"docbridge/pkg/platform/tx"
)

// EventLedgerSchema creates the append-only table of consumed report events.
const EventLedgerSchema = `
CREATE TABLE IF NOT EXISTS compliance_report_events (
    event_id         TEXT PRIMARY KEY,
    report_id        UUID NOT NULL,
    reference        TEXT NOT NULL,
    subject          TEXT NOT NULL DEFAULT '',
    document_type    TEXT NOT NULL,
    source_country   TEXT NOT NULL DEFAULT '',
    target_country   TEXT NOT NULL,
    is_compliant     BOOLEAN NOT NULL,
    compliance_score INTEGER NOT NULL,
    error_count      INTEGER NOT NULL,
    warning_count    INTEGER NOT NULL,
    occurred_at      TIMESTAMPTZ NOT NULL,
    recorded_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS compliance_report_events_target_idx ON compliance_report_events (target_country, occurred_at);
`

// PostgresEventLedger appends report events. Redelivered events are ignored.
type PostgresEventLedger struct {
	db *sql.DB
}

func NewPostgresEventLedger(db *sql.DB) *PostgresEventLedger {
	return &PostgresEventLedger{db: db}
}

func (l *PostgresEventLedger) Append(ctx context.Context, e publisher.ReportEvent) error {
	query := `
		INSERT INTO compliance_report_events (
			event_id, report_id, reference, subject, document_type, source_country,
			target_country, is_compliant, compliance_score, error_count, warning_count, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (event_id) DO NOTHING
	`
	if _, err := tx.Executor(ctx, l.db).ExecContext(ctx, query,
		e.EventID, e.ReportID, e.Reference, e.Subject, e.DocumentType, e.SourceCountry,
		e.TargetCountry, e.IsCompliant, e.ComplianceScore, e.ErrorCount, e.WarningCount, e.OccurredAt,
	); err != nil {
		return fmt.Errorf("append report event: %w", err)
	}
	return nil
}

// Count returns how many events were recorded.
func (l *PostgresEventLedger) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT count(*) FROM compliance_report_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count report events: %w", err)
	}
	return n, nil
}

// InMemoryEventLedger is the development counterpart of PostgresEventLedger.
type InMemoryEventLedger struct {
	mu     sync.Mutex
	events map[string]publisher.ReportEvent
}

func NewInMemoryEventLedger() *InMemoryEventLedger {
	return &InMemoryEventLedger{events: make(map[string]publisher.ReportEvent)}
}

func (l *InMemoryEventLedger) Append(_ context.Context, e publisher.ReportEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.events[e.EventID]; !ok {
		l.events[e.EventID] = e
	}
	return nil
}

func (l *InMemoryEventLedger) Count(context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events), nil
}
