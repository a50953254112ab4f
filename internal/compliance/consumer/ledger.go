package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"docbridge/internal/compliance/publisher"
)

// EventLedger stores consumed report events.
type EventLedger interface {
	Append(ctx context.Context, e publisher.ReportEvent) error
}

// LedgerHandler records report events for long-term retention.
// Malformed messages are logged and skipped so they cannot block the partition.
type LedgerHandler struct {
	ledger EventLedger
	logger *slog.Logger
}

func NewLedgerHandler(ledger EventLedger, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, logger: logger}
}

func (h *LedgerHandler) Handle(ctx context.Context, msg *Message) error {
	var event publisher.ReportEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.ErrorContext(ctx, "dropping malformed report event",
			"key", string(msg.Key),
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	if _, err := uuid.Parse(event.ReportID); err != nil || event.EventID == "" || event.TargetCountry == "" {
		h.logger.ErrorContext(ctx, "dropping incomplete report event",
			"key", string(msg.Key),
			"event_id", event.EventID,
			"offset", msg.Offset,
		)
		return nil
	}

	if err := h.ledger.Append(ctx, event); err != nil {
		return fmt.Errorf("store report event: %w", err)
	}
	h.logger.DebugContext(ctx, "recorded report event",
		"event_id", event.EventID,
		"report_id", event.ReportID,
		"target_country", event.TargetCountry,
	)
	return nil
}
