package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docbridge/internal/compliance/publisher"
)

func TestInMemoryEventLedgerIgnoresRedelivery(t *testing.T) {
	ctx := context.Background()
	ledger := NewInMemoryEventLedger()
	event := publisher.ReportEvent{
		EventID:       uuid.NewString(),
		ReportID:      uuid.NewString(),
		TargetCountry: "DE",
		OccurredAt:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, ledger.Append(ctx, event))
	require.NoError(t, ledger.Append(ctx, event))

	n, err := ledger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
