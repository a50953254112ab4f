package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docbridge/internal/compliance/models"
	"docbridge/pkg/platform/sentinel"
)

func newReport(subject string, createdAt time.Time) *models.StoredReport {
	return &models.StoredReport{
		ID:            uuid.New(),
		Reference:     "ref-" + uuid.NewString()[:8],
		Subject:       subject,
		DocumentType:  "degree",
		TargetCountry: "US",
		Report:        models.Report{IsCompliant: true, ComplianceScore: 100},
		CreatedAt:     createdAt,
	}
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("save then find", func(t *testing.T) {
		s := NewInMemoryStore()
		r := newReport("user-1", now)
		require.NoError(t, s.Save(ctx, r))

		found, err := s.FindByID(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, r, found)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		_, err := NewInMemoryStore().FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("duplicate id conflicts", func(t *testing.T) {
		s := NewInMemoryStore()
		r := newReport("user-1", now)
		require.NoError(t, s.Save(ctx, r))
		assert.ErrorIs(t, s.Save(ctx, r), sentinel.ErrConflict)
	})

	t.Run("list by subject is newest first and limited", func(t *testing.T) {
		s := NewInMemoryStore()
		oldest := newReport("user-1", now)
		middle := newReport("user-1", now.Add(time.Hour))
		newest := newReport("user-1", now.Add(2*time.Hour))
		other := newReport("user-2", now)
		for _, r := range []*models.StoredReport{oldest, newest, other, middle} {
			require.NoError(t, s.Save(ctx, r))
		}

		list, err := s.ListBySubject(ctx, "user-1", 2)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, newest.ID, list[0].ID)
		assert.Equal(t, middle.ID, list[1].ID)

		none, err := s.ListBySubject(ctx, "nobody", 10)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("stored copy is detached from caller", func(t *testing.T) {
		s := NewInMemoryStore()
		r := newReport("user-1", now)
		require.NoError(t, s.Save(ctx, r))
		r.Subject = "mutated"

		found, err := s.FindByID(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, "user-1", found.Subject)
	})
}
