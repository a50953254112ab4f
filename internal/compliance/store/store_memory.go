// Package store persists compliance reports.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"docbridge/internal/compliance/models"
	"docbridge/pkg/platform/sentinel"
)

// InMemoryStore keeps reports in a map. Intended for development and tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	reports map[uuid.UUID]models.StoredReport
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{reports: make(map[uuid.UUID]models.StoredReport)}
}

func (s *InMemoryStore) Save(_ context.Context, report *models.StoredReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reports[report.ID]; exists {
		return sentinel.ErrConflict
	}
	s.reports[report.ID] = *report
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*models.StoredReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &r, nil
}

// ListBySubject returns the subject's most recent reports, newest first.
func (s *InMemoryStore) ListBySubject(_ context.Context, subject string, limit int) ([]*models.StoredReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.StoredReport{}
	for _, r := range s.reports {
		r := r
		if r.Subject == subject {
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
