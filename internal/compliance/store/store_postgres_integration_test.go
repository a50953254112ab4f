//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"docbridge/internal/compliance/models"
	"docbridge/internal/compliance/store"
	"docbridge/pkg/platform/sentinel"
	"docbridge/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	_, err := s.postgres.Exec(context.Background(), store.ReportsSchema)
	s.Require().NoError(err)
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "compliance_reports"))
}

func (s *PostgresStoreSuite) report(subject string, createdAt time.Time) *models.StoredReport {
	days := 15
	return &models.StoredReport{
		ID:            uuid.New(),
		Reference:     "CR-" + uuid.NewString()[:10],
		RequestID:     "req-1",
		Subject:       subject,
		DocumentType:  "degree",
		SourceCountry: "IN",
		TargetCountry: "US",
		Report: models.Report{
			IsCompliant:     false,
			ComplianceScore: 80,
			Errors: []models.ValidationError{
				{Field: "apostille", Message: "Apostille required for degree documents submitted to US", Severity: models.SeverityCritical},
			},
			Warnings:                   []models.ValidationWarning{},
			Checks:                     []models.RequirementCheck{{Requirement: "Apostille", Status: models.CheckFailed}},
			Recommendations:            []string{},
			CertificationRequirements:  []models.CertificationRequirement{},
			ProcessingTimeEstimateDays: &days,
			EvaluatedAt:                createdAt,
		},
		CreatedAt: createdAt,
	}
}

func (s *PostgresStoreSuite) TestSaveAndFind() {
	ctx := context.Background()
	created := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	r := s.report("user-1", created)

	s.Require().NoError(s.store.Save(ctx, r))
	found, err := s.store.FindByID(ctx, r.ID)

	s.Require().NoError(err)
	s.Equal(r.Reference, found.Reference)
	s.Equal(80, found.Report.ComplianceScore)
	s.Equal(r.Report.Errors, found.Report.Errors)
	s.True(created.Equal(found.CreatedAt))
	s.True(created.Equal(found.Report.EvaluatedAt))
}

func (s *PostgresStoreSuite) TestFindUnknownIsNotFound() {
	_, err := s.store.FindByID(context.Background(), uuid.New())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDuplicateConflicts() {
	ctx := context.Background()
	r := s.report("user-1", time.Now().UTC())
	s.Require().NoError(s.store.Save(ctx, r))
	s.ErrorIs(s.store.Save(ctx, r), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestListBySubject() {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	first := s.report("user-1", base)
	second := s.report("user-1", base.Add(time.Minute))
	s.Require().NoError(s.store.Save(ctx, first))
	s.Require().NoError(s.store.Save(ctx, second))
	s.Require().NoError(s.store.Save(ctx, s.report("user-2", base)))

	list, err := s.store.ListBySubject(ctx, "user-1", 10)

	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(second.ID, list[0].ID)
	s.Equal(first.ID, list[1].ID)
}
