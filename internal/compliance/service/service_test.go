package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"docbridge/internal/compliance/catalog"
	"docbridge/internal/compliance/evaluator"
	"docbridge/internal/compliance/metrics"
	"docbridge/internal/compliance/models"
	"docbridge/internal/compliance/publisher"
	"docbridge/internal/compliance/service/mocks"
	dErrors "docbridge/pkg/domain-errors"
	"docbridge/pkg/platform/sentinel"
	"docbridge/pkg/requestcontext"
)

// =============================================================================
// Compliance Service Test Suite
// =============================================================================
// The evaluator and catalog are real; persistence and event publishing are
// mocked so tests can assert what gets stored and emitted.

const documentText = "Bachelor of Technology conferred on 15 June 2020. Signed by the Registrar under the official seal."

var requestTime = time.Date(2025, time.June, 1, 9, 30, 0, 0, time.UTC)

type ServiceSuite struct {
	suite.Suite
	ctrl          *gomock.Controller
	mockStore     *mocks.MockReportStore
	mockPublisher *mocks.MockEventPublisher
	catalog       *catalog.Catalog
	metrics       *metrics.Metrics
	service       *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = mocks.NewMockReportStore(s.ctrl)
	s.mockPublisher = mocks.NewMockEventPublisher(s.ctrl)
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())

	s.catalog = catalog.New()
	s.Require().NoError(s.catalog.Load([]models.JurisdictionRequirement{
		{TargetCountry: "US", CountryName: "United States", AcceptedDocumentTypes: []string{"degree"}, ApostilleRequired: true, ApostilleSeverity: models.SeverityCritical},
		{TargetCountry: "GB", CountryName: "United Kingdom", AcceptedDocumentTypes: []string{"degree"}},
	}))
	ev, err := evaluator.New(s.catalog)
	s.Require().NoError(err)

	s.service, err = New(ev, s.catalog, s.mockStore,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithPublisher(s.mockPublisher),
		WithBatchLimits(2, 3),
	)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) ctx() context.Context {
	ctx := requestcontext.WithTime(context.Background(), requestTime)
	ctx = requestcontext.WithRequestID(ctx, "req-123")
	return requestcontext.WithSubject(ctx, "user-1")
}

func degreeRequest(target string, certs ...string) ValidateRequest {
	return ValidateRequest{
		Text: documentText,
		Metadata: models.DocumentMetadata{
			DocumentType:   "Degree",
			SourceCountry:  "in",
			TargetCountry:  target,
			Certifications: certs,
		},
	}
}

// =============================================================================
// Constructor Tests (Invariant Enforcement)
// =============================================================================

func (s *ServiceSuite) TestNew() {
	ev, err := evaluator.New(s.catalog)
	s.Require().NoError(err)

	s.Run("nil evaluator returns error", func() {
		_, err := New(nil, s.catalog, s.mockStore)
		s.ErrorContains(err, "evaluator is required")
	})

	s.Run("nil catalog returns error", func() {
		_, err := New(ev, nil, s.mockStore)
		s.ErrorContains(err, "catalog is required")
	})

	s.Run("nil store returns error", func() {
		_, err := New(ev, s.catalog, nil)
		s.ErrorContains(err, "store is required")
	})

	s.Run("defaults to discarding events", func() {
		svc, err := New(ev, s.catalog, s.mockStore)
		s.Require().NoError(err)
		s.IsType(publisher.NopPublisher{}, svc.publisher)
	})
}

// =============================================================================
// Validate
// =============================================================================

func (s *ServiceSuite) TestValidate() {
	s.Run("non-compliant document is stored and published", func() {
		var saved *models.StoredReport
		s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, r *models.StoredReport) error {
				saved = r
				return nil
			})
		s.mockPublisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e publisher.ReportEvent) error {
				s.Equal(saved.ID.String(), e.ReportID)
				s.False(e.IsCompliant)
				return nil
			})

		stored, err := s.service.Validate(s.ctx(), degreeRequest("us", "hrd_attestation"))

		s.Require().NoError(err)
		s.Same(saved, stored)
		s.False(stored.Report.IsCompliant)
		s.Equal(80, stored.Report.ComplianceScore)
		s.Equal("US", stored.TargetCountry)
		s.Equal("IN", stored.SourceCountry)
		s.Equal("degree", stored.DocumentType)
		s.Equal("user-1", stored.Subject)
		s.Equal("req-123", stored.RequestID)
		s.True(requestTime.Equal(stored.CreatedAt))
		s.True(requestTime.Equal(stored.Report.EvaluatedAt))
		s.True(strings.HasPrefix(stored.Reference, "CR-"))
		s.Len(stored.Reference, len("CR-")+referenceLength)
		s.Equal(1.0, promtest.ToFloat64(s.metrics.Validations.WithLabelValues("US", "non_compliant")))
		s.Equal(1.0, promtest.ToFloat64(s.metrics.Findings.WithLabelValues("error", "apostille")))
	})

	s.Run("configuration error is returned without storing", func() {
		_, err := s.service.Validate(s.ctx(), degreeRequest(""))

		s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
		s.Equal(1.0, promtest.ToFloat64(s.metrics.Validations.WithLabelValues("unknown", "error")))
	})

	s.Run("countries outside the catalog share one metric label", func() {
		s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil).Times(2)
		s.mockPublisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(2)
		before := promtest.CollectAndCount(s.metrics.Validations)

		for _, target := range []string{"Atlantis", "zz-made-up-country"} {
			_, err := s.service.Validate(s.ctx(), degreeRequest(target))
			s.Require().NoError(err)
		}

		s.Equal(before+1, promtest.CollectAndCount(s.metrics.Validations))
		s.Equal(2.0, promtest.ToFloat64(s.metrics.Validations.WithLabelValues("unknown", "compliant")))
	})

	s.Run("store failure is internal and nothing is published", func() {
		s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

		_, err := s.service.Validate(s.ctx(), degreeRequest("US", "apostille"))

		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("publish failure does not fail validation", func() {
		s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
		s.mockPublisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker unreachable"))

		stored, err := s.service.Validate(s.ctx(), degreeRequest("US", "apostille"))

		s.Require().NoError(err)
		s.True(stored.Report.IsCompliant)
		s.Equal(1.0, promtest.ToFloat64(s.metrics.PublishFailures))
	})
}

func (s *ServiceSuite) TestValidateWrapsUncodedEvaluatorErrors() {
	mockEvaluator := mocks.NewMockEvaluator(s.ctrl)
	svc, err := New(mockEvaluator, s.catalog, s.mockStore)
	s.Require().NoError(err)

	mockEvaluator.EXPECT().ValidateDocumentAt(documentText, gomock.Any(), requestTime).Return(nil, errors.New("boom"))

	_, err = svc.Validate(s.ctx(), degreeRequest("US"))

	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

// =============================================================================
// ValidateBatch
// =============================================================================

func (s *ServiceSuite) TestValidateBatch() {
	s.Run("results keep input order and failures stay isolated", func() {
		s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil).Times(2)
		s.mockPublisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(2)

		results, err := s.service.ValidateBatch(s.ctx(), []ValidateRequest{
			degreeRequest("US"),
			degreeRequest(""),
			degreeRequest("GB"),
		})

		s.Require().NoError(err)
		s.Require().Len(results, 3)
		s.Require().NoError(results[0].Err)
		s.Equal("US", results[0].Report.TargetCountry)
		s.Nil(results[1].Report)
		s.True(dErrors.HasCode(results[1].Err, dErrors.CodeConfiguration))
		s.Require().NoError(results[2].Err)
		s.Equal("GB", results[2].Report.TargetCountry)
	})

	s.Run("empty batch is rejected", func() {
		_, err := s.service.ValidateBatch(s.ctx(), nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("oversized batch is rejected", func() {
		reqs := make([]ValidateRequest, 4)
		_, err := s.service.ValidateBatch(s.ctx(), reqs)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("cancelled context fails every entry", func() {
		ctx, cancel := context.WithCancel(s.ctx())
		cancel()

		results, err := s.service.ValidateBatch(ctx, []ValidateRequest{degreeRequest("US"), degreeRequest("GB")})

		s.Require().NoError(err)
		for _, r := range results {
			s.ErrorIs(r.Err, context.Canceled)
		}
	})
}

// =============================================================================
// Queries
// =============================================================================

func (s *ServiceSuite) TestGetReport() {
	id := uuid.New()

	s.Run("missing report is not found", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), id).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.GetReport(s.ctx(), id)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("another subject's report is not found", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), id).Return(&models.StoredReport{ID: id, Subject: "user-2"}, nil)

		_, err := s.service.GetReport(s.ctx(), id)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("store failure is internal", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), id).Return(nil, errors.New("db down"))

		_, err := s.service.GetReport(s.ctx(), id)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("own report is returned", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), id).Return(&models.StoredReport{ID: id, Subject: "user-1"}, nil)

		report, err := s.service.GetReport(s.ctx(), id)
		s.Require().NoError(err)
		s.Equal(id, report.ID)
	})
}

func (s *ServiceSuite) TestListReports() {
	s.Run("requires a subject", func() {
		_, err := s.service.ListReports(context.Background(), 10)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("clamps the limit", func() {
		s.mockStore.EXPECT().ListBySubject(gomock.Any(), "user-1", maxListLimit).Return([]*models.StoredReport{}, nil)

		reports, err := s.service.ListReports(s.ctx(), 10_000)
		s.Require().NoError(err)
		s.Empty(reports)
	})

	s.Run("defaults the limit", func() {
		s.mockStore.EXPECT().ListBySubject(gomock.Any(), "user-1", defaultListLimit).Return(nil, nil)

		_, err := s.service.ListReports(s.ctx(), 0)
		s.Require().NoError(err)
	})
}

func (s *ServiceSuite) TestRequirementsAndCountries() {
	req, err := s.service.Requirements(" gb ")
	s.Require().NoError(err)
	s.Equal("GB", req.TargetCountry)

	_, err = s.service.Requirements("ZZ")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.service.Requirements("")
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	s.Equal([]CountrySummary{
		{Code: "GB", Name: "United Kingdom"},
		{Code: "US", Name: "United States"},
	}, s.service.Countries())
}
