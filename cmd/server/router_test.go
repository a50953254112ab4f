package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docbridge/internal/compliance/catalog"
	"docbridge/internal/compliance/catalog/refresher"
	"docbridge/internal/compliance/catalog/source"
	"docbridge/internal/compliance/evaluator"
	"docbridge/internal/compliance/handler"
	"docbridge/internal/compliance/service"
	"docbridge/internal/compliance/store"
	httpmetrics "docbridge/internal/platform/metrics"
	"docbridge/pkg/platform/middleware/admin"
	"docbridge/pkg/platform/middleware/auth"
	"docbridge/pkg/platform/middleware/ratelimit"
	"docbridge/pkg/testutil"
)

const (
	testSigningKey = "router-test-signing-key-0123456789abcdef"
	testAdminToken = "router-test-admin-token"
)

type testServer struct {
	handler   http.Handler
	validator *auth.HMACValidator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cat := catalog.New()
	ref := refresher.New(cat, source.SeedSource(), 0, refresher.WithLogger(log))
	_, err := ref.RefreshNow(context.Background())
	require.NoError(t, err)

	ev, err := evaluator.New(cat)
	require.NoError(t, err)
	svc, err := service.New(ev, cat, store.NewInMemoryStore(), service.WithLogger(log))
	require.NoError(t, err)

	validator, err := auth.NewHMACValidator(testSigningKey, "docbridge", "docbridge-api")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	h := newRouter(routerDeps{
		logger:         log,
		registry:       reg,
		httpMetrics:    httpmetrics.NewWithRegisterer(reg),
		limiter:        ratelimit.New(1000, 1000),
		validator:      validator,
		adminToken:     testAdminToken,
		allowedOrigins: []string{"http://localhost:3000"},
		compliance:     handler.New(svc, log),
		admin:          handler.NewAdmin(ref, log),
		health:         &health{refresher: ref, catalog: cat},
	})
	return &testServer{handler: h, validator: validator}
}

func (s *testServer) bearer(t *testing.T, req *http.Request) *http.Request {
	t.Helper()
	token, err := s.validator.Issue("user-42", time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func degreeBody() map[string]any {
	return map[string]any{
		"text": "Bachelor of Science conferred on 12 May 2021. Signed by the Registrar.",
		"metadata": map[string]any{
			"document_type":  "degree",
			"source_country": "IN",
			"target_country": "US",
		},
	}
}

func TestRouter(t *testing.T) {
	srv := newTestServer(t)

	t.Run("health reports the loaded catalog", func(t *testing.T) {
		rr := testutil.DoRequest(srv.handler, testutil.NewRequest(t, http.MethodGet, "/healthz"))
		testutil.AssertStatus(t, rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[healthResponse](t, rr)
		assert.Equal(t, "ok", resp.Status)
		assert.Positive(t, resp.CatalogCountries)
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	})

	t.Run("requirements are public", func(t *testing.T) {
		rr := testutil.DoRequest(srv.handler, testutil.NewRequest(t, http.MethodGet, "/compliance/requirements/us"))
		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("validation needs a bearer token", func(t *testing.T) {
		rr := testutil.DoRequest(srv.handler, testutil.NewJSONRequest(t, http.MethodPost, "/compliance/validate", degreeBody()))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("validated report is readable by its subject", func(t *testing.T) {
		req := srv.bearer(t, testutil.NewJSONRequest(t, http.MethodPost, "/compliance/validate", degreeBody()))
		rr := testutil.DoRequest(srv.handler, req)
		testutil.AssertStatus(t, rr, http.StatusOK)
		report := testutil.UnmarshalResponse[handler.ReportResponse](t, rr)
		assert.False(t, report.Report.IsCompliant)

		get := srv.bearer(t, testutil.NewRequest(t, http.MethodGet, "/compliance/reports/"+report.ID))
		rr = testutil.DoRequest(srv.handler, get)
		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("admin reload needs the operator token", func(t *testing.T) {
		rr := testutil.DoRequest(srv.handler, testutil.NewRequest(t, http.MethodPost, "/admin/compliance/catalog/reload"))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)

		req := testutil.NewRequest(t, http.MethodPost, "/admin/compliance/catalog/reload")
		req.Header.Set(admin.HeaderAdminToken, testAdminToken)
		rr = testutil.DoRequest(srv.handler, req)
		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("metrics are exposed", func(t *testing.T) {
		rr := testutil.DoRequest(srv.handler, testutil.NewRequest(t, http.MethodGet, "/metrics"))
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Contains(t, rr.Body.String(), "docbridge_http_requests_total")
	})
}

type fixedStatus struct {
	at  time.Time
	err error
}

func (f fixedStatus) Status() (time.Time, error) { return f.at, f.err }

func TestHealthUnavailable(t *testing.T) {
	testutil.Given(t, "a catalog that never loaded", func(t *testing.T) {
		h := &health{refresher: fixedStatus{err: errors.New("s3 unreachable")}, catalog: catalog.New()}

		testutil.When(t, "health is requested", func(t *testing.T) {
			rr := testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/healthz"))

			testutil.Then(t, "it is a 503 naming the catalog error", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
				resp := testutil.UnmarshalResponse[healthResponse](t, rr)
				assert.Equal(t, "s3 unreachable", resp.CatalogError)
				assert.Nil(t, resp.CatalogLoadedAt)
			})
		})
	})

	testutil.Given(t, "a loaded catalog with a failing database", func(t *testing.T) {
		cat := catalog.New()
		require.NoError(t, cat.Load(source.Seed()))
		h := &health{
			refresher: fixedStatus{at: time.Now()},
			catalog:   cat,
			database:  func(context.Context) error { return errors.New("connection refused") },
			redis:     func(context.Context) error { return nil },
		}

		testutil.When(t, "health is requested", func(t *testing.T) {
			rr := testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/healthz"))

			testutil.Then(t, "it is a 503 with per-dependency status", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
				resp := testutil.UnmarshalResponse[healthResponse](t, rr)
				assert.Equal(t, "ok", resp.Dependencies["redis"])
				assert.Contains(t, resp.Dependencies["postgres"], "connection refused")
			})
		})
	})
}
