// Package handler exposes the compliance service over HTTP.
package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service,Reloader,TokenRevoker

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"docbridge/internal/compliance/models"
	"docbridge/internal/compliance/service"
	dErrors "docbridge/pkg/domain-errors"
	"docbridge/pkg/platform/httputil"
	"docbridge/pkg/requestcontext"
)

// Service defines the interface for compliance operations.
type Service interface {
	Validate(ctx context.Context, req service.ValidateRequest) (*models.StoredReport, error)
	ValidateBatch(ctx context.Context, reqs []service.ValidateRequest) ([]service.BatchResult, error)
	GetReport(ctx context.Context, id uuid.UUID) (*models.StoredReport, error)
	ListReports(ctx context.Context, limit int) ([]*models.StoredReport, error)
	Requirements(countryCode string) (models.JurisdictionRequirement, error)
	Countries() []service.CountrySummary
}

// Reloader refreshes the requirements catalog on demand.
type Reloader interface {
	Reload(ctx context.Context) (int, error)
}

// TokenRevoker blocks a bearer token by its jti.
type TokenRevoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
}

// Handler wires compliance endpoints to the compliance service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a compliance handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the document endpoints. Callers wrap r with bearer auth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/compliance/validate", h.HandleValidate)
	r.Post("/compliance/validate/batch", h.HandleValidateBatch)
	r.Get("/compliance/reports", h.HandleListReports)
	r.Get("/compliance/reports/{id}", h.HandleGetReport)
}

// RegisterPublic mounts the read-only requirement listings.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/compliance/requirements", h.HandleListCountries)
	r.Get("/compliance/requirements/{country}", h.HandleGetRequirements)
}

// HandleValidate handles POST /compliance/validate requests.
// A non-compliant document is a 200 with is_compliant=false.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[ValidateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	stored, err := h.service.Validate(ctx, req.ToServiceRequest())
	if err != nil {
		h.logger.ErrorContext(ctx, "compliance validation failed",
			"request_id", requestID,
			"target_country", req.Metadata.TargetCountry,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "compliance validation completed",
		"request_id", requestID,
		"report_id", stored.ID,
		"compliant", stored.Report.IsCompliant,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromStoredReport(stored))
}

// HandleValidateBatch handles POST /compliance/validate/batch requests.
func (h *Handler) HandleValidateBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[BatchValidateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	results, err := h.service.ValidateBatch(ctx, req.ToServiceRequests())
	if err != nil {
		h.logger.ErrorContext(ctx, "compliance batch validation failed",
			"request_id", requestID,
			"documents", len(req.Documents),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := FromBatchResults(results)
	h.logger.InfoContext(ctx, "compliance batch completed",
		"request_id", requestID,
		"succeeded", resp.Succeeded,
		"failed", resp.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleGetReport handles GET /compliance/reports/{id} requests.
func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid report id"))
		return
	}

	stored, err := h.service.GetReport(ctx, id)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to get report",
				"request_id", requestID,
				"report_id", id,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromStoredReport(stored))
}

// HandleListReports handles GET /compliance/reports?limit=N requests.
func (h *Handler) HandleListReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	reports, err := h.service.ListReports(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list reports",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromStoredReports(reports))
}

// HandleListCountries handles GET /compliance/requirements requests.
func (h *Handler) HandleListCountries(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, FromCountries(h.service.Countries()))
}

// HandleGetRequirements handles GET /compliance/requirements/{country} requests.
func (h *Handler) HandleGetRequirements(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.Requirements(chi.URLParam(r, "country"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRequirement(req))
}
