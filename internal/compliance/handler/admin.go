package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	dErrors "docbridge/pkg/domain-errors"
	"docbridge/pkg/platform/httputil"
	"docbridge/pkg/requestcontext"
)

const maxRevocationTTL = 30 * 24 * time.Hour

// AdminHandler serves operator endpoints.
type AdminHandler struct {
	reloader Reloader
	revoker  TokenRevoker
	logger   *slog.Logger
}

// AdminOption configures an AdminHandler.
type AdminOption func(*AdminHandler)

// WithTokenRevoker enables POST /admin/tokens/revoke.
func WithTokenRevoker(r TokenRevoker) AdminOption {
	return func(h *AdminHandler) {
		h.revoker = r
	}
}

func NewAdmin(reloader Reloader, logger *slog.Logger, opts ...AdminOption) *AdminHandler {
	h := &AdminHandler{reloader: reloader, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts admin endpoints. Callers wrap r with the admin token middleware.
func (h *AdminHandler) Register(r chi.Router) {
	r.Post("/admin/compliance/catalog/reload", h.HandleReload)
	if h.revoker != nil {
		r.Post("/admin/tokens/revoke", h.HandleRevokeToken)
	}
}

// HandleReload handles POST /admin/compliance/catalog/reload requests.
// On failure the previous catalog stays active.
func (h *AdminHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	n, err := h.reloader.Reload(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "catalog reload failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "catalog reloaded",
		"request_id", requestID,
		"countries", n,
	)
	httputil.WriteJSON(w, http.StatusOK, ReloadResponse{
		Countries:  n,
		ReloadedAt: requestcontext.Now(ctx),
	})
}

// RevokeTokenRequest is the HTTP request body for POST /admin/tokens/revoke.
type RevokeTokenRequest struct {
	JTI        string `json:"jti"`
	TTLSeconds int    `json:"ttl_seconds"`
}

func (r *RevokeTokenRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.JTI = strings.TrimSpace(r.JTI)
	if r.JTI == "" || len(r.JTI) > 128 {
		return dErrors.New(dErrors.CodeValidation, "jti is required and must be at most 128 characters")
	}
	if r.TTLSeconds <= 0 || time.Duration(r.TTLSeconds)*time.Second > maxRevocationTTL {
		return dErrors.New(dErrors.CodeValidation, "ttl_seconds must be between 1 and 2592000")
	}
	return nil
}

// HandleRevokeToken handles POST /admin/tokens/revoke requests.
func (h *AdminHandler) HandleRevokeToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RevokeTokenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.revoker.Revoke(ctx, req.JTI, time.Duration(req.TTLSeconds)*time.Second); err != nil {
		h.logger.ErrorContext(ctx, "token revocation failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke token"))
		return
	}
	h.logger.InfoContext(ctx, "token revoked",
		"request_id", requestID,
		"jti", req.JTI,
	)
	w.WriteHeader(http.StatusNoContent)
}
