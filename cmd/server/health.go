package main

import (
	"context"
	"net/http"
	"time"

	"docbridge/pkg/platform/httputil"
)

type catalogStatus interface {
	Status() (time.Time, error)
}

type catalogSize interface {
	Loaded() bool
	Len() int
}

// health reports readiness. The service is unhealthy until the catalog has
// loaded once; dependency probes are reported but only the database fails it.
type health struct {
	refresher catalogStatus
	catalog   catalogSize
	database  func(context.Context) error
	redis     func(context.Context) error
}

type healthResponse struct {
	Status           string            `json:"status"`
	CatalogCountries int               `json:"catalog_countries"`
	CatalogLoadedAt  *time.Time        `json:"catalog_loaded_at,omitempty"`
	CatalogError     string            `json:"catalog_error,omitempty"`
	Dependencies     map[string]string `json:"dependencies"`
}

func (h *health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:           "ok",
		CatalogCountries: h.catalog.Len(),
		Dependencies:     map[string]string{},
	}
	lastSuccess, lastErr := h.refresher.Status()
	if !lastSuccess.IsZero() {
		resp.CatalogLoadedAt = &lastSuccess
	}
	if lastErr != nil {
		resp.CatalogError = lastErr.Error()
	}
	if !h.catalog.Loaded() {
		resp.Status = "unavailable"
	}

	if h.database != nil {
		resp.Dependencies["postgres"] = probe(ctx, h.database)
		if resp.Dependencies["postgres"] != "ok" {
			resp.Status = "unavailable"
		}
	}
	if h.redis != nil {
		resp.Dependencies["redis"] = probe(ctx, h.redis)
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}

func probe(ctx context.Context, check func(context.Context) error) string {
	if err := check(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
