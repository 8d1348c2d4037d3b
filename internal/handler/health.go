// Package handler contains the Echo handlers for the health branch and the
// rewrite proxy.
package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"rewrite-proxy-go/internal/config"
	"rewrite-proxy-go/internal/rewrite"
)

// timestampLayout is ISO-8601 in UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// HealthStatus is the static document served on health paths.
type HealthStatus struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Target    string `json:"target"`
	Rules     int    `json:"rules"`
	Timestamp string `json:"timestamp"`
}

// HealthHandler serves the health document without touching the origin.
type HealthHandler struct {
	cfg   *config.Config
	rules *rewrite.Table
	paths map[string]bool
	now   func() time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, rules *rewrite.Table) *HealthHandler {
	paths := make(map[string]bool)
	if !cfg.Health.Disabled {
		for _, p := range cfg.HealthPaths() {
			paths[p] = true
		}
	}
	return &HealthHandler{
		cfg:   cfg,
		rules: rules,
		paths: paths,
		now:   time.Now,
	}
}

// Matches reports whether r should be answered by the health branch.
// Only GET and HEAD are intercepted; other methods on the same paths are proxied.
func (h *HealthHandler) Matches(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	return h.paths[r.URL.Path]
}

// Status returns the health document.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{
		Status:    "ok",
		Service:   h.cfg.Health.Service,
		Target:    h.cfg.Upstream.BaseURL,
		Rules:     h.rules.Len(),
		Timestamp: h.now().UTC().Format(timestampLayout),
	})
}
