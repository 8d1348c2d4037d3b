package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"rewrite-proxy-go/internal/config"
	"rewrite-proxy-go/internal/rewrite"
)

func TestHealthStatus(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	cfg := &config.Config{
		Upstream: config.UpstreamConfig{BaseURL: "https://origin.example.com"},
		Health:   config.HealthConfig{Service: "prompt-patcher"},
	}
	tbl, _ := rewrite.NewTable(rewrite.DefaultRules())
	h := NewHealthHandler(cfg, tbl)
	h.now = func() time.Time {
		return time.Date(2026, 3, 4, 5, 6, 7, 890_000_000, time.FixedZone("CET", 3600))
	}

	if err := h.Status(c); err != nil {
		t.Fatalf("Status() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := HealthStatus{
		Status:    "ok",
		Service:   "prompt-patcher",
		Target:    "https://origin.example.com",
		Rules:     3,
		Timestamp: "2026-03-04T04:06:07.890Z",
	}
	if body != want {
		t.Errorf("body = %+v, want %+v", body, want)
	}
}

func TestHealthMatches(t *testing.T) {
	tbl, _ := rewrite.NewTable(nil)

	tests := []struct {
		name   string
		cfg    config.HealthConfig
		method string
		path   string
		want   bool
	}{
		{"GET root", config.HealthConfig{}, http.MethodGet, "/", true},
		{"GET /health", config.HealthConfig{}, http.MethodGet, "/health", true},
		{"HEAD /health", config.HealthConfig{}, http.MethodHead, "/health", true},
		{"POST root is proxied", config.HealthConfig{}, http.MethodPost, "/", false},
		{"GET other path", config.HealthConfig{}, http.MethodGet, "/v1/models", false},
		{"GET /health/ is not /health", config.HealthConfig{}, http.MethodGet, "/health/", false},
		{"custom paths", config.HealthConfig{Paths: []string{"/ping"}}, http.MethodGet, "/ping", true},
		{"custom paths replace defaults", config.HealthConfig{Paths: []string{"/ping"}}, http.MethodGet, "/", false},
		{"disabled", config.HealthConfig{Disabled: true}, http.MethodGet, "/health", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(&config.Config{Health: tt.cfg}, tbl)
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			if got := h.Matches(req); got != tt.want {
				t.Errorf("Matches(%s %s) = %v, want %v", tt.method, tt.path, got, tt.want)
			}
		})
	}
}
