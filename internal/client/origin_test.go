package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rewrite-proxy-go/internal/config"
	"rewrite-proxy-go/internal/metrics"
)

func testClient(m *metrics.Metrics) *OriginClient {
	cfg := &config.Config{
		Upstream: config.UpstreamConfig{IdleConnections: 10},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewOriginClient(cfg, logger, m)
}

func TestOriginClient_Do(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := testClient(nil)

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/test", http.NoBody)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if resp.Status != "200 OK" {
		t.Errorf("Status = %q, want %q", resp.Status, "200 OK")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(body) != `{"status":"ok"}` {
		t.Errorf("body = %q, want %q", string(body), `{"status":"ok"}`)
	}
}

func TestOriginClient_Do_NoTransparentDecompression(t *testing.T) {
	var gotAcceptEncoding string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAcceptEncoding = r.Header.Get("Accept-Encoding")
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write([]byte("not really gzip"))
	}))
	defer srv.Close()

	c := testClient(nil)

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, http.NoBody)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if gotAcceptEncoding != "" {
		t.Errorf("Accept-Encoding = %q, want none added by the transport", gotAcceptEncoding)
	}
	if resp.Header.Get("Content-Encoding") != "gzip" {
		t.Errorf("Content-Encoding = %q, want %q passed through", resp.Header.Get("Content-Encoding"), "gzip")
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "not really gzip" {
		t.Errorf("body = %q, want raw origin bytes", string(body))
	}
}

func TestOriginClient_Do_RedirectNotFollowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/elsewhere" {
			t.Error("redirect was followed")
		}
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	c := testClient(nil)

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/start", http.NoBody)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusFound {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusFound)
	}
	if resp.Header.Get("Location") != "/elsewhere" {
		t.Errorf("Location = %q, want %q", resp.Header.Get("Location"), "/elsewhere")
	}
}

func TestOriginClient_Do_Error(t *testing.T) {
	m := metrics.New()
	c := testClient(m)

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://127.0.0.1:1/nonexistent", http.NoBody)
	_, err := c.Do(req)
	if err == nil {
		t.Fatal("Do() expected error for unreachable host, got nil")
	}

	families, gerr := m.Registry.Gather()
	if gerr != nil {
		t.Fatalf("Gather() error = %v", gerr)
	}
	for _, f := range families {
		if f.GetName() == "rewrite_proxy_upstream_errors_total" {
			if v := f.GetMetric()[0].GetCounter().GetValue(); v != 1 {
				t.Errorf("upstream errors = %v, want 1", v)
			}
			return
		}
	}
	t.Error("expected rewrite_proxy_upstream_errors_total in gathered metrics")
}

func TestOriginClient_Do_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Simulate a slow origin; the request should be canceled before this completes.
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/slow", http.NoBody)
	_, err := c.Do(req)
	if err == nil {
		t.Fatal("Do() expected error for canceled context, got nil")
	}
}

func TestOriginClient_Do_RecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	m := metrics.New()
	c := testClient(m)

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL, http.NoBody)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	_ = resp.Body.Close()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	for _, f := range families {
		if f.GetName() != "rewrite_proxy_upstream_responses_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["method"] == "POST" && labels["status_code"] == "418" {
				return
			}
		}
	}
	t.Error("expected rewrite_proxy_upstream_responses_total with method=POST, status_code=418")
}
