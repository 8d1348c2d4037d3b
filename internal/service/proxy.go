// Package service implements the core rewrite-and-forward logic.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"rewrite-proxy-go/internal/client"
	"rewrite-proxy-go/internal/config"
	"rewrite-proxy-go/internal/metrics"
	"rewrite-proxy-go/internal/model"
	"rewrite-proxy-go/internal/rewrite"
)

// Doer sends a fully built outbound request.
type Doer interface {
	Do(req *http.Request) (*model.ProxyResponse, error)
}

var _ Doer = (*client.OriginClient)(nil)

// ProxyService rewrites request bodies and forwards requests to the origin.
type ProxyService struct {
	client  Doer
	rules   *rewrite.Table
	logger  *slog.Logger
	metrics *metrics.Metrics
	baseURL *url.URL
}

// NewProxyService creates a ProxyService for the configured origin.
// The metrics parameter is optional; pass nil to disable rewrite metrics.
func NewProxyService(c *client.OriginClient, rules *rewrite.Table, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*ProxyService, error) {
	return newProxyService(c, rules, cfg.Upstream.BaseURL, logger, m)
}

func newProxyService(c Doer, rules *rewrite.Table, baseURL string, logger *slog.Logger, m *metrics.Metrics) (*ProxyService, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream base_url %q is not an absolute URL", baseURL)
	}

	if m != nil {
		m.RewriteRulesTotal.Set(float64(rules.Len()))
	}

	return &ProxyService{
		client:  c,
		rules:   rules,
		logger:  logger.With("component", "proxy_service"),
		metrics: m,
		baseURL: u,
	}, nil
}

// Forward rewrites the request body, sends the request to the origin and
// returns the response. The caller is responsible for closing the response
// body. Origin responses with any status code are returned without error.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	out, err := s.buildOutbound(pr)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("forwarding request",
		"method", out.Method,
		"target", out.URL.Redacted(),
	)

	resp, err := s.client.Do(out)
	if err != nil {
		return nil, fmt.Errorf("forward to origin: %w", err)
	}
	return resp, nil
}

// buildOutbound derives the origin request from pr. Bodies of methods other
// than GET and HEAD are read fully and passed through the rule table once.
// pr itself is left untouched apart from draining its body.
func (s *ProxyService) buildOutbound(pr *model.ProxyRequest) (*http.Request, error) {
	target := s.targetURL(pr.Path, pr.RawPath, pr.RawQuery)

	header := pr.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}

	var body io.Reader = http.NoBody
	if carriesBody(pr.Method) && pr.Body != nil {
		raw, err := io.ReadAll(pr.Body)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}

		if len(raw) > 0 {
			rewritten := s.rewrite(string(raw))
			if rewritten != "" {
				body = strings.NewReader(rewritten)
				header.Set("Content-Length", strconv.Itoa(len(rewritten)))
			} else {
				header.Del("Content-Length")
			}
		} else {
			header.Del("Content-Length")
		}
	}

	ctx := pr.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	out, err := http.NewRequestWithContext(ctx, pr.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build origin request: %w", err)
	}
	out.Header = header
	out.Host = target.Host
	return out, nil
}

func (s *ProxyService) rewrite(body string) string {
	rewritten, n := s.rules.ApplyCount(body)

	s.logger.Debug("request body rewritten",
		"rules", s.rules.Len(),
		"substitutions", n,
		"bytes_in", len(body),
		"bytes_out", len(rewritten),
	)

	if s.metrics != nil {
		result := metrics.RewriteUnchanged
		if n > 0 {
			result = metrics.RewriteModified
		}
		s.metrics.BodyRewrites.WithLabelValues(result).Inc()
		s.metrics.Substitutions.Add(float64(n))
	}
	return rewritten
}

// targetURL returns {base}{path}{?query}. The inbound scheme and host are
// replaced by the origin's; any base path is kept as a prefix.
func (s *ProxyService) targetURL(path, rawPath, rawQuery string) *url.URL {
	u := *s.baseURL
	basePath := strings.TrimSuffix(s.baseURL.Path, "/")

	u.Path = basePath + path
	u.RawPath = ""
	if rawPath != "" {
		u.RawPath = strings.TrimSuffix(s.baseURL.EscapedPath(), "/") + rawPath
	}
	u.RawQuery = rawQuery
	u.ForceQuery = false
	u.Fragment = ""
	return &u
}

// carriesBody reports whether requests with this method have their body
// read and rewritten.
func carriesBody(method string) bool {
	return method != http.MethodGet && method != http.MethodHead
}
