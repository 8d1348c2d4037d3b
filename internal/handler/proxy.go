package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"rewrite-proxy-go/internal/model"
	"rewrite-proxy-go/internal/service"
)

// ProxyContentType is the Content-Type of proxy error responses.
const ProxyContentType = "text/plain; charset=utf-8"

// relayBufferSize is the read size used when streaming origin bodies.
const relayBufferSize = 32 * 1024

// Forwarder sends a request to the origin.
type Forwarder interface {
	Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error)
}

var _ Forwarder = (*service.ProxyService)(nil)

// ProxyHandler forwards requests to the origin and streams responses back.
type ProxyHandler struct {
	service Forwarder
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle proxies the request to the origin and streams the response back.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	h.logger.Debug("inbound request", "method", req.Method, "path", req.URL.Path)

	pr := &model.ProxyRequest{
		Ctx:      req.Context(),
		Method:   req.Method,
		Path:     req.URL.Path,
		RawPath:  req.URL.RawPath,
		RawQuery: req.URL.RawQuery,
		Header:   req.Header,
		Body:     req.Body,
	}

	resp, err := h.service.Forward(pr)
	if err != nil {
		return h.proxyError(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	h.logger.Info("origin response", "status", resp.StatusCode, "path", req.URL.Path)

	h.relay(c, resp)
	return nil
}

// relay writes the origin's status and headers, then streams the body,
// flushing after every chunk so event streams reach the client as they are
// produced. If the copy fails mid-stream the status has already been sent,
// so the client sees a truncated response; the error is only logged.
func (h *ProxyHandler) relay(c echo.Context, resp *model.ProxyResponse) {
	w := c.Response()

	// Origin values replace anything middleware set under the same key.
	dst := w.Header()
	for key, vals := range resp.Header {
		dst[key] = append([]string(nil), vals...)
	}
	for _, hh := range model.HopByHopHeaders {
		dst.Del(hh)
	}

	w.WriteHeader(resp.StatusCode)

	// Flush through the underlying writer: echo.Response.Flush panics when
	// flushing is unsupported.
	rc := http.NewResponseController(w.Writer)
	if _, err := copyFlush(w, rc, resp.Body); err != nil {
		h.logger.Error("streaming response body",
			"err", err,
			"path", c.Request().URL.Path,
		)
	}
}

// copyFlush copies src to w and flushes rc after each write.
func copyFlush(w io.Writer, rc *http.ResponseController, src io.Reader) (int64, error) {
	buf := make([]byte, relayBufferSize)

	var written int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			m, werr := w.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				return written, werr
			}
			if ferr := rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
				return written, ferr
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

// proxyError converts any forwarding failure into a 502 carrying its message.
func (h *ProxyHandler) proxyError(c echo.Context, err error) error {
	h.logger.Error("proxy error",
		"err", err,
		"method", c.Request().Method,
		"path", c.Request().URL.Path,
	)

	return c.Blob(http.StatusBadGateway, ProxyContentType, []byte("Proxy Error: "+err.Error()))
}
