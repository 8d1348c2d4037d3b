package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rewrite-proxy-go/internal/config"
	"rewrite-proxy-go/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
// Every path is proxied; the health branch runs first and answers its own
// paths before any body is read.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, proxy *ProxyHandler, health *HealthHandler) {
	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	dispatch := func(c echo.Context) error {
		if health.Matches(c.Request()) {
			return health.Status(c)
		}
		return proxy.Handle(c)
	}
	e.Any("/", dispatch)
	e.Any("/*", dispatch)
}
