package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"rewrite-proxy-go/internal/model"
)

// StripHopByHop returns an Echo middleware that removes hop-by-hop headers,
// including any named in the Connection header, from the inbound request
// before it is cloned for the origin.
func StripHopByHop() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			removeHopByHop(c.Request().Header)
			return next(c)
		}
	}
}

func removeHopByHop(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range model.HopByHopHeaders {
		h.Del(name)
	}
}
