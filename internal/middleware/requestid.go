package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequestIDKey is the echo.Context key holding the request id.
const RequestIDKey = "request_id"

// RequestID returns an Echo middleware that assigns each request an id for
// logging. An inbound X-Request-Id is reused; otherwise a UUID is generated.
// No response header is written: response headers belong to the origin.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Set(RequestIDKey, id)
			return next(c)
		}
	}
}

// requestIDFrom returns the id stored by RequestID, or empty string.
func requestIDFrom(c echo.Context) string {
	id, _ := c.Get(RequestIDKey).(string)
	return id
}
