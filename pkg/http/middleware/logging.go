package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	applogger "FinCast/pkg/logger"
)

// RequestLogging logs one line per request. 5xx are errors, 4xx warnings,
// everything else debug.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			fields := []applogger.Field{
				applogger.String("method", req.Method),
				applogger.String("route", routeOf(c)),
				applogger.String("uri", req.RequestURI),
				applogger.Int("status", status),
				applogger.Duration("duration_ms", time.Since(start)),
				applogger.String("remote", c.RealIP()),
			}
			switch {
			case status >= 500:
				l.Error("http request failed", append(fields, applogger.Error(err))...)
			case status >= 400:
				l.Warn("http request rejected", fields...)
			default:
				l.Debug("http request", fields...)
			}
			return nil
		}
	}
}
