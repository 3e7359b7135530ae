package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-order/internal/metrics"
)

// RequestLogger logs one line per request and records request metrics.
// Responses at or above errorStatus are logged at Error level.
func RequestLogger(logger *logrus.Logger, m *metrics.Metrics, errorStatus int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let echo write the error response so the status is final
				c.Error(err)
			}
			status := c.Response().Status
			elapsed := time.Since(start)
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			if m != nil {
				m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
				m.LatencyMS.WithLabelValues(route).Observe(float64(elapsed.Milliseconds()))
			}

			entry := logger.WithContext(c.Request().Context()).WithFields(logrus.Fields{
				"method":    c.Request().Method,
				"route":     route,
				"status":    status,
				"latencyMs": elapsed.Milliseconds(),
				"remoteIp":  c.RealIP(),
			})
			if uid := currentUserID(c); uid != "anon" {
				entry = entry.WithField("userId", uid)
			}
			if err != nil {
				entry = entry.WithError(err)
			}
			switch {
			case status >= errorStatus:
				entry.Error(http.StatusText(status))
			default:
				entry.Info(http.StatusText(status))
			}
			return nil
		}
	}
}
