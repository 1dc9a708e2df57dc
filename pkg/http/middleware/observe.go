// Package middleware carries the echo middleware shared by the API server.
package middleware

import (
	"strconv"
	"sync"
	"time"

	applogger "MacroPulse/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "macropulse_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "macropulse_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"route", "method"},
	)

	regOnce sync.Once
)

// Observe records request metrics and logs completions.
// Route labels come from c.Path() so templated paths keep cardinality low.
func Observe(l *applogger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	regOnce.Do(func() {
		prometheus.MustRegister(httpRequestsTotal, httpRequestDuration)
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			method := c.Request().Method
			status := c.Response().Status
			elapsed := time.Since(start)

			httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())

			if l == nil {
				return err
			}
			switch {
			case status >= 500:
				l.Error("http request failed",
					applogger.String("route", route),
					applogger.String("method", method),
					applogger.Int("status", status),
					applogger.Duration("duration", elapsed))
			case slowThreshold > 0 && elapsed >= slowThreshold:
				l.Warn("http request slow",
					applogger.String("route", route),
					applogger.String("method", method),
					applogger.Int("status", status),
					applogger.Duration("duration", elapsed))
			default:
				l.Debug("http request",
					applogger.String("route", route),
					applogger.String("method", method),
					applogger.Int("status", status),
					applogger.Duration("duration", elapsed))
			}
			return err
		}
	}
}
