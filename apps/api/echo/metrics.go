package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "learnspace",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "HTTP requests handled, by method, route and status code.",
	}, []string{"method", "route", "code"})

	apiLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "learnspace",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latencies, by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	apiErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "learnspace",
		Subsystem: "api",
		Name:      "errors_total",
		Help:      "HTTP errors returned, by status text.",
	}, []string{"status"})

	submissionsSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "learnspace",
		Name:      "submissions_saved_total",
		Help:      "Submissions saved, by operation (create|update) and outcome (ok|conflict|error).",
	}, []string{"op", "outcome"})
)

func metricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			if err != nil {
				// let the error handler write the status first
				ctx.Error(err)
			}

			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			req := ctx.Request()
			apiRequests.WithLabelValues(req.Method, route, strconv.Itoa(ctx.Response().Status)).Inc()
			apiLatency.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
