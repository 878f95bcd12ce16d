// Package metrics exposes Prometheus counters for the API and the
// workflow orchestrator.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clynto",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "clynto",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	taskTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clynto",
		Name:      "task_transitions_total",
		Help:      "Task status changes by source and target status.",
	}, []string{"from", "to"})

	assignments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clynto",
		Name:      "playbook_assignments_total",
		Help:      "Playbooks assigned to awaiting accounts.",
	}, []string{"playbook"})

	onboardingCompletions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "clynto",
		Name:      "onboarding_completions_total",
		Help:      "Onboarding sessions completed.",
	})
)

// RecordTransition counts a task status change.
func RecordTransition(from, to string) {
	taskTransitions.WithLabelValues(from, to).Inc()
}

// RecordAssignment counts a playbook assignment.
func RecordAssignment(playbookID string) {
	assignments.WithLabelValues(playbookID).Inc()
}

// RecordOnboardingCompleted counts a finished onboarding session.
func RecordOnboardingCompleted() {
	onboardingCompletions.Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency per route template.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			code := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					code = he.Code
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
			httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
