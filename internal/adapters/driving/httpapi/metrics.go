package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors are package-level and registered once: every Server shares
// them, so constructing a second server (tests included) never trips
// duplicate registration.
var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_http_requests_total",
			Help: "HTTP requests handled, by method, path and status code.",
		},
		[]string{"method", "path", "status"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "quarry_http_request_duration_seconds",
			Help: "HTTP request latency in seconds.",
		},
		[]string{"method", "path"},
	)
	workflowStages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_workflow_stages_total",
			Help: "Workflow stages entered by streaming chat requests.",
		},
		[]string{"stage"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal)
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(workflowStages)
}
