package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, route pattern, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)
	// RateLimited counts requests rejected by the per-tenant limiter
	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "http_rate_limited_total", Help: "Requests rejected with 429."},
	)

	// PlanRuns counts clustering and routing runs by stage
	PlanRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "plan_runs_total", Help: "Plan stage runs by stage."},
		[]string{"stage"},
	)
	// PlanDuration records stage run time in seconds
	PlanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "plan_run_duration_seconds", Help: "Plan stage run time in seconds.", Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5}},
		[]string{"stage"},
	)
	// KMeansIterations tracks how many rounds clustering needed
	KMeansIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "kmeans_iterations", Help: "Assignment/update rounds per clustering run.", Buckets: []float64{1, 2, 3, 5, 8, 12, 16, 20, 50}},
	)
	// KMeansReseeds counts empty clusters re-seeded from a random point
	KMeansReseeds = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "kmeans_reseeds_total", Help: "Empty clusters re-seeded."},
	)
	// KMeansNotConverged counts runs that hit the iteration cap
	KMeansNotConverged = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "kmeans_not_converged_total", Help: "Clustering runs stopped by the iteration cap."},
	)
	// RouteDistance records the aggregate distance of routed plans
	RouteDistance = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "route_total_distance", Help: "Total distance across a plan's routes, in map units.", Buckets: prometheus.ExponentialBuckets(100, 2, 10)},
	)
	// PlansCached is the number of plans held in the in-process cache
	PlansCached = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "plans_cached", Help: "Plans currently cached."},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors to the dedicated registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration, RateLimited)
		Registry.MustRegister(PlanRuns, PlanDuration, KMeansIterations, KMeansReseeds, KMeansNotConverged, RouteDistance, PlansCached)
		Registry.MustRegister(WebhookDeliveries, WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
