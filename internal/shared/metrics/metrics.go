package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reset paths reported on the activity_resets_total counter.
const (
	ResetPathPerUser = "per_user"
	ResetPathBatch   = "batch"
)

var (
	registry = prometheus.NewRegistry()

	activityResets = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mealplan",
		Subsystem: "activity",
		Name:      "resets_total",
		Help:      "Weekly counter resets applied, by path.",
	}, []string{"path"})
	mealsGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mealplan",
		Subsystem: "activity",
		Name:      "meals_generated_total",
		Help:      "Meal generations counted against a weekly window.",
	})
	rateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mealplan",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by a rate guard, by source.",
	}, []string{"source"})
	batchResetDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mealplan",
		Subsystem: "activity",
		Name:      "batch_reset_duration_seconds",
		Help:      "Duration of scheduled batch resets.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})
	lastBatchReset = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mealplan",
		Subsystem: "activity",
		Name:      "last_batch_reset_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful batch reset.",
	})
	entitlementLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mealplan",
		Subsystem: "plans",
		Name:      "entitlement_lookups_total",
		Help:      "Entitlement lookups by cache result.",
	}, []string{"result"})
	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mealplan",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func init() {
	registry.MustRegister(
		activityResets,
		mealsGenerated,
		rateLimited,
		batchResetDuration,
		lastBatchReset,
		entitlementLookups,
		requestDuration,
	)
}

// Registry exposes the collector registry, mostly for tests.
func Registry() *prometheus.Registry {
	return registry
}

// IncActivityReset counts one reset on the given path.
func IncActivityReset(path string) {
	activityResets.WithLabelValues(path).Inc()
}

// AddBatchResetUsers records the rows touched by a batch reset.
func AddBatchResetUsers(n int64) {
	if n > 0 {
		activityResets.WithLabelValues(ResetPathBatch).Add(float64(n))
	}
	lastBatchReset.SetToCurrentTime()
}

// ObserveBatchResetDuration records how long a batch reset took.
func ObserveBatchResetDuration(d time.Duration) {
	batchResetDuration.Observe(d.Seconds())
}

// IncMealsGenerated counts one accepted generation.
func IncMealsGenerated() {
	mealsGenerated.Inc()
}

// IncRateLimited counts one rejected request.
func IncRateLimited(source string) {
	rateLimited.WithLabelValues(source).Inc()
}

// IncEntitlementLookup counts one entitlement lookup; result is "hit" or "miss".
func IncEntitlementLookup(result string) {
	entitlementLookups.WithLabelValues(result).Inc()
}

// ObserveRequest records one HTTP request.
func ObserveRequest(method, route, status string, d time.Duration) {
	requestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
