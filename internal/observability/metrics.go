// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Feed metrics
	PollCycles       *prometheus.CounterVec
	PollDuration     prometheus.Histogram
	TokensFetched    prometheus.Counter
	TokensClaimed    prometheus.Counter
	TokensDuplicate  prometheus.Counter
	TokensInvalid    prometheus.Counter
	HotSetSize       prometheus.Gauge
	StreamReconnects prometheus.Counter

	// Risk metrics
	AssessmentsByLevel *prometheus.CounterVec

	// Dispatch metrics
	JobsCreated       prometheus.Counter
	DeliveriesByState *prometheus.CounterVec
	RateLimitPauses   prometheus.Counter
	SendLatency       prometheus.Histogram

	// Scan metrics
	ScansServed   prometheus.Counter
	ScansRejected *prometheus.CounterVec

	// Health metrics
	LastSuccessfulPoll prometheus.Gauge
	SubscribersActive  prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pumpfun_sentinel"
	}

	return &Metrics{
		// Feed metrics
		PollCycles: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "poll_cycles_total",
			Help:      "Total number of poll cycles by status",
		}, []string{"status"}),
		PollDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "poll_duration_seconds",
			Help:      "Poll cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		TokensFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "tokens_fetched_total",
			Help:      "Total number of token records fetched from the feed",
		}),
		TokensClaimed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "tokens_claimed_total",
			Help:      "Total number of tokens claimed as first sightings",
		}),
		TokensDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "tokens_duplicate_total",
			Help:      "Total number of token records dropped as already seen",
		}),
		TokensInvalid: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "tokens_invalid_total",
			Help:      "Total number of token records dropped as malformed",
		}),
		HotSetSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "hot_set_size",
			Help:      "Current number of addresses in the in-memory dedup set",
		}),
		StreamReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "stream_reconnects_total",
			Help:      "Total number of WebSocket stream reconnects",
		}),

		// Risk metrics
		AssessmentsByLevel: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "assessments_total",
			Help:      "Total number of risk assessments by overall level",
		}, []string{"level"}),

		// Dispatch metrics
		JobsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "jobs_created_total",
			Help:      "Total number of notification jobs created",
		}),
		DeliveriesByState: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "deliveries_total",
			Help:      "Total number of delivery outcomes by final state",
		}, []string{"state"}),
		RateLimitPauses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "rate_limit_pauses_total",
			Help:      "Total number of channel-wide rate limit pauses",
		}),
		SendLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "send_latency_seconds",
			Help:      "Delivery send latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Scan metrics
		ScansServed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "served_total",
			Help:      "Total number of interactive scans served",
		}),
		ScansRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "rejected_total",
			Help:      "Total number of interactive scans rejected by reason",
		}, []string{"reason"}),

		// Health metrics
		LastSuccessfulPoll: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_poll_timestamp",
			Help:      "Unix timestamp of the last successful poll cycle",
		}),
		SubscribersActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "subscribers_active",
			Help:      "Number of subscribers currently eligible for alerts",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPollCycle records one completed poll cycle.
func RecordPollCycle(status string, durationSeconds float64) {
	DefaultMetrics.PollCycles.WithLabelValues(status).Inc()
	DefaultMetrics.PollDuration.Observe(durationSeconds)
}

// RecordTokensFetched adds to the fetched counter.
func RecordTokensFetched(n int) {
	DefaultMetrics.TokensFetched.Add(float64(n))
}

// RecordTokenClaimed increments the claimed counter.
func RecordTokenClaimed() {
	DefaultMetrics.TokensClaimed.Inc()
}

// RecordTokenDuplicate increments the duplicate counter.
func RecordTokenDuplicate() {
	DefaultMetrics.TokensDuplicate.Inc()
}

// RecordTokenInvalid increments the invalid counter.
func RecordTokenInvalid() {
	DefaultMetrics.TokensInvalid.Inc()
}

// RecordAssessment increments the per-level assessment counter.
func RecordAssessment(level string) {
	DefaultMetrics.AssessmentsByLevel.WithLabelValues(level).Inc()
}

// RecordDeliveries records a batch of delivery outcomes.
func RecordDeliveries(delivered, retrying, failed int) {
	DefaultMetrics.DeliveriesByState.WithLabelValues("DELIVERED").Add(float64(delivered))
	DefaultMetrics.DeliveriesByState.WithLabelValues("RETRYING").Add(float64(retrying))
	DefaultMetrics.DeliveriesByState.WithLabelValues("FAILED").Add(float64(failed))
}

// RecordJobsCreated adds to the jobs created counter.
func RecordJobsCreated(n int) {
	DefaultMetrics.JobsCreated.Add(float64(n))
}

// RecordRateLimitPause increments the channel-wide pause counter.
func RecordRateLimitPause() {
	DefaultMetrics.RateLimitPauses.Inc()
}

// ObserveSendLatency records one delivery attempt's latency.
func ObserveSendLatency(seconds float64) {
	DefaultMetrics.SendLatency.Observe(seconds)
}

// RecordStreamReconnect increments the WebSocket reconnect counter.
func RecordStreamReconnect() {
	DefaultMetrics.StreamReconnects.Inc()
}

// RecordScan records an interactive scan attempt; reason is empty for
// a served scan.
func RecordScan(reason string) {
	if reason == "" {
		DefaultMetrics.ScansServed.Inc()
		return
	}
	DefaultMetrics.ScansRejected.WithLabelValues(reason).Inc()
}

// UpdateHotSetSize updates the dedup set size gauge.
func UpdateHotSetSize(n int) {
	DefaultMetrics.HotSetSize.Set(float64(n))
}

// UpdateActiveSubscribers updates the active subscribers gauge.
func UpdateActiveSubscribers(n int) {
	DefaultMetrics.SubscribersActive.Set(float64(n))
}
