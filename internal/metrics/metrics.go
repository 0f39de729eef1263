package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var (
	// Pipeline latencies: local stages finish in microseconds, remote calls
	// are bounded by their 2s/5s/10s deadlines
	durationBuckets = []float64{
		0.0005, 0.001, 0.005, 0.01,
		0.05, 0.1, 0.25, 0.5,
		1, 2.5, 5, 10,
	}

	// StageTotal counts outcomes per pipeline stage, e.g. "classifier_block"
	StageTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "safety_moderation_stage_total",
			Help: "Number of moderation outcomes per pipeline stage",
		},
		[]string{"stage"},
	)

	// StageDuration observes how long each stage took
	StageDuration = promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "safety_moderation_duration_seconds",
			Help:    "Duration of moderation pipeline stages",
			Buckets: durationBuckets,
		},
		[]string{"stage"},
	)

	// EscalationTotal counts report escalation actions, e.g. "recheck" or "auto_delete"
	EscalationTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "safety_escalation_total",
			Help: "Number of report escalation actions",
		},
		[]string{"action"},
	)
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Inc increments the outcome counter for a stage
func Inc(stage string) {
	StageTotal.WithLabelValues(stage).Inc()
}

// Timer starts timing a stage; call the returned func when the stage ends
func Timer(stage string) func() {
	start := time.Now()
	return func() {
		StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
