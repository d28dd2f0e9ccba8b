// Package metrics exposes mirror run counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/dukex/chanmirror/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chanmirror"

// Recorder turns run results into metrics.
type Recorder struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	items       *prometheus.CounterVec
	channels    *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
}

// NewRecorder registers the mirror metrics plus the Go runtime and process
// collectors on a private registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Mirror runs by outcome (completed, skipped, failed).",
		}, []string{"workflow_id", "outcome", "reason"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Target blocks touched by mirror runs.",
		}, []string{"workflow_id", "kind"}),
		channels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channels_processed_total",
			Help:      "Channels whose history was fetched.",
		}, []string{"workflow_id"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of completed mirror runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"workflow_id"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last completed run.",
		}, []string{"workflow_id"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.runs,
		r.items,
		r.channels,
		r.runDuration,
		r.lastSuccess,
	)

	return r
}

// ObserveRun records a finished run, skipped or not.
func (r *Recorder) ObserveRun(stats *models.RunStats) {
	if stats.Skipped {
		r.runs.WithLabelValues(stats.WorkflowID, "skipped", string(stats.Reason)).Inc()

		return
	}

	r.runs.WithLabelValues(stats.WorkflowID, "completed", "").Inc()

	r.items.WithLabelValues(stats.WorkflowID, "message").Add(float64(stats.MessagesSynced))
	r.items.WithLabelValues(stats.WorkflowID, "reply").Add(float64(stats.RepliesSynced))
	r.items.WithLabelValues(stats.WorkflowID, "update").Add(float64(stats.MessagesUpdated))
	r.items.WithLabelValues(stats.WorkflowID, "deletion").Add(float64(stats.DeletionsMarked))
	r.channels.WithLabelValues(stats.WorkflowID).Add(float64(stats.ChannelsProcessed))
	r.runDuration.WithLabelValues(stats.WorkflowID).Observe(stats.Duration.Seconds())
	r.lastSuccess.WithLabelValues(stats.WorkflowID).Set(float64(stats.FinishedAt.Unix()))
}

// ObserveFailure records a run that returned an error.
func (r *Recorder) ObserveFailure(workflowID string) {
	r.runs.WithLabelValues(workflowID, "failed", "").Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
