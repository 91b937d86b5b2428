package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/d4l-data4life/go-svc/pkg/logging"

	"github.com/finora-labs/chat-sync/pkg/config"
)

// Metric definitions
// Ensure that this follows best practices for naming: https://prometheus.io/docs/practices/naming/
var (
	metricNamePrefix = "finora_chat_sync"
)

var (
	// RequestsTotal counts transport requests by method and outcome.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricNamePrefix,
		Name:      "requests_total",
		Help:      "Number of chat backend requests by method and response status.",
	}, []string{"method", "status"})

	// RetriesTotal counts retry sleeps performed by the repo policies.
	RetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricNamePrefix,
		Name:      "retries_total",
		Help:      "Number of retried chat backend requests.",
	})

	// MessagesSentTotal counts confirmed sent messages by role.
	MessagesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricNamePrefix,
		Name:      "messages_sent_total",
		Help:      "Number of messages confirmed by the backend, by role.",
	}, []string{"role"})

	// MessagesStoredTotal counts messages persisted by the backend, by role.
	MessagesStoredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricNamePrefix,
		Name:      "messages_stored_total",
		Help:      "Number of messages persisted by the backend, by role.",
	}, []string{"role"})
)

// AddBuildInfoMetric adds a static metric with the build information
func AddBuildInfoMetric() {
	err := prometheus.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: metricNamePrefix,
			Name:      "build_info",
			Help:      "A metric with a constant '1' value labeled by version, branch, commit, build date, and goversion.",
			ConstLabels: prometheus.Labels{
				"version":   config.Version,
				"branch":    config.Branch,
				"commit":    config.Commit,
				"goversion": config.GoVersion,
			},
		},
		func() float64 { return 1 },
	))
	if err != nil {
		logging.LogErrorf(err, "Error registering build info metric")
	}
}
