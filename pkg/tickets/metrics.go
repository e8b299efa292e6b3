package tickets

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// transitionsTotal counts ticket operations by action and outcome.
	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_transitions_total",
			Help: "Total number of ticket operations by action and outcome",
		},
		[]string{"category", "action", "outcome"},
	)

	// transcriptBytes is the size of exported transcripts.
	transcriptBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tickets_transcript_bytes",
			Help:    "Size of exported ticket transcripts",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)
)

func observe(category, action string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case IsConflict(err):
		outcome = "conflict"
	default:
		outcome = "error"
	}
	transitionsTotal.WithLabelValues(category, action, outcome).Inc()
}
