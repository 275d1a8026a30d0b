// Package metrics holds the Prometheus collectors for the transcoding pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsHandledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidshare_events_handled_total",
		Help: "Pipeline events handled by source and outcome",
	}, []string{"source", "outcome"})

	StatusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidshare_status_transitions_total",
		Help: "Video status updates written, by target status",
	}, []string{"status"})

	JobsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidshare_transcode_jobs_submitted_total",
		Help: "Transcoding jobs submitted to MediaConvert",
	})

	IndexFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidshare_search_index_failures_total",
		Help: "Search index upserts that failed",
	})
)

// Event outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeDropped = "dropped"
	OutcomeFailed  = "failed"
)

// IncEvent records one handled event.
func IncEvent(source, outcome string) {
	if source == "" {
		source = "unknown"
	}
	EventsHandledTotal.WithLabelValues(source, outcome).Inc()
}

// IncTransition records a status write.
func IncTransition(status string) {
	StatusTransitionsTotal.WithLabelValues(status).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
