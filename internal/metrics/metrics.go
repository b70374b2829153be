// Package metrics exposes Prometheus instrumentation for recommendation requests
// and dataset snapshot reloads.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
)

var (
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kusuri_recommendations_total",
			Help: "Total number of recommendation requests by outcome",
		},
		[]string{"outcome"},
	)

	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kusuri_recommendation_duration_seconds",
			Help:    "Duration of the scoring pipeline in seconds",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1},
		},
	)

	RecommendationResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kusuri_recommendation_results",
			Help:    "Number of results returned per successful request",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	SnapshotReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kusuri_snapshot_reloads_total",
			Help: "Total number of dataset snapshot loads by result",
		},
		[]string{"result"},
	)

	SnapshotRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kusuri_snapshot_records",
			Help: "Number of records in the snapshot currently being served",
		},
	)
)

// RecordRecommendation records one finished request.
func RecordRecommendation(outcome string, duration time.Duration, results int) {
	RecommendationsTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeOK {
		return
	}
	RecommendationDuration.Observe(duration.Seconds())
	RecommendationResults.Observe(float64(results))
}

// RecordSnapshotLoad records a snapshot load attempt. records is ignored when err is non-nil.
func RecordSnapshotLoad(records int, err error) {
	if err != nil {
		SnapshotReloadsTotal.WithLabelValues("error").Inc()
		return
	}
	SnapshotReloadsTotal.WithLabelValues("ok").Inc()
	SnapshotRecords.Set(float64(records))
}
