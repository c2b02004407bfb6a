package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Analysis outcomes used as the "outcome" label.
const (
	outcomeCacheHit = "cache_hit"
	outcomeComputed = "computed"
	outcomeSkipped  = "skipped"
	outcomeFailed   = "failed"
	outcomeCanceled = "canceled"
)

var (
	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storyblok_devtools",
		Subsystem: "relations",
		Name:      "analyses_total",
		Help:      "Relation analyses by outcome",
	}, []string{"outcome"})

	analysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "storyblok_devtools",
		Subsystem: "relations",
		Name:      "analysis_duration_seconds",
		Help:      "Time from starting an analysis to publishing its result",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	datasetSizeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "storyblok_devtools",
		Subsystem: "relations",
		Name:      "dataset_stories",
		Help:      "Stories in the most recently fetched dataset",
	})
)
