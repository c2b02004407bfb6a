package storyblok

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storyblok_devtools",
		Subsystem: "cdn",
		Name:      "requests_total",
		Help:      "CDN requests by resource and outcome",
	}, []string{"resource", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storyblok_devtools",
		Subsystem: "cdn",
		Name:      "request_duration_seconds",
		Help:      "CDN request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"resource"})

	pagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "storyblok_devtools",
		Subsystem: "cdn",
		Name:      "pages_fetched_total",
		Help:      "Story listing pages fetched",
	})
)
