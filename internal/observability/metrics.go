package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline outcome labels.
const (
	ResultSuccess   = "success"
	ResultFailure   = "failure"
	ResultMalformed = "malformed"
	ResultQueueOnly = "queue_only"
	ResultSkipped   = "skipped"
)

var (
	publishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goldsite_publish_total",
			Help: "Blog publication attempts by outcome.",
		},
		[]string{"result"},
	)

	indexingTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goldsite_indexing_total",
			Help: "Indexing queue notifications by outcome.",
		},
		[]string{"result"},
	)

	siteFilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goldsite_sitefiles_regenerations_total",
			Help: "Site file regeneration runs by outcome.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(publishTotal, indexingTotal, siteFilesTotal)
}

// ObservePublish counts one publication attempt.
func ObservePublish(result string) { publishTotal.WithLabelValues(result).Inc() }

// ObserveIndexing counts one indexing notification.
func ObserveIndexing(result string) { indexingTotal.WithLabelValues(result).Inc() }

// ObserveSiteFiles counts one regeneration run.
func ObserveSiteFiles(result string) { siteFilesTotal.WithLabelValues(result).Inc() }
