package pathservice

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "navigator"

var (
	requestsSubmittedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "path_requests_submitted_total",
		Help:      "The total number of path requests accepted by SubmitPathRequests.",
	})

	resultsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "path_results_total",
		Help:      "The total number of path results produced, by outcome.",
	}, []string{"outcome"})

	searchDurationHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "path_search_duration_seconds",
		Help:      "Time a worker spent answering one path request.",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
	})

	nodesExpandedHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "path_nodes_expanded",
		Help:      "Number of nodes expanded by one search.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	})

	resultDropsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "path_result_drops_total",
		Help:      "The total number of results that could not be delivered to the outbound queue.",
	})
)

func outcomeLabel(found bool) string {
	if found {
		return "found"
	}
	return "not_found"
}
