package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var resultDropsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "navigator",
	Name:      "server_result_drops_total",
	Help:      "The total number of results the router discarded, by reason.",
}, []string{"reason"})

const (
	dropMailboxFull = "mailbox_full"
	dropStreamGone  = "stream_closed"
)
