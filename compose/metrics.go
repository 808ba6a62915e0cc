package compose

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sylpheed_compose_writes_total",
			Help: "Message writes, by kind (compose, draft, redirect, queuefile) and result.",
		},
		[]string{"kind", "result"},
	)
	metricAttachmentSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sylpheed_compose_attachments_skipped_total",
			Help: "Attachments skipped because their source file could not be opened.",
		},
	)
	metricCharsetFallback = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sylpheed_compose_charset_fallbacks_total",
			Help: "Headers or bodies written in the internal charset after failed conversion to the outgoing charset.",
		},
	)
)

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
