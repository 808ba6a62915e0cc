package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricInsert = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sylpheed_queue_insert_total",
			Help: "Messages inserted into the send queue, by result.",
		},
		[]string{"result"},
	)
	metricRemove = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sylpheed_queue_remove_total",
			Help: "Messages removed from the send queue, by result.",
		},
		[]string{"result"},
	)
)

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
