package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consumer_messages_processed_total",
			Help: "Total number of messages processed successfully",
		},
		[]string{"group"},
	)

	messagesRetriedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consumer_messages_retried_total",
			Help: "Total number of retryable handler failures",
		},
		[]string{"group"},
	)

	messagesFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consumer_messages_failed_total",
			Help: "Total number of permanent handler failures",
		},
		[]string{"group"},
	)

	messagesDLQTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consumer_messages_dlq_total",
			Help: "Total number of messages routed to a dead-letter topic",
		},
		[]string{"group"},
	)

	processingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "consumer_message_processing_duration_seconds",
			Help:    "Handler processing duration including retries",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"group", "topic"},
	)
)
