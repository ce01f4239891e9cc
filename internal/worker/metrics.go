package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK           = "ok"
	resultPushError    = "push_error"
	resultHandlerError = "handler_error"
	resultSchemaError  = "schema_error"
)

var (
	eventsPolled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chidori_worker_events_polled_total",
		Help: "Events handed out by the runtime and marked notified",
	})

	eventsAcknowledged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chidori_worker_events_acknowledged_total",
		Help: "Events successfully claimed",
	})

	ackFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chidori_worker_ack_failures_total",
		Help: "Claims rejected by the runtime",
	})

	responses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chidori_worker_responses_total",
		Help: "Handled events by result",
	}, []string{"result"})

	handlerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chidori_worker_handler_duration_seconds",
		Help:    "Time spent in handlers",
		Buckets: prometheus.DefBuckets,
	}, []string{"node"})
)
