package service

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/layer-3/authrelay/internal/metrics"
)

// Response outcomes seen by the requester.
const (
	outcomeSigned           = "signed"
	outcomeError            = "error"
	outcomeInvalidSignature = "invalid_signature"
)

type engineMetrics struct {
	requestsSent     prometheus.Counter
	requestsReceived prometheus.Counter
	responses        *prometheus.CounterVec
	verifyDuration   prometheus.Histogram
}

func newEngineMetrics(r *metrics.ComponentRegistry) *engineMetrics {
	return &engineMetrics{
		requestsSent: r.NewCounter(prometheus.CounterOpts{
			Name: "requests_sent_total",
			Help: "Auth requests published by this requester",
		}),
		requestsReceived: r.NewCounter(prometheus.CounterOpts{
			Name: "requests_received_total",
			Help: "Auth requests accepted as pending by this responder",
		}),
		responses: r.NewCounterVec(prometheus.CounterOpts{
			Name: "responses_total",
			Help: "Auth responses received, by outcome",
		}, []string{"outcome"}),
		verifyDuration: r.NewHistogram(prometheus.HistogramOpts{
			Name:    "signature_verification_seconds",
			Help:    "Time spent verifying Cacao signatures",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
