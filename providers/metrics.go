package providers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	carrierRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "carrier",
		Name:      "requests_total",
		Help:      "Carrier API calls by operation and outcome",
	}, []string{"operation", "outcome"}) // outcome: ok / transport / api / request_setup

	carrierRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storefront",
		Subsystem: "carrier",
		Name:      "request_duration_seconds",
		Help:      "Carrier API call latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)

func observeCarrierCall(operation, outcome string, d time.Duration) {
	carrierRequestsTotal.WithLabelValues(operation, outcome).Inc()
	carrierRequestDuration.WithLabelValues(operation).Observe(d.Seconds())
}
