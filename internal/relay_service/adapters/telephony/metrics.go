package telephony

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerRequestDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hotline_telephony",
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of HTTP requests to the telephony provider.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider_name", "operation"},
	)

	smsThrottledCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hotline_telephony",
			Name:      "sms_throttled_total",
			Help:      "SMS attempts rejected by the provider for throughput and retried.",
		},
		[]string{"provider_name"},
	)
)
