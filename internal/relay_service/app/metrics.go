package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	natsInboundSMSReceivedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relay_service",
			Name:      "nats_messages_received_total",
			Help:      "Total inbound SMS messages received from NATS.",
		},
		[]string{"subject"},
	)

	relayMessagesProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relay_service",
			Name:      "messages_processed_total",
			Help:      "Inbound SMS messages routed, by outcome.",
		},
		[]string{"outcome"}, // relayed, created, opt_out, verification, rejected, error
	)

	relayProcessingDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "relay_service",
			Name:      "message_processing_duration_seconds",
			Help:      "Time spent routing one inbound SMS, including outbound sends.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	conversationErrorsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relay_service",
			Name:      "conversation_errors_total",
			Help:      "Conversations that could not be started, by reason.",
		},
		[]string{"kind"},
	)

	txConflictRetriesCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relay_service",
			Name:      "tx_conflict_retries_total",
			Help:      "Transactions retried after a unique constraint conflict.",
		},
	)

	outboundSMSFailuresCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relay_service",
			Name:      "outbound_sms_failures_total",
			Help:      "Outbound SMS sends that failed and were dropped.",
		},
	)

	auditLogFailuresCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relay_service",
			Name:      "audit_log_failures_total",
			Help:      "Audit log entries that could not be persisted.",
		},
	)

	voiceCallsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relay_service",
			Name:      "voice_calls_total",
			Help:      "Voice webhooks answered, by outcome.",
		},
		[]string{"outcome"},
	)
)
