package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/conducthotline/hotline_services/internal/platform/messagebroker"
	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
)

const (
	InboundSMSSubjectPrefix = "sms.incoming.raw."
	InboundSMSSubject       = InboundSMSSubjectPrefix + "*"
	RelayQueueGroup         = "relay_service_group"

	handoffTimeout = 5 * time.Second
)

// MessageProcessor handles one inbound SMS. *Router implements it.
type MessageProcessor interface {
	Process(ctx context.Context, msg domain.InboundSMS) error
}

// SMSConsumer reads inbound SMS from NATS and hands them to a bounded channel
// drained by the workers.
type SMSConsumer struct {
	subscriber messagebroker.Subscriber
	logger     *slog.Logger
	outputChan chan<- domain.InboundSMS
}

func NewSMSConsumer(subscriber messagebroker.Subscriber, logger *slog.Logger, outputChan chan<- domain.InboundSMS) *SMSConsumer {
	return &SMSConsumer{
		subscriber: subscriber,
		logger:     logger.With("component", "sms_consumer"),
		outputChan: outputChan,
	}
}

// StartConsuming blocks until ctx is cancelled or the subscription fails.
func (c *SMSConsumer) StartConsuming(ctx context.Context, subject, queueGroup string) error {
	c.logger.InfoContext(ctx, "Starting NATS subscription", "subject", subject, "queue_group", queueGroup)
	err := c.subscriber.SubscribeToSubjectWithQueue(ctx, subject, queueGroup, func(msg *nats.Msg) {
		natsInboundSMSReceivedCounter.WithLabelValues(subject).Inc()
		c.handleMsg(ctx, msg)
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "NATS subscription failed", "error", err, "subject", subject)
		return err
	}
	c.logger.InfoContext(ctx, "NATS subscription ended", "subject", subject)
	return nil
}

func (c *SMSConsumer) handleMsg(ctx context.Context, msg *nats.Msg) {
	provider := strings.TrimPrefix(msg.Subject, InboundSMSSubjectPrefix)
	if provider == msg.Subject || provider == "" || strings.ContainsAny(provider, ".*>") {
		c.logger.ErrorContext(ctx, "Invalid NATS subject for inbound SMS", "subject", msg.Subject)
		return
	}

	var sms domain.InboundSMS
	if err := json.Unmarshal(msg.Data, &sms); err != nil {
		c.logger.ErrorContext(ctx, "Failed to decode inbound SMS", "error", err, "subject", msg.Subject)
		return
	}
	if sms.From == "" || sms.To == "" {
		c.logger.ErrorContext(ctx, "Inbound SMS is missing a number", "subject", msg.Subject, "message_id", sms.MessageID)
		return
	}
	if sms.Provider == "" {
		sms.Provider = provider
	}

	sendCtx, cancel := context.WithTimeout(ctx, handoffTimeout)
	defer cancel()
	select {
	case c.outputChan <- sms:
		c.logger.DebugContext(ctx, "Inbound SMS handed to workers", "provider", sms.Provider, "message_id", sms.MessageID)
	case <-sendCtx.Done():
		c.logger.ErrorContext(ctx, "Timed out handing inbound SMS to workers", "provider", sms.Provider, "message_id", sms.MessageID, "error", sendCtx.Err())
	}
}

// RunWorkers drains in with n workers until ctx is cancelled. A failed message is
// logged and dropped; it never stops a worker.
func RunWorkers(ctx context.Context, n int, in <-chan domain.InboundSMS, processor MessageProcessor, logger *slog.Logger) error {
	if n < 1 {
		n = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		worker := i
		g.Go(func() error {
			for {
				select {
				case msg := <-in:
					if err := processor.Process(gctx, msg); err != nil {
						logger.ErrorContext(gctx, "Failed to process inbound SMS",
							"worker", worker, "provider", msg.Provider, "message_id", msg.MessageID, "error", err)
					}
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		})
	}
	return g.Wait()
}
