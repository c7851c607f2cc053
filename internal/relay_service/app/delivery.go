package app

import (
	"context"
	"log/slog"

	"github.com/conducthotline/hotline_services/internal/relay_service/adapters/telephony"
	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
)

type outboundSMS struct {
	sender  string
	to      string
	message string
}

// delivery collects the side effects of one transaction. They are carried out
// only after the transaction commits.
type delivery struct {
	audits   []domain.AuditLogEntry
	messages []outboundSMS
}

// send has the domain.SendFunc signature so rooms can relay into the plan.
func (d *delivery) send(_ context.Context, sender, to, message string) error {
	d.messages = append(d.messages, outboundSMS{sender: sender, to: to, message: message})
	return nil
}

func (d *delivery) audit(entry domain.AuditLogEntry) {
	d.audits = append(d.audits, entry)
}

// dispatcher carries out a committed delivery plan.
type dispatcher struct {
	sender telephony.SMSSender
	audit  *AuditLogger
	logger *slog.Logger
}

func (o *dispatcher) flush(ctx context.Context, d *delivery) {
	if d == nil {
		return
	}
	for _, entry := range d.audits {
		o.audit.Log(ctx, entry)
	}
	for _, m := range d.messages {
		o.sendNoFail(ctx, m.sender, m.to, m.message)
	}
}

// sendNoFail logs and counts a failed send instead of returning it.
func (o *dispatcher) sendNoFail(ctx context.Context, sender, to, message string) {
	if err := o.sender.SendSMS(ctx, sender, to, message); err != nil {
		outboundSMSFailuresCounter.Inc()
		o.logger.ErrorContext(ctx, "Failed to send message for SMS relay",
			"sender", sender, "to_last4", domain.Last4(to), "error", err)
	}
}
