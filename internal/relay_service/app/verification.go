package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/conducthotline/hotline_services/internal/relay_service/adapters/telephony"
	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
	"github.com/conducthotline/hotline_services/internal/relay_service/repository"
)

var verificationReplies = map[string]bool{"ok": true, "yes": true, "okay": true}

// Verifier runs the reply challenge that proves a member controls their number.
type Verifier struct {
	store         repository.Store
	out           *dispatcher
	virtualNumber string
	logger        *slog.Logger
}

// NewVerifier builds a Verifier. virtualNumber is the hotline-wide sender used for
// members of events that have no primary number yet.
func NewVerifier(store repository.Store, sender telephony.SMSSender, audit *AuditLogger, virtualNumber string, logger *slog.Logger) *Verifier {
	logger = logger.With("component", "verifier")
	return &Verifier{
		store:         store,
		out:           &dispatcher{sender: sender, audit: audit, logger: logger},
		virtualNumber: virtualNumber,
		logger:        logger,
	}
}

// StartMemberVerification texts the member the confirmation challenge.
func (v *Verifier) StartMemberVerification(ctx context.Context, event *domain.Event, member *domain.EventMember) error {
	sender := v.senderFor(event)
	if sender == "" {
		return fmt.Errorf("no sender number configured for event %d", event.ID)
	}
	if err := v.out.sender.SendSMS(ctx, sender, member.Number, textVerificationChallenge(event.Name)); err != nil {
		v.logger.ErrorContext(ctx, "Failed to send verification challenge", "member_id", member.ID, "error", err)
		return fmt.Errorf("send verification challenge: %w", err)
	}
	v.logger.InfoContext(ctx, "Verification challenge sent", "member_id", member.ID, "event_id", event.ID)
	return nil
}

// MaybeHandleVerification consumes text when number belongs to a member still
// pending verification. It reports whether the message was consumed.
func (v *Verifier) MaybeHandleVerification(ctx context.Context, number, text string) (bool, error) {
	d := &delivery{}
	var handled bool
	err := v.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		handled, err = v.handle(ctx, tx, d, number, text)
		return err
	})
	if err != nil {
		return false, err
	}
	v.out.flush(ctx, d)
	return handled, nil
}

// handle is MaybeHandleVerification inside an existing transaction. Replies are
// queued on d rather than sent.
func (v *Verifier) handle(ctx context.Context, tx repository.Store, d *delivery, number, text string) (bool, error) {
	member, err := tx.Members().FindPendingByNumber(ctx, number)
	if err != nil {
		return false, fmt.Errorf("find pending member: %w", err)
	}
	if member == nil {
		return false, nil
	}

	if !verificationReplies[strings.ToLower(strings.TrimSpace(text))] {
		// Consumed all the same; the member stays pending.
		v.logger.InfoContext(ctx, "Verification reply was not a confirmation", "member_id", member.ID)
		return true, nil
	}

	if err := tx.Members().MarkVerified(ctx, member.ID); err != nil {
		return false, err
	}
	event, err := tx.Events().GetByID(ctx, member.EventID)
	if err != nil {
		return false, err
	}

	d.audit(domain.AuditLogEntry{
		Kind:        domain.AuditMemberNumberVerified,
		Description: fmt.Sprintf("%s verified their number ending in %s.", member.Name, domain.Last4(member.Number)),
		EventID:     eventRef(event),
	})
	if sender := v.senderFor(event); sender != "" {
		_ = d.send(ctx, sender, number, textVerificationReply)
	} else {
		v.logger.WarnContext(ctx, "No sender number for verification reply", "member_id", member.ID)
	}
	v.logger.InfoContext(ctx, "Member number verified", "member_id", member.ID, "event_id", member.EventID)
	return true, nil
}

// senderFor prefers the event's own number over the hotline virtual number.
func (v *Verifier) senderFor(event *domain.Event) string {
	if event != nil && event.PrimaryNumber != "" {
		return event.PrimaryNumber
	}
	return v.virtualNumber
}
