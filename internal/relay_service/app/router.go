package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/conducthotline/hotline_services/internal/platform/distlock"
	"github.com/conducthotline/hotline_services/internal/relay_service/adapters/telephony"
	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
	"github.com/conducthotline/hotline_services/internal/relay_service/repository"
)

// ConversationLocker serializes processing of one (sender, relay) pair across workers.
type ConversationLocker interface {
	Lock(ctx context.Context, key string) (distlock.Unlock, error)
}

// Router resolves inbound SMS to conversations and relays them.
type Router struct {
	store    repository.Store
	pool     *NumberPool
	verifier *Verifier
	out      *dispatcher
	locker   ConversationLocker
	logger   *slog.Logger
}

func NewRouter(store repository.Store, pool *NumberPool, verifier *Verifier, sender telephony.SMSSender, audit *AuditLogger, logger *slog.Logger) *Router {
	logger = logger.With("component", "relay_router")
	return &Router{
		store:    store,
		pool:     pool,
		verifier: verifier,
		out:      &dispatcher{sender: sender, audit: audit, logger: logger},
		logger:   logger,
	}
}

// WithLocker makes Process hold a per-conversation lock while routing.
func (r *Router) WithLocker(locker ConversationLocker) *Router {
	r.locker = locker
	return r
}

// Process is the boundary handler for one inbound SMS. Conversation errors are
// answered with a canned reply and are not returned.
func (r *Router) Process(ctx context.Context, msg domain.InboundSMS) error {
	start := time.Now()
	defer func() { relayProcessingDurationHist.Observe(time.Since(start).Seconds()) }()

	logger := r.logger.With("provider", msg.Provider, "message_id", msg.MessageID, "relay", msg.To)

	d, err := r.commitLocked(ctx, msg, logger)
	var convErr *domain.ConversationError
	if errors.As(err, &convErr) {
		relayMessagesProcessedCounter.WithLabelValues("rejected").Inc()
		logger.InfoContext(ctx, "Conversation could not be started", "reason", convErr.Kind.String())
		r.HandleConversationError(ctx, convErr, msg.From, msg.To)
		return nil
	}
	if err != nil {
		relayMessagesProcessedCounter.WithLabelValues("error").Inc()
		logger.ErrorContext(ctx, "Failed to route inbound SMS", "error", err)
		return err
	}

	r.out.flush(ctx, d)
	return nil
}

// commitLocked runs the routing transaction while holding the conversation lock.
// The lock is released before anything is sent.
func (r *Router) commitLocked(ctx context.Context, msg domain.InboundSMS, logger *slog.Logger) (*delivery, error) {
	if r.locker == nil {
		return r.commit(ctx, msg.From, msg.To, msg.Text)
	}
	unlock, err := r.locker.Lock(ctx, "conversation:"+msg.From+":"+msg.To)
	if err != nil {
		return nil, fmt.Errorf("lock conversation: %w", err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			logger.WarnContext(ctx, "Failed to release conversation lock", "error", err)
		}
	}()
	return r.commit(ctx, msg.From, msg.To, msg.Text)
}

// HandleConversationError sends the apology matching err's kind from relay to sender.
// Blocked senders get no reply.
func (r *Router) HandleConversationError(ctx context.Context, err *domain.ConversationError, sender, relay string) {
	conversationErrorsCounter.WithLabelValues(err.Kind.String()).Inc()
	var reply string
	switch err.Kind {
	case domain.EventDoesNotExist:
		reply = textSMSNoEvent
	case domain.NumberBlocked:
		return
	case domain.NoOrganizersAvailable:
		reply = textSMSNoMembers
	case domain.NoRelaysAvailable:
		reply = textSMSNoRelays
	default:
		r.logger.ErrorContext(ctx, "Unhandled conversation error kind", "kind", err.Kind.String())
		return
	}
	r.out.sendNoFail(ctx, relay, sender, reply)
}

// HandleMessage routes text from sender, received on relay. Everything it
// persists happens in one transaction; messages and audit entries go out only
// after that transaction commits.
func (r *Router) HandleMessage(ctx context.Context, sender, relay, text string) error {
	d, err := r.commit(ctx, sender, relay, text)
	if err != nil {
		return err
	}
	r.out.flush(ctx, d)
	return nil
}

// commit runs the routing transaction and returns its side effects unsent.
func (r *Router) commit(ctx context.Context, sender, relay, text string) (*delivery, error) {
	var (
		d       *delivery
		outcome string
	)
	attempt := func() error {
		d = &delivery{}
		return r.store.WithinTx(ctx, func(tx repository.Store) error {
			var err error
			outcome, err = r.route(ctx, tx, d, sender, relay, text)
			return err
		})
	}

	err := attempt()
	if errors.Is(err, domain.ErrConflict) {
		txConflictRetriesCounter.Inc()
		r.logger.WarnContext(ctx, "Conflicting concurrent write, retrying", "relay", relay, "error", err)
		err = attempt()
		if errors.Is(err, domain.ErrConflict) {
			r.logger.ErrorContext(ctx, "Conflict persisted after retry", "relay", relay, "error", err)
			return nil, domain.ErrNoRelaysAvailable
		}
	}
	if err != nil {
		return nil, err
	}

	relayMessagesProcessedCounter.WithLabelValues(outcome).Inc()
	return d, nil
}

func (r *Router) route(ctx context.Context, tx repository.Store, d *delivery, sender, relay, text string) (string, error) {
	handled, err := r.verifier.handle(ctx, tx, d, sender, text)
	if err != nil {
		return "", err
	}
	if handled {
		return "verification", nil
	}

	chat, err := tx.SmsChats().FindByUserAndRelay(ctx, sender, relay)
	if err != nil {
		return "", fmt.Errorf("find chat: %w", err)
	}
	if chat == nil {
		return "created", r.createConversation(ctx, tx, d, sender, relay, text)
	}
	if isStopCommand(text) {
		return "opt_out", r.optOut(ctx, tx, d, chat, sender, relay)
	}
	if err := chat.Room.Relay(ctx, sender, text, d.send); err != nil {
		return "", fmt.Errorf("relay in chat %s: %w", chat.ID, err)
	}
	return "relayed", nil
}

func isStopCommand(text string) bool {
	return strings.ToLower(strings.TrimSpace(text)) == "stop"
}

// optOut removes sender from the chat. When at most one participant remains the
// chat is orphaned: its remaining connections go too, but the chat record stays
// so its relay is not handed to the event again until the chat is deleted.
func (r *Router) optOut(ctx context.Context, tx repository.Store, d *delivery, chat *domain.SmsChat, sender, relay string) error {
	room := chat.Room
	if err := room.Relay(ctx, sender, textSMSLeftChat, d.send); err != nil {
		return fmt.Errorf("notify chat %s: %w", chat.ID, err)
	}
	removed, _ := room.RemoveParticipant(sender)

	if err := tx.SmsChats().UpdateRoom(ctx, chat); err != nil {
		return err
	}
	if err := tx.SmsChats().DeleteConnection(ctx, chat.ID, sender, relay); err != nil {
		return err
	}
	if room.Len() <= 1 {
		r.logger.InfoContext(ctx, "Chat orphaned by opt-out", "smschat_id", chat.ID, "remaining", room.Len())
		if err := tx.SmsChats().DeleteConnections(ctx, chat.ID); err != nil {
			return err
		}
	}

	eventID := chat.EventID
	d.audit(domain.AuditLogEntry{
		Kind: domain.AuditParticipantLeftChat,
		Description: fmt.Sprintf("%s has left the chat room with relay number %s. The last 4 digits of their number is %s",
			removed.Name, removed.Relay, domain.Last4(removed.Number)),
		EventID: &eventID,
	})
	_ = d.send(ctx, relay, sender, textSMSStopCompleted)
	return nil
}

func (r *Router) createConversation(ctx context.Context, tx repository.Store, d *delivery, sender, relay, text string) error {
	event, err := tx.Events().GetByPrimaryNumber(ctx, relay)
	if err != nil {
		return fmt.Errorf("find event: %w", err)
	}
	if event == nil {
		return domain.ErrEventDoesNotExist
	}

	blocked, err := tx.BlockList().IsBlocked(ctx, event.ID, sender)
	if err != nil {
		return fmt.Errorf("check blocklist: %w", err)
	}
	if blocked {
		return domain.ErrNumberBlocked
	}

	organizers, err := tx.Members().ListVerified(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("list organizers: %w", err)
	}
	if len(organizers) == 0 {
		return domain.ErrNoOrganizersAvailable
	}

	relayNumber, err := r.pool.FindUnusedRelayNumber(ctx, tx, event, memberNumbers(organizers))
	if err != nil {
		return fmt.Errorf("find relay number: %w", err)
	}
	if relayNumber == "" {
		return domain.ErrNoRelaysAvailable
	}

	room := domain.NewChatroom()
	room.AddParticipant(reporterName, sender, relay)
	for _, o := range organizers {
		room.AddParticipant(o.Name, o.Number, relayNumber)
	}

	chat, err := tx.SmsChats().Create(ctx, event.ID, relayNumber, room)
	if err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "New conversation started", "smschat_id", chat.ID, "event_id", event.ID, "relay_number", relayNumber)

	d.audit(domain.AuditLogEntry{
		Kind:           domain.AuditSMSConversationStarted,
		Description:    fmt.Sprintf("A new sms conversation was started. Last 4 digits of number is %s", domain.Last4(sender)),
		EventID:        eventRef(event),
		ReporterNumber: sender,
	})

	greeting := event.SMSGreeting
	if strings.TrimSpace(greeting) == "" {
		greeting = textSMSDefaultGreeting(event.Name)
	}
	_ = d.send(ctx, relay, sender, greeting)
	_ = d.send(ctx, relay, sender, textSMSOptOut)
	for _, o := range organizers {
		_ = d.send(ctx, relayNumber, o.Number, textSMSIntroduction(event.Name, domain.Last4(sender)))
	}

	if err := room.Relay(ctx, sender, text, d.send); err != nil {
		return fmt.Errorf("relay first message: %w", err)
	}
	return nil
}
