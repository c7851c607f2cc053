package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
	"github.com/conducthotline/hotline_services/internal/relay_service/repository"
)

// EventAdmin holds the organizer-facing operations on an event's chats and blocklist.
type EventAdmin struct {
	store  repository.Store
	audit  *AuditLogger
	logger *slog.Logger
}

func NewEventAdmin(store repository.Store, audit *AuditLogger, logger *slog.Logger) *EventAdmin {
	return &EventAdmin{
		store:  store,
		audit:  audit,
		logger: logger.With("component", "event_admin"),
	}
}

func (a *EventAdmin) EventBySlug(ctx context.Context, slug string) (*domain.Event, error) {
	event, err := a.store.Events().GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("event %q: %w", slug, domain.ErrNotFound)
	}
	return event, nil
}

func (a *EventAdmin) Member(ctx context.Context, event *domain.Event, memberID int64) (*domain.EventMember, error) {
	member, err := a.store.Members().GetByID(ctx, event.ID, memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, fmt.Errorf("member %d: %w", memberID, domain.ErrNotFound)
	}
	return member, nil
}

// BlockFromAuditLog blocks the reporter number recorded on an audit entry, so
// organizers can block someone without ever seeing their number. Blocking an
// already blocked number is a no-op.
func (a *EventAdmin) BlockFromAuditLog(ctx context.Context, event *domain.Event, auditLogID int64, actor domain.Actor) (*domain.BlockListEntry, error) {
	logEntry, err := a.store.AuditLogs().GetByID(ctx, event.ID, auditLogID)
	if err != nil {
		return nil, err
	}
	if logEntry == nil || logEntry.ReporterNumber == "" {
		return nil, fmt.Errorf("audit log entry %d with a reporter number: %w", auditLogID, domain.ErrNotFound)
	}

	entry := &domain.BlockListEntry{
		EventID:   event.ID,
		Number:    logEntry.ReporterNumber,
		BlockedBy: actor.Name,
		CreatedAt: time.Now().UTC(),
	}
	inserted, err := a.store.BlockList().Add(ctx, entry)
	if err != nil {
		return nil, err
	}
	if !inserted {
		a.logger.InfoContext(ctx, "Number already blocked", "event_id", event.ID, "number_last4", domain.Last4(entry.Number))
		return entry, nil
	}

	a.audit.Log(ctx, domain.AuditLogEntry{
		Kind:        domain.AuditNumberBlocked,
		Description: fmt.Sprintf("%s blocked the number ending in %s.", actor.Name, domain.Last4(entry.Number)),
		EventID:     eventRef(event),
		User:        actor.UserID,
	})
	return entry, nil
}

func (a *EventAdmin) Unblock(ctx context.Context, event *domain.Event, entryID int64, actor domain.Actor) error {
	entry, err := a.store.BlockList().Remove(ctx, event.ID, entryID)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("blocklist entry %d: %w", entryID, domain.ErrNotFound)
	}
	a.audit.Log(ctx, domain.AuditLogEntry{
		Kind:        domain.AuditNumberUnblocked,
		Description: fmt.Sprintf("%s unblocked the number ending in %s.", actor.Name, domain.Last4(entry.Number)),
		EventID:     eventRef(event),
		User:        actor.UserID,
	})
	return nil
}

func (a *EventAdmin) ListChats(ctx context.Context, event *domain.Event) ([]domain.SmsChatSummary, error) {
	return a.store.SmsChats().ListByEvent(ctx, event.ID)
}

// DeleteChat removes a chat and every connection to it, returning its relay to the pool.
func (a *EventAdmin) DeleteChat(ctx context.Context, event *domain.Event, chatID uuid.UUID, actor domain.Actor) error {
	chat, err := a.store.SmsChats().Delete(ctx, event.ID, chatID)
	if err != nil {
		return err
	}
	if chat == nil {
		return fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
	}

	a.logger.InfoContext(ctx, "Chat deleted", "smschat_id", chatID, "event_id", event.ID)
	a.audit.Log(ctx, domain.AuditLogEntry{
		Kind:        domain.AuditChatDeleted,
		Description: fmt.Sprintf("%s deleted the chat with the relay number %s.", actor.Name, chat.RelayNumber),
		EventID:     eventRef(event),
		User:        actor.UserID,
	})
	return nil
}
