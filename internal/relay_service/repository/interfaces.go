package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
)

// Lookups return (nil, nil) when nothing matches.

type EventRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Event, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Event, error)
	GetByPrimaryNumber(ctx context.Context, number string) (*domain.Event, error)
	// GetByIDForUpdate locks the event row for the rest of the transaction.
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Event, error)
	// SetPrimaryNumber assigns number, or clears the assignment when number is nil.
	SetPrimaryNumber(ctx context.Context, eventID int64, number *domain.Number) error
}

type MemberRepository interface {
	GetByID(ctx context.Context, eventID, memberID int64) (*domain.EventMember, error)
	GetByNumber(ctx context.Context, number string) (*domain.EventMember, error)
	FindPendingByNumber(ctx context.Context, number string) (*domain.EventMember, error)
	ListVerified(ctx context.Context, eventID int64) ([]domain.EventMember, error)
	MarkVerified(ctx context.Context, memberID int64) error
}

type NumberRepository interface {
	ListUnusedEventNumbers(ctx context.Context, country string, limit int) ([]domain.Number, error)
	// LockUnusedEventNumber claims the first unused EVENT number of country for the
	// current transaction, skipping rows other transactions hold.
	LockUnusedEventNumber(ctx context.Context, country string) (*domain.Number, error)
	ListUnusedRelayNumbers(ctx context.Context, country string, excluded []string, limit int) ([]domain.Number, error)
}

type SmsChatRepository interface {
	// FindByUserAndRelay resolves a lookup entry and locks its routing record.
	FindByUserAndRelay(ctx context.Context, userNumber, relayNumber string) (*domain.SmsChat, error)
	// Create stores the routing record and one connection per participant atomically.
	Create(ctx context.Context, eventID int64, relayNumber string, room *domain.Chatroom) (*domain.SmsChat, error)
	UpdateRoom(ctx context.Context, chat *domain.SmsChat) error
	DeleteConnection(ctx context.Context, chatID uuid.UUID, userNumber, relayNumber string) error
	DeleteConnections(ctx context.Context, chatID uuid.UUID) error
	// Delete removes the record and its connections, returning nil when it does not belong to eventID.
	Delete(ctx context.Context, eventID int64, chatID uuid.UUID) (*domain.SmsChat, error)
	ListConnections(ctx context.Context, chatID uuid.UUID) ([]domain.SmsChatConnection, error)
	ListByEvent(ctx context.Context, eventID int64) ([]domain.SmsChatSummary, error)
	RelayNumbersForEvent(ctx context.Context, eventID int64) ([]string, error)
	RelayNumbersForUsers(ctx context.Context, userNumbers []string) ([]string, error)
}

type BlockListRepository interface {
	IsBlocked(ctx context.Context, eventID int64, number string) (bool, error)
	// Add is idempotent; it reports whether a new entry was written.
	Add(ctx context.Context, entry *domain.BlockListEntry) (bool, error)
	Remove(ctx context.Context, eventID, entryID int64) (*domain.BlockListEntry, error)
}

type AuditLogRepository interface {
	Create(ctx context.Context, entry *domain.AuditLogEntry) error
	GetByID(ctx context.Context, eventID, id int64) (*domain.AuditLogEntry, error)
}

// Store groups the repositories whose writes must share one transaction.
type Store interface {
	Events() EventRepository
	Members() MemberRepository
	Numbers() NumberRepository
	SmsChats() SmsChatRepository
	BlockList() BlockListRepository
	AuditLogs() AuditLogRepository
	// WithinTx runs fn in a transaction, committing when fn returns nil.
	// Calls nested inside fn join the outer transaction.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
