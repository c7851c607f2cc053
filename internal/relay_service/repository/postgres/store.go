package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/conducthotline/hotline_services/internal/platform/database"
	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
	"github.com/conducthotline/hotline_services/internal/relay_service/repository"
)

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type DBTX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the Postgres implementation of repository.Store.
type Store struct {
	db     DBTX
	inTx   bool
	logger *slog.Logger

	events    *PgEventRepository
	members   *PgMemberRepository
	numbers   *PgNumberRepository
	smsChats  *PgSmsChatRepository
	blockList *PgBlockListRepository
	auditLogs *PgAuditLogRepository
}

func NewStore(db DBTX, logger *slog.Logger) *Store {
	return newStore(db, false, logger)
}

func newStore(db DBTX, inTx bool, logger *slog.Logger) *Store {
	return &Store{
		db:        db,
		inTx:      inTx,
		logger:    logger,
		events:    NewPgEventRepository(db, logger),
		members:   NewPgMemberRepository(db, logger),
		numbers:   NewPgNumberRepository(db, logger),
		smsChats:  NewPgSmsChatRepository(db, logger),
		blockList: NewPgBlockListRepository(db, logger),
		auditLogs: NewPgAuditLogRepository(db, logger),
	}
}

func (s *Store) Events() repository.EventRepository { return s.events }
func (s *Store) Members() repository.MemberRepository { return s.members }
func (s *Store) Numbers() repository.NumberRepository { return s.numbers }
func (s *Store) SmsChats() repository.SmsChatRepository { return s.smsChats }
func (s *Store) BlockList() repository.BlockListRepository { return s.blockList }
func (s *Store) AuditLogs() repository.AuditLogRepository { return s.auditLogs }

func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return fn(newStore(tx, true, s.logger))
	})
	if database.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}
	return err
}

// mapWriteError turns unique violations into domain.ErrConflict.
func mapWriteError(op string, err error) error {
	if database.IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
