package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
)

type PgBlockListRepository struct {
	db     DBTX
	logger *slog.Logger
}

func NewPgBlockListRepository(db DBTX, logger *slog.Logger) *PgBlockListRepository {
	return &PgBlockListRepository{db: db, logger: logger.With("component", "blocklist_repository_pg")}
}

func (r *PgBlockListRepository) IsBlocked(ctx context.Context, eventID int64, number string) (bool, error) {
	var blocked bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM blocklist WHERE event_id = $1 AND number = $2)`,
		eventID, number,
	).Scan(&blocked)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error checking blocklist", "event_id", eventID, "error", err)
		return false, fmt.Errorf("check blocklist: %w", err)
	}
	if blocked {
		r.logger.InfoContext(ctx, "Number is blocked for event", "event_id", eventID, "number_last4", domain.Last4(number))
	}
	return blocked, nil
}

func (r *PgBlockListRepository) Add(ctx context.Context, entry *domain.BlockListEntry) (bool, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO blocklist (event_id, number, blocked_by, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id, number) DO NOTHING
		RETURNING id`,
		entry.EventID, entry.Number, entry.BlockedBy, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		r.logger.ErrorContext(ctx, "Failed to add blocklist entry", "event_id", entry.EventID, "error", err)
		return false, fmt.Errorf("add blocklist entry: %w", err)
	}
	return true, nil
}

func (r *PgBlockListRepository) Remove(ctx context.Context, eventID, entryID int64) (*domain.BlockListEntry, error) {
	e := domain.BlockListEntry{ID: entryID, EventID: eventID}
	err := r.db.QueryRow(ctx,
		`DELETE FROM blocklist WHERE id = $1 AND event_id = $2 RETURNING number, blocked_by, created_at`,
		entryID, eventID,
	).Scan(&e.Number, &e.BlockedBy, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Failed to remove blocklist entry", "entry_id", entryID, "error", err)
		return nil, fmt.Errorf("remove blocklist entry: %w", err)
	}
	return &e, nil
}
