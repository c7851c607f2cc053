package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
)

const memberColumns = `id, event_id, name, number, verified`

type PgMemberRepository struct {
	db     DBTX
	logger *slog.Logger
}

func NewPgMemberRepository(db DBTX, logger *slog.Logger) *PgMemberRepository {
	return &PgMemberRepository{db: db, logger: logger.With("component", "member_repository_pg")}
}

func (r *PgMemberRepository) GetByID(ctx context.Context, eventID, memberID int64) (*domain.EventMember, error) {
	query := `SELECT ` + memberColumns + ` FROM event_members WHERE event_id = $1 AND id = $2`
	return r.getOne(ctx, "get member by id", query, eventID, memberID)
}

// GetByNumber returns any member with this number; members may belong to several events.
func (r *PgMemberRepository) GetByNumber(ctx context.Context, number string) (*domain.EventMember, error) {
	query := `SELECT ` + memberColumns + ` FROM event_members WHERE number = $1 ORDER BY id LIMIT 1`
	return r.getOne(ctx, "get member by number", query, number)
}

func (r *PgMemberRepository) FindPendingByNumber(ctx context.Context, number string) (*domain.EventMember, error) {
	query := `SELECT ` + memberColumns + ` FROM event_members WHERE number = $1 AND verified = false ORDER BY id LIMIT 1`
	return r.getOne(ctx, "find pending member", query, number)
}

func (r *PgMemberRepository) ListVerified(ctx context.Context, eventID int64) ([]domain.EventMember, error) {
	query := `SELECT ` + memberColumns + ` FROM event_members WHERE event_id = $1 AND verified = true ORDER BY id`
	rows, err := r.db.Query(ctx, query, eventID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing verified members", "event_id", eventID, "error", err)
		return nil, fmt.Errorf("list verified members: %w", err)
	}
	defer rows.Close()

	var members []domain.EventMember
	for rows.Next() {
		var m domain.EventMember
		if err := rows.Scan(&m.ID, &m.EventID, &m.Name, &m.Number, &m.Verified); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

func (r *PgMemberRepository) MarkVerified(ctx context.Context, memberID int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE event_members SET verified = true WHERE id = $1`, memberID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to mark member verified", "member_id", memberID, "error", err)
		return fmt.Errorf("mark member verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark member %d verified: %w", memberID, domain.ErrNotFound)
	}
	return nil
}

func (r *PgMemberRepository) getOne(ctx context.Context, op, query string, args ...any) (*domain.EventMember, error) {
	var m domain.EventMember
	err := r.db.QueryRow(ctx, query, args...).Scan(&m.ID, &m.EventID, &m.Name, &m.Number, &m.Verified)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Error querying member", "op", op, "error", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &m, nil
}
