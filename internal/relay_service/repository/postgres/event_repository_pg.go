package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
)

const eventColumns = `id, slug, name, country, primary_number, primary_number_id, voice_greeting, sms_greeting`

type PgEventRepository struct {
	db     DBTX
	logger *slog.Logger
}

func NewPgEventRepository(db DBTX, logger *slog.Logger) *PgEventRepository {
	return &PgEventRepository{db: db, logger: logger.With("component", "event_repository_pg")}
}

func (r *PgEventRepository) GetByID(ctx context.Context, id int64) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return r.getOne(ctx, "get event by id", query, id)
}

func (r *PgEventRepository) GetBySlug(ctx context.Context, slug string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE slug = $1`
	return r.getOne(ctx, "get event by slug", query, slug)
}

func (r *PgEventRepository) GetByPrimaryNumber(ctx context.Context, number string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE primary_number = $1 LIMIT 1`
	return r.getOne(ctx, "get event by primary number", query, number)
}

func (r *PgEventRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, "lock event", query, id)
}

func (r *PgEventRepository) SetPrimaryNumber(ctx context.Context, eventID int64, number *domain.Number) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	if number == nil {
		tag, err = r.db.Exec(ctx,
			`UPDATE events SET primary_number = NULL, primary_number_id = NULL WHERE id = $1`, eventID)
	} else {
		tag, err = r.db.Exec(ctx,
			`UPDATE events SET primary_number = $1, primary_number_id = $2 WHERE id = $3`,
			number.Number, number.ID, eventID)
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update event primary number", "event_id", eventID, "error", err)
		return mapWriteError("set primary number", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set primary number for event %d: %w", eventID, domain.ErrNotFound)
	}
	return nil
}

func (r *PgEventRepository) getOne(ctx context.Context, op, query string, arg any) (*domain.Event, error) {
	var (
		e               domain.Event
		primaryNumber   sql.NullString
		primaryNumberID sql.NullInt64
		voiceGreeting   sql.NullString
		smsGreeting     sql.NullString
	)
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&e.ID, &e.Slug, &e.Name, &e.Country,
		&primaryNumber, &primaryNumberID, &voiceGreeting, &smsGreeting,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.DebugContext(ctx, "Event not found", "op", op, "arg", arg)
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Error querying event", "op", op, "error", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e.PrimaryNumber = primaryNumber.String
	if primaryNumberID.Valid {
		id := primaryNumberID.Int64
		e.PrimaryNumberID = &id
	}
	e.VoiceGreeting = voiceGreeting.String
	e.SMSGreeting = smsGreeting.String
	return &e, nil
}
