package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
)

type PgAuditLogRepository struct {
	db     DBTX
	logger *slog.Logger
}

func NewPgAuditLogRepository(db DBTX, logger *slog.Logger) *PgAuditLogRepository {
	return &PgAuditLogRepository{db: db, logger: logger.With("component", "audit_log_repository_pg")}
}

func (r *PgAuditLogRepository) Create(ctx context.Context, entry *domain.AuditLogEntry) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO audit_log (created_at, kind, description, event_id, user_id, reporter_number)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		entry.Timestamp, int16(entry.Kind), entry.Description,
		nullInt64(entry.EventID), nullString(entry.User), nullString(entry.ReporterNumber),
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("insert audit log entry: %w", err)
	}
	return nil
}

func (r *PgAuditLogRepository) GetByID(ctx context.Context, eventID, id int64) (*domain.AuditLogEntry, error) {
	var (
		e              domain.AuditLogEntry
		kind           int16
		entryEventID   sql.NullInt64
		user           sql.NullString
		reporterNumber sql.NullString
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, created_at, kind, description, event_id, user_id, reporter_number
		FROM audit_log WHERE id = $1 AND event_id = $2`,
		id, eventID,
	).Scan(&e.ID, &e.Timestamp, &kind, &e.Description, &entryEventID, &user, &reporterNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Error querying audit log entry", "id", id, "error", err)
		return nil, fmt.Errorf("get audit log entry: %w", err)
	}
	e.Kind = domain.AuditKind(kind)
	if entryEventID.Valid {
		v := entryEventID.Int64
		e.EventID = &v
	}
	e.User = user.String
	e.ReporterNumber = reporterNumber.String
	return &e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
