package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
)

type PgNumberRepository struct {
	db     DBTX
	logger *slog.Logger
}

func NewPgNumberRepository(db DBTX, logger *slog.Logger) *PgNumberRepository {
	return &PgNumberRepository{db: db, logger: logger.With("component", "number_repository_pg")}
}

func (r *PgNumberRepository) ListUnusedEventNumbers(ctx context.Context, country string, limit int) ([]domain.Number, error) {
	query := `
		SELECT n.id, n.number, n.country, n.pool, n.features
		FROM numbers n
		LEFT JOIN events e ON e.primary_number_id = n.id
		WHERE n.pool = $1 AND n.country = $2 AND e.id IS NULL
		ORDER BY n.id
		LIMIT $3`
	return r.list(ctx, "list unused event numbers", query, int16(domain.NumberPoolEvent), country, limit)
}

func (r *PgNumberRepository) LockUnusedEventNumber(ctx context.Context, country string) (*domain.Number, error) {
	query := `
		SELECT n.id, n.number, n.country, n.pool, n.features
		FROM numbers n
		WHERE n.pool = $1 AND n.country = $2
		  AND NOT EXISTS (SELECT 1 FROM events e WHERE e.primary_number_id = n.id)
		ORDER BY n.id
		LIMIT 1
		FOR UPDATE OF n SKIP LOCKED`

	var (
		n    domain.Number
		pool int16
	)
	err := r.db.QueryRow(ctx, query, int16(domain.NumberPoolEvent), country).
		Scan(&n.ID, &n.Number, &n.Country, &pool, &n.Features)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.InfoContext(ctx, "No unused event number available", "country", country)
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Error locking unused event number", "country", country, "error", err)
		return nil, fmt.Errorf("lock unused event number: %w", err)
	}
	n.Pool = domain.NumberPool(pool)
	return &n, nil
}

func (r *PgNumberRepository) ListUnusedRelayNumbers(ctx context.Context, country string, excluded []string, limit int) ([]domain.Number, error) {
	if excluded == nil {
		excluded = []string{}
	}
	query := `
		SELECT n.id, n.number, n.country, n.pool, n.features
		FROM numbers n
		WHERE n.pool = $1 AND n.country = $2 AND NOT (n.number = ANY($3))
		ORDER BY n.id
		LIMIT $4`
	return r.list(ctx, "list unused relay numbers", query, int16(domain.NumberPoolSMSRelay), country, excluded, limit)
}

func (r *PgNumberRepository) list(ctx context.Context, op, query string, args ...any) ([]domain.Number, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing numbers", "op", op, "error", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var numbers []domain.Number
	for rows.Next() {
		var (
			n    domain.Number
			pool int16
		)
		if err := rows.Scan(&n.ID, &n.Number, &n.Country, &pool, &n.Features); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		n.Pool = domain.NumberPool(pool)
		numbers = append(numbers, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return numbers, nil
}
