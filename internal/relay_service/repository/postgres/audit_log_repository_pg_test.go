package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
)

func TestPgAuditLogRepository_Create(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()
	repo := NewPgAuditLogRepository(mockPool, testLogger())

	eventID := int64(7)
	now := time.Now().UTC()
	entry := &domain.AuditLogEntry{
		Timestamp:      now,
		Kind:           domain.AuditSMSConversationStarted,
		Description:    "A new sms conversation was started. Last 4 digits of number is 1234",
		EventID:        &eventID,
		ReporterNumber: "+15550001234",
	}
	mockPool.ExpectQuery(`INSERT INTO audit_log`).
		WithArgs(now, int16(5), entry.Description,
			sql.NullInt64{Int64: 7, Valid: true},
			sql.NullString{},
			sql.NullString{String: "+15550001234", Valid: true}).
		WillReturnRows(mockPool.NewRows([]string{"id"}).AddRow(int64(42)))

	require.NoError(t, repo.Create(context.Background(), entry))
	assert.Equal(t, int64(42), entry.ID)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgAuditLogRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	columns := []string{"id", "created_at", "kind", "description", "event_id", "user_id", "reporter_number"}

	t.Run("Found", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewPgAuditLogRepository(mockPool, testLogger())

		now := time.Now().UTC()
		mockPool.ExpectQuery(`FROM audit_log WHERE id = \$1 AND event_id = \$2`).
			WithArgs(int64(42), int64(7)).
			WillReturnRows(mockPool.NewRows(columns).AddRow(
				int64(42), now, int16(5), "started",
				sql.NullInt64{Int64: 7, Valid: true},
				sql.NullString{},
				sql.NullString{String: "+15550001234", Valid: true},
			))

		entry, err := repo.GetByID(ctx, 7, 42)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, domain.AuditSMSConversationStarted, entry.Kind)
		assert.Equal(t, "+15550001234", entry.ReporterNumber)
		require.NotNil(t, entry.EventID)
		assert.Equal(t, int64(7), *entry.EventID)
	})

	t.Run("NotFound", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewPgAuditLogRepository(mockPool, testLogger())

		mockPool.ExpectQuery(`FROM audit_log`).
			WithArgs(int64(43), int64(7)).
			WillReturnError(pgx.ErrNoRows)

		entry, err := repo.GetByID(ctx, 7, 43)
		assert.NoError(t, err)
		assert.Nil(t, entry)
	})
}
