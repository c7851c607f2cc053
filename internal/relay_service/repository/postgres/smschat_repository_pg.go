package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
)

type PgSmsChatRepository struct {
	db     DBTX
	logger *slog.Logger
}

func NewPgSmsChatRepository(db DBTX, logger *slog.Logger) *PgSmsChatRepository {
	return &PgSmsChatRepository{db: db, logger: logger.With("component", "smschat_repository_pg")}
}

func (r *PgSmsChatRepository) FindByUserAndRelay(ctx context.Context, userNumber, relayNumber string) (*domain.SmsChat, error) {
	query := `
		SELECT s.id, s.event_id, s.relay_number, s.room, s.created_at
		FROM smschat_connections c
		JOIN smschats s ON s.id = c.smschat_id
		WHERE c.user_number = $1 AND c.relay_number = $2
		FOR UPDATE OF s`

	var (
		chat domain.SmsChat
		room []byte
	)
	err := r.db.QueryRow(ctx, query, userNumber, relayNumber).
		Scan(&chat.ID, &chat.EventID, &chat.RelayNumber, &room, &chat.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Error finding chat by connection", "relay_number", relayNumber, "error", err)
		return nil, fmt.Errorf("find chat by connection: %w", err)
	}
	chat.Room, err = domain.DecodeChatroom(room)
	if err != nil {
		r.logger.ErrorContext(ctx, "Stored chatroom is unreadable", "smschat_id", chat.ID, "error", err)
		return nil, err
	}
	return &chat, nil
}

func (r *PgSmsChatRepository) Create(ctx context.Context, eventID int64, relayNumber string, room *domain.Chatroom) (*domain.SmsChat, error) {
	data, err := domain.EncodeChatroom(room)
	if err != nil {
		return nil, fmt.Errorf("encode chatroom: %w", err)
	}
	chat := &domain.SmsChat{
		ID:          uuid.New(),
		EventID:     eventID,
		RelayNumber: relayNumber,
		Room:        room,
		CreatedAt:   time.Now().UTC(),
	}

	err = pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO smschats (id, event_id, relay_number, room, created_at) VALUES ($1, $2, $3, $4, $5)`,
			chat.ID, chat.EventID, chat.RelayNumber, data, chat.CreatedAt,
		); err != nil {
			return err
		}
		for _, p := range room.Participants() {
			if _, err := tx.Exec(ctx,
				`INSERT INTO smschat_connections (user_number, relay_number, user_name, smschat_id) VALUES ($1, $2, $3, $4)`,
				p.Number, p.Relay, p.Name, chat.ID,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to save chat", "event_id", eventID, "relay_number", relayNumber, "error", err)
		return nil, mapWriteError("save chat", err)
	}

	r.logger.InfoContext(ctx, "Chat saved", "smschat_id", chat.ID, "event_id", eventID, "participants", room.Len())
	return chat, nil
}

func (r *PgSmsChatRepository) UpdateRoom(ctx context.Context, chat *domain.SmsChat) error {
	data, err := domain.EncodeChatroom(chat.Room)
	if err != nil {
		return fmt.Errorf("encode chatroom: %w", err)
	}
	tag, err := r.db.Exec(ctx, `UPDATE smschats SET room = $1 WHERE id = $2`, data, chat.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update chat room", "smschat_id", chat.ID, "error", err)
		return fmt.Errorf("update chat room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update chat %s: %w", chat.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *PgSmsChatRepository) DeleteConnection(ctx context.Context, chatID uuid.UUID, userNumber, relayNumber string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM smschat_connections WHERE smschat_id = $1 AND user_number = $2 AND relay_number = $3`,
		chatID, userNumber, relayNumber)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete connection", "smschat_id", chatID, "error", err)
		return fmt.Errorf("delete connection: %w", err)
	}
	return nil
}

func (r *PgSmsChatRepository) DeleteConnections(ctx context.Context, chatID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM smschat_connections WHERE smschat_id = $1`, chatID); err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete connections", "smschat_id", chatID, "error", err)
		return fmt.Errorf("delete connections: %w", err)
	}
	return nil
}

// Delete relies on the connections foreign key cascading.
func (r *PgSmsChatRepository) Delete(ctx context.Context, eventID int64, chatID uuid.UUID) (*domain.SmsChat, error) {
	chat := domain.SmsChat{ID: chatID, EventID: eventID}
	var room []byte
	err := r.db.QueryRow(ctx,
		`DELETE FROM smschats WHERE id = $1 AND event_id = $2 RETURNING relay_number, room, created_at`,
		chatID, eventID,
	).Scan(&chat.RelayNumber, &room, &chat.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Failed to delete chat", "smschat_id", chatID, "error", err)
		return nil, fmt.Errorf("delete chat: %w", err)
	}
	if chat.Room, err = domain.DecodeChatroom(room); err != nil {
		r.logger.WarnContext(ctx, "Deleted chat had an unreadable room", "smschat_id", chatID, "error", err)
		chat.Room = domain.NewChatroom()
	}
	return &chat, nil
}

func (r *PgSmsChatRepository) ListConnections(ctx context.Context, chatID uuid.UUID) ([]domain.SmsChatConnection, error) {
	rows, err := r.db.Query(ctx,
		`SELECT smschat_id, user_number, relay_number, user_name FROM smschat_connections WHERE smschat_id = $1 ORDER BY user_number`,
		chatID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var conns []domain.SmsChatConnection
	for rows.Next() {
		var c domain.SmsChatConnection
		if err := rows.Scan(&c.SmsChatID, &c.UserNumber, &c.RelayNumber, &c.UserName); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		conns = append(conns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connections: %w", err)
	}
	return conns, nil
}

func (r *PgSmsChatRepository) ListByEvent(ctx context.Context, eventID int64) ([]domain.SmsChatSummary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.id, s.relay_number, s.created_at, COUNT(c.user_number)
		FROM smschats s
		LEFT JOIN smschat_connections c ON c.smschat_id = s.id
		WHERE s.event_id = $1
		GROUP BY s.id
		ORDER BY s.created_at DESC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []domain.SmsChatSummary
	for rows.Next() {
		var (
			c     domain.SmsChatSummary
			count int64
		)
		if err := rows.Scan(&c.ID, &c.RelayNumber, &c.CreatedAt, &count); err != nil {
			return nil, fmt.Errorf("scan chat summary: %w", err)
		}
		c.ParticipantCount = int(count)
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}
	return chats, nil
}

func (r *PgSmsChatRepository) RelayNumbersForEvent(ctx context.Context, eventID int64) ([]string, error) {
	return r.strings(ctx, "relay numbers for event",
		`SELECT DISTINCT relay_number FROM smschats WHERE event_id = $1`, eventID)
}

func (r *PgSmsChatRepository) RelayNumbersForUsers(ctx context.Context, userNumbers []string) ([]string, error) {
	if len(userNumbers) == 0 {
		return nil, nil
	}
	return r.strings(ctx, "relay numbers for users",
		`SELECT DISTINCT relay_number FROM smschat_connections WHERE user_number = ANY($1)`, userNumbers)
}

func (r *PgSmsChatRepository) strings(ctx context.Context, op, query string, arg any) ([]string, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		r.logger.ErrorContext(ctx, "Query failed", "op", op, "error", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
