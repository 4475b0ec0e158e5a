package postgres

import (
	"context"
	"database/sql"
	"time"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
)

// ChatRepository is a PostgreSQL implementation of repository.ChatRepository.
type ChatRepository struct {
	q Querier
}

// NewChatRepository creates a new PostgreSQL chat repository.
func NewChatRepository(db *sql.DB) *ChatRepository {
	return &ChatRepository{q: db}
}

var _ repository.ChatRepository = (*ChatRepository)(nil)

// Create persists a message.
func (r *ChatRepository) Create(ctx context.Context, m *domain.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, booking_id, sender_id, recipient_id, content, sent_at, read_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.q.ExecContext(ctx, query, m.ID, m.BookingID, m.SenderID, m.RecipientID, m.Content, m.Timestamp, m.ReadAt)
	return classify(err)
}

// ListByBooking returns the booking's messages oldest first.
func (r *ChatRepository) ListByBooking(ctx context.Context, bookingID string) ([]*domain.ChatMessage, error) {
	query := `
		SELECT id, booking_id, sender_id, recipient_id, content, sent_at, read_at
		FROM chat_messages WHERE booking_id = $1
		ORDER BY sent_at ASC, id ASC
	`

	rows, err := r.q.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	messages := make([]*domain.ChatMessage, 0)
	for rows.Next() {
		var m domain.ChatMessage
		var readAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.BookingID, &m.SenderID, &m.RecipientID, &m.Content, &m.Timestamp, &readAt); err != nil {
			return nil, err
		}
		if readAt.Valid {
			t := readAt.Time
			m.ReadAt = &t
		}
		messages = append(messages, &m)
	}
	return messages, classify(rows.Err())
}

// MarkRead stamps the recipient's unread messages in the booking.
func (r *ChatRepository) MarkRead(ctx context.Context, bookingID, recipientID string, at time.Time) (int, error) {
	query := `
		UPDATE chat_messages SET read_at = $3
		WHERE booking_id = $1 AND recipient_id = $2 AND read_at IS NULL
	`
	result, err := r.q.ExecContext(ctx, query, bookingID, recipientID, at)
	if err != nil {
		return 0, classify(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// CountUnread counts unread messages addressed to recipientID.
func (r *ChatRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	query := `SELECT COUNT(*) FROM chat_messages WHERE recipient_id = $1 AND read_at IS NULL`

	var n int
	if err := r.q.QueryRowContext(ctx, query, recipientID).Scan(&n); err != nil {
		return 0, classify(err)
	}
	return n, nil
}
