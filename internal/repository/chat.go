package repository

import (
	"context"
	"time"

	"ridedispatch/internal/domain"
)

// ChatRepository persists booking chat messages.
type ChatRepository interface {
	Create(ctx context.Context, msg *domain.ChatMessage) error

	// ListByBooking returns messages oldest first.
	ListByBooking(ctx context.Context, bookingID string) ([]*domain.ChatMessage, error)

	// MarkRead stamps every unread message of the booking addressed to
	// recipientID and returns how many changed.
	MarkRead(ctx context.Context, bookingID, recipientID string, at time.Time) (int, error)

	// CountUnread counts unread messages addressed to recipientID across
	// all bookings.
	CountUnread(ctx context.Context, recipientID string) (int, error)
}
