package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/observability"
	"ridedispatch/internal/realtime"
	"ridedispatch/internal/repository"
)

// MaxMessageLength is the longest chat message accepted, in characters.
const MaxMessageLength = 2000

// Chat handles messages between a requester and their assigned driver.
type Chat struct {
	bookings  repository.BookingRepository
	messages  repository.ChatRepository
	publisher realtime.Publisher
	notifier  Notifier
	logger    *slog.Logger
}

// NewChat creates a Chat.
func NewChat(
	bookings repository.BookingRepository,
	messages repository.ChatRepository,
	publisher realtime.Publisher,
	notifier Notifier,
	logger *slog.Logger,
) *Chat {
	return &Chat{
		bookings:  bookings,
		messages:  messages,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
	}
}

// participant loads the booking and checks that caller is its requester or
// assigned driver. Admins are not chat participants.
func (s *Chat) participant(ctx context.Context, caller domain.Identity, bookingID string) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if caller.ID == "" || (caller.ID != b.RequesterID && caller.ID != b.AssignedDriverID) {
		return nil, ErrForbidden
	}
	return b, nil
}

// counterpart is the other participant of the chat, or "" while the
// booking has no driver.
func counterpart(b *domain.Booking, sender string) string {
	if sender == b.AssignedDriverID {
		return b.RequesterID
	}
	return b.AssignedDriverID
}

// Send persists a message and delivers it to the booking room. Access is
// checked before the content.
func (s *Chat) Send(ctx context.Context, caller domain.Identity, bookingID, content string) (*domain.ChatMessage, error) {
	b, err := s.participant(ctx, caller, bookingID)
	if err != nil {
		return nil, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	recipient := counterpart(b, caller.ID)
	msg := &domain.ChatMessage{
		ID:          uuid.NewString(),
		BookingID:   b.ID,
		SenderID:    caller.ID,
		RecipientID: recipient,
		Content:     content,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	if err := s.publisher.Publish(ctx, realtime.BookingRoom(b.ID), realtime.EventChatMessage, msg); err != nil {
		observability.EmitFailures.WithLabelValues(realtime.EventChatMessage).Inc()
		s.logger.WarnContext(ctx, "chat emit failed", "booking_id", b.ID, "error", err)
	}

	if recipient != "" && s.notifier != nil {
		n := newNotification(NotificationChatMessage, recipient, b.ID, "New message", preview(content))
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.logger.WarnContext(ctx, "notification failed",
				"type", n.Type, "recipient", recipient, "booking_id", b.ID, "error", err)
		}
	}
	return msg, nil
}

// History returns the booking's messages oldest first.
func (s *Chat) History(ctx context.Context, caller domain.Identity, bookingID string) ([]*domain.ChatMessage, error) {
	b, err := s.participant(ctx, caller, bookingID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByBooking(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// MarkRead marks every message in the booking addressed to caller as read
// and returns how many changed.
func (s *Chat) MarkRead(ctx context.Context, caller domain.Identity, bookingID string) (int, error) {
	b, err := s.participant(ctx, caller, bookingID)
	if err != nil {
		return 0, err
	}
	n, err := s.messages.MarkRead(ctx, b.ID, caller.ID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	return n, nil
}

// UnreadCount counts unread messages addressed to caller across bookings.
func (s *Chat) UnreadCount(ctx context.Context, caller domain.Identity) (int, error) {
	if caller.ID == "" {
		return 0, ErrForbidden
	}
	n, err := s.messages.CountUnread(ctx, caller.ID)
	if err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}
	return n, nil
}

func preview(content string) string {
	const limit = 80
	if utf8.RuneCountInString(content) <= limit {
		return content
	}
	r := []rune(content)
	return string(r[:limit]) + "..."
}
