package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/observability"
	"ridedispatch/internal/realtime"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationRideConfirmed NotificationType = "RIDE_CONFIRMED"
	NotificationDriverEnroute NotificationType = "DRIVER_ENROUTE"
	NotificationDriverArrived NotificationType = "DRIVER_ARRIVED"
	NotificationRideStarted   NotificationType = "RIDE_STARTED"
	NotificationRideCompleted NotificationType = "RIDE_COMPLETED"
	NotificationRideCancelled NotificationType = "RIDE_CANCELLED"
	NotificationRideExpired   NotificationType = "RIDE_EXPIRED"
	NotificationChatMessage   NotificationType = "CHAT_MESSAGE"
)

// ActionRetry tells the client to offer re-requesting the ride.
const ActionRetry = "retry"

// Notification is a human-facing message pushed to a single identity.
type Notification struct {
	ID          string           `json:"id"`
	Type        NotificationType `json:"type"`
	RecipientID string           `json:"recipientId"`
	BookingID   string           `json:"bookingId,omitempty"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Action      string           `json:"action,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// Notifier delivers notifications. Callers treat it as best-effort.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes every notification to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (s *LogNotifier) Notify(ctx context.Context, n Notification) error {
	s.logger.InfoContext(ctx, "notification",
		"type", n.Type,
		"recipient", n.RecipientID,
		"booking_id", n.BookingID,
		"title", n.Title,
	)
	return nil
}

// RealtimeNotifier pushes a notification event to the recipient's personal room.
type RealtimeNotifier struct {
	publisher realtime.Publisher
}

// NewRealtimeNotifier creates a RealtimeNotifier.
func NewRealtimeNotifier(publisher realtime.Publisher) *RealtimeNotifier {
	return &RealtimeNotifier{publisher: publisher}
}

func (s *RealtimeNotifier) Notify(ctx context.Context, n Notification) error {
	return s.publisher.Publish(ctx, realtime.UserRoom(n.RecipientID), realtime.EventNotification, n)
}

// Sink is a named notifier inside a FanoutNotifier.
type Sink struct {
	Name     string
	Notifier Notifier
}

// FanoutNotifier delivers to every sink and reports all failures together.
// One failing sink never prevents delivery to the others.
type FanoutNotifier struct {
	sinks []Sink
}

// NewFanoutNotifier creates a notifier over sinks.
func NewFanoutNotifier(sinks ...Sink) *FanoutNotifier {
	return &FanoutNotifier{sinks: sinks}
}

func (f *FanoutNotifier) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Notifier.Notify(ctx, n); err != nil {
			observability.NotificationFailures.WithLabelValues(s.Name).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

func newNotification(t NotificationType, recipientID, bookingID, title, message string) Notification {
	return Notification{
		ID:          uuid.NewString(),
		Type:        t,
		RecipientID: recipientID,
		BookingID:   bookingID,
		Title:       title,
		Message:     message,
		CreatedAt:   time.Now().UTC(),
	}
}

// transitionNotifications builds the notifications for b having just moved
// into its current status at the hand of actor.
func transitionNotifications(b *domain.Booking, actor domain.Identity, driver *domain.DriverInfo) []Notification {
	driverName := "Your driver"
	if driver != nil && driver.Name != "" {
		driverName = driver.Name
	}

	switch b.Status {
	case domain.BookingStatusConfirmed:
		return []Notification{newNotification(NotificationRideConfirmed, b.RequesterID, b.ID,
			"Ride confirmed", fmt.Sprintf("%s accepted your ride to %s", driverName, b.Destination))}
	case domain.BookingStatusEnroute:
		return []Notification{newNotification(NotificationDriverEnroute, b.RequesterID, b.ID,
			"Driver on the way", fmt.Sprintf("%s is heading to %s", driverName, b.PickupLocation))}
	case domain.BookingStatusArrived:
		return []Notification{newNotification(NotificationDriverArrived, b.RequesterID, b.ID,
			"Driver arrived", fmt.Sprintf("%s is waiting at %s", driverName, b.PickupLocation))}
	case domain.BookingStatusInRide:
		return []Notification{newNotification(NotificationRideStarted, b.RequesterID, b.ID,
			"Ride started", "Enjoy your ride")}
	case domain.BookingStatusCompleted:
		return []Notification{newNotification(NotificationRideCompleted, b.RequesterID, b.ID,
			"Ride completed", fmt.Sprintf("You have arrived at %s", b.Destination))}
	case domain.BookingStatusExpired:
		n := newNotification(NotificationRideExpired, b.RequesterID, b.ID,
			"No driver available", "No driver accepted your ride in time. Request again to retry.")
		n.Action = ActionRetry
		return []Notification{n}
	case domain.BookingStatusCancelled:
		var recipients []string
		switch domain.PartyOf(b, actor) {
		case domain.PartyRequester:
			recipients = []string{b.AssignedDriverID}
		case domain.PartyDriver:
			recipients = []string{b.RequesterID}
		default:
			recipients = []string{b.RequesterID, b.AssignedDriverID}
		}
		var out []Notification
		for _, r := range recipients {
			if r == "" || r == actor.ID {
				continue
			}
			out = append(out, newNotification(NotificationRideCancelled, r, b.ID,
				"Ride cancelled", fmt.Sprintf("The ride from %s to %s was cancelled", b.PickupLocation, b.Destination)))
		}
		return out
	}
	return nil
}
