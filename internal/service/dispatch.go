package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/observability"
	"ridedispatch/internal/realtime"
	"ridedispatch/internal/repository"
)

// maxStatusAttempts bounds the read-check-write loop in SetStatus.
const maxStatusAttempts = 3

// Coordinator orchestrates the booking lifecycle.
type Coordinator struct {
	bookings  repository.BookingRepository
	drivers   DriverDirectory
	publisher realtime.Publisher
	notifier  Notifier
	logger    *slog.Logger
	now       func() time.Time
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(
	bookings repository.BookingRepository,
	drivers DriverDirectory,
	publisher realtime.Publisher,
	notifier Notifier,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		bookings:  bookings,
		drivers:   drivers,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateBookingRequest contains the data needed to request a ride.
type CreateBookingRequest struct {
	Pickup      string
	Destination string
	ServiceTier string
	Price       float64
	ETAMinutes  int
}

func (r *CreateBookingRequest) normalize() error {
	r.Pickup = strings.TrimSpace(r.Pickup)
	r.Destination = strings.TrimSpace(r.Destination)
	r.ServiceTier = strings.TrimSpace(r.ServiceTier)

	switch {
	case r.Pickup == "":
		return ErrMissingPickup
	case r.Destination == "":
		return ErrMissingDestination
	case r.ServiceTier == "":
		return ErrMissingServiceTier
	case r.Price < 0:
		return ErrInvalidPrice
	case r.ETAMinutes < 0:
		return ErrInvalidETA
	}
	return nil
}

// CreateBooking stores a pending booking for caller and offers it to every
// driver available at this moment.
func (c *Coordinator) CreateBooking(ctx context.Context, caller domain.Identity, req CreateBookingRequest) (*domain.Booking, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	now := c.now()
	b := &domain.Booking{
		ID:              uuid.NewString(),
		RequesterID:     caller.ID,
		PickupLocation:  req.Pickup,
		Destination:     req.Destination,
		ServiceTier:     req.ServiceTier,
		Price:           req.Price,
		ETAMinutes:      req.ETAMinutes,
		Status:          domain.BookingStatusPending,
		DeclinedDrivers: []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := c.bookings.Create(ctx, b); err != nil {
		return nil, err
	}
	observability.BookingsCreated.Inc()
	c.logger.InfoContext(ctx, "booking created", "booking_id", b.ID, "requester", b.RequesterID, "service", b.ServiceTier)

	c.offer(ctx, b)
	return b, nil
}

// offer emits ride:new to each available driver's room. The booking is
// already committed, so failures here are logged only.
func (c *Coordinator) offer(ctx context.Context, b *domain.Booking) {
	drivers, err := c.drivers.ListAvailable(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "list available drivers failed", "booking_id", b.ID, "error", err)
		return
	}
	for _, d := range drivers {
		if d.ID == b.RequesterID {
			continue
		}
		if err := c.publisher.Publish(ctx, realtime.DriverRoom(d.ID), realtime.EventRideNew, b); err != nil {
			observability.EmitFailures.WithLabelValues(realtime.EventRideNew).Inc()
			c.logger.WarnContext(ctx, "ride offer failed", "booking_id", b.ID, "driver_id", d.ID, "error", err)
			continue
		}
		observability.OffersSent.Inc()
	}
}

// Accept claims a pending booking for the calling driver. Losing the race
// yields ErrRideUnavailable.
func (c *Coordinator) Accept(ctx context.Context, caller domain.Identity, bookingID string) (*domain.BookingSnapshot, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}
	if !caller.IsDriver() {
		return nil, ErrForbidden
	}

	b, err := c.bookings.TryAssignDriver(ctx, bookingID, caller.ID, c.now())
	if errors.Is(err, repository.ErrConflict) {
		if c.ownBooking(ctx, bookingID, caller) {
			return nil, ErrForbidden
		}
		observability.AcceptOutcomes.WithLabelValues(observability.OutcomeConflict).Inc()
		c.logger.InfoContext(ctx, "lost accept race", "booking_id", bookingID, "driver_id", caller.ID)
		return nil, ErrRideUnavailable
	}
	if err != nil {
		return nil, err
	}
	observability.AcceptOutcomes.WithLabelValues(observability.OutcomeWon).Inc()
	observability.StatusTransitions.WithLabelValues(string(b.Status)).Inc()
	c.logger.InfoContext(ctx, "booking accepted", "booking_id", b.ID, "driver_id", caller.ID)

	return c.committed(ctx, b, caller), nil
}

// ownBooking reports whether caller requested the booking. The store
// already refuses such an assignment; this only picks the error.
func (c *Coordinator) ownBooking(ctx context.Context, bookingID string, caller domain.Identity) bool {
	b, err := c.bookings.GetByID(ctx, bookingID)
	return err == nil && b.RequesterID == caller.ID
}

// Decline records that the calling driver passed on a pending booking. It
// reports whether the declined set changed. Declining a resolved booking
// is a no-op.
func (c *Coordinator) Decline(ctx context.Context, caller domain.Identity, bookingID string) (bool, error) {
	if bookingID == "" {
		return false, ErrInvalidBookingID
	}
	if !caller.IsDriver() {
		return false, ErrForbidden
	}
	changed, err := c.bookings.AddDeclined(ctx, bookingID, caller.ID, c.now())
	if err != nil {
		return false, err
	}
	c.logger.DebugContext(ctx, "booking declined", "booking_id", bookingID, "driver_id", caller.ID, "changed", changed)
	return changed, nil
}

// SetStatus applies a forward transition on behalf of caller. Each attempt
// re-reads the booking, checks the rules against what it read and writes
// conditionally on that status; a lost write retries against fresh state.
func (c *Coordinator) SetStatus(ctx context.Context, caller domain.Identity, bookingID string, to domain.BookingStatus) (*domain.BookingSnapshot, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}
	if !to.Valid() {
		return nil, ErrInvalidStatus
	}
	if to == domain.BookingStatusConfirmed {
		return nil, ErrInvalidTransition
	}

	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		current, err := c.bookings.GetByID(ctx, bookingID)
		if err != nil {
			return nil, err
		}

		party := domain.PartyOf(current, caller)
		if party == domain.PartyNone {
			return nil, ErrForbidden
		}
		if !domain.CanTransition(current.Status, to) {
			return nil, ErrInvalidTransition
		}
		if !domain.MayTrigger(current.Status, to, party) {
			return nil, ErrForbidden
		}

		updated, err := c.bookings.UpdateStatus(ctx, bookingID, current.Status, to, c.now())
		if errors.Is(err, repository.ErrConflict) {
			c.logger.DebugContext(ctx, "status write lost, retrying", "booking_id", bookingID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}

		observability.StatusTransitions.WithLabelValues(string(to)).Inc()
		c.logger.InfoContext(ctx, "booking status changed",
			"booking_id", bookingID, "from", current.Status, "to", to, "actor", caller.ID)
		return c.committed(ctx, updated, caller), nil
	}
	return nil, ErrConcurrentUpdate
}

// Cancel moves the booking to cancelled.
func (c *Coordinator) Cancel(ctx context.Context, caller domain.Identity, bookingID string) (*domain.BookingSnapshot, error) {
	return c.SetStatus(ctx, caller, bookingID, domain.BookingStatusCancelled)
}

// Expire moves a pending booking to expired as the system actor.
func (c *Coordinator) Expire(ctx context.Context, bookingID string) (*domain.BookingSnapshot, error) {
	snap, err := c.SetStatus(ctx, domain.SystemIdentity, bookingID, domain.BookingStatusExpired)
	if err != nil {
		return nil, err
	}
	observability.BookingsExpired.Inc()
	return snap, nil
}

// committed runs the side effects of a successful write: resolve the driver,
// emit ride:update and notify. Nothing here can fail the mutation.
func (c *Coordinator) committed(ctx context.Context, b *domain.Booking, actor domain.Identity) *domain.BookingSnapshot {
	driver, err := resolveDriver(ctx, c.drivers, b)
	if err != nil {
		c.logger.WarnContext(ctx, "resolve driver info failed", "booking_id", b.ID, "driver_id", b.AssignedDriverID, "error", err)
	}
	snap := &domain.BookingSnapshot{Booking: b, Driver: driver}

	c.emitUpdate(ctx, snap)
	for _, n := range transitionNotifications(b, actor, driver) {
		c.notify(ctx, n)
	}
	return snap
}

// emitUpdate sends ride:update to the booking room and, separately, to every
// connected client.
func (c *Coordinator) emitUpdate(ctx context.Context, snap *domain.BookingSnapshot) {
	bookingID := snap.Booking.ID
	if err := c.publisher.Publish(ctx, realtime.BookingRoom(bookingID), realtime.EventRideUpdate, snap); err != nil {
		observability.EmitFailures.WithLabelValues(realtime.EventRideUpdate).Inc()
		c.logger.WarnContext(ctx, "room emit failed", "booking_id", bookingID, "error", err)
	}
	if err := c.publisher.Broadcast(ctx, realtime.EventRideUpdate, snap); err != nil {
		observability.EmitFailures.WithLabelValues(realtime.EventRideUpdate).Inc()
		c.logger.WarnContext(ctx, "broadcast emit failed", "booking_id", bookingID, "error", err)
	}
}

func (c *Coordinator) notify(ctx context.Context, n Notification) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Notify(ctx, n); err != nil {
		c.logger.WarnContext(ctx, "notification failed",
			"type", n.Type, "recipient", n.RecipientID, "booking_id", n.BookingID, "error", err)
	}
}
