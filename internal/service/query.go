package service

import (
	"context"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
)

// Query is the read path used on initial load and after reconnects.
type Query struct {
	bookings repository.BookingRepository
	drivers  DriverDirectory
}

// NewQuery creates a Query.
func NewQuery(bookings repository.BookingRepository, drivers DriverDirectory) *Query {
	return &Query{bookings: bookings, drivers: drivers}
}

// Authorize loads the booking and checks that caller is the requester, the
// assigned driver or privileged.
func (q *Query) Authorize(ctx context.Context, caller domain.Identity, bookingID string) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}
	b, err := q.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if domain.PartyOf(b, caller) == domain.PartyNone {
		return nil, ErrForbidden
	}
	return b, nil
}

// GetBooking returns the booking with its driver's display info.
func (q *Query) GetBooking(ctx context.Context, caller domain.Identity, bookingID string) (*domain.BookingSnapshot, error) {
	b, err := q.Authorize(ctx, caller, bookingID)
	if err != nil {
		return nil, err
	}
	driver, err := resolveDriver(ctx, q.drivers, b)
	if err != nil {
		return nil, err
	}
	return &domain.BookingSnapshot{Booking: b, Driver: driver}, nil
}

// ListBookings returns every booking for admins and the caller's own
// requests for everyone else.
func (q *Query) ListBookings(ctx context.Context, caller domain.Identity) ([]*domain.Booking, error) {
	if caller.Privileged() {
		return q.bookings.ListAll(ctx)
	}
	return q.bookings.ListByRequester(ctx, caller.ID)
}

// ListForDriver returns the bookings assigned to the calling driver.
func (q *Query) ListForDriver(ctx context.Context, caller domain.Identity) ([]*domain.Booking, error) {
	if !caller.IsDriver() {
		return nil, ErrForbidden
	}
	return q.bookings.ListByDriver(ctx, caller.ID)
}

// StatsForRequester counts the caller's requests by status.
func (q *Query) StatsForRequester(ctx context.Context, caller domain.Identity) (domain.BookingStats, error) {
	counts, err := q.bookings.CountByStatus(ctx, repository.BookingFilter{RequesterID: caller.ID})
	if err != nil {
		return domain.BookingStats{}, err
	}
	return domain.NewBookingStats(counts), nil
}

// StatsForDriver counts the calling driver's assigned bookings by status.
func (q *Query) StatsForDriver(ctx context.Context, caller domain.Identity) (domain.BookingStats, error) {
	if !caller.IsDriver() {
		return domain.BookingStats{}, ErrForbidden
	}
	counts, err := q.bookings.CountByStatus(ctx, repository.BookingFilter{DriverID: caller.ID})
	if err != nil {
		return domain.BookingStats{}, err
	}
	return domain.NewBookingStats(counts), nil
}
