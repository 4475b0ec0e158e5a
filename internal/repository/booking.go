package repository

import (
	"context"
	"time"

	"ridedispatch/internal/domain"
)

// BookingFilter narrows aggregate queries. Empty fields match everything.
type BookingFilter struct {
	RequesterID string
	DriverID    string
}

// BookingRepository defines the persistence operations for bookings.
type BookingRepository interface {
	// Create persists a new booking.
	Create(ctx context.Context, booking *domain.Booking) error

	// GetByID retrieves a booking by ID.
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// ListByRequester returns the requester's bookings, newest first.
	ListByRequester(ctx context.Context, requesterID string) ([]*domain.Booking, error)

	// ListByDriver returns bookings assigned to the driver, newest first.
	ListByDriver(ctx context.Context, driverID string) ([]*domain.Booking, error)

	// ListAll returns every booking, newest first.
	ListAll(ctx context.Context) ([]*domain.Booking, error)

	// ListPendingBefore returns up to limit pending bookings created before cutoff.
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Booking, error)

	// TryAssignDriver atomically moves a pending booking to confirmed with
	// driverID assigned, provided driverID has not declined it. Returns
	// ErrConflict if either condition fails at write time and ErrNotFound if
	// the booking does not exist.
	TryAssignDriver(ctx context.Context, id, driverID string, at time.Time) (*domain.Booking, error)

	// AddDeclined adds driverID to the declined set while the booking is
	// pending. Reports whether the set changed.
	AddDeclined(ctx context.Context, id, driverID string, at time.Time) (bool, error)

	// UpdateStatus moves the booking from -> to in a single conditional write.
	// Returns ErrConflict if the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to domain.BookingStatus, at time.Time) (*domain.Booking, error)

	// CountByStatus aggregates counts for bookings matching filter.
	CountByStatus(ctx context.Context, filter BookingFilter) (map[domain.BookingStatus]int, error)
}
