package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
)

const bookingColumns = `id, requester_id, pickup_location, destination, service_tier, price, eta_minutes, status, assigned_driver_id, declined_drivers, created_at, updated_at`

// BookingRepository is a PostgreSQL implementation of repository.BookingRepository.
type BookingRepository struct {
	q Querier
}

// NewBookingRepository creates a new PostgreSQL booking repository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{q: db}
}

var _ repository.BookingRepository = (*BookingRepository)(nil)

// Create persists a new booking.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	declined := b.DeclinedDrivers
	if declined == nil {
		declined = []string{}
	}

	_, err := r.q.ExecContext(ctx, query,
		b.ID,
		b.RequesterID,
		b.PickupLocation,
		b.Destination,
		b.ServiceTier,
		b.Price,
		b.ETAMinutes,
		b.Status,
		nullString(b.AssignedDriverID),
		pq.Array(declined),
		b.CreatedAt,
		b.UpdatedAt,
	)
	return classify(err)
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	b, err := scanBooking(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, classify(err)
	}
	return b, nil
}

// ListByRequester returns the requester's bookings, newest first.
func (r *BookingRepository) ListByRequester(ctx context.Context, requesterID string) ([]*domain.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE requester_id = $1 ORDER BY created_at DESC`, requesterID)
}

// ListByDriver returns bookings assigned to the driver, newest first.
func (r *BookingRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE assigned_driver_id = $1 ORDER BY created_at DESC`, driverID)
}

// ListAll returns the most recent bookings.
func (r *BookingRepository) ListAll(ctx context.Context) ([]*domain.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY created_at DESC LIMIT 100`)
}

// ListPendingBefore returns pending bookings created before cutoff, oldest first.
func (r *BookingRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC LIMIT $3`
	return r.list(ctx, query, domain.BookingStatusPending, cutoff, limit)
}

// TryAssignDriver is the accept race. The status, requester and declined-set
// checks are part of the UPDATE predicate so exactly one concurrent caller
// matches.
func (r *BookingRepository) TryAssignDriver(ctx context.Context, id, driverID string, at time.Time) (*domain.Booking, error) {
	query := `
		UPDATE bookings
		SET status = $3, assigned_driver_id = $2::text, updated_at = GREATEST(updated_at, $4)
		WHERE id = $1 AND status = $5 AND requester_id <> $2::text
			AND NOT ($2::text = ANY(declined_drivers))
		RETURNING ` + bookingColumns

	b, err := scanBooking(r.q.QueryRowContext(ctx, query,
		id, driverID, domain.BookingStatusConfirmed, at, domain.BookingStatusPending,
	))
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, classify(err)
	}
	return nil, r.missOrConflict(ctx, id)
}

// AddDeclined appends driverID to the declined set of a pending booking.
func (r *BookingRepository) AddDeclined(ctx context.Context, id, driverID string, at time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET declined_drivers = array_append(declined_drivers, $2::text), updated_at = GREATEST(updated_at, $3)
		WHERE id = $1 AND status = $4 AND NOT ($2::text = ANY(declined_drivers))
	`

	result, err := r.q.ExecContext(ctx, query, id, driverID, at, domain.BookingStatusPending)
	if err != nil {
		return false, classify(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rowsAffected == 1 {
		return true, nil
	}

	ok, err := exists(ctx, r.q, "bookings", id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, repository.ErrNotFound
	}
	return false, nil
}

// UpdateStatus applies from -> to only if the stored status is still from.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, from, to domain.BookingStatus, at time.Time) (*domain.Booking, error) {
	query := `
		UPDATE bookings
		SET status = $3, updated_at = GREATEST(updated_at, $4)
		WHERE id = $1 AND status = $2
		RETURNING ` + bookingColumns

	b, err := scanBooking(r.q.QueryRowContext(ctx, query, id, from, to, at))
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, classify(err)
	}
	return nil, r.missOrConflict(ctx, id)
}

// CountByStatus aggregates booking counts for the filter.
func (r *BookingRepository) CountByStatus(ctx context.Context, filter repository.BookingFilter) (map[domain.BookingStatus]int, error) {
	query := `
		SELECT status, COUNT(*) FROM bookings
		WHERE ($1 = '' OR requester_id = $1) AND ($2 = '' OR assigned_driver_id = $2)
		GROUP BY status
	`

	rows, err := r.q.QueryContext(ctx, query, filter.RequesterID, filter.DriverID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	counts := make(map[domain.BookingStatus]int)
	for rows.Next() {
		var status domain.BookingStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, classify(rows.Err())
}

func (r *BookingRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Booking, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	bookings := make([]*domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, classify(rows.Err())
}

func (r *BookingRepository) missOrConflict(ctx context.Context, id string) error {
	ok, err := exists(ctx, r.q, "bookings", id)
	if err != nil {
		return fmt.Errorf("check booking %s: %w", id, err)
	}
	if !ok {
		return repository.ErrNotFound
	}
	return repository.ErrConflict
}

func scanBooking(s scanner) (*domain.Booking, error) {
	var b domain.Booking
	var assignedDriverID sql.NullString
	var declined []string

	err := s.Scan(
		&b.ID,
		&b.RequesterID,
		&b.PickupLocation,
		&b.Destination,
		&b.ServiceTier,
		&b.Price,
		&b.ETAMinutes,
		&b.Status,
		&assignedDriverID,
		pq.Array(&declined),
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if assignedDriverID.Valid {
		b.AssignedDriverID = assignedDriverID.String
	}
	b.DeclinedDrivers = declined
	return &b, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
