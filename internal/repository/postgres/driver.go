package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
)

const driverColumns = `id, name, available, vehicle_make, vehicle_model, vehicle_color, vehicle_plate, vehicle_seats, updated_at`

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

var _ repository.DriverRepository = (*DriverRepository)(nil)

// Upsert creates the driver or replaces its profile. Availability is only
// taken from the argument on insert.
func (r *DriverRepository) Upsert(ctx context.Context, d *domain.Driver) error {
	query := `
		INSERT INTO drivers (` + driverColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			vehicle_make = EXCLUDED.vehicle_make,
			vehicle_model = EXCLUDED.vehicle_model,
			vehicle_color = EXCLUDED.vehicle_color,
			vehicle_plate = EXCLUDED.vehicle_plate,
			vehicle_seats = EXCLUDED.vehicle_seats,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.q.ExecContext(ctx, query,
		d.ID,
		d.Name,
		d.Available,
		d.Vehicle.Make,
		d.Vehicle.Model,
		d.Vehicle.Color,
		d.Vehicle.Plate,
		d.Vehicle.Seats,
		d.UpdatedAt,
	)
	return classify(err)
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE id = $1`
	return r.one(r.q.QueryRowContext(ctx, query, id))
}

// ListAvailable returns drivers currently accepting offers.
func (r *DriverRepository) ListAvailable(ctx context.Context) ([]*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE available ORDER BY id`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	drivers := make([]*domain.Driver, 0)
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, classify(rows.Err())
}

// SetAvailability sets the accepting-offers flag.
func (r *DriverRepository) SetAvailability(ctx context.Context, id string, available bool) (*domain.Driver, error) {
	query := `UPDATE drivers SET available = $2, updated_at = $3 WHERE id = $1 RETURNING ` + driverColumns
	return r.one(r.q.QueryRowContext(ctx, query, id, available, time.Now().UTC()))
}

// ToggleAvailability flips the accepting-offers flag.
func (r *DriverRepository) ToggleAvailability(ctx context.Context, id string) (*domain.Driver, error) {
	query := `UPDATE drivers SET available = NOT available, updated_at = $2 WHERE id = $1 RETURNING ` + driverColumns
	return r.one(r.q.QueryRowContext(ctx, query, id, time.Now().UTC()))
}

func (r *DriverRepository) one(row *sql.Row) (*domain.Driver, error) {
	d, err := scanDriver(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, classify(err)
	}
	return d, nil
}

func scanDriver(s scanner) (*domain.Driver, error) {
	var d domain.Driver
	err := s.Scan(
		&d.ID,
		&d.Name,
		&d.Available,
		&d.Vehicle.Make,
		&d.Vehicle.Model,
		&d.Vehicle.Color,
		&d.Vehicle.Plate,
		&d.Vehicle.Seats,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
