package repository

import (
	"context"

	"ridedispatch/internal/domain"
)

// DriverRepository defines the persistence operations for driver availability records.
type DriverRepository interface {
	// Upsert creates or replaces the driver profile, preserving availability on update.
	Upsert(ctx context.Context, driver *domain.Driver) error

	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// ListAvailable returns drivers currently accepting offers.
	ListAvailable(ctx context.Context) ([]*domain.Driver, error)

	// SetAvailability sets the accepting-offers flag.
	SetAvailability(ctx context.Context, id string, available bool) (*domain.Driver, error)

	// ToggleAvailability flips the accepting-offers flag in one write.
	ToggleAvailability(ctx context.Context, id string) (*domain.Driver, error)
}
