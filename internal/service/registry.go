package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ridedispatch/internal/domain"
	internalRedis "ridedispatch/internal/redis"
	"ridedispatch/internal/repository"
)

// DriverDirectory is the registry as seen by the coordinator and query path.
type DriverDirectory interface {
	ListAvailable(ctx context.Context) ([]*domain.Driver, error)
	DriverInfo(ctx context.Context, driverID string) (*domain.DriverInfo, error)
}

// Registry manages driver availability records.
type Registry struct {
	drivers repository.DriverRepository
	cache   internalRedis.DriverCache
	logger  *slog.Logger
}

// NewRegistry creates a Registry. cache may be nil.
func NewRegistry(drivers repository.DriverRepository, cache internalRedis.DriverCache, logger *slog.Logger) *Registry {
	return &Registry{drivers: drivers, cache: cache, logger: logger}
}

var _ DriverDirectory = (*Registry)(nil)

// RegisterDriverRequest contains the driver profile.
type RegisterDriverRequest struct {
	Name      string
	Vehicle   domain.Vehicle
	Available bool
}

// Register creates or updates the caller's driver profile. Availability is
// only applied when the profile is first created.
func (r *Registry) Register(ctx context.Context, caller domain.Identity, req RegisterDriverRequest) (*domain.Driver, error) {
	if !caller.IsDriver() {
		return nil, ErrForbidden
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrInvalidDriverName
	}
	if req.Vehicle.Seats < 0 {
		return nil, ErrInvalidVehicle
	}

	d := &domain.Driver{
		ID:        caller.ID,
		Name:      name,
		Available: req.Available,
		Vehicle:   req.Vehicle,
		UpdatedAt: time.Now().UTC(),
	}
	if err := r.drivers.Upsert(ctx, d); err != nil {
		return nil, err
	}
	r.invalidate(ctx, d.ID)
	return r.drivers.GetByID(ctx, d.ID)
}

// SetAvailability sets whether the caller receives new offers.
func (r *Registry) SetAvailability(ctx context.Context, caller domain.Identity, available bool) (*domain.Driver, error) {
	if !caller.IsDriver() {
		return nil, ErrForbidden
	}
	return r.drivers.SetAvailability(ctx, caller.ID, available)
}

// ToggleAvailability flips whether the caller receives new offers.
func (r *Registry) ToggleAvailability(ctx context.Context, caller domain.Identity) (*domain.Driver, error) {
	if !caller.IsDriver() {
		return nil, ErrForbidden
	}
	return r.drivers.ToggleAvailability(ctx, caller.ID)
}

// ListAvailable snapshots the drivers currently accepting offers.
func (r *Registry) ListAvailable(ctx context.Context) ([]*domain.Driver, error) {
	return r.drivers.ListAvailable(ctx)
}

// DriverInfo returns display info for driverID, read through the cache.
// It returns repository.ErrNotFound when the driver has no profile.
func (r *Registry) DriverInfo(ctx context.Context, driverID string) (*domain.DriverInfo, error) {
	if r.cache != nil {
		cached, err := r.cache.GetDriver(ctx, driverID)
		if err != nil {
			r.logger.Warn("driver cache read failed", "driver_id", driverID, "error", err)
		} else if cached != nil {
			return cached.Info(), nil
		}
	}

	d, err := r.drivers.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.SetDriver(ctx, internalRedis.NewCachedDriver(d)); err != nil {
			r.logger.Warn("driver cache write failed", "driver_id", driverID, "error", err)
		}
	}
	return d.Info(), nil
}

func (r *Registry) invalidate(ctx context.Context, driverID string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.InvalidateDriver(ctx, driverID); err != nil {
		r.logger.Warn("driver cache invalidation failed", "driver_id", driverID, "error", err)
	}
}

// resolveDriver looks up display info for a booking's assigned driver.
// A driver without a profile resolves to nil.
func resolveDriver(ctx context.Context, dir DriverDirectory, b *domain.Booking) (*domain.DriverInfo, error) {
	if b.AssignedDriverID == "" {
		return nil, nil
	}
	info, err := dir.DriverInfo(ctx, b.AssignedDriverID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return info, err
}
