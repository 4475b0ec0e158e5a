package redis

import (
	"context"
	"time"
)

// DriverCache defines the driver display cache contract.
type DriverCache interface {
	GetDriver(ctx context.Context, driverID string) (*CachedDriver, error)
	SetDriver(ctx context.Context, driver *CachedDriver) error
	InvalidateDriver(ctx context.Context, driverID string) error
}

// Locker defines the interface for distributed locking.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (string, error)
	Release(ctx context.Context, name, token string) error
}

// Ensure concrete types implement interfaces.
var (
	_ DriverCache = (*CacheStore)(nil)
	_ Locker      = (*LockStore)(nil)
)
