package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"ridedispatch/internal/domain"
)

// CacheStore handles driver display caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// DriverCacheTTL bounds how stale a driver's display info can be.
const DriverCacheTTL = 30 * time.Second

const driverCachePrefix = "cache:driver:"

// CachedDriver is the cached display projection of a driver.
type CachedDriver struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Vehicle domain.Vehicle `json:"vehicle"`
}

// Info converts the cached entry to the snapshot shape.
func (d *CachedDriver) Info() *domain.DriverInfo {
	return &domain.DriverInfo{ID: d.ID, Name: d.Name, Vehicle: d.Vehicle}
}

// NewCachedDriver builds a cache entry from a registry record.
func NewCachedDriver(d *domain.Driver) *CachedDriver {
	return &CachedDriver{ID: d.ID, Name: d.Name, Vehicle: d.Vehicle}
}

// GetDriver retrieves a driver from cache. A miss returns nil, nil.
func (s *CacheStore) GetDriver(ctx context.Context, driverID string) (*CachedDriver, error) {
	data, err := s.client.Get(ctx, driverCachePrefix+driverID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var driver CachedDriver
	if err := json.Unmarshal(data, &driver); err != nil {
		return nil, err
	}
	return &driver, nil
}

// SetDriver stores a driver in cache.
func (s *CacheStore) SetDriver(ctx context.Context, driver *CachedDriver) error {
	data, err := json.Marshal(driver)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, driverCachePrefix+driver.ID, data, DriverCacheTTL).Err()
}

// InvalidateDriver removes a driver from cache.
func (s *CacheStore) InvalidateDriver(ctx context.Context, driverID string) error {
	return s.client.Del(ctx, driverCachePrefix+driverID).Err()
}
