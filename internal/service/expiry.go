package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ridedispatch/internal/domain"
	internalRedis "ridedispatch/internal/redis"
	"ridedispatch/internal/repository"
)

const (
	sweepLockName  = "sweep:expiry"
	sweepBatchSize = 100
)

// Expirer is the part of the coordinator the sweeper drives.
type Expirer interface {
	Expire(ctx context.Context, bookingID string) (*domain.BookingSnapshot, error)
}

// ExpirySweeper periodically expires bookings left pending past the window.
type ExpirySweeper struct {
	bookings repository.BookingRepository
	expirer  Expirer
	locker   internalRedis.Locker
	window   time.Duration
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewExpirySweeper creates a sweeper. locker may be nil on a single instance.
func NewExpirySweeper(
	bookings repository.BookingRepository,
	expirer Expirer,
	locker internalRedis.Locker,
	window, interval time.Duration,
	logger *slog.Logger,
) *ExpirySweeper {
	return &ExpirySweeper{
		bookings: bookings,
		expirer:  expirer,
		locker:   locker,
		window:   window,
		interval: interval,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps every interval until ctx is cancelled.
func (s *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("expiry sweeper started", "window", s.window, "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("expiry sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce expires one batch of overdue bookings and returns how many it
// expired. If another instance holds the sweep lock it does nothing.
func (s *ExpirySweeper) SweepOnce(ctx context.Context) (int, error) {
	if s.locker != nil {
		token, err := s.locker.Acquire(ctx, sweepLockName, s.interval)
		if err != nil {
			return 0, err
		}
		if token == "" {
			return 0, nil
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), sweepLockName, token); err != nil {
				s.logger.Warn("release sweep lock failed", "error", err)
			}
		}()
	}

	overdue, err := s.bookings.ListPendingBefore(ctx, s.now().Add(-s.window), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, b := range overdue {
		_, err := s.expirer.Expire(ctx, b.ID)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrConcurrentUpdate):
			// Accepted or cancelled since it was listed.
			s.logger.Debug("booking resolved before expiry", "booking_id", b.ID)
		default:
			return expired, err
		}
	}
	if expired > 0 {
		s.logger.Info("expired pending bookings", "count", expired)
	}
	return expired, nil
}
