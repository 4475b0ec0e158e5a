package tests

import (
	"context"
	"testing"
	"time"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/logging"
	"ridedispatch/internal/realtime"
	"ridedispatch/internal/service"
)

func seedPending(env *dispatchEnv, id string, age time.Duration) {
	created := time.Now().UTC().Add(-age)
	env.bookings.AddBooking(&domain.Booking{
		ID:             id,
		RequesterID:    rider.ID,
		PickupLocation: "Berlin",
		Destination:    "Munich",
		ServiceTier:    "Economy",
		Status:         domain.BookingStatusPending,
		CreatedAt:      created,
		UpdatedAt:      created,
	})
}

// newSweeper builds a sweeper with a 10 minute window. A nil locks runs
// without the distributed lock.
func newSweeper(env *dispatchEnv, locks *MockLockStore) *service.ExpirySweeper {
	if locks == nil {
		return service.NewExpirySweeper(env.bookings, env.coordinator, nil, 10*time.Minute, time.Minute, logging.Discard())
	}
	return service.NewExpirySweeper(env.bookings, env.coordinator, locks, 10*time.Minute, time.Minute, logging.Discard())
}

func TestExpiry_ExpiresOnlyOverduePending(t *testing.T) {
	env := newDispatchEnv(t)
	seedPending(env, "old", 15*time.Minute)
	seedPending(env, "fresh", time.Minute)
	seedPending(env, "old-accepted", 20*time.Minute)
	if _, err := env.coordinator.Accept(context.Background(), driverA, "old-accepted"); err != nil {
		t.Fatal(err)
	}
	env.publisher.Reset()

	n, err := newSweeper(env, NewMockLockStore()).SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 expired, got %d", n)
	}

	if got := env.bookings.GetBooking("old").Status; got != domain.BookingStatusExpired {
		t.Errorf("expected old to expire, got %s", got)
	}
	if got := env.bookings.GetBooking("fresh").Status; got != domain.BookingStatusPending {
		t.Errorf("expected fresh to stay pending, got %s", got)
	}
	if got := env.bookings.GetBooking("old-accepted").Status; got != domain.BookingStatusConfirmed {
		t.Errorf("expected accepted booking untouched, got %s", got)
	}

	// Broadcast like any other update.
	if n := len(env.publisher.ByEvent(realtime.EventRideUpdate)); n != 2 {
		t.Errorf("expected room emit and broadcast, got %d", n)
	}

	notes := env.notifier.For(rider.ID)
	if len(notes) == 0 || notes[len(notes)-1].Type != service.NotificationRideExpired {
		t.Fatalf("expected an expiry notification, got %+v", notes)
	}
	if notes[len(notes)-1].Action != service.ActionRetry {
		t.Errorf("expected retry action, got %q", notes[len(notes)-1].Action)
	}
}

func TestExpiry_SkipsWhenAnotherInstanceHoldsTheLock(t *testing.T) {
	env := newDispatchEnv(t)
	seedPending(env, "old", time.Hour)
	locks := NewMockLockStore()
	locks.Hold("sweep:expiry")

	n, err := newSweeper(env, locks).SweepOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected no work, got %d", n)
	}
	if got := env.bookings.GetBooking("old").Status; got != domain.BookingStatusPending {
		t.Errorf("expected pending, got %s", got)
	}
}

func TestExpiry_ReleasesLockAfterSweep(t *testing.T) {
	env := newDispatchEnv(t)
	locks := NewMockLockStore()

	if _, err := newSweeper(env, locks).SweepOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if locks.IsLocked("sweep:expiry") {
		t.Error("expected the sweep lock to be released")
	}
}

func TestExpiry_RaceWithAcceptIsSkipped(t *testing.T) {
	env := newDispatchEnv(t)
	seedPending(env, "contested", time.Hour)

	// The driver wins between listing and expiring.
	env.bookings.BeforeUpdateStatus = func(id string) {
		env.bookings.BeforeUpdateStatus = nil
		if _, err := env.coordinator.Accept(context.Background(), driverA, id); err != nil {
			t.Errorf("accept: %v", err)
		}
	}

	n, err := newSweeper(env, nil).SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep must skip resolved bookings, got %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 expired, got %d", n)
	}
	if got := env.bookings.GetBooking("contested").Status; got != domain.BookingStatusConfirmed {
		t.Errorf("expected confirmed, got %s", got)
	}
}

func TestExpiry_RunStopsOnCancel(t *testing.T) {
	env := newDispatchEnv(t)
	sweeper := service.NewExpirySweeper(env.bookings, env.coordinator, nil, time.Minute, 10*time.Millisecond, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
