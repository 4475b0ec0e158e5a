package tests

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/realtime"
	"ridedispatch/internal/repository"
	"ridedispatch/internal/service"
)

func TestAccept_ConcurrentDriversExactlyOneWins(t *testing.T) {
	env := newDispatchEnv(t)
	b := env.createBooking(t)

	const numDrivers = 50
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		mu      sync.Mutex
		winners []string
		losers  int
		others  []error
	)

	for i := 0; i < numDrivers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			caller := domain.Identity{ID: fmt.Sprintf("racer-%d", i), Role: domain.RoleDriver}
			<-start

			snap, err := env.coordinator.Accept(context.Background(), caller, b.ID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, snap.Booking.AssignedDriverID)
			case errors.Is(err, service.ErrRideUnavailable):
				losers++
			default:
				others = append(others, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if len(others) != 0 {
		t.Fatalf("unexpected errors: %v", others)
	}
	if len(winners) != 1 {
		t.Fatalf("expected exactly 1 winner, got %d: %v", len(winners), winners)
	}
	if losers != numDrivers-1 {
		t.Errorf("expected %d conflicts, got %d", numDrivers-1, losers)
	}

	stored := env.bookings.GetBooking(b.ID)
	if stored.Status != domain.BookingStatusConfirmed {
		t.Errorf("expected confirmed, got %s", stored.Status)
	}
	if stored.AssignedDriverID != winners[0] {
		t.Errorf("expected stored driver %s, got %s", winners[0], stored.AssignedDriverID)
	}

	// Only the winner emits.
	if n := len(env.publisher.ByEvent(realtime.EventRideUpdate)); n != 2 {
		t.Errorf("expected one room emit and one broadcast, got %d", n)
	}
}

func TestAccept_TwoDriversOneConfirmedOneConflict(t *testing.T) {
	env := newDispatchEnv(t)
	b := env.createBooking(t)

	first, err := env.coordinator.Accept(context.Background(), driverA, b.ID)
	if err != nil {
		t.Fatalf("first accept: %v", err)
	}
	if first.Booking.Status != domain.BookingStatusConfirmed || first.Booking.AssignedDriverID != driverA.ID {
		t.Errorf("expected confirmed by driver-a, got %s by %s", first.Booking.Status, first.Booking.AssignedDriverID)
	}
	if first.Driver == nil || first.Driver.ID != driverA.ID {
		t.Errorf("expected resolved driver info for driver-a, got %+v", first.Driver)
	}

	_, err = env.coordinator.Accept(context.Background(), driverB, b.ID)
	if !errors.Is(err, service.ErrRideUnavailable) {
		t.Fatalf("expected ErrRideUnavailable, got %v", err)
	}
	if err.Error() != "ride no longer available" {
		t.Errorf("unexpected conflict message %q", err.Error())
	}
	if got := env.bookings.GetBooking(b.ID).AssignedDriverID; got != driverA.ID {
		t.Errorf("winner must never be overwritten, got %s", got)
	}
}

func TestAccept_WinnerEmitsToRoomAndBroadcastSeparately(t *testing.T) {
	env := newDispatchEnv(t)
	b := env.createBooking(t)
	env.publisher.Reset()

	if _, err := env.coordinator.Accept(context.Background(), driverA, b.ID); err != nil {
		t.Fatal(err)
	}

	updates := env.publisher.ByEvent(realtime.EventRideUpdate)
	if len(updates) != 2 {
		t.Fatalf("expected 2 ride:update emissions, got %d", len(updates))
	}

	var room, broadcast *Emission
	for i := range updates {
		if updates[i].Broadcast {
			broadcast = &updates[i]
		} else {
			room = &updates[i]
		}
	}
	if room == nil || room.Room != realtime.BookingRoom(b.ID) {
		t.Errorf("expected an emission to %s, got %+v", realtime.BookingRoom(b.ID), room)
	}
	if broadcast == nil {
		t.Fatal("expected a broadcast emission")
	}

	snap, ok := broadcast.Payload.(*domain.BookingSnapshot)
	if !ok {
		t.Fatalf("expected snapshot payload, got %T", broadcast.Payload)
	}
	if snap.Booking.ID != b.ID || snap.Driver == nil || snap.Driver.Name != "Driver driver-a" {
		t.Errorf("unexpected snapshot %+v / %+v", snap.Booking, snap.Driver)
	}
}

func TestAccept_DeclinedDriverCannotAccept(t *testing.T) {
	env := newDispatchEnv(t)
	b := env.createBooking(t)

	if _, err := env.coordinator.Decline(context.Background(), driverA, b.ID); err != nil {
		t.Fatal(err)
	}

	_, err := env.coordinator.Accept(context.Background(), driverA, b.ID)
	if !errors.Is(err, service.ErrRideUnavailable) {
		t.Errorf("expected ErrRideUnavailable for a declining driver, got %v", err)
	}
	if got := env.bookings.GetBooking(b.ID).Status; got != domain.BookingStatusPending {
		t.Errorf("expected pending, got %s", got)
	}
}

func TestAccept_RequesterCannotAcceptOwnBooking(t *testing.T) {
	env := newDispatchEnv(t)
	ctx := context.Background()

	b, err := env.coordinator.CreateBooking(ctx, driverA, service.CreateBookingRequest{
		Pickup:      "Berlin",
		Destination: "Munich",
		ServiceTier: "Economy",
		Price:       45.00,
		ETAMinutes:  180,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := env.coordinator.Accept(ctx, driverA, b.ID); !errors.Is(err, service.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for self-accept, got %v", err)
	}
	if got := env.bookings.GetBooking(b.ID); got.Status != domain.BookingStatusPending || got.AssignedDriverID != "" {
		t.Fatalf("booking should stay pending and unassigned, got %s/%q", got.Status, got.AssignedDriverID)
	}

	// Another driver still wins and can drive the ride forward.
	if _, err := env.coordinator.Accept(ctx, driverB, b.ID); err != nil {
		t.Fatalf("driver-b accept: %v", err)
	}
	snap, err := env.coordinator.SetStatus(ctx, driverB, b.ID, domain.BookingStatusEnroute)
	if err != nil {
		t.Fatalf("assigned driver should advance to enroute: %v", err)
	}
	if snap.Booking.Status != domain.BookingStatusEnroute {
		t.Errorf("expected enroute, got %s", snap.Booking.Status)
	}
}

// Driver A declines X, B accepts, later A's accept still loses.
func TestAccept_AfterDeclineAnotherDriverWins(t *testing.T) {
	env := newDispatchEnv(t)
	b := env.createBooking(t)
	ctx := context.Background()

	if _, err := env.coordinator.Decline(ctx, driverA, b.ID); err != nil {
		t.Fatal(err)
	}
	snap, err := env.coordinator.Accept(ctx, driverB, b.ID)
	if err != nil {
		t.Fatalf("driver-b accept: %v", err)
	}
	if snap.Booking.AssignedDriverID != driverB.ID {
		t.Errorf("expected driver-b, got %s", snap.Booking.AssignedDriverID)
	}

	if _, err := env.coordinator.Accept(ctx, driverA, b.ID); !errors.Is(err, service.ErrRideUnavailable) {
		t.Errorf("expected ErrRideUnavailable, got %v", err)
	}
}

func TestAccept_CancelledBookingConflicts(t *testing.T) {
	env := newDispatchEnv(t)
	b := env.createBooking(t)
	ctx := context.Background()

	snap, err := env.coordinator.Cancel(ctx, rider, b.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if snap.Booking.Status != domain.BookingStatusCancelled {
		t.Errorf("expected cancelled, got %s", snap.Booking.Status)
	}

	if _, err := env.coordinator.Accept(ctx, driverA, b.ID); !errors.Is(err, service.ErrRideUnavailable) {
		t.Errorf("expected ErrRideUnavailable, got %v", err)
	}
}

func TestAccept_RequiresDriverRole(t *testing.T) {
	env := newDispatchEnv(t)
	b := env.createBooking(t)

	for _, caller := range []domain.Identity{rider, other, admin} {
		if _, err := env.coordinator.Accept(context.Background(), caller, b.ID); !errors.Is(err, service.ErrForbidden) {
			t.Errorf("%s: expected ErrForbidden, got %v", caller.Role, err)
		}
	}
	if n := atomic32(&env.bookings.TryAssignCallCount); n != 0 {
		t.Errorf("store must not be touched, got %d calls", n)
	}
}

func TestAccept_UnknownBooking(t *testing.T) {
	env := newDispatchEnv(t)

	_, err := env.coordinator.Accept(context.Background(), driverA, "missing")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAccept_EmitFailureDoesNotFailAccept(t *testing.T) {
	env := newDispatchEnv(t)
	b := env.createBooking(t)
	env.publisher.PublishError = errors.New("transport down")
	env.publisher.BroadcastError = errors.New("transport down")

	snap, err := env.coordinator.Accept(context.Background(), driverA, b.ID)
	if err != nil {
		t.Fatalf("expected accept to succeed, got %v", err)
	}
	if snap.Booking.Status != domain.BookingStatusConfirmed {
		t.Errorf("expected confirmed, got %s", snap.Booking.Status)
	}
}

func TestAccept_DriverWithoutProfileResolvesToNullDriver(t *testing.T) {
	env := newDispatchEnv(t)
	b := env.createBooking(t)
	ghost := domain.Identity{ID: "driver-ghost", Role: domain.RoleDriver}

	snap, err := env.coordinator.Accept(context.Background(), ghost, b.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if snap.Driver != nil {
		t.Errorf("expected nil driver info, got %+v", snap.Driver)
	}
}
