package tests

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/realtime"
	"ridedispatch/internal/service"
)

func TestQuery_AuthorizationBoundary(t *testing.T) {
	env := newDispatchEnv(t)
	b := env.accepted(t, driverA)
	ctx := context.Background()

	outsiders := []domain.Identity{other, driverB}
	for _, o := range outsiders {
		if _, err := env.query.GetBooking(ctx, o, b.ID); !errors.Is(err, service.ErrForbidden) {
			t.Errorf("%s getBooking: expected ErrForbidden, got %v", o.ID, err)
		}
		if _, err := env.coordinator.SetStatus(ctx, o, b.ID, domain.BookingStatusCancelled); !errors.Is(err, service.ErrForbidden) {
			t.Errorf("%s setStatus: expected ErrForbidden, got %v", o.ID, err)
		}
		if _, err := env.chat.Send(ctx, o, b.ID, "hello"); !errors.Is(err, service.ErrForbidden) {
			t.Errorf("%s chat send: expected ErrForbidden, got %v", o.ID, err)
		}
	}

	for _, allowed := range []domain.Identity{rider, driverA, admin} {
		if _, err := env.query.GetBooking(ctx, allowed, b.ID); err != nil {
			t.Errorf("%s getBooking: unexpected error %v", allowed.ID, err)
		}
	}

	if got := env.bookings.GetBooking(b.ID).Status; got != domain.BookingStatusConfirmed {
		t.Errorf("outsiders must not mutate, status is %s", got)
	}
}

// A client that was offline while the ride completed sees the same
// snapshot the live feed carried.
func TestQuery_ReconnectAfterCompletion(t *testing.T) {
	env := newDispatchEnv(t)
	b := env.accepted(t, driverA)
	ctx := context.Background()

	var last *domain.BookingSnapshot
	for _, to := range []domain.BookingStatus{
		domain.BookingStatusEnroute,
		domain.BookingStatusArrived,
		domain.BookingStatusInRide,
		domain.BookingStatusCompleted,
	} {
		snap, err := env.coordinator.SetStatus(ctx, driverA, b.ID, to)
		if err != nil {
			t.Fatalf("set %s: %v", to, err)
		}
		last = snap
	}

	got, err := env.query.GetBooking(ctx, rider, b.ID)
	if err != nil {
		t.Fatalf("get booking: %v", err)
	}
	if got.Booking.Status != domain.BookingStatusCompleted {
		t.Errorf("expected completed, got %s", got.Booking.Status)
	}
	if got.Driver == nil || got.Driver.ID != driverA.ID || got.Driver.Vehicle.Plate != "B-driver-a" {
		t.Errorf("expected full driver info, got %+v", got.Driver)
	}

	live, _ := json.Marshal(last)
	fetched, _ := json.Marshal(got)
	if string(live) != string(fetched) {
		t.Errorf("query result differs from live event:\nlive:  %s\nquery: %s", live, fetched)
	}

	// And the two reconcile in a client view without regressing.
	view := realtime.NewView(b.ID)
	view.Apply(*got)
	if view.Apply(*last) {
		t.Error("applying the identical live event must be a no-op")
	}
}

func TestQuery_PendingBookingHasNullDriver(t *testing.T) {
	env := newDispatchEnv(t)
	b := env.createBooking(t)

	snap, err := env.query.GetBooking(context.Background(), rider, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := json.Marshal(snap)
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if string(decoded["driver"]) != "null" {
		t.Errorf("expected driver null, got %s", decoded["driver"])
	}
}

func TestQuery_ListBookingsScopesByRole(t *testing.T) {
	env := newDispatchEnv(t)
	ctx := context.Background()
	env.createBooking(t)
	env.createBooking(t)
	if _, err := env.coordinator.CreateBooking(ctx, other, service.CreateBookingRequest{
		Pickup: "Hamburg", Destination: "Bremen", ServiceTier: "Comfort",
	}); err != nil {
		t.Fatal(err)
	}

	mine, err := env.query.ListBookings(ctx, rider)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 {
		t.Errorf("expected 2 own bookings, got %d", len(mine))
	}
	all, err := env.query.ListBookings(ctx, admin)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("expected admin to see 3 bookings, got %d", len(all))
	}
}

func TestQuery_DriverListingAndStats(t *testing.T) {
	env := newDispatchEnv(t)
	ctx := context.Background()
	first := env.accepted(t, driverA)
	env.accepted(t, driverA)
	env.createBooking(t)
	if _, err := env.coordinator.Cancel(ctx, driverA, first.ID); err != nil {
		t.Fatal(err)
	}

	assigned, err := env.query.ListForDriver(ctx, driverA)
	if err != nil {
		t.Fatal(err)
	}
	if len(assigned) != 2 {
		t.Errorf("expected 2 assigned bookings, got %d", len(assigned))
	}

	driverStats, err := env.query.StatsForDriver(ctx, driverA)
	if err != nil {
		t.Fatal(err)
	}
	if driverStats.Total != 2 ||
		driverStats.ByStatus[domain.BookingStatusConfirmed] != 1 ||
		driverStats.ByStatus[domain.BookingStatusCancelled] != 1 {
		t.Errorf("unexpected driver stats %+v", driverStats)
	}

	riderStats, err := env.query.StatsForRequester(ctx, rider)
	if err != nil {
		t.Fatal(err)
	}
	if riderStats.Total != 3 || riderStats.ByStatus[domain.BookingStatusPending] != 1 {
		t.Errorf("unexpected rider stats %+v", riderStats)
	}
	if _, ok := riderStats.ByStatus[domain.BookingStatusExpired]; !ok {
		t.Error("stats must list every status, including zero counts")
	}

	if _, err := env.query.ListForDriver(ctx, rider); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("expected ErrForbidden for non-driver, got %v", err)
	}
}
