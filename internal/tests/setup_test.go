package tests

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/logging"
	"ridedispatch/internal/service"
)

var (
	rider   = domain.Identity{ID: "rider-1", Role: domain.RoleTraveller}
	other   = domain.Identity{ID: "rider-2", Role: domain.RoleTraveller}
	driverA = domain.Identity{ID: "driver-a", Role: domain.RoleDriver}
	driverB = domain.Identity{ID: "driver-b", Role: domain.RoleDriver}
	driverC = domain.Identity{ID: "driver-c", Role: domain.RoleDriver}
	admin   = domain.Identity{ID: "admin-1", Role: domain.RoleAdmin}
)

// dispatchEnv wires the services over in-memory collaborators.
type dispatchEnv struct {
	bookings  *MockBookingRepository
	drivers   *MockDriverRepository
	messages  *MockChatRepository
	cache     *MockDriverCache
	publisher *RecordingPublisher
	notifier  *RecordingNotifier

	registry    *service.Registry
	coordinator *service.Coordinator
	query       *service.Query
	chat        *service.Chat
}

func newDispatchEnv(t *testing.T) *dispatchEnv {
	t.Helper()
	logger := logging.Discard()

	env := &dispatchEnv{
		bookings:  NewMockBookingRepository(),
		drivers:   NewMockDriverRepository(),
		messages:  NewMockChatRepository(),
		cache:     NewMockDriverCache(),
		publisher: NewRecordingPublisher(),
		notifier:  NewRecordingNotifier(),
	}
	env.registry = service.NewRegistry(env.drivers, env.cache, logger)
	env.coordinator = service.NewCoordinator(env.bookings, env.registry, env.publisher, env.notifier, logger)
	env.query = service.NewQuery(env.bookings, env.registry)
	env.chat = service.NewChat(env.bookings, env.messages, env.publisher, env.notifier, logger)

	for _, id := range []domain.Identity{driverA, driverB, driverC} {
		env.drivers.AddDriver(&domain.Driver{
			ID:        id.ID,
			Name:      "Driver " + id.ID,
			Available: true,
			Vehicle:   domain.Vehicle{Make: "Toyota", Model: "Prius", Color: "white", Plate: "B-" + id.ID, Seats: 4},
			UpdatedAt: time.Now().UTC(),
		})
	}
	return env
}

func (e *dispatchEnv) createBooking(t *testing.T) *domain.Booking {
	t.Helper()
	b, err := e.coordinator.CreateBooking(context.Background(), rider, service.CreateBookingRequest{
		Pickup:      "Berlin",
		Destination: "Munich",
		ServiceTier: "Economy",
		Price:       45.00,
		ETAMinutes:  180,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return b
}

func (e *dispatchEnv) accepted(t *testing.T, by domain.Identity) *domain.Booking {
	t.Helper()
	b := e.createBooking(t)
	if _, err := e.coordinator.Accept(context.Background(), by, b.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	return e.bookings.GetBooking(b.ID)
}

func atomic32(p *int32) int32 { return atomic.LoadInt32(p) }
