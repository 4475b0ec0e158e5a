package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newPendingBooking(t *testing.T, repo *BookingRepository) *domain.Booking {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	b := &domain.Booking{
		ID:             uuid.NewString(),
		RequesterID:    "rider-" + uuid.NewString(),
		PickupLocation: "Berlin",
		Destination:    "Munich",
		ServiceTier:    "Economy",
		Price:          45,
		ETAMinutes:     180,
		Status:         domain.BookingStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := repo.Create(context.Background(), b); err != nil {
		t.Fatalf("create: %v", err)
	}
	return b
}

func TestBookingRepository_TryAssignDriverRace(t *testing.T) {
	db := openTestDB(t)
	repo := NewBookingRepository(db)
	b := newPendingBooking(t, repo)

	const drivers = 16
	start := make(chan struct{})
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := []string{}
	conflicts := 0

	for i := 0; i < drivers; i++ {
		wg.Add(1)
		go func(driverID string) {
			defer wg.Done()
			<-start
			_, err := repo.TryAssignDriver(context.Background(), b.ID, driverID, time.Now().UTC())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, driverID)
			case errors.Is(err, repository.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(fmt.Sprintf("driver-%d", i))
	}
	close(start)
	wg.Wait()

	if len(winners) != 1 || conflicts != drivers-1 {
		t.Fatalf("expected exactly one winner, got winners=%v conflicts=%d", winners, conflicts)
	}

	got, err := repo.GetByID(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.BookingStatusConfirmed || got.AssignedDriverID != winners[0] {
		t.Errorf("stored booking does not match winner: %+v", got)
	}
}

func TestBookingRepository_DeclinedDriverCannotWin(t *testing.T) {
	db := openTestDB(t)
	repo := NewBookingRepository(db)
	b := newPendingBooking(t, repo)
	ctx := context.Background()

	changed, err := repo.AddDeclined(ctx, b.ID, "driver-a", time.Now().UTC())
	if err != nil || !changed {
		t.Fatalf("first decline: changed=%v err=%v", changed, err)
	}
	changed, err = repo.AddDeclined(ctx, b.ID, "driver-a", time.Now().UTC())
	if err != nil || changed {
		t.Fatalf("repeat decline should be a no-op: changed=%v err=%v", changed, err)
	}

	if _, err := repo.TryAssignDriver(ctx, b.ID, "driver-a", time.Now().UTC()); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("declined driver should conflict, got %v", err)
	}
	if _, err := repo.TryAssignDriver(ctx, b.ID, "driver-b", time.Now().UTC()); err != nil {
		t.Fatalf("other driver should win: %v", err)
	}
}

func TestBookingRepository_RequesterCannotWin(t *testing.T) {
	db := openTestDB(t)
	repo := NewBookingRepository(db)
	b := newPendingBooking(t, repo)

	if _, err := repo.TryAssignDriver(context.Background(), b.ID, b.RequesterID, time.Now().UTC()); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("requester should conflict, got %v", err)
	}
	got, err := repo.GetByID(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.BookingStatusPending {
		t.Errorf("expected pending, got %s", got.Status)
	}
}

func TestBookingRepository_UpdatedAtNeverMovesBack(t *testing.T) {
	db := openTestDB(t)
	repo := NewBookingRepository(db)
	b := newPendingBooking(t, repo)
	ctx := context.Background()

	later := time.Now().UTC().Add(time.Minute)
	accepted, err := repo.TryAssignDriver(ctx, b.ID, uuid.NewString(), later)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	skewed := later.Add(-30 * time.Second)
	enroute, err := repo.UpdateStatus(ctx, b.ID, domain.BookingStatusConfirmed, domain.BookingStatusEnroute, skewed)
	if err != nil {
		t.Fatalf("enroute: %v", err)
	}
	if enroute.UpdatedAt.Before(accepted.UpdatedAt) {
		t.Errorf("updatedAt moved back: %v -> %v", accepted.UpdatedAt, enroute.UpdatedAt)
	}
	if !enroute.Supersedes(accepted) {
		t.Error("enroute row should supersede the confirmed row")
	}
}

func TestBookingRepository_UpdateStatusIsConditional(t *testing.T) {
	db := openTestDB(t)
	repo := NewBookingRepository(db)
	b := newPendingBooking(t, repo)
	ctx := context.Background()

	if _, err := repo.UpdateStatus(ctx, b.ID, domain.BookingStatusPending, domain.BookingStatusCancelled, time.Now().UTC()); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := repo.UpdateStatus(ctx, b.ID, domain.BookingStatusPending, domain.BookingStatusExpired, time.Now().UTC()); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("stale from-status should conflict, got %v", err)
	}
	if _, err := repo.UpdateStatus(ctx, uuid.NewString(), domain.BookingStatusPending, domain.BookingStatusExpired, time.Now().UTC()); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("missing booking should be not found, got %v", err)
	}

	counts, err := repo.CountByStatus(ctx, repository.BookingFilter{RequesterID: b.RequesterID})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[domain.BookingStatusCancelled] != 1 {
		t.Errorf("expected one cancelled booking, got %v", counts)
	}
}
