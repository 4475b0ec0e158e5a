package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestBookingJSON_UnassignedDriverIsNull(t *testing.T) {
	b := Booking{ID: "b1", RequesterID: "r1", Status: BookingStatusPending}

	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(data)
	if !strings.Contains(body, `"assignedDriver":null`) {
		t.Errorf("expected null assignedDriver, got %s", body)
	}
	if !strings.Contains(body, `"declinedDrivers":[]`) {
		t.Errorf("expected empty declined set, got %s", body)
	}
}

func TestBookingJSON_AssignedDriverRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	in := &Booking{
		ID:               "b1",
		RequesterID:      "r1",
		PickupLocation:   "Berlin",
		Destination:      "Munich",
		ServiceTier:      "Economy",
		Price:            45,
		ETAMinutes:       180,
		Status:           BookingStatusConfirmed,
		AssignedDriverID: "d1",
		DeclinedDrivers:  []string{"d0"},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"assignedDriver":"d1"`) {
		t.Fatalf("expected assignedDriver in %s", data)
	}

	var out Booking
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.AssignedDriverID != "d1" || out.Status != BookingStatusConfirmed || out.ETAMinutes != 180 {
		t.Errorf("unexpected decoded booking: %+v", out)
	}
	if !out.HasDeclined("d0") || out.HasDeclined("d1") {
		t.Errorf("declined set not preserved: %v", out.DeclinedDrivers)
	}
}

func TestBookingSupersedes(t *testing.T) {
	t0 := time.Now()
	older := &Booking{ID: "b1", Status: BookingStatusPending, UpdatedAt: t0}
	newer := &Booking{ID: "b1", Status: BookingStatusConfirmed, UpdatedAt: t0.Add(time.Second)}
	sameTimeLater := &Booking{ID: "b1", Status: BookingStatusConfirmed, UpdatedAt: t0}
	other := &Booking{ID: "b2", Status: BookingStatusCompleted, UpdatedAt: t0.Add(time.Hour)}

	if !newer.Supersedes(older) {
		t.Error("newer updatedAt should supersede")
	}
	if older.Supersedes(newer) {
		t.Error("older updatedAt should not supersede")
	}
	if !sameTimeLater.Supersedes(older) {
		t.Error("higher rank at equal updatedAt should supersede")
	}
	if newer.Supersedes(newer) {
		t.Error("identical view should not supersede itself")
	}
	if other.Supersedes(older) {
		t.Error("different booking ids must never supersede")
	}
}

func TestBookingSupersedes_RankBeatsSkewedClock(t *testing.T) {
	t0 := time.Now()
	confirmed := &Booking{ID: "b1", Status: BookingStatusConfirmed, UpdatedAt: t0}
	// Written by a node whose clock runs behind.
	enroute := &Booking{ID: "b1", Status: BookingStatusEnroute, UpdatedAt: t0.Add(-2 * time.Second)}

	if !enroute.Supersedes(confirmed) {
		t.Error("later status should supersede despite an older updatedAt")
	}
	if confirmed.Supersedes(enroute) {
		t.Error("earlier status must not supersede a later one")
	}
	if enroute.Supersedes(enroute) {
		t.Error("identical view should not supersede itself")
	}

	declined := &Booking{ID: "b1", Status: BookingStatusPending, UpdatedAt: t0.Add(time.Second), DeclinedDrivers: []string{"d1"}}
	pending := &Booking{ID: "b1", Status: BookingStatusPending, UpdatedAt: t0}
	if !declined.Supersedes(pending) || pending.Supersedes(declined) {
		t.Error("equal rank should fall back to updatedAt")
	}
}

func TestNewBookingStats(t *testing.T) {
	stats := NewBookingStats(map[BookingStatus]int{
		BookingStatusCompleted: 3,
		BookingStatusPending:   1,
	})
	if stats.Total != 4 {
		t.Errorf("expected total 4, got %d", stats.Total)
	}
	if stats.ByStatus[BookingStatusCancelled] != 0 {
		t.Errorf("expected zero-filled cancelled count")
	}
	if len(stats.ByStatus) != len(AllBookingStatuses) {
		t.Errorf("expected every status present, got %d", len(stats.ByStatus))
	}
}
