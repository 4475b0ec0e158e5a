package domain

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to BookingStatus
		want     bool
	}{
		// forward lifecycle
		{BookingStatusPending, BookingStatusConfirmed, true},
		{BookingStatusConfirmed, BookingStatusEnroute, true},
		{BookingStatusEnroute, BookingStatusArrived, true},
		{BookingStatusArrived, BookingStatusInRide, true},
		{BookingStatusInRide, BookingStatusCompleted, true},
		// absorbing exits
		{BookingStatusPending, BookingStatusCancelled, true},
		{BookingStatusPending, BookingStatusExpired, true},
		{BookingStatusConfirmed, BookingStatusCancelled, true},
		{BookingStatusEnroute, BookingStatusCancelled, true},
		// skipping states
		{BookingStatusConfirmed, BookingStatusArrived, false},
		{BookingStatusPending, BookingStatusEnroute, false},
		{BookingStatusEnroute, BookingStatusCompleted, false},
		// backwards
		{BookingStatusConfirmed, BookingStatusPending, false},
		{BookingStatusInRide, BookingStatusArrived, false},
		// cancellation too late
		{BookingStatusArrived, BookingStatusCancelled, false},
		{BookingStatusInRide, BookingStatusCancelled, false},
		// terminal states have no exits
		{BookingStatusCompleted, BookingStatusCancelled, false},
		{BookingStatusCancelled, BookingStatusPending, false},
		{BookingStatusExpired, BookingStatusPending, false},
		{BookingStatusExpired, BookingStatusConfirmed, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestMayTrigger(t *testing.T) {
	cases := []struct {
		name     string
		from, to BookingStatus
		party    Party
		want     bool
	}{
		{"requester cancels pending", BookingStatusPending, BookingStatusCancelled, PartyRequester, true},
		{"driver cannot cancel pending", BookingStatusPending, BookingStatusCancelled, PartyDriver, false},
		{"requester cannot expire", BookingStatusPending, BookingStatusExpired, PartyRequester, false},
		{"system expires", BookingStatusPending, BookingStatusExpired, PartyPrivileged, true},
		{"driver marks enroute", BookingStatusConfirmed, BookingStatusEnroute, PartyDriver, true},
		{"requester cannot mark enroute", BookingStatusConfirmed, BookingStatusEnroute, PartyRequester, false},
		{"driver cancels confirmed", BookingStatusConfirmed, BookingStatusCancelled, PartyDriver, true},
		{"requester cancels enroute", BookingStatusEnroute, BookingStatusCancelled, PartyRequester, true},
		{"driver completes", BookingStatusInRide, BookingStatusCompleted, PartyDriver, true},
		{"stranger", BookingStatusInRide, BookingStatusCompleted, PartyNone, false},
		{"illegal edge even if privileged", BookingStatusConfirmed, BookingStatusArrived, PartyPrivileged, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MayTrigger(tc.from, tc.to, tc.party); got != tc.want {
				t.Errorf("MayTrigger(%s, %s, %q) = %v, want %v", tc.from, tc.to, tc.party, got, tc.want)
			}
		})
	}
}

func TestTransitionsAreMonotonic(t *testing.T) {
	for from, rules := range bookingTransitions {
		if from.Terminal() {
			t.Errorf("terminal status %s has outgoing transitions", from)
		}
		for _, r := range rules {
			if r.to.Rank() <= from.Rank() {
				t.Errorf("transition %s -> %s does not move forward", from, r.to)
			}
		}
	}
}

func TestPartyOf(t *testing.T) {
	b := &Booking{ID: "b1", RequesterID: "rider-1", AssignedDriverID: "driver-1"}

	cases := []struct {
		id   Identity
		want Party
	}{
		{Identity{ID: "rider-1", Role: RoleTraveller}, PartyRequester},
		{Identity{ID: "driver-1", Role: RoleDriver}, PartyDriver},
		{Identity{ID: "admin-1", Role: RoleAdmin}, PartyPrivileged},
		{SystemIdentity, PartyPrivileged},
		{Identity{ID: "driver-2", Role: RoleDriver}, PartyNone},
		{Identity{ID: "", Role: RoleTraveller}, PartyNone},
	}
	for _, tc := range cases {
		if got := PartyOf(b, tc.id); got != tc.want {
			t.Errorf("PartyOf(%+v) = %q, want %q", tc.id, got, tc.want)
		}
	}

	unassigned := &Booking{ID: "b2", RequesterID: "rider-1"}
	if got := PartyOf(unassigned, Identity{ID: "", Role: RoleDriver}); got != PartyNone {
		t.Errorf("empty identity matched empty driver slot: %q", got)
	}
}
