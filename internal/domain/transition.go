package domain

// Party is the relationship of an actor to a specific booking.
type Party string

const (
	PartyNone       Party = ""
	PartyRequester  Party = "requester"
	PartyDriver     Party = "driver"
	PartyPrivileged Party = "privileged"
)

// PartyOf resolves how id relates to b.
func PartyOf(b *Booking, id Identity) Party {
	switch {
	case id.Privileged():
		return PartyPrivileged
	case id.ID != "" && id.ID == b.RequesterID:
		return PartyRequester
	case id.ID != "" && id.ID == b.AssignedDriverID:
		return PartyDriver
	}
	return PartyNone
}

type transitionRule struct {
	to BookingStatus
	by []Party
}

// bookingTransitions is the state machine. pending -> confirmed is listed
// for completeness but is only reachable through the accept race.
var bookingTransitions = map[BookingStatus][]transitionRule{
	BookingStatusPending: {
		{BookingStatusConfirmed, []Party{PartyDriver}},
		{BookingStatusCancelled, []Party{PartyRequester}},
		{BookingStatusExpired, nil},
	},
	BookingStatusConfirmed: {
		{BookingStatusEnroute, []Party{PartyDriver}},
		{BookingStatusCancelled, []Party{PartyRequester, PartyDriver}},
	},
	BookingStatusEnroute: {
		{BookingStatusArrived, []Party{PartyDriver}},
		{BookingStatusCancelled, []Party{PartyRequester, PartyDriver}},
	},
	BookingStatusArrived: {
		{BookingStatusInRide, []Party{PartyDriver}},
	},
	BookingStatusInRide: {
		{BookingStatusCompleted, []Party{PartyDriver}},
	},
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to BookingStatus) bool {
	for _, r := range bookingTransitions[from] {
		if r.to == to {
			return true
		}
	}
	return false
}

// MayTrigger reports whether party is allowed to drive from -> to.
// Privileged actors (admin, system scheduler) may trigger any legal edge.
func MayTrigger(from, to BookingStatus, party Party) bool {
	if party == PartyNone {
		return false
	}
	for _, r := range bookingTransitions[from] {
		if r.to != to {
			continue
		}
		if party == PartyPrivileged {
			return true
		}
		for _, p := range r.by {
			if p == party {
				return true
			}
		}
		return false
	}
	return false
}
