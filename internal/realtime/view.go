package realtime

import (
	"encoding/json"
	"sync"

	"ridedispatch/internal/domain"
)

// View is a client-side projection of bookings fed by query results and
// realtime events. Every input is applied last-write-wins per booking id,
// so duplicated or reordered deliveries converge to the same state.
type View struct {
	mu       sync.Mutex
	bookings map[string]domain.BookingSnapshot
	watch    map[string]struct{}
}

// NewView creates an empty view. If ids are given, events for any other
// booking are ignored.
func NewView(ids ...string) *View {
	v := &View{bookings: make(map[string]domain.BookingSnapshot)}
	if len(ids) > 0 {
		v.watch = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			v.watch[id] = struct{}{}
		}
	}
	return v
}

// Apply merges a snapshot and reports whether it changed the view.
func (v *View) Apply(s domain.BookingSnapshot) bool {
	if s.Booking == nil {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.watch != nil {
		if _, ok := v.watch[s.Booking.ID]; !ok {
			return false
		}
	}
	cur, ok := v.bookings[s.Booking.ID]
	if ok && !s.Booking.Supersedes(cur.Booking) {
		return false
	}
	v.bookings[s.Booking.ID] = s
	return true
}

// ApplyEnvelope decodes ride:update and ride:new frames and applies them.
// Other events are ignored.
func (v *View) ApplyEnvelope(env Envelope) (bool, error) {
	switch env.Event {
	case EventRideUpdate:
		var s domain.BookingSnapshot
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return false, err
		}
		return v.Apply(s), nil
	case EventRideNew:
		var b domain.Booking
		if err := json.Unmarshal(env.Data, &b); err != nil {
			return false, err
		}
		return v.Apply(domain.BookingSnapshot{Booking: &b}), nil
	}
	return false, nil
}

// Get returns the current snapshot for id.
func (v *View) Get(id string) (domain.BookingSnapshot, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.bookings[id]
	return s, ok
}
