package domain

import (
	"encoding/json"
	"time"
)

// BookingStatus represents the lifecycle state of a booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusEnroute   BookingStatus = "enroute"
	BookingStatusArrived   BookingStatus = "arrived"
	BookingStatusInRide    BookingStatus = "in_ride"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusExpired   BookingStatus = "expired"
)

// AllBookingStatuses lists every status in lifecycle order.
var AllBookingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusConfirmed,
	BookingStatusEnroute,
	BookingStatusArrived,
	BookingStatusInRide,
	BookingStatusCompleted,
	BookingStatusCancelled,
	BookingStatusExpired,
}

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	for _, known := range AllBookingStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled || s == BookingStatusExpired
}

// HasDriver reports whether a booking in status s must carry an assigned driver.
func (s BookingStatus) HasDriver() bool {
	switch s {
	case BookingStatusConfirmed, BookingStatusEnroute, BookingStatusArrived,
		BookingStatusInRide, BookingStatusCompleted:
		return true
	}
	return false
}

// Rank orders statuses along the lifecycle. Terminal states outrank
// every live state so a reconciling client never moves backwards.
func (s BookingStatus) Rank() int {
	switch s {
	case BookingStatusPending:
		return 0
	case BookingStatusConfirmed:
		return 1
	case BookingStatusEnroute:
		return 2
	case BookingStatusArrived:
		return 3
	case BookingStatusInRide:
		return 4
	case BookingStatusCompleted, BookingStatusCancelled, BookingStatusExpired:
		return 5
	}
	return -1
}

// Booking is a single ride request and its lifecycle record.
type Booking struct {
	ID               string        `json:"id"`
	RequesterID      string        `json:"requesterId"`
	PickupLocation   string        `json:"pickupLocation"`
	Destination      string        `json:"destination"`
	ServiceTier      string        `json:"service"`
	Price            float64       `json:"price"`
	ETAMinutes       int           `json:"eta"`
	Status           BookingStatus `json:"status"`
	AssignedDriverID string        `json:"-"`
	DeclinedDrivers  []string      `json:"declinedDrivers"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// HasDeclined reports whether driverID is in the declined set.
func (b *Booking) HasDeclined(driverID string) bool {
	for _, id := range b.DeclinedDrivers {
		if id == driverID {
			return true
		}
	}
	return false
}

// Supersedes reports whether b is a newer view of the same booking than other.
// Statuses only move forward, so a differing lifecycle rank decides first and
// updatedAt only orders views of equal rank. Identical views do not supersede
// each other.
func (b *Booking) Supersedes(other *Booking) bool {
	if other == nil {
		return true
	}
	if b.ID != other.ID {
		return false
	}
	if mine, theirs := b.Status.Rank(), other.Status.Rank(); mine != theirs {
		return mine > theirs
	}
	return b.UpdatedAt.After(other.UpdatedAt)
}

type bookingJSON Booking

// MarshalJSON renders an unassigned driver as null.
func (b Booking) MarshalJSON() ([]byte, error) {
	var driver *string
	if b.AssignedDriverID != "" {
		id := b.AssignedDriverID
		driver = &id
	}
	declined := b.DeclinedDrivers
	if declined == nil {
		declined = []string{}
	}
	out := bookingJSON(b)
	out.DeclinedDrivers = declined
	return json.Marshal(struct {
		bookingJSON
		AssignedDriver *string `json:"assignedDriver"`
	}{out, driver})
}

// UnmarshalJSON accepts the shape produced by MarshalJSON.
func (b *Booking) UnmarshalJSON(data []byte) error {
	var in struct {
		bookingJSON
		AssignedDriver *string `json:"assignedDriver"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*b = Booking(in.bookingJSON)
	if in.AssignedDriver != nil {
		b.AssignedDriverID = *in.AssignedDriver
	}
	return nil
}

// BookingStats aggregates booking counts by status.
type BookingStats struct {
	Total    int                   `json:"total"`
	ByStatus map[BookingStatus]int `json:"byStatus"`
}

// NewBookingStats builds stats with every status present, zero-filled.
func NewBookingStats(counts map[BookingStatus]int) BookingStats {
	stats := BookingStats{ByStatus: make(map[BookingStatus]int, len(AllBookingStatuses))}
	for _, s := range AllBookingStatuses {
		n := counts[s]
		stats.ByStatus[s] = n
		stats.Total += n
	}
	return stats
}
