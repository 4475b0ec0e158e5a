package domain

import "time"

// BookingSnapshot is the full current representation of a booking as sent to
// clients, both over HTTP and as the ride:update payload.
type BookingSnapshot struct {
	Booking *Booking    `json:"booking"`
	Driver  *DriverInfo `json:"driver"`
}

// ChatMessage is a message exchanged between the rider and assigned driver.
// RecipientID is the counterpart at send time; it is empty while no driver
// is assigned. ReadAt is set once the recipient marks the chat read.
type ChatMessage struct {
	ID          string     `json:"id"`
	BookingID   string     `json:"bookingId"`
	SenderID    string     `json:"senderId"`
	RecipientID string     `json:"recipientId,omitempty"`
	Content     string     `json:"content"`
	Timestamp   time.Time  `json:"timestamp"`
	ReadAt      *time.Time `json:"readAt"`
}
