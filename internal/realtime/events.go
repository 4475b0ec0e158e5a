package realtime

import (
	"context"
	"encoding/json"
)

// Server -> client events.
const (
	EventRideNew      = "ride:new"
	EventRideUpdate   = "ride:update"
	EventChatMessage  = "chat:message"
	EventNotification = "notification"
	EventJoined       = "joined"
	EventError        = "error"
)

// Client -> server actions.
const (
	ActionJoinRoom       = "joinRoom"
	ActionRegisterDriver = "registerDriver"
	ActionChatMessage    = "chatMessage"
)

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into a frame.
func NewEnvelope(event string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: data}, nil
}

// JoinRoomRequest is the joinRoom payload.
type JoinRoomRequest struct {
	BookingID string `json:"bookingId"`
}

// RegisterDriverRequest is the registerDriver payload.
type RegisterDriverRequest struct {
	DriverID string `json:"driverId"`
}

// ChatMessageRequest is the chatMessage payload.
type ChatMessageRequest struct {
	BookingID string `json:"bookingId"`
	Content   string `json:"content"`
}

// JoinedPayload acknowledges a room join.
type JoinedPayload struct {
	Room string `json:"room"`
}

// ErrorPayload reports a rejected client action on the connection.
type ErrorPayload struct {
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Room names.
func BookingRoom(bookingID string) string { return "booking:" + bookingID }
func DriverRoom(driverID string) string   { return "driver:" + driverID }
func UserRoom(userID string) string       { return "user:" + userID }

// Publisher is what the dispatch core sees of the realtime channel.
// Room delivery and global broadcast are separate calls.
type Publisher interface {
	Publish(ctx context.Context, room, event string, payload any) error
	Broadcast(ctx context.Context, event string, payload any) error
}
