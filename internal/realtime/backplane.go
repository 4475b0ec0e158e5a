package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"ridedispatch/internal/observability"
)

// wireFrame is what travels over the backplane channel. An empty Room
// means broadcast.
type wireFrame struct {
	Room  string          `json:"room,omitempty"`
	Frame json.RawMessage `json:"frame"`
}

// Backplane fans events out to every instance through Redis pub/sub.
// Each instance, including the origin, delivers to its local hub from its
// own subscription, so per-room order on one instance follows channel order.
type Backplane struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  *slog.Logger
}

// NewBackplane wraps hub with a Redis pub/sub channel.
func NewBackplane(client *redis.Client, channel string, hub *Hub, logger *slog.Logger) *Backplane {
	return &Backplane{client: client, channel: channel, hub: hub, logger: logger}
}

var _ Publisher = (*Backplane)(nil)

// Publish sends event to room on every instance.
func (b *Backplane) Publish(ctx context.Context, room, event string, payload any) error {
	return b.send(ctx, room, event, payload)
}

// Broadcast sends event to every connection on every instance.
func (b *Backplane) Broadcast(ctx context.Context, event string, payload any) error {
	return b.send(ctx, "", event, payload)
}

func (b *Backplane) send(ctx context.Context, room, event string, payload any) error {
	msg, err := encodeWire(room, event, payload)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, msg).Err(); err != nil {
		return fmt.Errorf("backplane publish %s: %w", event, err)
	}
	observability.EventsPublished.WithLabelValues(event).Inc()
	return nil
}

// Run subscribes to the channel and delivers frames to the local hub until
// ctx is cancelled.
func (b *Backplane) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reporting ready.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("backplane subscribe: %w", err)
	}
	b.logger.Info("realtime backplane subscribed", "channel", b.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.dispatch(msg.Payload)
		}
	}
}

func encodeWire(room, event string, payload any) ([]byte, error) {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireFrame{Room: room, Frame: frame})
}

func (b *Backplane) dispatch(payload string) {
	var wf wireFrame
	if err := json.Unmarshal([]byte(payload), &wf); err != nil {
		b.logger.Warn("dropping malformed backplane frame", "error", err)
		return
	}
	if len(wf.Frame) == 0 {
		b.logger.Warn("dropping empty backplane frame", "room", wf.Room)
		return
	}
	if wf.Room == "" {
		b.hub.deliverAll(wf.Frame)
		return
	}
	b.hub.deliverRoom(wf.Room, wf.Frame)
}
