package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

// InboundHandler processes client -> server frames for an authenticated connection.
type InboundHandler interface {
	HandleInbound(ctx context.Context, c *Client, env Envelope)
}

// ConnConfig tunes a single websocket connection.
type ConnConfig struct {
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
}

func (cfg ConnConfig) withDefaults() ConnConfig {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 16 << 10
	}
	return cfg
}

// Serve registers c, joins the given rooms, pumps frames in both directions
// until either side closes, then tears down every membership. It blocks.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, c *Client, handler InboundHandler, cfg ConnConfig, rooms ...string) {
	cfg = cfg.withDefaults()
	h.Register(c)
	for _, room := range rooms {
		h.Join(c, room)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(conn, c, cfg)
	}()

	h.readPump(ctx, conn, c, handler, cfg)
	h.Unregister(c)
	<-done
}

func (h *Hub) readPump(ctx context.Context, conn *websocket.Conn, c *Client, handler InboundHandler, cfg ConnConfig) {
	pongWait := 2 * cfg.PingInterval
	conn.SetReadLimit(cfg.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("realtime read closed", "client_id", c.ID, "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			_ = h.SendTo(c, EventError, ErrorPayload{Code: "bad_request", Message: "malformed frame"})
			continue
		}
		handler.HandleInbound(ctx, c, env)
	}
}

func (h *Hub) writePump(conn *websocket.Conn, c *Client, cfg ConnConfig) {
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					h.logger.Debug("realtime write failed", "client_id", c.ID, "error", err)
				}
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
