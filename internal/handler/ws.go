package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"ridedispatch/internal/auth"
	"ridedispatch/internal/realtime"
	"ridedispatch/internal/service"
)

// WSHandler upgrades authenticated clients to the realtime channel and
// handles their inbound actions.
type WSHandler struct {
	hub      *realtime.Hub
	verifier auth.Verifier
	query    *service.Query
	chat     *service.Chat
	upgrader websocket.Upgrader
	conn     realtime.ConnConfig
	buffer   int
	logger   *slog.Logger
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	hub *realtime.Hub,
	verifier auth.Verifier,
	query *service.Query,
	chat *service.Chat,
	conn realtime.ConnConfig,
	buffer int,
	logger *slog.Logger,
) *WSHandler {
	return &WSHandler{
		hub:      hub,
		verifier: verifier,
		query:    query,
		chat:     chat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conn:   conn,
		buffer: buffer,
		logger: logger,
	}
}

var _ realtime.InboundHandler = (*WSHandler)(nil)

// Connect handles GET /v1/ws. The token comes from the Authorization header
// or the token query parameter and is verified before the upgrade.
func (h *WSHandler) Connect(c *gin.Context) {
	token := auth.BearerToken(c.Request)
	if token == "" {
		token = c.Query("token")
	}
	id, err := h.verifier.Verify(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: auth.ErrUnauthorized.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	rooms := []string{realtime.UserRoom(id.ID)}
	if id.IsDriver() {
		rooms = append(rooms, realtime.DriverRoom(id.ID))
	}

	client := realtime.NewClient(id, h.buffer)
	h.logger.Debug("realtime client connected", "client_id", client.ID, "identity", id.ID, "role", id.Role)

	// The request context ends with the handler; the connection outlives it.
	ctx := context.WithoutCancel(c.Request.Context())
	h.hub.Serve(ctx, conn, client, h, h.conn, rooms...)

	h.logger.Debug("realtime client disconnected", "client_id", client.ID, "identity", id.ID)
}

// HandleInbound dispatches a client action.
func (h *WSHandler) HandleInbound(ctx context.Context, c *realtime.Client, env realtime.Envelope) {
	var err error
	switch env.Event {
	case realtime.ActionJoinRoom:
		err = h.joinRoom(ctx, c, env.Data)
	case realtime.ActionRegisterDriver:
		err = h.registerDriver(c, env.Data)
	case realtime.ActionChatMessage:
		err = h.chatMessage(ctx, c, env.Data)
	default:
		err = errUnknownAction
	}
	if err != nil {
		h.sendError(c, env.Event, err)
	}
}

var (
	errUnknownAction = errors.New("unknown action")
	errBadPayload    = errors.New("malformed payload")
)

func (h *WSHandler) joinRoom(ctx context.Context, c *realtime.Client, data json.RawMessage) error {
	var req realtime.JoinRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errBadPayload
	}
	if _, err := h.query.Authorize(ctx, c.Identity, req.BookingID); err != nil {
		return err
	}
	room := realtime.BookingRoom(req.BookingID)
	h.hub.Join(c, room)
	return h.hub.SendTo(c, realtime.EventJoined, realtime.JoinedPayload{Room: room})
}

// registerDriver joins the caller's own offer room. A driver can never
// subscribe to another driver's offers.
func (h *WSHandler) registerDriver(c *realtime.Client, data json.RawMessage) error {
	var req realtime.RegisterDriverRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			return errBadPayload
		}
	}
	if !c.Identity.IsDriver() {
		return service.ErrForbidden
	}
	if req.DriverID != "" && req.DriverID != c.Identity.ID {
		return service.ErrForbidden
	}
	room := realtime.DriverRoom(c.Identity.ID)
	h.hub.Join(c, room)
	return h.hub.SendTo(c, realtime.EventJoined, realtime.JoinedPayload{Room: room})
}

func (h *WSHandler) chatMessage(ctx context.Context, c *realtime.Client, data json.RawMessage) error {
	var req realtime.ChatMessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errBadPayload
	}
	_, err := h.chat.Send(ctx, c.Identity, req.BookingID, req.Content)
	return err
}

func (h *WSHandler) sendError(c *realtime.Client, action string, err error) {
	code := wsErrorCode(err)
	if code == "internal" || code == "unavailable" {
		h.logger.Error("realtime action failed", "action", action, "identity", c.Identity.ID, "error", err)
	}
	payload := realtime.ErrorPayload{Action: action, Code: code, Message: errorMessage(mapErrorToHTTPStatus(err), err)}
	if errors.Is(err, errUnknownAction) || errors.Is(err, errBadPayload) {
		payload.Message = err.Error()
	}
	if sendErr := h.hub.SendTo(c, realtime.EventError, payload); sendErr != nil {
		h.logger.Warn("send error frame failed", "client_id", c.ID, "error", sendErr)
	}
}

func wsErrorCode(err error) string {
	if errors.Is(err, errUnknownAction) || errors.Is(err, errBadPayload) {
		return "bad_request"
	}
	switch mapErrorToHTTPStatus(err) {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusServiceUnavailable:
		return "unavailable"
	}
	return "internal"
}
