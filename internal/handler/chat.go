package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridedispatch/internal/service"
)

// ChatHandler handles HTTP requests for booking chat.
type ChatHandler struct {
	chat *service.Chat
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chat *service.Chat) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// SendMessageRequest is the HTTP request body for a chat message.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// Send handles POST /v1/bookings/:id/messages
func (h *ChatHandler) Send(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	msg, err := h.chat.Send(c.Request.Context(), id, c.Param("id"), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, msg)
}

// UnreadResponse is the HTTP response for the unread count.
type UnreadResponse struct {
	Count int `json:"count"`
}

// MarkReadResponse is the HTTP response for marking a chat read.
type MarkReadResponse struct {
	BookingID string `json:"bookingId"`
	Marked    int    `json:"marked"`
}

// History handles GET /v1/bookings/:id/messages
func (h *ChatHandler) History(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}

	msgs, err := h.chat.History(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, nonNil(msgs))
}

// MarkRead handles POST /v1/bookings/:id/messages/read
func (h *ChatHandler) MarkRead(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}

	bookingID := c.Param("id")
	n, err := h.chat.MarkRead(c.Request.Context(), id, bookingID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, MarkReadResponse{BookingID: bookingID, Marked: n})
}

// Unread handles GET /v1/messages/unread
func (h *ChatHandler) Unread(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}

	n, err := h.chat.UnreadCount(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, UnreadResponse{Count: n})
}
