package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/service"
)

// BookingHandler handles HTTP requests for bookings.
type BookingHandler struct {
	coordinator *service.Coordinator
	query       *service.Query
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(coordinator *service.Coordinator, query *service.Query) *BookingHandler {
	return &BookingHandler{
		coordinator: coordinator,
		query:       query,
	}
}

// CreateBookingRequest is the HTTP request body for requesting a ride.
type CreateBookingRequest struct {
	PickupLocation string  `json:"pickupLocation"`
	Destination    string  `json:"destination"`
	Service        string  `json:"service"`
	Price          float64 `json:"price"`
	ETA            int     `json:"eta"`
}

// SetStatusRequest is the HTTP request body for a status change.
type SetStatusRequest struct {
	Status string `json:"status"`
}

// DeclineResponse is the HTTP response for a decline.
type DeclineResponse struct {
	BookingID string `json:"bookingId"`
	Declined  bool   `json:"declined"`
}

// Create handles POST /v1/bookings
func (h *BookingHandler) Create(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}

	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	b, err := h.coordinator.CreateBooking(c.Request.Context(), id, service.CreateBookingRequest{
		Pickup:      req.PickupLocation,
		Destination: req.Destination,
		ServiceTier: req.Service,
		Price:       req.Price,
		ETAMinutes:  req.ETA,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, domain.BookingSnapshot{Booking: b})
}

// List handles GET /v1/bookings
func (h *BookingHandler) List(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}

	bookings, err := h.query.ListBookings(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, nonNil(bookings))
}

// Get handles GET /v1/bookings/:id
func (h *BookingHandler) Get(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}

	snap, err := h.query.GetBooking(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, snap)
}

// Stats handles GET /v1/bookings/stats
func (h *BookingHandler) Stats(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}

	stats, err := h.query.StatsForRequester(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, stats)
}

// Accept handles POST /v1/bookings/:id/accept
func (h *BookingHandler) Accept(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}

	snap, err := h.coordinator.Accept(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, snap)
}

// Decline handles POST /v1/bookings/:id/decline
func (h *BookingHandler) Decline(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}

	bookingID := c.Param("id")
	changed, err := h.coordinator.Decline(c.Request.Context(), id, bookingID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, DeclineResponse{BookingID: bookingID, Declined: changed})
}

// SetStatus handles PATCH /v1/bookings/:id/status
func (h *BookingHandler) SetStatus(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	snap, err := h.coordinator.SetStatus(c.Request.Context(), id, c.Param("id"), domain.BookingStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, snap)
}

// Cancel handles POST /v1/bookings/:id/cancel
func (h *BookingHandler) Cancel(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}

	snap, err := h.coordinator.Cancel(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, snap)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
