package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/service"
)

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	registry *service.Registry
	query    *service.Query
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(registry *service.Registry, query *service.Query) *DriverHandler {
	return &DriverHandler{
		registry: registry,
		query:    query,
	}
}

// RegisterDriverRequest is the HTTP request body for driver registration.
type RegisterDriverRequest struct {
	Name      string         `json:"name"`
	Vehicle   domain.Vehicle `json:"vehicle"`
	Available bool           `json:"available"`
}

// AvailabilityRequest sets availability. A missing field toggles it.
type AvailabilityRequest struct {
	Available *bool `json:"available"`
}

// DriverResponse is the HTTP response for driver data.
type DriverResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Available bool           `json:"available"`
	Vehicle   domain.Vehicle `json:"vehicle"`
	UpdatedAt string         `json:"updatedAt"`
}

func toDriverResponse(d *domain.Driver) DriverResponse {
	return DriverResponse{
		ID:        d.ID,
		Name:      d.Name,
		Available: d.Available,
		Vehicle:   d.Vehicle,
		UpdatedAt: d.UpdatedAt.Format(time.RFC3339),
	}
}

// Register handles POST /v1/drivers/register
func (h *DriverHandler) Register(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}

	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	d, err := h.registry.Register(c.Request.Context(), id, service.RegisterDriverRequest{
		Name:      req.Name,
		Vehicle:   req.Vehicle,
		Available: req.Available,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toDriverResponse(d))
}

// SetAvailability handles PATCH /v1/drivers/me/availability
func (h *DriverHandler) SetAvailability(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}

	var req AvailabilityRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}
	}

	var (
		d   *domain.Driver
		err error
	)
	if req.Available == nil {
		d, err = h.registry.ToggleAvailability(c.Request.Context(), id)
	} else {
		d, err = h.registry.SetAvailability(c.Request.Context(), id, *req.Available)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toDriverResponse(d))
}

// Bookings handles GET /v1/drivers/me/bookings
func (h *DriverHandler) Bookings(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}

	bookings, err := h.query.ListForDriver(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, nonNil(bookings))
}

// Stats handles GET /v1/drivers/me/stats
func (h *DriverHandler) Stats(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}

	stats, err := h.query.StatsForDriver(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, stats)
}
