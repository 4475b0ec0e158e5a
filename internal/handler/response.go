package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridedispatch/internal/auth"
	"ridedispatch/internal/domain"
	"ridedispatch/internal/middleware"
	"ridedispatch/internal/repository"
	"ridedispatch/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(code, ErrorResponse{Error: errorMessage(code, err)})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized

	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Lost races and illegal transitions are expected outcomes.
	case errors.Is(err, service.ErrRideUnavailable),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrConcurrentUpdate),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict

	case errors.Is(err, service.ErrDependencyUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// errorMessage hides internal error text behind a generic message.
func errorMessage(code int, err error) string {
	switch {
	case errors.Is(err, repository.ErrConflict):
		return service.ErrRideUnavailable.Error()
	case code == http.StatusServiceUnavailable:
		return "service temporarily unavailable, retry"
	case code >= http.StatusInternalServerError:
		return "internal server error"
	}
	return err.Error()
}

// caller returns the authenticated identity or aborts with 401.
func caller(c *gin.Context) (domain.Identity, bool) {
	id, ok := middleware.CallerIdentity(c)
	if !ok {
		respondError(c, auth.ErrUnauthorized)
		return domain.Identity{}, false
	}
	return id, true
}
