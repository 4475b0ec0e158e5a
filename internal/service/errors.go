package service

import (
	"errors"
	"fmt"

	"ridedispatch/internal/repository"
)

var (
	// ErrValidation is the parent of every malformed-input error.
	ErrValidation = errors.New("validation failed")

	// ErrMissingPickup is returned when the pickup location is empty.
	ErrMissingPickup = fmt.Errorf("%w: pickup location is required", ErrValidation)

	// ErrMissingDestination is returned when the destination is empty.
	ErrMissingDestination = fmt.Errorf("%w: destination is required", ErrValidation)

	// ErrMissingServiceTier is returned when no service tier was chosen.
	ErrMissingServiceTier = fmt.Errorf("%w: service tier is required", ErrValidation)

	// ErrInvalidPrice is returned when the quoted price is negative.
	ErrInvalidPrice = fmt.Errorf("%w: price must not be negative", ErrValidation)

	// ErrInvalidETA is returned when the quoted ETA is negative.
	ErrInvalidETA = fmt.Errorf("%w: eta must not be negative", ErrValidation)

	// ErrInvalidStatus is returned for an unknown target status.
	ErrInvalidStatus = fmt.Errorf("%w: unknown status", ErrValidation)

	// ErrInvalidBookingID is returned when booking ID is empty.
	ErrInvalidBookingID = fmt.Errorf("%w: booking id is required", ErrValidation)

	// ErrInvalidDriverName is returned when a driver registers without a name.
	ErrInvalidDriverName = fmt.Errorf("%w: driver name is required", ErrValidation)

	// ErrInvalidVehicle is returned when a vehicle descriptor is malformed.
	ErrInvalidVehicle = fmt.Errorf("%w: vehicle seats must not be negative", ErrValidation)

	// ErrEmptyMessage is returned when a chat message has no content.
	ErrEmptyMessage = fmt.Errorf("%w: message content is required", ErrValidation)

	// ErrMessageTooLong is returned when a chat message exceeds MaxMessageLength.
	ErrMessageTooLong = fmt.Errorf("%w: message content is too long", ErrValidation)

	// ErrForbidden is returned when the caller has no rights over the booking or action.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition is returned when the requested status change is
	// not legal from the booking's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrRideUnavailable is the lost-race outcome of an accept.
	ErrRideUnavailable = errors.New("ride no longer available")

	// ErrConcurrentUpdate is returned when a status change kept losing to
	// concurrent writers.
	ErrConcurrentUpdate = errors.New("booking was modified concurrently, retry")

	// ErrDependencyUnavailable is returned when the store is unreachable.
	ErrDependencyUnavailable = repository.ErrDependencyUnavailable
)
