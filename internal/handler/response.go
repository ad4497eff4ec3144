package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"shiftlog/internal/oracle"
	"shiftlog/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	c.JSON(mapErrorToHTTPStatus(err), ErrorResponse{
		Error:     err.Error(),
		Kind:      string(service.Kind(err)),
		Retryable: isRetryable(err),
	})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Unknown resources
	case errors.Is(err, service.ErrUnknownDriver),
		errors.Is(err, service.ErrUnknownTrip):
		return http.StatusNotFound

	// Validation errors
	case errors.Is(err, service.ErrEmptyDriverName),
		errors.Is(err, service.ErrDuplicateDriverName),
		errors.Is(err, service.ErrInvalidReading),
		errors.Is(err, service.ErrOdometerRegression):
		return http.StatusUnprocessableEntity

	// Wrong-state calls
	case errors.Is(err, service.ErrShiftAlreadyActive),
		errors.Is(err, service.ErrNoActiveShift),
		errors.Is(err, service.ErrUnexpectedImage),
		errors.Is(err, service.ErrOperationInProgress),
		errors.Is(err, service.ErrOperationSuperseded),
		errors.Is(err, service.ErrNothingToRetry),
		errors.Is(err, service.ErrNothingToCancel):
		return http.StatusConflict

	// Oracle unreachable or unreadable image
	case errors.Is(err, oracle.ErrExtractionFailed):
		return http.StatusBadGateway

	// Store rejected a write
	case errors.Is(err, service.ErrPersistenceFailed):
		return http.StatusServiceUnavailable

	// Includes ErrCorruptedShift: defended-against impossibility
	default:
		return http.StatusInternalServerError
	}
}

// isRetryable reports whether the presentation layer should offer a retry for
// this error.
func isRetryable(err error) bool {
	return errors.Is(err, service.ErrInvalidReading) ||
		errors.Is(err, service.ErrOdometerRegression) ||
		errors.Is(err, service.ErrPersistenceFailed) ||
		errors.Is(err, oracle.ErrExtractionFailed)
}
