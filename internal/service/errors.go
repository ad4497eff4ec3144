package service

import (
	"errors"

	"shiftlog/internal/oracle"
)

var (
	// ErrEmptyDriverName is returned when a driver name is empty after trimming.
	ErrEmptyDriverName = errors.New("driver name cannot be empty")

	// ErrDuplicateDriverName is returned when a driver with the same name
	// (case-insensitively) already exists.
	ErrDuplicateDriverName = errors.New("driver name already exists")

	// ErrUnknownDriver is returned when the referenced driver does not exist.
	ErrUnknownDriver = errors.New("unknown driver")

	// ErrUnknownTrip is returned when the requested trip does not exist.
	ErrUnknownTrip = errors.New("unknown trip")

	// ErrShiftAlreadyActive is returned when starting a shift while one exists.
	ErrShiftAlreadyActive = errors.New("a shift is already in progress")

	// ErrNoActiveShift is returned when ending a shift with none active.
	ErrNoActiveShift = errors.New("no active shift to end")

	// ErrUnexpectedImage is returned when an image is submitted in a state
	// that is not awaiting one, or with the wrong purpose.
	ErrUnexpectedImage = errors.New("no odometer reading is awaited")

	// ErrOperationInProgress is returned when an image submission overlaps
	// one already in flight.
	ErrOperationInProgress = errors.New("another submission is in progress")

	// ErrOperationSuperseded is returned to an in-flight submission whose
	// result arrived after the operation was cancelled; the result has been
	// discarded.
	ErrOperationSuperseded = errors.New("operation superseded by cancel")

	// ErrInvalidReading is returned when the extracted odometer value fails
	// validation (non-positive start, or end not strictly greater than start).
	ErrInvalidReading = errors.New("invalid odometer reading")

	// ErrOdometerRegression is returned when a start reading is lower than
	// the end reading of the most recently recorded trip.
	ErrOdometerRegression = errors.New("start odometer is lower than the last recorded end odometer")

	// ErrCorruptedShift is returned when an active shift is missing its start
	// image. The shift is force-cleared; the error is not retryable.
	ErrCorruptedShift = errors.New("active shift is missing its start image")

	// ErrPersistenceFailed is returned when the ledger store did not accept a
	// write. The triggering transition is not committed; the whole user
	// action can be retried.
	ErrPersistenceFailed = errors.New("ledger store write failed")

	// ErrNothingToRetry is returned when Retry is called outside the
	// retryable error state.
	ErrNothingToRetry = errors.New("no failed submission to retry")

	// ErrNothingToCancel is returned when Cancel is called with no pending
	// operation.
	ErrNothingToCancel = errors.New("no pending operation to cancel")
)

// ErrorKind classifies an error for presentation.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindValidation        ErrorKind = "VALIDATION"
	KindExtractionFailed  ErrorKind = "EXTRACTION_FAILED"
	KindCorruptedShift    ErrorKind = "CORRUPTED_SHIFT"
	KindPersistenceFailed ErrorKind = "PERSISTENCE_FAILED"
	KindPrecondition      ErrorKind = "PRECONDITION_VIOLATION"
	KindUnknown           ErrorKind = "UNKNOWN"
)

// Kind maps an error to its presentation classification.
func Kind(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrUnknownDriver),
		errors.Is(err, ErrUnknownTrip):
		return KindNotFound
	case errors.Is(err, ErrEmptyDriverName),
		errors.Is(err, ErrDuplicateDriverName),
		errors.Is(err, ErrInvalidReading),
		errors.Is(err, ErrOdometerRegression):
		return KindValidation
	case errors.Is(err, oracle.ErrExtractionFailed):
		return KindExtractionFailed
	case errors.Is(err, ErrCorruptedShift):
		return KindCorruptedShift
	case errors.Is(err, ErrPersistenceFailed):
		return KindPersistenceFailed
	case errors.Is(err, ErrShiftAlreadyActive),
		errors.Is(err, ErrNoActiveShift),
		errors.Is(err, ErrUnexpectedImage),
		errors.Is(err, ErrOperationInProgress),
		errors.Is(err, ErrOperationSuperseded),
		errors.Is(err, ErrNothingToRetry),
		errors.Is(err, ErrNothingToCancel):
		return KindPrecondition
	default:
		return KindUnknown
	}
}
