// Package oracle converts odometer photographs into numeric readings.
package oracle

import (
	"context"
	"errors"
)

// ErrExtractionFailed is returned when no parseable numeric value could be
// obtained from the image, or when the extraction backend is unreachable.
// There is no internal retry; retrying is a user-facing decision owned by the
// state machine.
var ErrExtractionFailed = errors.New("could not extract odometer reading")

// Client extracts an odometer reading from a JPEG image.
type Client interface {
	ExtractReading(ctx context.Context, jpeg []byte) (float64, error)
}
