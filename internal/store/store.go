// Package store defines the persistence contract for the shift ledger: the
// drivers collection, the trips collection, and the singleton current-shift
// record. Implementations live in subpackages; no business rules live here.
package store

import (
	"context"

	"shiftlog/internal/domain"
)

// LedgerStore is the durable copy of the ledger. The state machine is the
// only caller; it treats every write error as "not committed" and re-issues
// the whole operation rather than assuming partial success.
//
// ReplaceDrivers and ReplaceTrips are full-collection replaces: the target
// collection is emptied and the given set written back in full. Whether that
// is atomic depends on the backend; callers must not rely on atomicity.
type LedgerStore interface {
	// LoadAll reads the entire ledger. A missing current-shift record is
	// reported as a nil shift, not an error. Trip order is backend-defined;
	// callers normalize it.
	LoadAll(ctx context.Context) ([]domain.Driver, []domain.Trip, *domain.Shift, error)

	// ReplaceDrivers removes every stored driver and writes the given set.
	ReplaceDrivers(ctx context.Context, drivers []domain.Driver) error

	// ReplaceTrips removes every stored trip and writes the given set.
	ReplaceTrips(ctx context.Context, trips []domain.Trip) error

	// PutShift writes the singleton current-shift record, overwriting any
	// existing one.
	PutShift(ctx context.Context, shift domain.Shift) error

	// ClearShift deletes the singleton current-shift record. Deleting an
	// absent record is not an error.
	ClearShift(ctx context.Context) error

	// Ping checks connectivity to the backing store.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close(ctx context.Context) error
}
