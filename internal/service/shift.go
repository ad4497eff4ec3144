// Package service contains the business logic for the shift ledger. The
// ShiftService owns the in-memory ledger and the shift/trip state machine;
// it validates odometer readings and issues persistence commands to the
// ledger store. No storage or HTTP details live here.
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"shiftlog/internal/domain"
	"shiftlog/internal/oracle"
	"shiftlog/internal/store"
)

// State is the state machine's current position.
type State string

const (
	StateIdle                 State = "IDLE"
	StateAwaitingStartReading State = "AWAITING_START_READING"
	StateActive               State = "ACTIVE"
	StateAwaitingEndReading   State = "AWAITING_END_READING"
	StateRetryableError       State = "RETRYABLE_ERROR"
)

// ImagePurpose says which reading a submitted image is for.
type ImagePurpose string

const (
	PurposeStart ImagePurpose = "start"
	PurposeEnd   ImagePurpose = "end"
)

// LeaderboardCache invalidation hook; satisfied by the redis stats cache.
// Invalidation failures are non-fatal and only logged by callers.
type LeaderboardCache interface {
	InvalidateLeaderboard(ctx context.Context) error
}

// lastError records the most recent failure for presentation, and, when
// retryable, the awaiting state a Retry returns to.
type lastError struct {
	err       error
	retryable bool
	resumeTo  State // awaiting state shadowed by StateRetryableError
}

// Snapshot is the read-only view handed to the presentation layer.
type Snapshot struct {
	State        State
	Shift        *domain.Shift // nil when no shift exists
	ErrorKind    ErrorKind     // zero value when no error is pending
	ErrorMessage string
	Retryable    bool
}

// ShiftService is the shift/trip state machine. A single instance owns the
// in-memory ledger; all mutating operations are serialized through its mutex.
// The mutex is released while the oracle reads an image, so Cancel stays
// responsive; a generation counter discards resolutions that arrive after the
// operation they belonged to was cancelled.
type ShiftService struct {
	store  store.LedgerStore
	oracle oracle.Client
	cache  LeaderboardCache // optional

	mu         chanMutex
	drivers    []domain.Driver
	trips      []domain.Trip // append order; last element is the last recorded trip
	shift      *domain.Shift
	state      State
	lastErr    *lastError
	inFlight   bool
	generation uint64

	now   func() time.Time
	newID func() string
}

// chanMutex is a context-aware mutex. Lock attempts respect cancellation so a
// handler whose client went away does not queue forever behind a slow write.
type chanMutex chan struct{}

func newChanMutex() chanMutex { return make(chanMutex, 1) }

func (m chanMutex) lock(ctx context.Context) error {
	select {
	case m <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// lockBlocking acquires the mutex unconditionally. Used where there is no
// caller context to honor (snapshots) or where the lock must be re-taken to
// restore invariants even after cancellation.
func (m chanMutex) lockBlocking() { m <- struct{}{} }

func (m chanMutex) unlock() { <-m }

// Option configures a ShiftService.
type Option func(*ShiftService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *ShiftService) { s.now = now }
}

// WithIDGenerator overrides the ID source.
func WithIDGenerator(newID func() string) Option {
	return func(s *ShiftService) { s.newID = newID }
}

// WithLeaderboardCache sets the cache to invalidate when the ledger changes.
func WithLeaderboardCache(cache LeaderboardCache) Option {
	return func(s *ShiftService) { s.cache = cache }
}

// NewShiftService creates a ShiftService in the idle state. Call Load before
// serving requests.
func NewShiftService(ledger store.LedgerStore, oracleClient oracle.Client, opts ...Option) *ShiftService {
	s := &ShiftService{
		store:  ledger,
		oracle: oracleClient,
		mu:     newChanMutex(),
		state:  StateIdle,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load hydrates the in-memory ledger from the store. Trips are normalized to
// append order (end time ascending) so the continuity check always compares
// against the most recently recorded trip.
func (s *ShiftService) Load(ctx context.Context) error {
	drivers, trips, shift, err := s.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}

	sort.SliceStable(trips, func(i, j int) bool {
		return trips[i].EndTime.Before(trips[j].EndTime)
	})

	if err := s.mu.lock(ctx); err != nil {
		return err
	}
	defer s.mu.unlock()

	s.drivers = drivers
	s.trips = trips
	s.shift = shift
	if shift != nil {
		s.state = StateActive
	} else {
		s.state = StateIdle
	}
	return nil
}

// AddDriver validates and persists a new driver. The name must be non-empty
// and unique case-insensitively. Allowed in any state.
func (s *ShiftService) AddDriver(ctx context.Context, name string) (domain.Driver, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Driver{}, ErrEmptyDriverName
	}

	if err := s.mu.lock(ctx); err != nil {
		return domain.Driver{}, err
	}
	defer s.mu.unlock()

	for _, d := range s.drivers {
		if strings.EqualFold(d.Name, name) {
			return domain.Driver{}, ErrDuplicateDriverName
		}
	}

	driver := domain.Driver{ID: s.newID(), Name: name}
	next := append(append([]domain.Driver(nil), s.drivers...), driver)

	if err := s.store.ReplaceDrivers(ctx, next); err != nil {
		return domain.Driver{}, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}

	s.drivers = next
	s.invalidateStats(ctx)
	return driver, nil
}

// RequestStartShift creates a provisional shift for the driver and moves to
// the awaiting-start-reading state. The provisional shift holds the zero
// odometer sentinel and is not persisted; persistence happens only when the
// start reading validates.
func (s *ShiftService) RequestStartShift(ctx context.Context, driverID string) error {
	if err := s.mu.lock(ctx); err != nil {
		return err
	}
	defer s.mu.unlock()

	if s.state != StateIdle || s.shift != nil {
		return ErrShiftAlreadyActive
	}
	if !s.hasDriver(driverID) {
		return ErrUnknownDriver
	}

	s.shift = &domain.Shift{
		DriverID:      driverID,
		StartOdometer: 0,
		StartTime:     s.now(),
	}
	s.state = StateAwaitingStartReading
	s.lastErr = nil
	s.generation++
	return nil
}

// RequestEndShift moves an active shift to the awaiting-end-reading state.
// The shift itself is not mutated.
func (s *ShiftService) RequestEndShift(ctx context.Context) error {
	if err := s.mu.lock(ctx); err != nil {
		return err
	}
	defer s.mu.unlock()

	if s.state != StateActive {
		return ErrNoActiveShift
	}

	s.state = StateAwaitingEndReading
	s.lastErr = nil
	s.generation++
	return nil
}

// SubmitImage sends a captured odometer image to the oracle and applies the
// resulting reading. The purpose must match the awaiting state. Returns the
// committed trip when an end submission completes a shift.
func (s *ShiftService) SubmitImage(ctx context.Context, jpeg []byte, purpose ImagePurpose) (*domain.Trip, error) {
	if err := s.mu.lock(ctx); err != nil {
		return nil, err
	}

	if s.inFlight {
		s.mu.unlock()
		return nil, ErrOperationInProgress
	}

	expected := StateAwaitingStartReading
	if purpose == PurposeEnd {
		expected = StateAwaitingEndReading
	}
	if s.state != expected {
		s.mu.unlock()
		return nil, ErrUnexpectedImage
	}

	s.inFlight = true
	gen := s.generation
	s.mu.unlock()

	// The oracle call runs without the lock so Cancel stays responsive.
	reading, oracleErr := s.oracle.ExtractReading(ctx, jpeg)

	// Re-acquire unconditionally: even a dead caller context must drop the
	// in-flight flag, or the machine wedges.
	s.mu.lockBlocking()
	defer s.mu.unlock()
	s.inFlight = false

	if gen != s.generation {
		// The operation was cancelled while the oracle was working. The
		// state machine has already been unwound; discard this resolution.
		return nil, ErrOperationSuperseded
	}

	if oracleErr != nil {
		s.enterRetryable(oracleErr, expected)
		return nil, oracleErr
	}

	if purpose == PurposeStart {
		return nil, s.confirmStart(ctx, reading, jpeg)
	}
	return s.commitEnd(ctx, reading, jpeg)
}

// confirmStart validates a start reading and persists the confirmed shift.
// Called with the lock held, from the awaiting-start-reading state.
func (s *ShiftService) confirmStart(ctx context.Context, reading float64, jpeg []byte) error {
	if reading <= 0 {
		err := fmt.Errorf("%w: start reading %v must be positive", ErrInvalidReading, reading)
		s.enterRetryable(err, StateAwaitingStartReading)
		return err
	}

	if last, ok := s.lastTrip(); ok && reading < last.EndOdometer {
		err := fmt.Errorf("%w: start reading %v < last end reading %v",
			ErrOdometerRegression, reading, last.EndOdometer)
		s.enterRetryable(err, StateAwaitingStartReading)
		return err
	}

	confirmed := *s.shift
	confirmed.StartOdometer = reading
	confirmed.StartOdometerImage = domain.JPEGDataURL(jpeg)

	// First durable write of the shift. An aborted start never reaches here,
	// so no partial shift can leak into the store.
	if err := s.store.PutShift(ctx, confirmed); err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
		s.enterRetryable(wrapped, StateAwaitingStartReading)
		return wrapped
	}

	s.shift = &confirmed
	s.state = StateActive
	s.lastErr = nil
	return nil
}

// commitEnd validates an end reading, converts the shift into a trip, and
// persists the updated ledger. Called with the lock held, from the
// awaiting-end-reading state.
func (s *ShiftService) commitEnd(ctx context.Context, reading float64, jpeg []byte) (*domain.Trip, error) {
	if !s.shift.Confirmed() {
		// Structurally impossible under the transition rules, defended
		// against anyway: force-clear the broken shift, both copies.
		if err := s.store.ClearShift(ctx); err != nil {
			wrapped := fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
			s.enterRetryable(wrapped, StateAwaitingEndReading)
			return nil, wrapped
		}
		s.shift = nil
		s.state = StateIdle
		s.lastErr = &lastError{err: ErrCorruptedShift, retryable: false}
		return nil, ErrCorruptedShift
	}

	if reading <= s.shift.StartOdometer {
		err := fmt.Errorf("%w: end reading %v must exceed start reading %v",
			ErrInvalidReading, reading, s.shift.StartOdometer)
		s.enterRetryable(err, StateAwaitingEndReading)
		return nil, err
	}

	trip := domain.Trip{
		ID:                 s.newID(),
		DriverID:           s.shift.DriverID,
		StartOdometer:      s.shift.StartOdometer,
		EndOdometer:        reading,
		StartTime:          s.shift.StartTime,
		EndTime:            s.now(),
		StartOdometerImage: s.shift.StartOdometerImage,
		EndOdometerImage:   domain.JPEGDataURL(jpeg),
	}
	next := append(append([]domain.Trip(nil), s.trips...), trip)

	// Persist first, commit memory last: a store failure leaves the machine
	// in place so the whole user action can be retried.
	if err := s.store.ReplaceTrips(ctx, next); err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
		s.enterRetryable(wrapped, StateAwaitingEndReading)
		return nil, wrapped
	}
	if err := s.store.ClearShift(ctx); err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
		s.enterRetryable(wrapped, StateAwaitingEndReading)
		return nil, wrapped
	}

	s.trips = next
	s.shift = nil
	s.state = StateIdle
	s.lastErr = nil
	s.invalidateStats(ctx)
	return &trip, nil
}

// Retry returns from the retryable error state to the awaiting state it
// shadows so a new image can be submitted. The shift is untouched.
func (s *ShiftService) Retry(ctx context.Context) error {
	if err := s.mu.lock(ctx); err != nil {
		return err
	}
	defer s.mu.unlock()

	if s.state != StateRetryableError || s.lastErr == nil || !s.lastErr.retryable {
		return ErrNothingToRetry
	}

	s.state = s.lastErr.resumeTo
	s.lastErr = nil
	return nil
}

// Cancel unwinds a pending start or end operation to its last stable state.
// A cancelled start discards the provisional shift; a cancelled end keeps the
// active shift. Cancelling also invalidates any in-flight submission.
func (s *ShiftService) Cancel(ctx context.Context) error {
	if err := s.mu.lock(ctx); err != nil {
		return err
	}
	defer s.mu.unlock()

	pending := s.state
	if pending == StateRetryableError {
		if s.lastErr == nil {
			return ErrNothingToCancel
		}
		pending = s.lastErr.resumeTo
	}

	switch pending {
	case StateAwaitingStartReading:
		s.shift = nil
		s.state = StateIdle
	case StateAwaitingEndReading:
		s.state = StateActive
	default:
		return ErrNothingToCancel
	}

	s.lastErr = nil
	s.generation++ // a late oracle resolution must not resurrect this operation
	return nil
}

// Snapshot returns the current presentation view.
func (s *ShiftService) Snapshot() Snapshot {
	s.mu.lockBlocking()
	defer s.mu.unlock()

	snap := Snapshot{State: s.state}
	if s.shift != nil {
		shift := *s.shift
		snap.Shift = &shift
	}
	if s.lastErr != nil {
		snap.ErrorKind = Kind(s.lastErr.err)
		snap.ErrorMessage = s.lastErr.err.Error()
		snap.Retryable = s.lastErr.retryable
	}
	return snap
}

// Drivers returns a copy of the registered drivers.
func (s *ShiftService) Drivers() []domain.Driver {
	s.mu.lockBlocking()
	defer s.mu.unlock()
	return append([]domain.Driver(nil), s.drivers...)
}

// Trips returns a copy of the trip history in append order. Display order is
// the consumer's concern.
func (s *ShiftService) Trips() []domain.Trip {
	s.mu.lockBlocking()
	defer s.mu.unlock()
	return append([]domain.Trip(nil), s.trips...)
}

// TripByID returns a single trip.
func (s *ShiftService) TripByID(id string) (domain.Trip, error) {
	s.mu.lockBlocking()
	defer s.mu.unlock()
	for _, t := range s.trips {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Trip{}, ErrUnknownTrip
}

// enterRetryable records a failure and parks the machine in the retryable
// error state. Called with the lock held.
func (s *ShiftService) enterRetryable(err error, resumeTo State) {
	s.state = StateRetryableError
	s.lastErr = &lastError{err: err, retryable: true, resumeTo: resumeTo}
}

// lastTrip returns the most recently recorded trip, if any. Called with the
// lock held.
func (s *ShiftService) lastTrip() (domain.Trip, bool) {
	if len(s.trips) == 0 {
		return domain.Trip{}, false
	}
	return s.trips[len(s.trips)-1], true
}

// hasDriver reports whether the driver exists. Called with the lock held.
func (s *ShiftService) hasDriver(id string) bool {
	for _, d := range s.drivers {
		if d.ID == id {
			return true
		}
	}
	return false
}

// invalidateStats drops the cached leaderboard after a ledger change.
// Best effort; the cache repopulates on the next read. Called with the lock
// held.
func (s *ShiftService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.InvalidateLeaderboard(ctx)
}
