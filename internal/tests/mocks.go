package tests

import (
	"context"
	"sync"
	"sync/atomic"

	"shiftlog/internal/domain"
)

// ──────────────────────────────────────────────
// MOCK LEDGER STORE
// ──────────────────────────────────────────────

// MockLedgerStore is an in-memory implementation of store.LedgerStore.
type MockLedgerStore struct {
	mu      sync.RWMutex
	drivers []domain.Driver
	trips   []domain.Trip
	shift   *domain.Shift

	// Counters for verification
	ReplaceDriversCallCount int32
	ReplaceTripsCallCount   int32
	PutShiftCallCount       int32
	ClearShiftCallCount     int32

	// Error injection
	LoadAllError        error
	ReplaceDriversError error
	ReplaceTripsError   error
	PutShiftError       error
	ClearShiftError     error
}

// NewMockLedgerStore creates a new empty mock store.
func NewMockLedgerStore() *MockLedgerStore {
	return &MockLedgerStore{}
}

// Seed installs ledger contents without bumping counters.
func (m *MockLedgerStore) Seed(drivers []domain.Driver, trips []domain.Trip, shift *domain.Shift) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers = append([]domain.Driver(nil), drivers...)
	m.trips = append([]domain.Trip(nil), trips...)
	if shift != nil {
		copied := *shift
		m.shift = &copied
	} else {
		m.shift = nil
	}
}

func (m *MockLedgerStore) LoadAll(ctx context.Context) ([]domain.Driver, []domain.Trip, *domain.Shift, error) {
	if m.LoadAllError != nil {
		return nil, nil, nil, m.LoadAllError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var shift *domain.Shift
	if m.shift != nil {
		copied := *m.shift
		shift = &copied
	}
	return append([]domain.Driver(nil), m.drivers...),
		append([]domain.Trip(nil), m.trips...),
		shift, nil
}

func (m *MockLedgerStore) ReplaceDrivers(ctx context.Context, drivers []domain.Driver) error {
	atomic.AddInt32(&m.ReplaceDriversCallCount, 1)
	if m.ReplaceDriversError != nil {
		return m.ReplaceDriversError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers = append([]domain.Driver(nil), drivers...)
	return nil
}

func (m *MockLedgerStore) ReplaceTrips(ctx context.Context, trips []domain.Trip) error {
	atomic.AddInt32(&m.ReplaceTripsCallCount, 1)
	if m.ReplaceTripsError != nil {
		return m.ReplaceTripsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips = append([]domain.Trip(nil), trips...)
	return nil
}

func (m *MockLedgerStore) PutShift(ctx context.Context, shift domain.Shift) error {
	atomic.AddInt32(&m.PutShiftCallCount, 1)
	if m.PutShiftError != nil {
		return m.PutShiftError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shift = &shift
	return nil
}

func (m *MockLedgerStore) ClearShift(ctx context.Context) error {
	atomic.AddInt32(&m.ClearShiftCallCount, 1)
	if m.ClearShiftError != nil {
		return m.ClearShiftError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shift = nil
	return nil
}

func (m *MockLedgerStore) Ping(ctx context.Context) error { return nil }

func (m *MockLedgerStore) Close(ctx context.Context) error { return nil }

// StoredShift returns the durable current-shift record for assertions.
func (m *MockLedgerStore) StoredShift() *domain.Shift {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.shift == nil {
		return nil
	}
	copied := *m.shift
	return &copied
}

// StoredTrips returns the durable trip collection for assertions.
func (m *MockLedgerStore) StoredTrips() []domain.Trip {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Trip(nil), m.trips...)
}

// StoredDrivers returns the durable driver collection for assertions.
func (m *MockLedgerStore) StoredDrivers() []domain.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Driver(nil), m.drivers...)
}

// ──────────────────────────────────────────────
// MOCK ORACLE
// ──────────────────────────────────────────────

// MockOracle is a scriptable oracle client.
type MockOracle struct {
	mu       sync.Mutex
	readings []float64
	errs     []error

	CallCount int32

	// Started is closed-signalled (one send per call) before a blocking
	// read; Release gates the return. Both nil by default, making calls
	// synchronous.
	Started chan struct{}
	Release chan struct{}
}

// NewMockOracle creates a mock oracle with no scripted responses.
func NewMockOracle() *MockOracle {
	return &MockOracle{}
}

// WillRead queues a successful reading.
func (m *MockOracle) WillRead(reading float64) *MockOracle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings = append(m.readings, reading)
	m.errs = append(m.errs, nil)
	return m
}

// WillFail queues a failed extraction.
func (m *MockOracle) WillFail(err error) *MockOracle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings = append(m.readings, 0)
	m.errs = append(m.errs, err)
	return m
}

func (m *MockOracle) ExtractReading(ctx context.Context, jpeg []byte) (float64, error) {
	atomic.AddInt32(&m.CallCount, 1)

	if m.Started != nil {
		m.Started <- struct{}{}
	}
	if m.Release != nil {
		<-m.Release
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.readings) == 0 {
		panic("MockOracle: no scripted response left")
	}
	reading, err := m.readings[0], m.errs[0]
	m.readings, m.errs = m.readings[1:], m.errs[1:]
	return reading, err
}

// ──────────────────────────────────────────────
// MOCK STATS CACHE
// ──────────────────────────────────────────────

// MockStatsCache records leaderboard cache traffic.
type MockStatsCache struct {
	mu     sync.Mutex
	cached []domain.DriverStats

	GetCallCount        int32
	SetCallCount        int32
	InvalidateCallCount int32

	GetError error
	SetError error
}

// NewMockStatsCache creates an empty mock cache.
func NewMockStatsCache() *MockStatsCache {
	return &MockStatsCache{}
}

func (m *MockStatsCache) GetLeaderboard(ctx context.Context) ([]domain.DriverStats, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cached == nil {
		return nil, nil
	}
	return append([]domain.DriverStats(nil), m.cached...), nil
}

func (m *MockStatsCache) SetLeaderboard(ctx context.Context, stats []domain.DriverStats) error {
	atomic.AddInt32(&m.SetCallCount, 1)
	if m.SetError != nil {
		return m.SetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = append([]domain.DriverStats(nil), stats...)
	return nil
}

func (m *MockStatsCache) InvalidateLeaderboard(ctx context.Context) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = nil
	return nil
}
