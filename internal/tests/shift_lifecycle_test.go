package tests

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"shiftlog/internal/domain"
	"shiftlog/internal/service"
)

// newService builds a ShiftService over fresh mocks with a deterministic
// clock and ID sequence, hydrated from the (possibly seeded) store.
func newService(t *testing.T, ledger *MockLedgerStore, oracle *MockOracle, opts ...service.Option) *service.ShiftService {
	t.Helper()

	var seq int
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	defaults := []service.Option{
		service.WithClock(func() time.Time {
			seq++
			return base.Add(time.Duration(seq) * time.Minute)
		}),
		service.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	}

	svc := service.NewShiftService(ledger, oracle, append(defaults, opts...)...)
	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return svc
}

// addDriver registers a driver and fails the test on error.
func addDriver(t *testing.T, svc *service.ShiftService, name string) domain.Driver {
	t.Helper()
	driver, err := svc.AddDriver(context.Background(), name)
	if err != nil {
		t.Fatalf("add driver %q: %v", name, err)
	}
	return driver
}

func TestShift_FullLifecycle_CommitsTrip(t *testing.T) {
	t.Parallel()

	ledger := NewMockLedgerStore()
	oracle := NewMockOracle().WillRead(1000).WillRead(1050)
	svc := newService(t, ledger, oracle)
	ctx := context.Background()

	driver := addDriver(t, svc, "D1")

	if err := svc.RequestStartShift(ctx, driver.ID); err != nil {
		t.Fatalf("request start: %v", err)
	}
	if snap := svc.Snapshot(); snap.State != service.StateAwaitingStartReading {
		t.Fatalf("expected awaiting start reading, got %s", snap.State)
	}
	// The provisional shift must not be persisted.
	if ledger.StoredShift() != nil {
		t.Fatal("provisional shift leaked into the store")
	}

	trip, err := svc.SubmitImage(ctx, []byte("start-jpeg"), service.PurposeStart)
	if err != nil {
		t.Fatalf("submit start image: %v", err)
	}
	if trip != nil {
		t.Fatal("start submission should not produce a trip")
	}

	snap := svc.Snapshot()
	if snap.State != service.StateActive {
		t.Fatalf("expected active, got %s", snap.State)
	}
	if snap.Shift == nil || snap.Shift.StartOdometer != 1000 {
		t.Fatalf("expected confirmed shift at 1000, got %+v", snap.Shift)
	}
	if snap.Shift.StartOdometerImage == "" {
		t.Fatal("confirmed shift is missing its start image")
	}

	stored := ledger.StoredShift()
	if stored == nil || stored.StartOdometer != 1000 {
		t.Fatalf("expected durable shift at 1000, got %+v", stored)
	}

	if err := svc.RequestEndShift(ctx); err != nil {
		t.Fatalf("request end: %v", err)
	}

	trip, err = svc.SubmitImage(ctx, []byte("end-jpeg"), service.PurposeEnd)
	if err != nil {
		t.Fatalf("submit end image: %v", err)
	}
	if trip == nil {
		t.Fatal("end submission should produce a trip")
	}
	if trip.StartOdometer != 1000 || trip.EndOdometer != 1050 {
		t.Fatalf("expected trip 1000 -> 1050, got %v -> %v", trip.StartOdometer, trip.EndOdometer)
	}
	if trip.DriverID != driver.ID {
		t.Fatalf("trip driver mismatch: %s", trip.DriverID)
	}
	if trip.StartOdometerImage == "" || trip.EndOdometerImage == "" {
		t.Fatal("trip is missing an odometer image")
	}

	if snap := svc.Snapshot(); snap.State != service.StateIdle || snap.Shift != nil {
		t.Fatalf("expected idle with no shift, got %s", snap.State)
	}
	if ledger.StoredShift() != nil {
		t.Fatal("durable shift record should be cleared after commit")
	}
	if got := ledger.StoredTrips(); len(got) != 1 || got[0].ID != trip.ID {
		t.Fatalf("expected exactly the committed trip in the store, got %+v", got)
	}
}

func TestShift_StartWhileActive_Fails(t *testing.T) {
	t.Parallel()

	ledger := NewMockLedgerStore()
	oracle := NewMockOracle().WillRead(100)
	svc := newService(t, ledger, oracle)
	ctx := context.Background()

	driver := addDriver(t, svc, "D1")

	if err := svc.RequestStartShift(ctx, driver.ID); err != nil {
		t.Fatalf("request start: %v", err)
	}
	if _, err := svc.SubmitImage(ctx, []byte("jpeg"), service.PurposeStart); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := svc.RequestStartShift(ctx, driver.ID); !errors.Is(err, service.ErrShiftAlreadyActive) {
		t.Fatalf("expected ErrShiftAlreadyActive, got %v", err)
	}
}

func TestShift_EndWithoutActiveShift_Fails(t *testing.T) {
	t.Parallel()

	svc := newService(t, NewMockLedgerStore(), NewMockOracle())

	if err := svc.RequestEndShift(context.Background()); !errors.Is(err, service.ErrNoActiveShift) {
		t.Fatalf("expected ErrNoActiveShift, got %v", err)
	}
}

func TestShift_UnknownDriver_Fails(t *testing.T) {
	t.Parallel()

	svc := newService(t, NewMockLedgerStore(), NewMockOracle())

	err := svc.RequestStartShift(context.Background(), "nobody")
	if !errors.Is(err, service.ErrUnknownDriver) {
		t.Fatalf("expected ErrUnknownDriver, got %v", err)
	}
}

func TestShift_ImageWithoutRequest_Fails(t *testing.T) {
	t.Parallel()

	svc := newService(t, NewMockLedgerStore(), NewMockOracle())

	_, err := svc.SubmitImage(context.Background(), []byte("jpeg"), service.PurposeStart)
	if !errors.Is(err, service.ErrUnexpectedImage) {
		t.Fatalf("expected ErrUnexpectedImage, got %v", err)
	}
}

func TestShift_WrongPurpose_Fails(t *testing.T) {
	t.Parallel()

	ledger := NewMockLedgerStore()
	svc := newService(t, ledger, NewMockOracle())
	ctx := context.Background()

	driver := addDriver(t, svc, "D1")
	if err := svc.RequestStartShift(ctx, driver.ID); err != nil {
		t.Fatalf("request start: %v", err)
	}

	_, err := svc.SubmitImage(ctx, []byte("jpeg"), service.PurposeEnd)
	if !errors.Is(err, service.ErrUnexpectedImage) {
		t.Fatalf("expected ErrUnexpectedImage, got %v", err)
	}
}

func TestShift_RestoredFromStoreOnLoad(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 4, 30, 7, 0, 0, 0, time.UTC)
	ledger := NewMockLedgerStore()
	ledger.Seed(
		[]domain.Driver{{ID: "d1", Name: "D1"}},
		nil,
		&domain.Shift{
			DriverID:           "d1",
			StartOdometer:      800,
			StartTime:          start,
			StartOdometerImage: "data:image/jpeg;base64,aGk=",
		},
	)

	svc := newService(t, ledger, NewMockOracle())

	snap := svc.Snapshot()
	if snap.State != service.StateActive {
		t.Fatalf("expected active after load, got %s", snap.State)
	}
	if snap.Shift == nil || snap.Shift.StartOdometer != 800 {
		t.Fatalf("expected restored shift at 800, got %+v", snap.Shift)
	}
}
