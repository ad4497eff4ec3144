package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"shiftlog/internal/domain"
	"shiftlog/internal/service"
)

func TestPersistence_PutShiftFailure_DoesNotActivate(t *testing.T) {
	t.Parallel()

	ledger := NewMockLedgerStore()
	ledger.PutShiftError = errors.New("write timeout")
	oracleMock := NewMockOracle().WillRead(100)
	svc := newService(t, ledger, oracleMock)
	ctx := context.Background()

	driver := addDriver(t, svc, "D1")
	if err := svc.RequestStartShift(ctx, driver.ID); err != nil {
		t.Fatalf("request start: %v", err)
	}

	_, err := svc.SubmitImage(ctx, []byte("jpeg"), service.PurposeStart)
	if !errors.Is(err, service.ErrPersistenceFailed) {
		t.Fatalf("expected ErrPersistenceFailed, got %v", err)
	}

	snap := svc.Snapshot()
	if snap.State != service.StateRetryableError || !snap.Retryable {
		t.Fatalf("persistence failure should be retryable, got %+v", snap)
	}
	if snap.Shift == nil || snap.Shift.StartOdometer != 0 {
		t.Fatalf("shift must stay provisional after a failed persist, got %+v", snap.Shift)
	}

	// Retry then resubmit once the store recovers.
	ledger.PutShiftError = nil
	oracleMock.WillRead(100)
	if err := svc.Retry(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if _, err := svc.SubmitImage(ctx, []byte("jpeg"), service.PurposeStart); err != nil {
		t.Fatalf("resubmit after recovery: %v", err)
	}
	if snap := svc.Snapshot(); snap.State != service.StateActive {
		t.Fatalf("expected active after recovery, got %s", snap.State)
	}
}

func TestPersistence_ReplaceTripsFailure_KeepsShift(t *testing.T) {
	t.Parallel()

	ledger := NewMockLedgerStore()
	oracleMock := NewMockOracle().WillRead(100).WillRead(150)
	svc := newService(t, ledger, oracleMock)
	ctx := context.Background()

	driver := addDriver(t, svc, "D1")
	if err := svc.RequestStartShift(ctx, driver.ID); err != nil {
		t.Fatalf("request start: %v", err)
	}
	if _, err := svc.SubmitImage(ctx, []byte("jpeg"), service.PurposeStart); err != nil {
		t.Fatalf("submit start: %v", err)
	}
	if err := svc.RequestEndShift(ctx); err != nil {
		t.Fatalf("request end: %v", err)
	}

	ledger.ReplaceTripsError = errors.New("write timeout")
	_, err := svc.SubmitImage(ctx, []byte("jpeg"), service.PurposeEnd)
	if !errors.Is(err, service.ErrPersistenceFailed) {
		t.Fatalf("expected ErrPersistenceFailed, got %v", err)
	}

	// Nothing was committed: the trip list is unchanged and the shift
	// survives, durable copy included.
	if got := len(svc.Trips()); got != 0 {
		t.Fatalf("failed commit must not record a trip, got %d", got)
	}
	if stored := ledger.StoredShift(); stored == nil || stored.StartOdometer != 100 {
		t.Fatalf("durable shift must survive a failed commit, got %+v", stored)
	}

	snap := svc.Snapshot()
	if snap.State != service.StateRetryableError || !snap.Retryable {
		t.Fatalf("expected retryable error state, got %+v", snap)
	}
	if snap.ErrorKind != service.KindPersistenceFailed {
		t.Fatalf("expected persistence error kind, got %s", snap.ErrorKind)
	}
}

func TestPersistence_ClearShiftFailure_DoesNotCommitMemory(t *testing.T) {
	t.Parallel()

	ledger := NewMockLedgerStore()
	oracleMock := NewMockOracle().WillRead(100).WillRead(150)
	svc := newService(t, ledger, oracleMock)
	ctx := context.Background()

	driver := addDriver(t, svc, "D1")
	if err := svc.RequestStartShift(ctx, driver.ID); err != nil {
		t.Fatalf("request start: %v", err)
	}
	if _, err := svc.SubmitImage(ctx, []byte("jpeg"), service.PurposeStart); err != nil {
		t.Fatalf("submit start: %v", err)
	}
	if err := svc.RequestEndShift(ctx); err != nil {
		t.Fatalf("request end: %v", err)
	}

	ledger.ClearShiftError = errors.New("write timeout")
	_, err := svc.SubmitImage(ctx, []byte("jpeg"), service.PurposeEnd)
	if !errors.Is(err, service.ErrPersistenceFailed) {
		t.Fatalf("expected ErrPersistenceFailed, got %v", err)
	}

	// Memory is only committed after every durable write succeeds.
	if got := len(svc.Trips()); got != 0 {
		t.Fatalf("in-memory trips must not advance past a failed clear, got %d", got)
	}
	if snap := svc.Snapshot(); snap.Shift == nil {
		t.Fatal("in-memory shift must survive a failed clear")
	}
}

func TestPersistence_LoadFailure_Surfaces(t *testing.T) {
	t.Parallel()

	ledger := NewMockLedgerStore()
	ledger.LoadAllError = errors.New("connection refused")
	svc := service.NewShiftService(ledger, NewMockOracle())

	if err := svc.Load(context.Background()); !errors.Is(err, service.ErrPersistenceFailed) {
		t.Fatalf("expected ErrPersistenceFailed, got %v", err)
	}
}

func TestCorruptedShift_EndWithUnconfirmedShift_ClearsBothCopies(t *testing.T) {
	t.Parallel()

	// A shift with the zero odometer sentinel should never reach the store,
	// but a restart over a damaged record can surface one. Ending it must
	// fail closed rather than produce a garbage trip.
	ledger := NewMockLedgerStore()
	ledger.Seed(
		[]domain.Driver{{ID: "d1", Name: "D1"}},
		nil,
		&domain.Shift{
			DriverID:      "d1",
			StartOdometer: 0,
			StartTime:     time.Date(2024, 4, 30, 7, 0, 0, 0, time.UTC),
		},
	)
	oracleMock := NewMockOracle().WillRead(900)
	svc := newService(t, ledger, oracleMock)
	ctx := context.Background()

	if err := svc.RequestEndShift(ctx); err != nil {
		t.Fatalf("request end: %v", err)
	}

	_, err := svc.SubmitImage(ctx, []byte("jpeg"), service.PurposeEnd)
	if !errors.Is(err, service.ErrCorruptedShift) {
		t.Fatalf("expected ErrCorruptedShift, got %v", err)
	}

	snap := svc.Snapshot()
	if snap.State != service.StateIdle || snap.Shift != nil {
		t.Fatalf("corrupted shift must reset to idle, got %s", snap.State)
	}
	if snap.Retryable {
		t.Fatal("a corrupted shift is not retryable")
	}
	if snap.ErrorKind != service.KindCorruptedShift {
		t.Fatalf("expected corrupted shift error kind, got %s", snap.ErrorKind)
	}
	if ledger.StoredShift() != nil {
		t.Fatal("corrupted durable shift must be cleared")
	}
	if len(ledger.StoredTrips()) != 0 {
		t.Fatal("a corrupted shift must not produce a trip")
	}
}
