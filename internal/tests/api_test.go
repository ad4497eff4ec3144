package tests

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"shiftlog/internal/domain"
	"shiftlog/internal/handler"
	"shiftlog/internal/service"
)

// newAPIRouter wires the HTTP layer over a ShiftService, mirroring the
// production route table minus the redis-backed middleware.
func newAPIRouter(svc *service.ShiftService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	driverHandler := handler.NewDriverHandler(svc)
	shiftHandler := handler.NewShiftHandler(svc)
	tripHandler := handler.NewTripHandler(svc)
	statsHandler := handler.NewStatsHandler(service.NewStatsService(svc, nil))

	v1 := router.Group("/v1")
	v1.POST("/drivers", driverHandler.Add)
	v1.GET("/drivers", driverHandler.GetAll)
	v1.GET("/shift", shiftHandler.GetState)
	v1.POST("/shift/start", shiftHandler.Start)
	v1.POST("/shift/end", shiftHandler.End)
	v1.POST("/shift/image", shiftHandler.SubmitImage)
	v1.POST("/shift/retry", shiftHandler.Retry)
	v1.POST("/shift/cancel", shiftHandler.Cancel)
	v1.GET("/trips", tripHandler.GetAll)
	v1.GET("/trips/:id", tripHandler.GetTrip)
	v1.GET("/stats/leaderboard", statsHandler.Leaderboard)
	v1.GET("/stats/drivers/:id", statsHandler.DriverDetail)

	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func imageBody(purpose string) map[string]string {
	return map[string]string{
		"image_base64": base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")),
		"purpose":      purpose,
	}
}

func TestAPI_FullShiftLifecycle(t *testing.T) {
	t.Parallel()

	ledger := NewMockLedgerStore()
	oracleMock := NewMockOracle().WillRead(1000).WillRead(1050)
	svc := newService(t, ledger, oracleMock)
	router := newAPIRouter(svc)

	// Register a driver.
	rec := doJSON(t, router, http.MethodPost, "/v1/drivers", map[string]string{"name": "Ana"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add driver: status %d body %s", rec.Code, rec.Body)
	}
	var driver handler.DriverResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &driver); err != nil {
		t.Fatalf("decode driver: %v", err)
	}

	// Start the shift.
	rec = doJSON(t, router, http.MethodPost, "/v1/shift/start", map[string]string{"driver_id": driver.ID})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start shift: status %d body %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/shift/image", imageBody("start"))
	if rec.Code != http.StatusOK {
		t.Fatalf("start image: status %d body %s", rec.Code, rec.Body)
	}
	var submitted handler.SubmitImageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &submitted); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	if submitted.State != string(service.StateActive) {
		t.Fatalf("expected ACTIVE, got %s", submitted.State)
	}
	if submitted.Shift == nil || submitted.Shift.StartOdometer != 1000 {
		t.Fatalf("expected shift at 1000, got %+v", submitted.Shift)
	}

	// End the shift.
	rec = doJSON(t, router, http.MethodPost, "/v1/shift/end", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("end shift: status %d body %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/shift/image", imageBody("end"))
	if rec.Code != http.StatusOK {
		t.Fatalf("end image: status %d body %s", rec.Code, rec.Body)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &submitted); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	if submitted.Trip == nil || submitted.Trip.Distance != 50 {
		t.Fatalf("expected a 50-unit trip, got %+v", submitted.Trip)
	}

	// The trip shows up in history.
	rec = doJSON(t, router, http.MethodGet, "/v1/trips", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("trips: status %d body %s", rec.Code, rec.Body)
	}
	var trips []handler.TripResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &trips); err != nil {
		t.Fatalf("decode trips: %v", err)
	}
	if len(trips) != 1 || trips[0].ID != submitted.Trip.ID {
		t.Fatalf("expected the committed trip, got %+v", trips)
	}
}

func TestAPI_ErrorStatusMapping(t *testing.T) {
	t.Parallel()

	ledger := NewMockLedgerStore()
	ledger.Seed(
		[]domain.Driver{{ID: "d1", Name: "Ana"}},
		[]domain.Trip{{ID: "t1", DriverID: "d1", StartOdometer: 100, EndOdometer: 500,
			EndTime: time.Date(2024, 4, 30, 16, 0, 0, 0, time.UTC)}},
		nil,
	)
	oracleMock := NewMockOracle().WillRead(400)
	svc := newService(t, ledger, oracleMock)
	router := newAPIRouter(svc)

	// Unknown driver: 404.
	rec := doJSON(t, router, http.MethodPost, "/v1/shift/start", map[string]string{"driver_id": "nobody"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown driver: status %d", rec.Code)
	}

	// Ending with no active shift: 409.
	rec = doJSON(t, router, http.MethodPost, "/v1/shift/end", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("end without shift: status %d", rec.Code)
	}

	// Image with nothing awaited: 409.
	rec = doJSON(t, router, http.MethodPost, "/v1/shift/image", imageBody("start"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("unexpected image: status %d", rec.Code)
	}

	// Odometer regression: 422, flagged retryable.
	rec = doJSON(t, router, http.MethodPost, "/v1/shift/start", map[string]string{"driver_id": "d1"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start shift: status %d body %s", rec.Code, rec.Body)
	}
	rec = doJSON(t, router, http.MethodPost, "/v1/shift/image", imageBody("start"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("regression: status %d body %s", rec.Code, rec.Body)
	}
	var errResp handler.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !errResp.Retryable {
		t.Fatal("regression should be flagged retryable")
	}
	if errResp.Kind != string(service.KindValidation) {
		t.Fatalf("expected validation kind, got %s", errResp.Kind)
	}

	// Unknown trip: 404.
	rec = doJSON(t, router, http.MethodGet, "/v1/trips/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown trip: status %d", rec.Code)
	}

	// Malformed image payload: 400.
	rec = doJSON(t, router, http.MethodPost, "/v1/shift/image",
		map[string]string{"image_base64": "not-base64!!!", "purpose": "start"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad base64: status %d", rec.Code)
	}
}

func TestAPI_StateEndpointReflectsPendingError(t *testing.T) {
	t.Parallel()

	ledger := NewMockLedgerStore()
	oracleMock := NewMockOracle().WillRead(0)
	svc := newService(t, ledger, oracleMock)
	router := newAPIRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/v1/drivers", map[string]string{"name": "Ana"})
	var driver handler.DriverResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &driver); err != nil {
		t.Fatalf("decode driver: %v", err)
	}

	doJSON(t, router, http.MethodPost, "/v1/shift/start", map[string]string{"driver_id": driver.ID})
	doJSON(t, router, http.MethodPost, "/v1/shift/image", imageBody("start"))

	rec = doJSON(t, router, http.MethodGet, "/v1/shift", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get state: status %d", rec.Code)
	}
	var state handler.StateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.State != string(service.StateRetryableError) {
		t.Fatalf("expected RETRYABLE_ERROR, got %s", state.State)
	}
	if state.LastError == nil || !state.Retryable {
		t.Fatalf("expected a retryable pending error, got %+v", state)
	}

	// Cancel clears it.
	rec = doJSON(t, router, http.MethodPost, "/v1/shift/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: status %d", rec.Code)
	}
	state = handler.StateResponse{} // omitempty fields would otherwise keep stale pointers
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.State != string(service.StateIdle) || state.LastError != nil {
		t.Fatalf("expected clean IDLE, got %+v", state)
	}
}

func TestAPI_Leaderboard(t *testing.T) {
	t.Parallel()

	ledger := seedTwoDriverLedger()
	svc := newService(t, ledger, NewMockOracle())
	router := newAPIRouter(svc)

	rec := doJSON(t, router, http.MethodGet, "/v1/stats/leaderboard", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("leaderboard: status %d body %s", rec.Code, rec.Body)
	}
	var rows []handler.DriverStatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if len(rows) != 2 || rows[0].DriverID != "d2" {
		t.Fatalf("expected Ben leading, got %+v", rows)
	}
}
