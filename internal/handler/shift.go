package handler

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shiftlog/internal/domain"
	"shiftlog/internal/service"
)

// ShiftHandler forwards shift lifecycle intents into the state machine.
type ShiftHandler struct {
	shiftService *service.ShiftService
}

// NewShiftHandler creates a new ShiftHandler.
func NewShiftHandler(shiftService *service.ShiftService) *ShiftHandler {
	return &ShiftHandler{shiftService: shiftService}
}

// StartShiftRequest is the HTTP request body for starting a shift.
type StartShiftRequest struct {
	DriverID string `json:"driver_id"`
}

// SubmitImageRequest is the HTTP request body for submitting an odometer
// photo. Purpose must be "start" or "end" and match the awaited reading.
type SubmitImageRequest struct {
	ImageBase64 string `json:"image_base64"`
	Purpose     string `json:"purpose"`
}

// ShiftInfo is the wire shape of the current shift.
type ShiftInfo struct {
	DriverID           string  `json:"driver_id"`
	StartOdometer      float64 `json:"start_odometer"`
	StartTime          string  `json:"start_time"`
	StartOdometerImage string  `json:"start_odometer_image,omitempty"`
}

// ErrorInfo is the wire shape of the machine's pending error.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// StateResponse is the presentation view of the state machine.
type StateResponse struct {
	State     string     `json:"state"`
	Shift     *ShiftInfo `json:"shift,omitempty"`
	LastError *ErrorInfo `json:"last_error,omitempty"`
	Retryable bool       `json:"retryable"`
}

// SubmitImageResponse is returned after an image submission is applied.
type SubmitImageResponse struct {
	StateResponse
	Trip *TripResponse `json:"trip,omitempty"`
}

// GetState handles GET /v1/shift
func (h *ShiftHandler) GetState(c *gin.Context) {
	respondJSON(c, http.StatusOK, stateResponse(h.shiftService.Snapshot()))
}

// Start handles POST /v1/shift/start
func (h *ShiftHandler) Start(c *gin.Context) {
	var req StartShiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.DriverID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "driver_id is required"})
		return
	}

	if err := h.shiftService.RequestStartShift(c.Request.Context(), req.DriverID); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusAccepted, stateResponse(h.shiftService.Snapshot()))
}

// End handles POST /v1/shift/end
func (h *ShiftHandler) End(c *gin.Context) {
	if err := h.shiftService.RequestEndShift(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusAccepted, stateResponse(h.shiftService.Snapshot()))
}

// SubmitImage handles POST /v1/shift/image
func (h *ShiftHandler) SubmitImage(c *gin.Context) {
	var req SubmitImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	purpose := service.ImagePurpose(req.Purpose)
	if purpose != service.PurposeStart && purpose != service.PurposeEnd {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "purpose must be \"start\" or \"end\""})
		return
	}

	jpeg, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil || len(jpeg) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "image_base64 must be a non-empty base64 payload"})
		return
	}

	trip, err := h.shiftService.SubmitImage(c.Request.Context(), jpeg, purpose)
	if err != nil {
		respondError(c, err)
		return
	}

	response := SubmitImageResponse{StateResponse: stateResponse(h.shiftService.Snapshot())}
	if trip != nil {
		tr := tripResponse(*trip)
		response.Trip = &tr
	}
	respondJSON(c, http.StatusOK, response)
}

// Retry handles POST /v1/shift/retry
func (h *ShiftHandler) Retry(c *gin.Context) {
	if err := h.shiftService.Retry(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, stateResponse(h.shiftService.Snapshot()))
}

// Cancel handles POST /v1/shift/cancel
func (h *ShiftHandler) Cancel(c *gin.Context) {
	if err := h.shiftService.Cancel(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, stateResponse(h.shiftService.Snapshot()))
}

// stateResponse converts a service snapshot into its wire shape.
func stateResponse(snap service.Snapshot) StateResponse {
	response := StateResponse{
		State:     string(snap.State),
		Retryable: snap.Retryable,
	}
	if snap.Shift != nil {
		response.Shift = shiftInfo(*snap.Shift)
	}
	if snap.ErrorMessage != "" {
		response.LastError = &ErrorInfo{
			Kind:    string(snap.ErrorKind),
			Message: snap.ErrorMessage,
		}
	}
	return response
}

func shiftInfo(shift domain.Shift) *ShiftInfo {
	return &ShiftInfo{
		DriverID:           shift.DriverID,
		StartOdometer:      shift.StartOdometer,
		StartTime:          shift.StartTime.Format(time.RFC3339),
		StartOdometerImage: shift.StartOdometerImage,
	}
}
