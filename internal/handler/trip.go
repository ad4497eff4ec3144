package handler

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"shiftlog/internal/domain"
	"shiftlog/internal/service"
)

// TripHandler serves the recorded trip history.
type TripHandler struct {
	shiftService *service.ShiftService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(shiftService *service.ShiftService) *TripHandler {
	return &TripHandler{shiftService: shiftService}
}

// TripResponse is the HTTP response for a trip.
type TripResponse struct {
	ID                 string  `json:"id"`
	DriverID           string  `json:"driver_id"`
	StartOdometer      float64 `json:"start_odometer"`
	EndOdometer        float64 `json:"end_odometer"`
	Distance           float64 `json:"distance"`
	StartTime          string  `json:"start_time"`
	EndTime            string  `json:"end_time"`
	StartOdometerImage string  `json:"start_odometer_image"`
	EndOdometerImage   string  `json:"end_odometer_image"`
}

// GetAll handles GET /v1/trips. Display order is start time descending.
func (h *TripHandler) GetAll(c *gin.Context) {
	trips := h.shiftService.Trips()
	sort.SliceStable(trips, func(i, j int) bool {
		return trips[i].StartTime.After(trips[j].StartTime)
	})

	response := make([]TripResponse, 0, len(trips))
	for _, t := range trips {
		response = append(response, tripResponse(t))
	}

	respondJSON(c, http.StatusOK, response)
}

// GetTrip handles GET /v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	trip, err := h.shiftService.TripByID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, tripResponse(trip))
}

func tripResponse(t domain.Trip) TripResponse {
	return TripResponse{
		ID:                 t.ID,
		DriverID:           t.DriverID,
		StartOdometer:      t.StartOdometer,
		EndOdometer:        t.EndOdometer,
		Distance:           t.Distance(),
		StartTime:          t.StartTime.Format(time.RFC3339),
		EndTime:            t.EndTime.Format(time.RFC3339),
		StartOdometerImage: t.StartOdometerImage,
		EndOdometerImage:   t.EndOdometerImage,
	}
}
