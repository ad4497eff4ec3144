package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shiftlog/internal/domain"
	"shiftlog/internal/service"
)

// StatsHandler serves the leaderboard and per-driver aggregates.
type StatsHandler struct {
	statsService *service.StatsService
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(statsService *service.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// DriverStatsResponse is one leaderboard row.
type DriverStatsResponse struct {
	DriverID      string  `json:"driver_id"`
	Name          string  `json:"name"`
	TripCount     int     `json:"trip_count"`
	TotalDistance float64 `json:"total_distance"`
	LastTripEnd   string  `json:"last_trip_end,omitempty"`
}

// DriverDetailResponse bundles aggregates with the driver's trips.
type DriverDetailResponse struct {
	Stats DriverStatsResponse `json:"stats"`
	Trips []TripResponse      `json:"trips"`
}

// Leaderboard handles GET /v1/stats/leaderboard
func (h *StatsHandler) Leaderboard(c *gin.Context) {
	stats, err := h.statsService.Leaderboard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]DriverStatsResponse, 0, len(stats))
	for _, s := range stats {
		response = append(response, statsResponse(s))
	}

	respondJSON(c, http.StatusOK, response)
}

// DriverDetail handles GET /v1/stats/drivers/:id
func (h *StatsHandler) DriverDetail(c *gin.Context) {
	detail, err := h.statsService.DriverDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	trips := make([]TripResponse, 0, len(detail.Trips))
	for _, t := range detail.Trips {
		trips = append(trips, tripResponse(t))
	}

	respondJSON(c, http.StatusOK, DriverDetailResponse{
		Stats: statsResponse(detail.Stats),
		Trips: trips,
	})
}

func statsResponse(s domain.DriverStats) DriverStatsResponse {
	response := DriverStatsResponse{
		DriverID:      s.DriverID,
		Name:          s.Name,
		TripCount:     s.TripCount,
		TotalDistance: s.TotalDistance,
	}
	if !s.LastTripEnd.IsZero() {
		response.LastTripEnd = s.LastTripEnd.Format(time.RFC3339)
	}
	return response
}
