package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shiftlog/internal/service"
)

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	shiftService *service.ShiftService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(shiftService *service.ShiftService) *DriverHandler {
	return &DriverHandler{shiftService: shiftService}
}

// AddDriverRequest is the HTTP request body for adding a driver.
type AddDriverRequest struct {
	Name string `json:"name"`
}

// DriverResponse is the HTTP response for driver data.
type DriverResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Add handles POST /v1/drivers
func (h *DriverHandler) Add(c *gin.Context) {
	var req AddDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	driver, err := h.shiftService.AddDriver(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, DriverResponse{ID: driver.ID, Name: driver.Name})
}

// GetAll handles GET /v1/drivers
func (h *DriverHandler) GetAll(c *gin.Context) {
	drivers := h.shiftService.Drivers()

	response := make([]DriverResponse, 0, len(drivers))
	for _, d := range drivers {
		response = append(response, DriverResponse{ID: d.ID, Name: d.Name})
	}

	respondJSON(c, http.StatusOK, response)
}
