package domain

import "time"

// DriverStats holds per-driver aggregates computed from the trip history.
type DriverStats struct {
	DriverID      string
	Name          string
	TripCount     int
	TotalDistance float64
	LastTripEnd   time.Time // zero when the driver has no trips
}
