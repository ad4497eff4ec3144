package domain

import "time"

// Trip is the immutable record of one completed shift.
// Invariant: EndOdometer > StartOdometer, strictly.
type Trip struct {
	ID                 string
	DriverID           string
	StartOdometer      float64
	EndOdometer        float64
	StartTime          time.Time
	EndTime            time.Time
	StartOdometerImage string // data URL
	EndOdometerImage   string // data URL
}

// Distance returns the mileage covered by the trip.
func (t Trip) Distance() float64 {
	return t.EndOdometer - t.StartOdometer
}
