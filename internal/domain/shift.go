package domain

import "time"

// Shift represents a driving period in progress. At most one Shift exists at
// any time, in memory and in the store.
//
// A Shift is provisional until its start odometer reading has been confirmed:
// StartOdometer holds the zero sentinel and StartOdometerImage is empty.
// Provisional shifts are never persisted.
type Shift struct {
	DriverID           string
	StartOdometer      float64
	StartTime          time.Time
	StartOdometerImage string // data URL, set once the start reading is confirmed
}

// Confirmed reports whether the shift's start reading has been validated and
// the start image attached.
func (s Shift) Confirmed() bool {
	return s.StartOdometerImage != ""
}
