package mongo

import (
	"fmt"
	"time"

	"shiftlog/internal/domain"
)

// Persisted shapes. Timestamps are stored as ISO-8601 strings and images as
// data URLs, matching the documented record shapes.

type driverModel struct {
	ID   string `bson:"_id"`
	Name string `bson:"name"`
}

type tripModel struct {
	ID                 string  `bson:"_id"`
	DriverID           string  `bson:"driverId"`
	StartOdometer      float64 `bson:"startOdometer"`
	EndOdometer        float64 `bson:"endOdometer"`
	StartTime          string  `bson:"startTime"`
	EndTime            string  `bson:"endTime"`
	StartOdometerImage string  `bson:"startOdometerImage"`
	EndOdometerImage   string  `bson:"endOdometerImage"`
}

type shiftModel struct {
	ID                 string  `bson:"_id"`
	DriverID           string  `bson:"driverId"`
	StartOdometer      float64 `bson:"startOdometer"`
	StartTime          string  `bson:"startTime"`
	StartOdometerImage string  `bson:"startOdometerImage,omitempty"`
}

func toDriverModel(d domain.Driver) driverModel {
	return driverModel{ID: d.ID, Name: d.Name}
}

func fromDriverModel(m driverModel) domain.Driver {
	return domain.Driver{ID: m.ID, Name: m.Name}
}

func toTripModel(t domain.Trip) tripModel {
	return tripModel{
		ID:                 t.ID,
		DriverID:           t.DriverID,
		StartOdometer:      t.StartOdometer,
		EndOdometer:        t.EndOdometer,
		StartTime:          t.StartTime.UTC().Format(time.RFC3339),
		EndTime:            t.EndTime.UTC().Format(time.RFC3339),
		StartOdometerImage: t.StartOdometerImage,
		EndOdometerImage:   t.EndOdometerImage,
	}
}

func fromTripModel(m tripModel) (domain.Trip, error) {
	start, err := time.Parse(time.RFC3339, m.StartTime)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("trip %s: bad startTime %q: %w", m.ID, m.StartTime, err)
	}
	end, err := time.Parse(time.RFC3339, m.EndTime)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("trip %s: bad endTime %q: %w", m.ID, m.EndTime, err)
	}
	return domain.Trip{
		ID:                 m.ID,
		DriverID:           m.DriverID,
		StartOdometer:      m.StartOdometer,
		EndOdometer:        m.EndOdometer,
		StartTime:          start,
		EndTime:            end,
		StartOdometerImage: m.StartOdometerImage,
		EndOdometerImage:   m.EndOdometerImage,
	}, nil
}

func toShiftModel(s domain.Shift) shiftModel {
	return shiftModel{
		ID:                 shiftDocID,
		DriverID:           s.DriverID,
		StartOdometer:      s.StartOdometer,
		StartTime:          s.StartTime.UTC().Format(time.RFC3339),
		StartOdometerImage: s.StartOdometerImage,
	}
}

func fromShiftModel(m shiftModel) (domain.Shift, error) {
	start, err := time.Parse(time.RFC3339, m.StartTime)
	if err != nil {
		return domain.Shift{}, fmt.Errorf("current shift: bad startTime %q: %w", m.StartTime, err)
	}
	return domain.Shift{
		DriverID:           m.DriverID,
		StartOdometer:      m.StartOdometer,
		StartTime:          start,
		StartOdometerImage: m.StartOdometerImage,
	}, nil
}
