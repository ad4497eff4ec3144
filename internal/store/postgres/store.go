// Package postgres implements store.LedgerStore on PostgreSQL.
//
// Unlike the MongoDB backend, the full-collection replaces here run inside a
// single transaction, so a replace either commits in full or not at all.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shiftlog/internal/domain"
	"shiftlog/internal/store"
)

// shiftRowKey is the fixed key of the singleton current-shift row.
const shiftRowKey = "state"

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier           = (*sql.DB)(nil)
	_ Querier           = (*sql.Tx)(nil)
	_ store.LedgerStore = (*Store)(nil)
)

// Store is the PostgreSQL implementation of store.LedgerStore.
type Store struct {
	db *sql.DB
}

// New creates a Store on the given database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the ledger tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS drivers (
			id   TEXT PRIMARY KEY,
			name TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS trips (
			id                   TEXT PRIMARY KEY,
			driver_id            TEXT NOT NULL,
			start_odometer       DOUBLE PRECISION NOT NULL,
			end_odometer         DOUBLE PRECISION NOT NULL,
			start_time           TIMESTAMPTZ NOT NULL,
			end_time             TIMESTAMPTZ NOT NULL,
			start_odometer_image TEXT NOT NULL,
			end_odometer_image   TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS current_shift (
			key                  TEXT PRIMARY KEY,
			driver_id            TEXT NOT NULL,
			start_odometer       DOUBLE PRECISION NOT NULL,
			start_time           TIMESTAMPTZ NOT NULL,
			start_odometer_image TEXT NOT NULL DEFAULT ''
		);`

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// LoadAll reads the entire ledger.
func (s *Store) LoadAll(ctx context.Context) ([]domain.Driver, []domain.Trip, *domain.Shift, error) {
	drivers, err := s.loadDrivers(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	trips, err := s.loadTrips(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	shift, err := s.loadShift(ctx)
	if err != nil {
		if errors.Is(err, store.ErrShiftNotFound) {
			return drivers, trips, nil, nil
		}
		return nil, nil, nil, err
	}

	return drivers, trips, shift, nil
}

func (s *Store) loadDrivers(ctx context.Context) ([]domain.Driver, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM drivers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load drivers: %w", err)
	}
	defer rows.Close()

	var drivers []domain.Driver
	for rows.Next() {
		var d domain.Driver
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, fmt.Errorf("postgres: scan driver: %w", err)
		}
		drivers = append(drivers, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load drivers: %w", err)
	}
	return drivers, nil
}

func (s *Store) loadTrips(ctx context.Context) ([]domain.Trip, error) {
	const q = `
		SELECT id, driver_id, start_odometer, end_odometer,
		       start_time, end_time, start_odometer_image, end_odometer_image
		FROM trips
		ORDER BY end_time`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres: load trips: %w", err)
	}
	defer rows.Close()

	var trips []domain.Trip
	for rows.Next() {
		var t domain.Trip
		err := rows.Scan(
			&t.ID,
			&t.DriverID,
			&t.StartOdometer,
			&t.EndOdometer,
			&t.StartTime,
			&t.EndTime,
			&t.StartOdometerImage,
			&t.EndOdometerImage,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan trip: %w", err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load trips: %w", err)
	}
	return trips, nil
}

func (s *Store) loadShift(ctx context.Context) (*domain.Shift, error) {
	const q = `
		SELECT driver_id, start_odometer, start_time, start_odometer_image
		FROM current_shift
		WHERE key = $1`

	var shift domain.Shift
	err := s.db.QueryRowContext(ctx, q, shiftRowKey).Scan(
		&shift.DriverID,
		&shift.StartOdometer,
		&shift.StartTime,
		&shift.StartOdometerImage,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrShiftNotFound
		}
		return nil, fmt.Errorf("postgres: load current shift: %w", err)
	}
	return &shift, nil
}

// ReplaceDrivers replaces the drivers table contents in one transaction.
func (s *Store) ReplaceDrivers(ctx context.Context, drivers []domain.Driver) error {
	return s.inTx(ctx, "replace drivers", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM drivers`); err != nil {
			return err
		}
		for _, d := range drivers {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO drivers (id, name) VALUES ($1, $2)`, d.ID, d.Name)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceTrips replaces the trips table contents in one transaction.
func (s *Store) ReplaceTrips(ctx context.Context, trips []domain.Trip) error {
	const ins = `
		INSERT INTO trips (id, driver_id, start_odometer, end_odometer,
		                   start_time, end_time, start_odometer_image, end_odometer_image)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	return s.inTx(ctx, "replace trips", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM trips`); err != nil {
			return err
		}
		for _, t := range trips {
			_, err := tx.ExecContext(ctx, ins,
				t.ID, t.DriverID, t.StartOdometer, t.EndOdometer,
				t.StartTime, t.EndTime, t.StartOdometerImage, t.EndOdometerImage)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// PutShift upserts the singleton current-shift row.
func (s *Store) PutShift(ctx context.Context, shift domain.Shift) error {
	const q = `
		INSERT INTO current_shift (key, driver_id, start_odometer, start_time, start_odometer_image)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE SET
			driver_id            = EXCLUDED.driver_id,
			start_odometer       = EXCLUDED.start_odometer,
			start_time           = EXCLUDED.start_time,
			start_odometer_image = EXCLUDED.start_odometer_image`

	_, err := s.db.ExecContext(ctx, q,
		shiftRowKey, shift.DriverID, shift.StartOdometer, shift.StartTime, shift.StartOdometerImage)
	if err != nil {
		return fmt.Errorf("postgres: put current shift: %w", err)
	}
	return nil
}

// ClearShift deletes the singleton current-shift row.
func (s *Store) ClearShift(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM current_shift WHERE key = $1`, shiftRowKey)
	if err != nil {
		return fmt.Errorf("postgres: clear current shift: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

// inTx runs fn inside a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: %s: begin: %w", op, err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("postgres: %s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: %s: commit: %w", op, err)
	}
	return nil
}
