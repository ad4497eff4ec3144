// Package mongo implements store.LedgerStore on MongoDB.
//
// ReplaceDrivers and ReplaceTrips are delete-then-insert full replaces and
// are NOT atomic: a failure between the two phases can leave the collection
// empty or partially populated. The state machine compensates by treating any
// error as "write not committed" and re-issuing the whole replace.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"shiftlog/internal/domain"
	"shiftlog/internal/store"
)

// Collection names.
const (
	colDrivers = "drivers"
	colTrips   = "trips"
	colShift   = "current_shift"

	// shiftDocID is the fixed _id of the singleton current-shift document.
	shiftDocID = "state"
)

// Compile-time interface check.
var _ store.LedgerStore = (*Store)(nil)

// Store is the MongoDB implementation of store.LedgerStore.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New creates a Store on the given connected client and database name.
func New(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

// LoadAll reads all three collections.
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
	cursor, err := s.db.Collection(colDrivers).Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("mongo: load drivers: %w", err)
	}

	var models []driverModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("mongo: decode drivers: %w", err)
	}

	drivers := make([]domain.Driver, 0, len(models))
	for _, m := range models {
		drivers = append(drivers, fromDriverModel(m))
	}
	return drivers, nil
}

func (s *Store) loadTrips(ctx context.Context) ([]domain.Trip, error) {
	cursor, err := s.db.Collection(colTrips).Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("mongo: load trips: %w", err)
	}

	var models []tripModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("mongo: decode trips: %w", err)
	}

	trips := make([]domain.Trip, 0, len(models))
	for _, m := range models {
		t, err := fromTripModel(m)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		trips = append(trips, t)
	}
	return trips, nil
}

func (s *Store) loadShift(ctx context.Context) (*domain.Shift, error) {
	var m shiftModel
	err := s.db.Collection(colShift).FindOne(ctx, bson.M{"_id": shiftDocID}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrShiftNotFound
		}
		return nil, fmt.Errorf("mongo: load current shift: %w", err)
	}

	shift, err := fromShiftModel(m)
	if err != nil {
		return nil, fmt.Errorf("mongo: %w", err)
	}
	return &shift, nil
}

// ReplaceDrivers empties the drivers collection and writes the given set.
func (s *Store) ReplaceDrivers(ctx context.Context, drivers []domain.Driver) error {
	coll := s.db.Collection(colDrivers)

	if _, err := coll.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("mongo: replace drivers: delete: %w", err)
	}

	if len(drivers) == 0 {
		return nil
	}

	docs := make([]any, 0, len(drivers))
	for _, d := range drivers {
		docs = append(docs, toDriverModel(d))
	}
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("mongo: replace drivers: insert: %w", err)
	}
	return nil
}

// ReplaceTrips empties the trips collection and writes the given set.
func (s *Store) ReplaceTrips(ctx context.Context, trips []domain.Trip) error {
	coll := s.db.Collection(colTrips)

	if _, err := coll.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("mongo: replace trips: delete: %w", err)
	}

	if len(trips) == 0 {
		return nil
	}

	docs := make([]any, 0, len(trips))
	for _, t := range trips {
		docs = append(docs, toTripModel(t))
	}
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("mongo: replace trips: insert: %w", err)
	}
	return nil
}

// PutShift upserts the singleton current-shift document.
func (s *Store) PutShift(ctx context.Context, shift domain.Shift) error {
	coll := s.db.Collection(colShift)
	m := toShiftModel(shift)

	_, err := coll.ReplaceOne(ctx, bson.M{"_id": shiftDocID}, m, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo: put current shift: %w", err)
	}
	return nil
}

// ClearShift deletes the singleton current-shift document.
func (s *Store) ClearShift(ctx context.Context) error {
	_, err := s.db.Collection(colShift).DeleteOne(ctx, bson.M{"_id": shiftDocID})
	if err != nil {
		return fmt.Errorf("mongo: clear current shift: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
