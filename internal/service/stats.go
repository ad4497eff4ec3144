package service

import (
	"context"
	"log"
	"sort"
	"strings"

	"shiftlog/internal/domain"
)

// StatsCache caches computed leaderboards. A nil slice with a nil error
// means a cache miss.
type StatsCache interface {
	GetLeaderboard(ctx context.Context) ([]domain.DriverStats, error)
	SetLeaderboard(ctx context.Context, stats []domain.DriverStats) error
	InvalidateLeaderboard(ctx context.Context) error
}

// StatsService computes per-driver aggregates and the leaderboard from
// ledger snapshots. Read side only; it never mutates the ledger.
type StatsService struct {
	ledger *ShiftService
	cache  StatsCache // optional
}

// NewStatsService creates a StatsService over the given ledger.
func NewStatsService(ledger *ShiftService, cache StatsCache) *StatsService {
	return &StatsService{ledger: ledger, cache: cache}
}

// Leaderboard returns aggregates for every driver, sorted by total distance
// descending (name ascending as tie-break). Cache errors degrade to a fresh
// computation.
func (s *StatsService) Leaderboard(ctx context.Context) ([]domain.DriverStats, error) {
	if s.cache != nil {
		cached, err := s.cache.GetLeaderboard(ctx)
		if err != nil {
			log.Printf("stats: leaderboard cache read failed: %v", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	stats := s.compute()

	if s.cache != nil {
		if err := s.cache.SetLeaderboard(ctx, stats); err != nil {
			log.Printf("stats: leaderboard cache write failed: %v", err)
		}
	}
	return stats, nil
}

// DriverDetail bundles a driver's aggregates with their trip history.
type DriverDetail struct {
	Stats domain.DriverStats
	Trips []domain.Trip // start time descending
}

// DriverDetail returns one driver's aggregates and trips.
func (s *StatsService) DriverDetail(ctx context.Context, driverID string) (DriverDetail, error) {
	var driver *domain.Driver
	for _, d := range s.ledger.Drivers() {
		if d.ID == driverID {
			driver = &d
			break
		}
	}
	if driver == nil {
		return DriverDetail{}, ErrUnknownDriver
	}

	stats := domain.DriverStats{DriverID: driver.ID, Name: driver.Name}
	var trips []domain.Trip
	for _, t := range s.ledger.Trips() {
		if t.DriverID != driverID {
			continue
		}
		trips = append(trips, t)
		stats.TripCount++
		stats.TotalDistance += t.Distance()
		if t.EndTime.After(stats.LastTripEnd) {
			stats.LastTripEnd = t.EndTime
		}
	}

	sort.SliceStable(trips, func(i, j int) bool {
		return trips[i].StartTime.After(trips[j].StartTime)
	})

	return DriverDetail{Stats: stats, Trips: trips}, nil
}

// compute builds the full leaderboard from the current ledger snapshot.
func (s *StatsService) compute() []domain.DriverStats {
	byDriver := make(map[string]*domain.DriverStats)
	order := make([]string, 0)

	for _, d := range s.ledger.Drivers() {
		byDriver[d.ID] = &domain.DriverStats{DriverID: d.ID, Name: d.Name}
		order = append(order, d.ID)
	}

	for _, t := range s.ledger.Trips() {
		stat, ok := byDriver[t.DriverID]
		if !ok {
			// Trip for a driver missing from the drivers collection; skip
			// rather than fabricate a nameless row.
			continue
		}
		stat.TripCount++
		stat.TotalDistance += t.Distance()
		if t.EndTime.After(stat.LastTripEnd) {
			stat.LastTripEnd = t.EndTime
		}
	}

	stats := make([]domain.DriverStats, 0, len(order))
	for _, id := range order {
		stats = append(stats, *byDriver[id])
	}

	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].TotalDistance != stats[j].TotalDistance {
			return stats[i].TotalDistance > stats[j].TotalDistance
		}
		return strings.ToLower(stats[i].Name) < strings.ToLower(stats[j].Name)
	})
	return stats
}
