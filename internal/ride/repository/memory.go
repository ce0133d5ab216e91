package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/example/ridelink/internal/ride/domain"
)

// MemoryRepository is an in-memory ride store for tests and local demos.
// UpdateRideStatus performs the status check and the write under one lock,
// so concurrent acceptors observe the same first-one-wins behaviour as the
// conditional update in the postgres implementation.
type MemoryRepository struct {
	mu    sync.RWMutex
	rides map[uuid.UUID]domain.Ride
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rides: make(map[uuid.UUID]domain.Ride)}
}

// InsertRide stores the ride and returns it.
func (m *MemoryRepository) InsertRide(_ context.Context, ride domain.Ride) (domain.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = ride
	return ride, nil
}

// FindRideByID retrieves a ride.
func (m *MemoryRepository) FindRideByID(_ context.Context, id uuid.UUID) (domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return domain.Ride{}, domain.ErrNotFound
	}
	return ride, nil
}

// UpdateRideStatus applies the transition only while the stored status still
// equals from.
func (m *MemoryRepository) UpdateRideStatus(_ context.Context, id uuid.UUID, from, to domain.RideStatus, acceptedBy *uuid.UUID) (domain.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[id]
	if !ok {
		return domain.Ride{}, domain.ErrNotFound
	}
	if ride.Status != from {
		return domain.Ride{}, domain.ErrInvalidTransition
	}
	ride.Status = to
	if acceptedBy != nil {
		ride.AcceptedBy = acceptedBy
	}
	m.rides[id] = ride
	return ride, nil
}
