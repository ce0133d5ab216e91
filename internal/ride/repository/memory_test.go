package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/ridelink/internal/ride/domain"
)

func seedRide(t *testing.T, repo *MemoryRepository) domain.Ride {
	t.Helper()
	ride := domain.Ride{
		ID:          uuid.New(),
		PassengerID: uuid.New(),
		Pickup:      domain.GeoPoint{Lat: 40.71, Lon: -74.0},
		Dropoff:     domain.GeoPoint{Lat: 40.73, Lon: -73.99},
		RideType:    domain.TypeEconomy,
		Status:      domain.StatusPending,
		RequestedAt: time.Now().UTC(),
	}
	_, err := repo.InsertRide(context.Background(), ride)
	require.NoError(t, err)
	return ride
}

func TestMemoryInsertAndFind(t *testing.T) {
	repo := NewMemoryRepository()
	ride := seedRide(t, repo)

	found, err := repo.FindRideByID(context.Background(), ride.ID)
	require.NoError(t, err)
	require.Equal(t, ride, found)

	_, err = repo.FindRideByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryConditionalUpdate(t *testing.T) {
	repo := NewMemoryRepository()
	ride := seedRide(t, repo)
	ctx := context.Background()
	driver := uuid.New()

	updated, err := repo.UpdateRideStatus(ctx, ride.ID, domain.StatusPending, domain.StatusAccepted, &driver)
	require.NoError(t, err)
	require.Equal(t, domain.StatusAccepted, updated.Status)
	require.NotNil(t, updated.AcceptedBy)
	require.Equal(t, driver, *updated.AcceptedBy)

	// The same precondition cannot hold twice.
	other := uuid.New()
	_, err = repo.UpdateRideStatus(ctx, ride.ID, domain.StatusPending, domain.StatusAccepted, &other)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	// Later transitions keep the accepting driver.
	updated, err = repo.UpdateRideStatus(ctx, ride.ID, domain.StatusAccepted, domain.StatusInProgress, nil)
	require.NoError(t, err)
	require.Equal(t, driver, *updated.AcceptedBy)
}

func TestMemoryUpdateUnknownRide(t *testing.T) {
	repo := NewMemoryRepository()
	_, err := repo.UpdateRideStatus(context.Background(), uuid.New(), domain.StatusPending, domain.StatusAccepted, nil)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
