package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/example/ridelink/internal/user"
)

type RideStatus string

const (
	StatusPending    RideStatus = "pending"
	StatusAccepted   RideStatus = "accepted"
	StatusInProgress RideStatus = "in-progress"
	StatusCompleted  RideStatus = "completed"
	StatusCancelled  RideStatus = "cancelled"
)

var ErrNotFound = errors.New("ride not found")
var ErrInvalidTransition = errors.New("invalid ride status transition")
var ErrStoreUnavailable = errors.New("ride store unavailable")

// allowedTransitions is the full state graph. completed and cancelled are
// terminal; a ride can only be cancelled before it is underway.
var allowedTransitions = map[RideStatus][]RideStatus{
	StatusPending:    {StatusAccepted, StatusCancelled},
	StatusAccepted:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

func (s RideStatus) CanTransitionTo(next RideStatus) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is one of the recognized ride statuses.
func (s RideStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type RideType string

const (
	TypeEconomy RideType = "economy"
	TypeLuxury  RideType = "luxury"
)

func (t RideType) Valid() bool {
	return t == TypeEconomy || t == TypeLuxury
}

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// InRange reports whether the point lies within valid latitude and
// longitude bounds.
func (p GeoPoint) InRange() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

type Ride struct {
	ID          uuid.UUID  `json:"rideId"`
	PassengerID uuid.UUID  `json:"passengerId"`
	Pickup      GeoPoint   `json:"pickupLocation"`
	Dropoff     GeoPoint   `json:"dropoffLocation"`
	RideType    RideType   `json:"rideType"`
	Status      RideStatus `json:"status"`
	AcceptedBy  *uuid.UUID `json:"acceptedBy"`
	RequestedAt time.Time  `json:"requestedAt"`
}

type RideEventType string

const (
	EventRideRequested    RideEventType = "RideRequested"
	EventRideTransitioned RideEventType = "RideTransitioned"
)

// RideEvent is the lifecycle record published to the event bus.
type RideEvent struct {
	RideID    uuid.UUID      `json:"ride_id"`
	Type      RideEventType  `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Repository is the persistent store for ride records.
type Repository interface {
	InsertRide(ctx context.Context, ride Ride) (Ride, error)
	FindRideByID(ctx context.Context, id uuid.UUID) (Ride, error)
	// UpdateRideStatus applies a conditional transition: the record is
	// updated only while its current status equals from. acceptedBy is
	// written only when non-nil. Returns ErrNotFound when the ride does
	// not exist and ErrInvalidTransition when the status check fails,
	// which is how a lost acceptance race surfaces.
	UpdateRideStatus(ctx context.Context, id uuid.UUID, from, to RideStatus, acceptedBy *uuid.UUID) (Ride, error)
}

// Notifier pushes real-time events to connected clients. Delivery is
// best-effort; NotifyRideParties returns the usernames it could not resolve
// to a live connection.
type Notifier interface {
	BroadcastToRole(role user.Role, event string, payload any)
	NotifyRideParties(rideID string, event string, payload any, usernames []string) []string
}

type EventPublisher interface {
	Publish(ctx context.Context, event RideEvent) error
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
