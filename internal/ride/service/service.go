package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/ridelink/internal/ride/domain"
	"github.com/example/ridelink/internal/user"
	"github.com/example/ridelink/internal/validate"
)

// Service owns the ride state machine. All status changes go through
// UpdateStatus, which delegates the check-and-persist step to a single
// conditional store update so that concurrent acceptors cannot both win.
type Service struct {
	rides  domain.Repository
	users  user.Repository
	notify domain.Notifier
	events domain.EventPublisher
	clock  domain.Clock
	logger *zap.Logger
}

// New constructs a Service with the required collaborators.
func New(rides domain.Repository, users user.Repository, notify domain.Notifier, events domain.EventPublisher, clock domain.Clock, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{rides: rides, users: users, notify: notify, events: events, clock: clock, logger: logger}
}

// CreateRideRequest is the validated payload for a new ride.
type CreateRideRequest struct {
	Pickup   domain.GeoPoint
	Dropoff  domain.GeoPoint
	RideType domain.RideType
}

// CreateRide records a new ride for the named passenger and fans the
// request out to every connected driver. Rides always start pending with
// no accepting driver.
func (s *Service) CreateRide(ctx context.Context, passengerUsername string, req CreateRideRequest) (domain.Ride, error) {
	if err := validateCreate(req); err != nil {
		return domain.Ride{}, err
	}

	passenger, err := s.users.FindByUsername(ctx, passengerUsername)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return domain.Ride{}, fmt.Errorf("passenger %q: %w", passengerUsername, domain.ErrNotFound)
		}
		return domain.Ride{}, fmt.Errorf("find passenger: %w", err)
	}

	ride := domain.Ride{
		ID:          uuid.New(),
		PassengerID: passenger.ID,
		Pickup:      req.Pickup,
		Dropoff:     req.Dropoff,
		RideType:    req.RideType,
		Status:      domain.StatusPending,
		RequestedAt: s.clock.Now(),
	}

	created, err := s.rides.InsertRide(ctx, ride)
	if err != nil {
		return domain.Ride{}, fmt.Errorf("insert ride: %w", err)
	}
	ridesCreatedTotal.Inc()

	_ = s.events.Publish(ctx, domain.RideEvent{
		RideID:    created.ID,
		Type:      domain.EventRideRequested,
		Payload:   map[string]any{"passenger_id": created.PassengerID.String()},
		CreatedAt: created.RequestedAt,
	})

	s.notify.BroadcastToRole(user.RoleDriver, "ride:request", map[string]any{
		"rideId":        created.ID.String(),
		"passengerName": passenger.Username,
		"pickup":        created.Pickup,
		"destination":   created.Dropoff,
		"message":       "A new ride request is available.",
		"timestamp":     s.clock.Now().Format(time.RFC3339),
	})

	return created, nil
}

// UpdateStatusResult is the outcome of a transition, including any ride
// parties that had no live connection when the notification was sent.
type UpdateStatusResult struct {
	Ride        domain.Ride
	Unreachable []string
}

// UpdateStatus validates and applies a status transition requested by the
// named actor, then notifies both ride parties in the ride-scoped room.
// Only the transition into accepted records the acting driver.
func (s *Service) UpdateStatus(ctx context.Context, rideID string, next domain.RideStatus, actorUsername string) (UpdateStatusResult, error) {
	id, err := parseRideID(rideID)
	if err != nil {
		return UpdateStatusResult{}, err
	}
	if !next.Valid() {
		return UpdateStatusResult{}, validate.New("status", "unrecognized ride status")
	}

	actor, err := s.users.FindByUsername(ctx, actorUsername)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return UpdateStatusResult{}, fmt.Errorf("actor %q: %w", actorUsername, domain.ErrNotFound)
		}
		return UpdateStatusResult{}, fmt.Errorf("find actor: %w", err)
	}

	current, err := s.rides.FindRideByID(ctx, id)
	if err != nil {
		return UpdateStatusResult{}, err
	}
	if !current.Status.CanTransitionTo(next) {
		transitionsTotal.WithLabelValues("rejected").Inc()
		return UpdateStatusResult{}, fmt.Errorf("%s to %s: %w", current.Status, next, domain.ErrInvalidTransition)
	}

	var acceptedBy *uuid.UUID
	if next == domain.StatusAccepted {
		acceptedBy = &actor.ID
	}

	// The store re-checks the status; a concurrent transition that landed
	// between the read above and this update loses here.
	updated, err := s.rides.UpdateRideStatus(ctx, id, current.Status, next, acceptedBy)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			transitionsTotal.WithLabelValues("lost_race").Inc()
		}
		return UpdateStatusResult{}, err
	}
	transitionsTotal.WithLabelValues("applied").Inc()

	_ = s.events.Publish(ctx, domain.RideEvent{
		RideID:    updated.ID,
		Type:      domain.EventRideTransitioned,
		Payload:   map[string]any{"from": string(current.Status), "to": string(next)},
		CreatedAt: s.clock.Now(),
	})

	unreachable := s.notify.NotifyRideParties(updated.ID.String(), "ride:status:update", map[string]any{
		"rideId":    updated.ID.String(),
		"status":    string(updated.Status),
		"message":   fmt.Sprintf("The ride status has been updated to %s.", updated.Status),
		"timestamp": s.clock.Now().Format(time.RFC3339),
	}, s.partyUsernames(ctx, updated, actor))
	if len(unreachable) > 0 {
		s.logger.Info("ride notification skipped offline parties",
			zap.String("ride_id", updated.ID.String()),
			zap.Strings("unreachable", unreachable))
	}

	return UpdateStatusResult{Ride: updated, Unreachable: unreachable}, nil
}

// GetRide retrieves a ride. The identifier shape is checked before any
// store access.
func (s *Service) GetRide(ctx context.Context, rideID string) (domain.Ride, error) {
	id, err := parseRideID(rideID)
	if err != nil {
		return domain.Ride{}, err
	}
	return s.rides.FindRideByID(ctx, id)
}

// partyUsernames resolves the usernames of both ride parties. The actor is
// already resolved; the passenger lookup failing only shrinks the
// notification audience.
func (s *Service) partyUsernames(ctx context.Context, ride domain.Ride, actor user.User) []string {
	names := []string{actor.Username}
	if passenger, err := s.users.FindByID(ctx, ride.PassengerID); err == nil && passenger.Username != actor.Username {
		names = append(names, passenger.Username)
	}
	return names
}

func parseRideID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, validate.New("rideId", "malformed ride identifier")
	}
	return id, nil
}

func validateCreate(req CreateRideRequest) error {
	fields := make(map[string]string)
	if !req.Pickup.InRange() {
		fields["pickupLocation"] = "coordinates out of range"
	}
	if !req.Dropoff.InRange() {
		fields["dropoffLocation"] = "coordinates out of range"
	}
	if !req.RideType.Valid() {
		fields["rideType"] = "must be economy or luxury"
	}
	if len(fields) > 0 {
		return &validate.Error{Fields: fields}
	}
	return nil
}
