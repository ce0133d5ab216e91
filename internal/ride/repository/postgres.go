package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/ridelink/internal/ride/domain"
)

// PostgresRepository persists rides in the rides table. Lifecycle events are
// appended to the outbox table in the same transaction as the write they
// describe, so the outbox worker never sees an event for a write that did
// not commit.
type PostgresRepository struct {
	pool    *pgxpool.Pool
	subject string
}

// NewPostgresRepository constructs the repository. subject is the event-bus
// subject recorded on outbox rows.
func NewPostgresRepository(pool *pgxpool.Pool, subject string) *PostgresRepository {
	return &PostgresRepository{pool: pool, subject: subject}
}

const rideColumns = `id, passenger_id, pickup_lat, pickup_lon, dropoff_lat, dropoff_lon, ride_type, status, accepted_by, requested_at`

// InsertRide stores the ride and an outbox row atomically.
func (r *PostgresRepository) InsertRide(ctx context.Context, ride domain.Ride) (domain.Ride, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Ride{}, storeErr("begin", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO rides (`+rideColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ride.ID, ride.PassengerID,
		ride.Pickup.Lat, ride.Pickup.Lon, ride.Dropoff.Lat, ride.Dropoff.Lon,
		string(ride.RideType), string(ride.Status), ride.AcceptedBy, ride.RequestedAt)
	if err != nil {
		return domain.Ride{}, storeErr("insert ride", err)
	}

	event := domain.RideEvent{
		RideID:    ride.ID,
		Type:      domain.EventRideRequested,
		Payload:   map[string]any{"passenger_id": ride.PassengerID.String()},
		CreatedAt: ride.RequestedAt,
	}
	if err := r.appendOutbox(ctx, tx, event); err != nil {
		return domain.Ride{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Ride{}, storeErr("commit", err)
	}
	return ride, nil
}

// FindRideByID retrieves a ride.
func (r *PostgresRepository) FindRideByID(ctx context.Context, id uuid.UUID) (domain.Ride, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, id)
	ride, err := scanRide(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Ride{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Ride{}, storeErr("query ride", err)
	}
	return ride, nil
}

// UpdateRideStatus performs the transition as a single conditional update.
// When zero rows match, the current status is re-read to tell a missing
// ride apart from a concurrent transition that got there first.
func (r *PostgresRepository) UpdateRideStatus(ctx context.Context, id uuid.UUID, from, to domain.RideStatus, acceptedBy *uuid.UUID) (domain.Ride, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Ride{}, storeErr("begin", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	row := tx.QueryRow(ctx,
		`UPDATE rides SET status = $3, accepted_by = COALESCE($4, accepted_by)
		 WHERE id = $1 AND status = $2
		 RETURNING `+rideColumns,
		id, string(from), string(to), acceptedBy)
	ride, err := scanRide(row)
	if errors.Is(err, pgx.ErrNoRows) {
		var current string
		err := r.pool.QueryRow(ctx, `SELECT status FROM rides WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Ride{}, domain.ErrNotFound
		}
		if err != nil {
			return domain.Ride{}, storeErr("query ride status", err)
		}
		return domain.Ride{}, domain.ErrInvalidTransition
	}
	if err != nil {
		return domain.Ride{}, storeErr("update ride", err)
	}

	event := domain.RideEvent{
		RideID:    id,
		Type:      domain.EventRideTransitioned,
		Payload:   map[string]any{"from": string(from), "to": string(to)},
		CreatedAt: time.Now().UTC(),
	}
	if err := r.appendOutbox(ctx, tx, event); err != nil {
		return domain.Ride{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Ride{}, storeErr("commit", err)
	}
	return ride, nil
}

func (r *PostgresRepository) appendOutbox(ctx context.Context, tx pgx.Tx, event domain.RideEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO outbox (topic, payload, created_at) VALUES ($1, $2, now())`,
		r.subject, payload); err != nil {
		return storeErr("insert outbox", err)
	}
	return nil
}

func scanRide(row pgx.Row) (domain.Ride, error) {
	var ride domain.Ride
	var rideType, status string
	err := row.Scan(&ride.ID, &ride.PassengerID,
		&ride.Pickup.Lat, &ride.Pickup.Lon, &ride.Dropoff.Lat, &ride.Dropoff.Lon,
		&rideType, &status, &ride.AcceptedBy, &ride.RequestedAt)
	if err != nil {
		return domain.Ride{}, err
	}
	ride.RideType = domain.RideType(rideType)
	ride.Status = domain.RideStatus(status)
	return ride, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
