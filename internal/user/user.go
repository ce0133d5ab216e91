// Package user holds the account model shared by the auth API, the ride
// service and the real-time gateway.
package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
)

// Valid reports whether r is a role the system recognizes. Tokens carrying
// any other role are rejected at the gateway.
func (r Role) Valid() bool {
	return r == RolePassenger || r == RoleDriver
}

var ErrNotFound = errors.New("user not found")
var ErrUsernameTaken = errors.New("username already exists")

type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	Role         Role
}

// Repository is the persistent store for user accounts.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (User, error)
	FindByID(ctx context.Context, id uuid.UUID) (User, error)
	Insert(ctx context.Context, u User) (User, error)
}
