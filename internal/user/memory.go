package user

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory account store for tests and local demos.
type MemoryRepository struct {
	mu         sync.RWMutex
	byID       map[uuid.UUID]User
	byUsername map[string]uuid.UUID
}

// NewMemoryRepository constructs an empty memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:       make(map[uuid.UUID]User),
		byUsername: make(map[string]uuid.UUID),
	}
}

// Insert stores the user, enforcing username uniqueness.
func (m *MemoryRepository) Insert(_ context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byUsername[u.Username]; ok {
		return User{}, ErrUsernameTaken
	}
	m.byID[u.ID] = u
	m.byUsername[u.Username] = u.ID
	return u, nil
}

// FindByUsername retrieves a user by username.
func (m *MemoryRepository) FindByUsername(_ context.Context, username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byUsername[username]
	if !ok {
		return User{}, ErrNotFound
	}
	return m.byID[id], nil
}

// FindByID retrieves a user by identifier.
func (m *MemoryRepository) FindByID(_ context.Context, id uuid.UUID) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}
