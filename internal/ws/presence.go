package ws

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/example/ridelink/internal/user"
)

// Conn is the transport side of a registered connection. Send is
// fire-and-forget; the hub drops events for consumers that cannot keep up.
type Conn interface {
	ID() uuid.UUID
	Send(event string, payload any)
}

// Handle ties a live connection to the identity it authenticated with.
type Handle struct {
	Conn     Conn
	Username string
	Role     user.Role

	seq uint64
}

// Registry is the in-memory presence map from authenticated users to live
// connections, partitioned by role. It is entirely volatile and rebuilt
// from zero on restart. A username may hold several simultaneous sessions;
// lookups return the most recently registered one. Linear scans are fine at
// the fleet sizes this serves.
type Registry struct {
	mu         sync.RWMutex
	drivers    []Handle
	passengers []Handle
	nextSeq    uint64
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register inserts the connection into its role partition. Registering the
// same connection id twice is a gateway bug, not a runtime condition, and
// panics.
func (r *Registry) Register(conn Conn, username string, role user.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := conn.ID()
	if r.contains(id) {
		panic(fmt.Sprintf("ws: connection %s registered twice", id))
	}
	r.nextSeq++
	h := Handle{Conn: conn, Username: username, Role: role, seq: r.nextSeq}
	switch role {
	case user.RoleDriver:
		r.drivers = append(r.drivers, h)
	default:
		r.passengers = append(r.passengers, h)
	}
}

// Unregister removes the connection from whichever partition holds it.
// Calling it again for the same id is a no-op, so duplicate disconnect
// signals are harmless.
func (r *Registry) Unregister(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers = remove(r.drivers, id)
	r.passengers = remove(r.passengers, id)
}

// Lookup returns the most recently registered connection for the username
// within the role partition. A miss means the user is offline, which is a
// normal outcome.
func (r *Registry) Lookup(username string, role user.Role) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return latest(r.partition(role), username)
}

// LookupUser searches both partitions for the username, returning the most
// recently registered session regardless of role.
func (r *Registry) LookupUser(username string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, dok := latest(r.drivers, username)
	p, pok := latest(r.passengers, username)
	switch {
	case dok && pok:
		if d.seq > p.seq {
			return d, true
		}
		return p, true
	case dok:
		return d, true
	case pok:
		return p, true
	}
	return Handle{}, false
}

// AllOfRole returns the role's handles in registration order.
func (r *Registry) AllOfRole(role user.Role) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	part := r.partition(role)
	out := make([]Handle, len(part))
	copy(out, part)
	return out
}

func (r *Registry) partition(role user.Role) []Handle {
	if role == user.RoleDriver {
		return r.drivers
	}
	return r.passengers
}

func (r *Registry) contains(id uuid.UUID) bool {
	for _, h := range r.drivers {
		if h.Conn.ID() == id {
			return true
		}
	}
	for _, h := range r.passengers {
		if h.Conn.ID() == id {
			return true
		}
	}
	return false
}

func latest(handles []Handle, username string) (Handle, bool) {
	for i := len(handles) - 1; i >= 0; i-- {
		if handles[i].Username == username {
			return handles[i], true
		}
	}
	return Handle{}, false
}

func remove(handles []Handle, id uuid.UUID) []Handle {
	for i, h := range handles {
		if h.Conn.ID() == id {
			return append(handles[:i], handles[i+1:]...)
		}
	}
	return handles
}
