package ws

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/ridelink/internal/user"
)

type fakeConn struct {
	id uuid.UUID

	mu     sync.Mutex
	events []string
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: uuid.New()}
}

func (c *fakeConn) ID() uuid.UUID { return c.id }

func (c *fakeConn) Send(event string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *fakeConn) sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	copy(out, c.events)
	return out
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	conn := newFakeConn()
	reg.Register(conn, "dave", user.RoleDriver)

	h, ok := reg.Lookup("dave", user.RoleDriver)
	require.True(t, ok)
	require.Equal(t, conn.ID(), h.Conn.ID())
	require.Equal(t, "dave", h.Username)

	_, ok = reg.Lookup("dave", user.RolePassenger)
	require.False(t, ok)
	_, ok = reg.Lookup("nobody", user.RoleDriver)
	require.False(t, ok)
}

func TestRegistryMostRecentSessionWins(t *testing.T) {
	reg := NewRegistry()
	first := newFakeConn()
	second := newFakeConn()
	reg.Register(first, "dave", user.RoleDriver)
	reg.Register(second, "dave", user.RoleDriver)

	h, ok := reg.Lookup("dave", user.RoleDriver)
	require.True(t, ok)
	require.Equal(t, second.ID(), h.Conn.ID())

	reg.Unregister(second.ID())
	h, ok = reg.Lookup("dave", user.RoleDriver)
	require.True(t, ok)
	require.Equal(t, first.ID(), h.Conn.ID())
}

func TestRegistryLookupUserAcrossRoles(t *testing.T) {
	reg := NewRegistry()
	asPassenger := newFakeConn()
	asDriver := newFakeConn()
	reg.Register(asPassenger, "sam", user.RolePassenger)
	reg.Register(asDriver, "sam", user.RoleDriver)

	h, ok := reg.LookupUser("sam")
	require.True(t, ok)
	require.Equal(t, asDriver.ID(), h.Conn.ID())

	reg.Unregister(asDriver.ID())
	h, ok = reg.LookupUser("sam")
	require.True(t, ok)
	require.Equal(t, asPassenger.ID(), h.Conn.ID())
}

func TestRegistryUnregisterIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	conn := newFakeConn()
	reg.Register(conn, "dave", user.RoleDriver)

	reg.Unregister(conn.ID())
	reg.Unregister(conn.ID())

	_, ok := reg.Lookup("dave", user.RoleDriver)
	require.False(t, ok)
}

func TestRegistryDuplicateRegisterPanics(t *testing.T) {
	reg := NewRegistry()
	conn := newFakeConn()
	reg.Register(conn, "dave", user.RoleDriver)

	require.Panics(t, func() {
		reg.Register(conn, "dave", user.RoleDriver)
	})
}

func TestRegistryAllOfRoleKeepsOrder(t *testing.T) {
	reg := NewRegistry()
	conns := []*fakeConn{newFakeConn(), newFakeConn(), newFakeConn()}
	for i, c := range conns {
		reg.Register(c, "driver"+string(rune('a'+i)), user.RoleDriver)
	}
	reg.Register(newFakeConn(), "rider", user.RolePassenger)

	handles := reg.AllOfRole(user.RoleDriver)
	require.Len(t, handles, 3)
	for i, h := range handles {
		require.Equal(t, conns[i].ID(), h.Conn.ID())
	}
}
