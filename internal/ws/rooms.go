package ws

import (
	"sync"

	"github.com/google/uuid"
)

// Rooms groups connections by ride so a status update reaches exactly the
// parties of that ride. Membership is dropped when a connection closes.
type Rooms struct {
	mu    sync.RWMutex
	rooms map[string]map[uuid.UUID]Conn
}

// NewRooms constructs an empty room set.
func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[string]map[uuid.UUID]Conn)}
}

// Join adds the connection to the ride's room. Joining twice is harmless.
func (r *Rooms) Join(rideID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[rideID]
	if !ok {
		room = make(map[uuid.UUID]Conn)
		r.rooms[rideID] = room
	}
	room[conn.ID()] = conn
}

// Leave removes the connection from every room, deleting rooms it empties.
func (r *Rooms) Leave(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for rideID, room := range r.rooms {
		delete(room, id)
		if len(room) == 0 {
			delete(r.rooms, rideID)
		}
	}
}

// Emit sends the event to every current member of the ride's room.
func (r *Rooms) Emit(rideID string, event string, payload any) {
	r.mu.RLock()
	members := make([]Conn, 0, len(r.rooms[rideID]))
	for _, conn := range r.rooms[rideID] {
		members = append(members, conn)
	}
	r.mu.RUnlock()
	for _, conn := range members {
		conn.Send(event, payload)
	}
}

// Members returns the connection ids currently in the ride's room.
func (r *Rooms) Members(rideID string) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(r.rooms[rideID]))
	for id := range r.rooms[rideID] {
		ids = append(ids, id)
	}
	return ids
}
