// Package notify fans events out to connected clients: role-wide broadcasts
// for new ride requests and ride-scoped room delivery for status updates.
// Presence is best-effort, so delivery to offline parties is skipped rather
// than failed.
package notify

import (
	"go.uber.org/zap"

	"github.com/example/ridelink/internal/user"
	"github.com/example/ridelink/internal/ws"
)

// Notifier implements the ride domain's Notifier port over the presence
// registry and ride rooms.
type Notifier struct {
	registry *ws.Registry
	rooms    *ws.Rooms
	logger   *zap.Logger
}

// New constructs a Notifier.
func New(registry *ws.Registry, rooms *ws.Rooms, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{registry: registry, rooms: rooms, logger: logger}
}

// BroadcastToRole delivers the event to every connection currently
// registered under the role. Fire-and-forget: recipients connecting later
// see nothing.
func (n *Notifier) BroadcastToRole(role user.Role, event string, payload any) {
	handles := n.registry.AllOfRole(role)
	for _, h := range handles {
		h.Conn.Send(event, payload)
	}
	n.logger.Debug("broadcast",
		zap.String("event", event),
		zap.String("role", string(role)),
		zap.Int("recipients", len(handles)))
}

// NotifyRideParties resolves each participant to their most recent live
// connection, joins the resolved ones into the ride's room, and emits the
// event there. Participants without a connection are returned so the caller
// can report partial delivery; they are not an error.
func (n *Notifier) NotifyRideParties(rideID string, event string, payload any, usernames []string) []string {
	var unresolved []string
	for _, username := range usernames {
		h, ok := n.registry.LookupUser(username)
		if !ok {
			unresolved = append(unresolved, username)
			continue
		}
		n.rooms.Join(rideID, h.Conn)
	}
	n.rooms.Emit(rideID, event, payload)
	return unresolved
}
