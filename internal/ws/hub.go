package ws

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/example/ridelink/internal/user"
)

const (
	// writeWait bounds a single write to the peer.
	writeWait = 10 * time.Second
	// pongWait is how long a connection may stay silent before it is
	// considered dead; pings go out well inside that window.
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second

	maxMessageSize = 8192
	sendBuffer     = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from arbitrary origins during development.
	CheckOrigin: func(*http.Request) bool { return true },
}

// AuthFunc verifies a handshake token and yields the identity it carries.
type AuthFunc func(token string) (username string, role user.Role, err error)

// Hub is the real-time gateway: it upgrades HTTP requests, authenticates
// the token attached to the handshake, and keeps the presence registry and
// ride rooms in step with connection lifecycles. Authorization happens once
// per connection, at connect time.
type Hub struct {
	registry *Registry
	rooms    *Rooms
	auth     AuthFunc
	logger   *zap.Logger
}

// NewHub constructs the gateway around an existing registry and room set.
func NewHub(auth AuthFunc, registry *Registry, rooms *Rooms, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{registry: registry, rooms: rooms, auth: auth, logger: logger}
}

// ServeHTTP upgrades the request and walks the connection through
// authentication and registration. Rejected connections get a single error
// event before the close frame.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	if token == "" {
		h.reject(conn, http.StatusUnauthorized, "Authentication token is required.", "missing_token")
		return
	}
	username, role, err := h.auth(token)
	if err != nil {
		h.reject(conn, http.StatusUnauthorized, "Invalid or expired authentication token.", "invalid_token")
		return
	}
	if !role.Valid() {
		h.reject(conn, http.StatusBadRequest, "Unrecognized role in token.", "unknown_role")
		return
	}

	client := &client{
		id:       uuid.New(),
		username: username,
		role:     role,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		hub:      h,
	}
	h.registry.Register(client, username, role)
	connectionsActive.WithLabelValues(string(role)).Inc()
	h.logger.Info("client registered",
		zap.String("connection_id", client.id.String()),
		zap.String("username", username),
		zap.String("role", string(role)))

	go client.writePump()
	go client.readPump()
}

func (h *Hub) reject(conn *websocket.Conn, code int, message, reason string) {
	connectionsRejectedTotal.WithLabelValues(reason).Inc()
	if payload, err := encodeEvent(EventError, newErrorPayload(code, message)); err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.TextMessage, payload)
	}
	deadline := time.Now().Add(writeWait)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message), deadline)
	_ = conn.Close()
	h.logger.Info("connection rejected", zap.String("reason", reason))
}
