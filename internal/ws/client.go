package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/example/ridelink/internal/user"
)

// client is one registered websocket connection. The read pump is the only
// reader and the write pump the only writer, which keeps per-connection
// event ordering intact in both directions.
type client struct {
	id       uuid.UUID
	username string
	role     user.Role
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	hub      *Hub

	closeOnce sync.Once
}

// ID implements Conn.
func (c *client) ID() uuid.UUID { return c.id }

// Send implements Conn. It never blocks: events for a client whose buffer
// is full are dropped, matching the at-most-once delivery contract.
func (c *client) Send(event string, payload any) {
	msg, err := encodeEvent(event, payload)
	if err != nil {
		c.hub.logger.Error("encode event", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case <-c.done:
	case c.send <- msg:
		eventsSentTotal.WithLabelValues(event).Inc()
	default:
		eventsDroppedTotal.Inc()
		c.hub.logger.Warn("dropping event for slow client",
			zap.String("connection_id", c.id.String()),
			zap.String("event", event))
	}
}

// readPump consumes client events until the connection dies. It guarantees
// the cleanup path runs on every exit, including abrupt network loss
// surfaced by the read deadline.
func (c *client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected close", zap.String("connection_id", c.id.String()), zap.Error(err))
			}
			return
		}

		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			c.hub.logger.Warn("malformed client event", zap.String("connection_id", c.id.String()), zap.Error(err))
			continue
		}
		c.handle(event)
	}
}

func (c *client) handle(event Event) {
	switch event.Event {
	case EventRideJoin:
		var join rideJoinPayload
		if err := json.Unmarshal(event.Data, &join); err != nil || join.RideID == "" {
			c.hub.logger.Warn("ride:join without rideId", zap.String("connection_id", c.id.String()))
			return
		}
		c.hub.rooms.Join(join.RideID, c)
	default:
		c.hub.logger.Debug("ignoring unknown client event",
			zap.String("connection_id", c.id.String()),
			zap.String("event", event.Event))
	}
}

// writePump drains the send buffer and keeps the connection alive with
// pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close unregisters the connection exactly once, on whichever exit path
// fires first.
func (c *client) close() {
	c.closeOnce.Do(func() {
		c.hub.registry.Unregister(c.id)
		c.hub.rooms.Leave(c.id)
		close(c.done)
		_ = c.conn.Close()
		connectionsActive.WithLabelValues(string(c.role)).Dec()
		c.hub.logger.Info("client disconnected",
			zap.String("connection_id", c.id.String()),
			zap.String("username", c.username))
	})
}
