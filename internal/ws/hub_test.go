package ws

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/ridelink/internal/user"
)

func testAuth(token string) (string, user.Role, error) {
	switch token {
	case "driver-token":
		return "dave", user.RoleDriver, nil
	case "passenger-token":
		return "alice", user.RolePassenger, nil
	case "ghost-token":
		return "ghost", user.Role("dispatcher"), nil
	default:
		return "", "", errors.New("bad token")
	}
}

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(testAuth, NewRegistry(), NewRooms(), zap.NewNop())
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var event Event
	require.NoError(t, json.Unmarshal(payload, &event))
	return event
}

func TestHubRejectsMissingToken(t *testing.T) {
	_, srv := startHub(t)
	conn := dial(t, srv, "")

	event := readEvent(t, conn)
	require.Equal(t, EventError, event.Event)

	var payload errorPayload
	require.NoError(t, json.Unmarshal(event.Data, &payload))
	require.Equal(t, 401, payload.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))
}

func TestHubRejectsInvalidToken(t *testing.T) {
	_, srv := startHub(t)
	conn := dial(t, srv, "?token=garbage")

	event := readEvent(t, conn)
	require.Equal(t, EventError, event.Event)

	var payload errorPayload
	require.NoError(t, json.Unmarshal(event.Data, &payload))
	require.Equal(t, 401, payload.Code)
}

func TestHubRejectsUnknownRole(t *testing.T) {
	_, srv := startHub(t)
	conn := dial(t, srv, "?token=ghost-token")

	event := readEvent(t, conn)
	require.Equal(t, EventError, event.Event)

	var payload errorPayload
	require.NoError(t, json.Unmarshal(event.Data, &payload))
	require.Equal(t, 400, payload.Code)
}

func TestHubRegistersAndDelivers(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "?token=driver-token")

	require.Eventually(t, func() bool {
		_, ok := hub.registry.Lookup("dave", user.RoleDriver)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	handle, ok := hub.registry.Lookup("dave", user.RoleDriver)
	require.True(t, ok)
	handle.Conn.Send(EventRideRequest, map[string]string{"rideId": "r-1"})

	event := readEvent(t, conn)
	require.Equal(t, EventRideRequest, event.Event)
	require.JSONEq(t, `{"rideId":"r-1"}`, string(event.Data))
}

func TestHubRideJoinRoutesRoomEvents(t *testing.T) {
	hub, srv := startHub(t)
	driver := dial(t, srv, "?token=driver-token")
	passenger := dial(t, srv, "?token=passenger-token")

	require.Eventually(t, func() bool {
		_, dok := hub.registry.Lookup("dave", user.RoleDriver)
		_, pok := hub.registry.Lookup("alice", user.RolePassenger)
		return dok && pok
	}, 2*time.Second, 10*time.Millisecond)

	join := []byte(`{"event":"ride:join","data":{"rideId":"ride-7"}}`)
	require.NoError(t, driver.WriteMessage(websocket.TextMessage, join))
	require.NoError(t, passenger.WriteMessage(websocket.TextMessage, join))

	require.Eventually(t, func() bool {
		return len(hub.rooms.Members("ride-7")) == 2
	}, 2*time.Second, 10*time.Millisecond)

	hub.rooms.Emit("ride-7", EventStatusUpdate, map[string]string{"status": "accepted"})

	for _, conn := range []*websocket.Conn{driver, passenger} {
		event := readEvent(t, conn)
		require.Equal(t, EventStatusUpdate, event.Event)
	}
}

func TestHubDisconnectCleansUpPresence(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "?token=driver-token")

	require.Eventually(t, func() bool {
		_, ok := hub.registry.Lookup("dave", user.RoleDriver)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	join := []byte(`{"event":"ride:join","data":{"rideId":"ride-9"}}`)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, join))
	require.Eventually(t, func() bool {
		return len(hub.rooms.Members("ride-9")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		_, ok := hub.registry.Lookup("dave", user.RoleDriver)
		return !ok && len(hub.rooms.Members("ride-9")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
