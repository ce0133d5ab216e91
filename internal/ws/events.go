package ws

import (
	"encoding/json"
	"time"
)

// Event is the wire envelope for everything crossing a websocket, both
// directions.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound client events.
const EventRideJoin = "ride:join"

// Outbound server events.
const (
	EventRideRequest  = "ride:request"
	EventStatusUpdate = "ride:status:update"
	EventError        = "error"
)

type rideJoinPayload struct {
	RideID string `json:"rideId"`
}

type errorPayload struct {
	Message   string `json:"message"`
	Code      int    `json:"code"`
	Timestamp string `json:"timestamp"`
}

func newErrorPayload(code int, message string) errorPayload {
	return errorPayload{
		Message:   message,
		Code:      code,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func encodeEvent(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Event: event, Data: data})
}
