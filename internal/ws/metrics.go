package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ws_connections_active",
		Help: "Currently registered websocket connections by role.",
	}, []string{"role"})

	connectionsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_connections_rejected_total",
		Help: "Connections closed before registration, by reason.",
	}, []string{"reason"})

	eventsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_events_sent_total",
		Help: "Events queued for delivery, by event name.",
	}, []string{"event"})

	eventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_events_dropped_total",
		Help: "Events dropped because a client's send buffer was full.",
	})
)
