package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wsActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_active_connections",
			Help: "Number of currently connected WebSocket clients",
		},
	)

	wsActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_active_rooms",
			Help: "Number of conversation rooms with at least one subscriber",
		},
	)

	wsEventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_events_delivered_total",
			Help: "Total number of events delivered to clients",
		},
		[]string{"event"},
	)

	wsClientsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_clients_dropped_total",
			Help: "Clients disconnected because their send buffer was full",
		},
	)
)
