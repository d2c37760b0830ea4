package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChannelReconnects = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch_client", Name: "channel_reconnects_total", Help: "Total number of channel reconnection attempts"})
	ChannelState      = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "dispatch_client", Name: "channel_connected", Help: "1 when the realtime channel is connected"})

	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch_client", Name: "events_emitted_total", Help: "Events emitted over the realtime channel"},
		[]string{"event"},
	)
	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch_client", Name: "events_dropped_total", Help: "Events dropped because the channel was not connected"},
		[]string{"event"},
	)
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch_client", Name: "events_received_total", Help: "Events received from the realtime channel"},
		[]string{"event"},
	)

	SamplesForwarded = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch_client", Name: "samples_forwarded_total", Help: "Position samples passing the significance filter"})
	SamplesFiltered  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch_client", Name: "samples_filtered_total", Help: "Position samples suppressed by the significance filter"})

	LocationEmits = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch_client", Name: "location_emits_total", Help: "Location updates emitted to the gateway"})

	RouteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch_client", Name: "route_requests_total", Help: "Route projection requests by result"},
		[]string{"result"},
	)
)
