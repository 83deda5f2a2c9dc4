package simclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the client side counters. A nil Registerer yields working but
// unregistered collectors.
type Metrics struct {
	connectAttempts prometheus.Counter
	connectFailures prometheus.Counter
	state           prometheus.Gauge
	framesReceived  *prometheus.CounterVec
	bytesReceived   prometheus.Counter
	decodeErrors    *prometheus.CounterVec
	framesSent      prometheus.Counter
	framesDropped   prometheus.Counter
	eventsPublished *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		connectAttempts: f.NewCounter(prometheus.CounterOpts{
			Name: "caosim_client_connect_attempts_total",
			Help: "Object stream handshakes attempted.",
		}),
		connectFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "caosim_client_connect_failures_total",
			Help: "Object stream handshakes that failed.",
		}),
		state: f.NewGauge(prometheus.GaugeOpts{
			Name: "caosim_client_connection_state",
			Help: "Connection state: 0 connecting, 1 online, 2 closed, 3 error.",
		}),
		framesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "caosim_client_frames_received_total",
			Help: "WebSocket frames received, by frame kind.",
		}, []string{"kind"}),
		bytesReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "caosim_client_received_bytes_total",
			Help: "Payload bytes received on the object stream.",
		}),
		decodeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "caosim_client_decode_errors_total",
			Help: "Inbound messages dropped because they could not be decoded, by error kind.",
		}, []string{"kind"}),
		framesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "caosim_client_frames_sent_total",
			Help: "Outbound frames written to the socket.",
		}),
		framesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "caosim_client_frames_dropped_total",
			Help: "Outbound control frames dropped because the queue was full.",
		}),
		eventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "caosim_client_events_published_total",
			Help: "Events handed to the bridge, by event kind.",
		}, []string{"event"}),
	}
}
