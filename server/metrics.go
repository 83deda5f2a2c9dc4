package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	receivedBytesCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caosim_server_received_bytes_total",
		Help: "Bytes received from clients.",
	})
	processedClientMessagesCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caosim_server_processed_client_messages_total",
		Help: "Client commands decoded and handed to the hub.",
	})
	rejectedClientMessagesCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caosim_server_rejected_client_messages_total",
		Help: "Client frames that were not valid commands.",
	})
	sentServerMessagesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caosim_server_sent_messages_total",
		Help: "Messages queued to clients, by message type.",
	}, []string{"type"})
	sentBytesCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caosim_server_sent_bytes_total",
		Help: "Bytes queued to clients.",
	})
	droppedServerMessagesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caosim_server_dropped_messages_total",
		Help: "Messages dropped because a client send buffer was full, by message type.",
	}, []string{"type"})
	connectedClientsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "caosim_server_connected_clients",
		Help: "Clients currently registered with the hub.",
	})
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "caosim_server_tick_duration_seconds",
		Help:    "Time spent stepping the world and fanning out snapshots.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})
)
