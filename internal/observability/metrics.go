package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/netsync/internal/protocol"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	RoleHost     = "host"
	RoleFollower = "follower"
)

var (
	registerOnce sync.Once

	connections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "netsync",
			Subsystem: "host",
			Name:      "connections",
			Help:      "Registered host connections.",
		},
	)
	connects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netsync",
			Subsystem: "link",
			Name:      "connects_total",
			Help:      "Established connections.",
		},
		[]string{"role"},
	)
	disconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netsync",
			Subsystem: "link",
			Name:      "disconnects_total",
			Help:      "Connections closed by the transport.",
		},
		[]string{"role"},
	)
	drops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "netsync",
			Subsystem: "heartbeat",
			Name:      "drops_total",
			Help:      "Connections expelled for missing pings.",
		},
	)
	pings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "netsync",
			Subsystem: "heartbeat",
			Name:      "pings_total",
			Help:      "Pings queued by the host heartbeat.",
		},
	)
	ticks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netsync",
			Subsystem: "sync",
			Name:      "ticks_total",
			Help:      "Sync ticks by broadcast kind.",
		},
		[]string{"kind"},
	)
	messages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netsync",
			Subsystem: "link",
			Name:      "messages_total",
			Help:      "Messages received by type.",
		},
		[]string{"role", "type"},
	)
	protocolErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netsync",
			Subsystem: "link",
			Name:      "protocol_errors_total",
			Help:      "Payloads rejected by the decoder.",
		},
		[]string{"role"},
	)
	sendFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netsync",
			Subsystem: "link",
			Name:      "send_failures_total",
			Help:      "Payloads the transport refused to queue.",
		},
		[]string{"role"},
	)
	applies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netsync",
			Subsystem: "follower",
			Name:      "applies_total",
			Help:      "Replication payloads handled by the follower mirror.",
		},
		[]string{"kind", "outcome"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netsync",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "netsync",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			connections, connects, disconnects, drops, pings, ticks,
			messages, protocolErrors, sendFailures, applies,
			httpRequests, httpDuration,
		)
	})
}

func SetConnections(n int) {
	RegisterMetrics()
	connections.Set(float64(n))
}

func RecordConnect(role string) {
	RegisterMetrics()
	connects.WithLabelValues(role).Inc()
}

func RecordDisconnect(role string) {
	RegisterMetrics()
	disconnects.WithLabelValues(role).Inc()
}

func RecordDrop() {
	RegisterMetrics()
	drops.Inc()
}

func RecordPings(n int) {
	RegisterMetrics()
	pings.Add(float64(n))
}

func RecordTick(kind string) {
	RegisterMetrics()
	ticks.WithLabelValues(kind).Inc()
}

// RecordMessage folds application types into one label value.
func RecordMessage(role, msgType string) {
	RegisterMetrics()
	if !protocol.IsReserved(msgType) {
		msgType = "app"
	}
	messages.WithLabelValues(role, msgType).Inc()
}

func RecordProtocolError(role string) {
	RegisterMetrics()
	protocolErrors.WithLabelValues(role).Inc()
}

func RecordSendFailure(role string) {
	RegisterMetrics()
	sendFailures.WithLabelValues(role).Inc()
}

func RecordApply(kind, outcome string) {
	RegisterMetrics()
	applies.WithLabelValues(kind, outcome).Inc()
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
