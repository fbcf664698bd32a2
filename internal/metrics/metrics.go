// Package metrics exposes per-connection counters and gauges through
// github.com/prometheus/client_golang/prometheus, mirroring the
// connection record's tx/rx byte and packet counters and the ping
// subsystem's RTT/jitter samples. The core never starts its own HTTP
// server or registers a default handler; the embedding application
// decides whether and how to scrape the registry it's given.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Connection holds the Prometheus collectors for a single peer
// connection, labeled by the caller-supplied peer identifier so a
// multi-connection server exposes one set of series per peer.
type Connection struct {
	BytesSent       prometheus.Counter
	BytesReceived   prometheus.Counter
	PacketsSent     prometheus.Counter
	PacketsReceived prometheus.Counter

	MessagesSent     prometheus.Counter
	MessagesReceived prometheus.Counter
	MessagesDropped  prometheus.Counter
	MessagesMissed   prometheus.Counter

	RTTMillis    prometheus.Gauge
	JitterMillis prometheus.Gauge
}

// Registry wraps a prometheus.Registerer and hands out per-connection
// collector sets, so callers don't have to hand-author metric names at
// every call site that opens a connection.
type Registry struct {
	reg prometheus.Registerer
}

// NewRegistry wraps reg. Passing prometheus.NewRegistry() keeps this
// module's series out of the global default registry, which is the
// right default for a library embedded in someone else's process; pass
// prometheus.DefaultRegisterer to fold into the process-wide registry
// instead.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return &Registry{reg: reg}
}

// ForConnection registers (or, on a name collision, reuses) the
// collector set for peer, a caller-chosen stable identifier such as a
// remote address or user key.
func (r *Registry) ForConnection(peer string) *Connection {
	labels := prometheus.Labels{"peer": peer}
	c := &Connection{
		BytesSent: mustCounter(r.reg, prometheus.CounterOpts{
			Name:        "netcode_connection_bytes_sent_total",
			Help:        "Bytes sent on this connection.",
			ConstLabels: labels,
		}),
		BytesReceived: mustCounter(r.reg, prometheus.CounterOpts{
			Name:        "netcode_connection_bytes_received_total",
			Help:        "Bytes received on this connection.",
			ConstLabels: labels,
		}),
		PacketsSent: mustCounter(r.reg, prometheus.CounterOpts{
			Name:        "netcode_connection_packets_sent_total",
			Help:        "Packets sent on this connection.",
			ConstLabels: labels,
		}),
		PacketsReceived: mustCounter(r.reg, prometheus.CounterOpts{
			Name:        "netcode_connection_packets_received_total",
			Help:        "Packets received on this connection.",
			ConstLabels: labels,
		}),
		MessagesSent: mustCounter(r.reg, prometheus.CounterOpts{
			Name:        "netcode_connection_messages_sent_total",
			Help:        "Channel messages sent on this connection.",
			ConstLabels: labels,
		}),
		MessagesReceived: mustCounter(r.reg, prometheus.CounterOpts{
			Name:        "netcode_connection_messages_received_total",
			Help:        "Channel messages delivered to the application on this connection.",
			ConstLabels: labels,
		}),
		MessagesDropped: mustCounter(r.reg, prometheus.CounterOpts{
			Name:        "netcode_connection_messages_dropped_total",
			Help:        "Messages discarded by a channel's ordering/dedup policy (stale, duplicate, superseded).",
			ConstLabels: labels,
		}),
		MessagesMissed: mustCounter(r.reg, prometheus.CounterOpts{
			Name:        "netcode_connection_messages_missed_total",
			Help:        "Unreliable messages never acknowledged by an ack-bitfield sweep.",
			ConstLabels: labels,
		}),
		RTTMillis: mustGauge(r.reg, prometheus.GaugeOpts{
			Name:        "netcode_connection_rtt_milliseconds",
			Help:        "Most recent rolling-window mean RTT.",
			ConstLabels: labels,
		}),
		JitterMillis: mustGauge(r.reg, prometheus.GaugeOpts{
			Name:        "netcode_connection_jitter_milliseconds",
			Help:        "Most recent rolling-window RTT jitter.",
			ConstLabels: labels,
		}),
	}
	return c
}

func mustCounter(reg prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	c := prometheus.NewCounter(opts)
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prometheus.Counter)
		}
		panic(err)
	}
	return c
}

func mustGauge(reg prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	g := prometheus.NewGauge(opts)
	if err := reg.Register(g); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prometheus.Gauge)
		}
		panic(err)
	}
	return g
}
