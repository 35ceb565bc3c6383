// Package metrics exposes hub activity as prometheus collectors
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Scope label values for connections
const (
	ScopeRoom   = "room"
	ScopeGlobal = "global"
)

// Reason label values for dropped inbound messages
const (
	ReasonOversize  = "oversize"
	ReasonMalformed = "malformed"
)

// Metrics holds the hub's collectors
type Metrics struct {
	Connections *prometheus.GaugeVec
	Viewers     prometheus.Gauge
	Rooms       prometheus.Gauge
	Published   *prometheus.CounterVec
	Dropped     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {

	m := &Metrics{
		Connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "livehub",
			Name:      "connections",
			Help:      "Open websocket connections by scope.",
		}, []string{"scope"}),
		Viewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "livehub",
			Name:      "viewers_total",
			Help:      "Viewers across all rooms.",
		}),
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "livehub",
			Name:      "rooms",
			Help:      "Rooms held in the directory.",
		}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "livehub",
			Name:      "messages_published_total",
			Help:      "Messages published onto broadcast channels, by scope.",
		}, []string{"scope"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "livehub",
			Name:      "messages_dropped_total",
			Help:      "Inbound client messages discarded, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.Connections, m.Viewers, m.Rooms, m.Published, m.Dropped)

	return m
}

// Scope returns the scope label for a connection
func Scope(global bool) string {
	if global {
		return ScopeGlobal
	}
	return ScopeRoom
}
