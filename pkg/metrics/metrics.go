// Package metrics exposes the cache service's operating counters as a
// Prometheus scrape endpoint.
//
// The teacher queries an external Prometheus server through
// client_golang/api to evaluate chaos-scenario success criteria. This
// service sits on the other side of that relationship: it is itself
// the thing a Prometheus server scrapes, so the same dependency
// (github.com/prometheus/client_golang) is used in its exporter role
// (prometheus + promhttp) instead of its query-client role.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every counter and gauge the cache service and
// ingest pipeline publish.
type Registry struct {
	registry *prometheus.Registry

	PacketsReceived   prometheus.Counter
	PacketsAdmitted   prometheus.Counter
	PacketsRejected   *prometheus.CounterVec
	PacketsMalformed  prometheus.Counter
	ChannelsTracked   prometheus.Gauge
	PacketsCached     prometheus.Gauge
	RequestsServed    *prometheus.CounterVec
}

// New constructs a Registry with every metric registered against a
// fresh prometheus.Registry (never the global default, so multiple
// Registry instances can coexist in tests).
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		registry: reg,
		PacketsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "urtscache",
			Subsystem: "ingest",
			Name:      "packets_received_total",
			Help:      "Total packets received by the ingest pipeline's feeder.",
		}),
		PacketsAdmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "urtscache",
			Subsystem: "ingest",
			Name:      "packets_admitted_total",
			Help:      "Total packets admitted into the capped collection.",
		}),
		PacketsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "urtscache",
			Subsystem: "sanitizer",
			Name:      "packets_rejected_total",
			Help:      "Total packets rejected by the sanitizer, by category.",
		}, []string{"category"}),
		PacketsMalformed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "urtscache",
			Subsystem: "ingest",
			Name:      "packets_malformed_total",
			Help:      "Total packets that failed to decode or validate.",
		}),
		ChannelsTracked: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "urtscache",
			Subsystem: "cache",
			Name:      "channels_tracked",
			Help:      "Current number of distinct channels held in the collection.",
		}),
		PacketsCached: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "urtscache",
			Subsystem: "cache",
			Name:      "packets_cached",
			Help:      "Current total number of packets held across all channels.",
		}),
		RequestsServed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "urtscache",
			Subsystem: "service",
			Name:      "requests_served_total",
			Help:      "Total requests served by the cache service, by message type.",
		}, []string{"message_type"}),
	}
}

// Handler returns the HTTP handler that serves this registry's
// metrics in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
