package responsecache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts cache activity. A nil *Metrics records nothing.
type Metrics struct {
	hits        prometheus.Counter
	misses      prometheus.Counter
	stores      prometheus.Counter
	storeErrors *prometheus.CounterVec
	flushes     prometheus.Counter
}

// NewMetrics creates the cache counters and registers them with reg.
// The default registerer is used if reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "responsecache",
			Name:      "hits_total",
			Help:      "Requests answered from the cache.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "responsecache",
			Name:      "misses_total",
			Help:      "Cache lookups that found no stored response.",
		}),
		stores: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "responsecache",
			Name:      "stores_total",
			Help:      "Responses written to the cache.",
		}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "responsecache",
			Name:      "store_errors_total",
			Help:      "Failed cache store operations.",
		}, []string{"op"}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "responsecache",
			Name:      "flushes_total",
			Help:      "Cache flushes.",
		}),
	}
	reg.MustRegister(m.hits, m.misses, m.stores, m.storeErrors, m.flushes)
	return m
}

func (m *Metrics) hit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *Metrics) stored() {
	if m != nil {
		m.stores.Inc()
	}
}

func (m *Metrics) storeError(op string) {
	if m != nil {
		m.storeErrors.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) flushed() {
	if m != nil {
		m.flushes.Inc()
	}
}
