// Package metrics provides optional Prometheus instrumentation for a
// pgsync.Connection: how many connections were opened, how long queries
// took, and which authentication mechanism was used. Modeled on the
// teacher's per-tenant pool Collector, repurposed from pool-level gauges
// to single-connection query-lifecycle counters.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector holds every metric this package exposes. It is safe for
// concurrent use (the underlying prometheus vectors are).
type Collector struct {
	connectionsOpened prometheus.Counter
	queryDuration     *prometheus.HistogramVec
	authMechanism     *prometheus.CounterVec
}

// New builds a Collector and registers its metrics with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		connectionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pgsync",
			Name:      "connections_opened_total",
			Help:      "Number of Connect calls that completed authentication successfully.",
		}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pgsync",
			Name:      "query_duration_seconds",
			Help:      "Duration of Execute/Query/QueryOne/QueryRaw/BatchExecute calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		authMechanism: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pgsync",
			Name:      "auth_mechanism_total",
			Help:      "Authentication mechanism selected per Connect call.",
		}, []string{"mechanism"}),
	}
	reg.MustRegister(c.connectionsOpened, c.queryDuration, c.authMechanism)
	return c
}

// IncConnection records a successful authentication.
func (c *Collector) IncConnection() { c.connectionsOpened.Inc() }

// ObserveQuery records how long a query of the given kind
// ("execute"/"query"/"query_one"/"query_raw"/"batch_execute") took.
func (c *Collector) ObserveQuery(kind string, seconds float64) {
	c.queryDuration.WithLabelValues(kind).Observe(seconds)
}

// IncAuthMechanism records which mechanism a Connect call used.
func (c *Collector) IncAuthMechanism(mechanism string) {
	if mechanism == "" {
		return
	}
	c.authMechanism.WithLabelValues(mechanism).Inc()
}
