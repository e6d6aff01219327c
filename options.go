package pgsync

import (
	"log/slog"

	"github.com/nullbound/pgsync/metrics"
)

type connectConfig struct {
	logger  *slog.Logger
	metrics *metrics.Collector
}

// ConnectOption configures optional ambient behavior on a Connection. The
// zero value of every option is inert: no logger means nothing is logged;
// no collector means nothing is instrumented.
type ConnectOption func(*connectConfig)

// WithLogger attaches a structured logger. The client logs exactly two
// kinds of diagnostic event at Debug level: which authentication
// mechanism the server requested, and how many messages a
// resync-after-error drain discarded. Neither affects control flow, and
// nothing is logged if this option is omitted.
func WithLogger(logger *slog.Logger) ConnectOption {
	return func(c *connectConfig) { c.logger = logger }
}

// WithMetrics attaches a Prometheus collector instrumenting connection
// count, query duration, and auth-mechanism counters.
func WithMetrics(collector *metrics.Collector) ConnectOption {
	return func(c *connectConfig) { c.metrics = collector }
}
