package observability

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/metric"
)

type (
	// Metrics is the process wide metrics setup, see cli observability.
	Metrics interface {
		Meter(name string, opts ...metric.MeterOption) metric.Meter
		MetricsHandler() http.Handler
		Shutdown() error
	}

	/*
	Observability combines metrics provider with a logger so that the
	components can be handed single "observe" dependency.
	*/
	Observability struct {
		Metrics
		log *slog.Logger
	}
)

// WithLogger returns Observability which uses "log" as it's logger.
func WithLogger(m Metrics, log *slog.Logger) *Observability {
	return &Observability{Metrics: m, log: log}
}

func (o *Observability) Logger() *slog.Logger { return o.log }
