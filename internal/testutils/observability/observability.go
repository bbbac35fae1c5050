package observability

import (
	"context"
	"log/slog"
	"net/http"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	testlogr "github.com/alphabill-org/partdist/internal/testutils/logger"
)

/*
NOPObservability creates observability implementation where everything is no-op.
Use it for tests for which it absolutely doesn't make sense to create any logs or metrics.
*/
func NOPObservability() *Observability {
	return &Observability{
		mp:  noop.NewMeterProvider(),
		log: testlogr.NOP(),
	}
}

// Default creates observability with test logger and no-op metrics.
func Default(t testing.TB) *Observability {
	return &Observability{
		mp:  noop.NewMeterProvider(),
		log: testlogr.New(t),
	}
}

/*
WithMetrics creates observability which records metrics in memory so that
the test can check them with Observability.Collect.
*/
func WithMetrics(t testing.TB) *Observability {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			t.Logf("shutting down meter provider: %v", err)
		}
	})
	return &Observability{
		mp:     mp,
		reader: reader,
		log:    testlogr.New(t),
	}
}

type Observability struct {
	mp     metric.MeterProvider
	reader *sdkmetric.ManualReader
	log    *slog.Logger
}

func (o *Observability) Logger() *slog.Logger { return o.log }

func (o *Observability) Meter(name string, options ...metric.MeterOption) metric.Meter {
	return o.mp.Meter(name, options...)
}

func (o *Observability) MetricsHandler() http.Handler { return nil }

func (o *Observability) Shutdown() error { return nil }

/*
Collect returns the current value of the int64 sum metric "name" for
data points which have all the given attribute values (attr key => value).
*/
func (o *Observability) Collect(t testing.TB, name string, attr map[string]string) int64 {
	t.Helper()
	if o.reader == nil {
		t.Fatal("observability was not created with metrics reader")
	}
	var rm metricdata.ResourceMetrics
	if err := o.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collecting metrics: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %q is %T, not int64 sum", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				if matchAttr(dp, attr) {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func matchAttr(dp metricdata.DataPoint[int64], attr map[string]string) bool {
	for k, v := range attr {
		if av, ok := dp.Attributes.Value(attribute.Key(k)); !ok || av.AsString() != v {
			return false
		}
	}
	return true
}
