// internal/common/observability/metrics.go
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability owns the OpenTelemetry meter and, when configured, the tracer provider.
type Observability struct {
	meterProvider *metric.MeterProvider
	tracing       *tracing
	meter         otelmetric.Meter
	turnCounter   otelmetric.Int64Counter
	turnDuration  otelmetric.Float64Histogram
}

// Logger is the subset of logger.Logger used during setup.
type Logger interface {
	Warn(msg string, fields map[string]interface{})
}

// New wires the Prometheus-backed meter and an optional Jaeger tracer.
// Setup failures degrade to no-op instruments.
func New(serviceName, jaegerEndpoint string, log Logger) *Observability {
	o := &Observability{}

	if jaegerEndpoint != "" {
		tr, err := newTracing(serviceName, jaegerEndpoint)
		if err != nil {
			log.Warn("Failed to create Jaeger exporter", map[string]interface{}{"error": err.Error()})
		} else {
			o.tracing = tr
		}
	}

	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("Failed to create Prometheus exporter", map[string]interface{}{"error": err.Error()})
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	turnCounter, _ := meter.Int64Counter(
		"analytics.turns.processed",
		otelmetric.WithDescription("Number of question turns processed"),
	)

	turnDuration, _ := meter.Float64Histogram(
		"analytics.turns.duration",
		otelmetric.WithDescription("Question turn processing duration"),
		otelmetric.WithUnit("ms"),
	)

	o.meterProvider = provider
	o.meter = meter
	o.turnCounter = turnCounter
	o.turnDuration = turnDuration
	return o
}

// RecordTurn records one processed turn with its outcome ("ok", "degraded" or an error code).
func (o *Observability) RecordTurn(ctx context.Context, duration time.Duration, status string) {
	attrs := otelmetric.WithAttributes(attribute.String("status", status))
	if o.turnCounter != nil {
		o.turnCounter.Add(ctx, 1, attrs)
	}
	if o.turnDuration != nil {
		o.turnDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.tracing != nil {
		_ = o.tracing.shutdown(ctx)
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
}
