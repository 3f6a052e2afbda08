// Package observability bootstraps OpenTelemetry metrics and tracing for the
// relay and defines the instruments the chat path records.
package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// SetupTracing initializes OpenTelemetry tracing with a stdout exporter
// (replace with OTLP when a collector exists). Returns a shutdown func.
func SetupTracing(serviceName string) (func(), error) {
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	res, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	provider := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return func() { _ = provider.Shutdown(context.Background()) }, nil
}

// SetupPrometheusMetrics initializes the Prometheus metrics exporter and
// serves /metrics on its own listener.
func SetupPrometheusMetrics(addr string) (*sdkmetric.MeterProvider, error) {
	exp, err := prometheus.New()
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))
	otel.SetMeterProvider(mp)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		_ = http.ListenAndServe(addr, mux)
	}()

	return mp, nil
}

// Metrics are the relay's domain instruments.
type Metrics struct {
	chatTurns       metric.Int64Counter
	upstreamLatency metric.Float64Histogram
}

// NewMetrics creates the relay instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("ai-interface/relay")

	chatTurns, err := meter.Int64Counter("relay_chat_turns_total",
		metric.WithDescription("Chat turns processed, by outcome"))
	if err != nil {
		return nil, err
	}

	upstreamLatency, err := meter.Float64Histogram("relay_upstream_seconds",
		metric.WithDescription("Latency of n8n workflow invocations"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		chatTurns:       chatTurns,
		upstreamLatency: upstreamLatency,
	}, nil
}

// RecordTurn records one chat turn. Safe on a nil receiver so callers can
// run unmetered (tests, metrics disabled).
func (m *Metrics) RecordTurn(ctx context.Context, outcome string, upstreamDuration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.chatTurns.Add(ctx, 1, attrs)
	m.upstreamLatency.Record(ctx, upstreamDuration.Seconds(), attrs)
}
