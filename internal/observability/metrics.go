package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Turn outcomes reported by RecordTurn.
const (
	OutcomeText     = "text"
	OutcomeTool     = "tool"
	OutcomeEmpty    = "empty"
	OutcomeFailed   = "failed"
	OutcomeStale    = "stale"
	OutcomeRejected = "rejected"
)

// MetricsCollector records chat turn, agent transport and cache metrics.
// A zero-value collector (metrics disabled) accepts every call and drops it.
type MetricsCollector struct {
	provider *sdkmetric.MeterProvider

	turns        metric.Int64Counter
	agentLatency metric.Float64Histogram
	fallbacks    metric.Int64Counter
	cacheLookups metric.Int64Counter
}

// MetricsConfig configures the metrics collector.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// NewMetricsCollector creates a metrics collector exporting through the
// default prometheus registry.
func NewMetricsCollector(config MetricsConfig) (*MetricsCollector, error) {
	if !config.Enabled {
		return &MetricsCollector{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter("agentchat")

	turns, err := meter.Int64Counter(
		"chat.turns.total",
		metric.WithDescription("Completed chat turns by outcome"),
		metric.WithUnit("{turn}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create turns counter: %w", err)
	}

	agentLatency, err := meter.Float64Histogram(
		"chat.agent.latency",
		metric.WithDescription("Agent endpoint round-trip latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent latency histogram: %w", err)
	}

	fallbacks, err := meter.Int64Counter(
		"chat.agent.fallbacks.total",
		metric.WithDescription("Alternate-host retries issued after certificate or connection failures"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fallback counter: %w", err)
	}

	cacheLookups, err := meter.Int64Counter(
		"chat.cache.lookups.total",
		metric.WithDescription("History cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache lookup counter: %w", err)
	}

	return &MetricsCollector{
		provider:     provider,
		turns:        turns,
		agentLatency: agentLatency,
		fallbacks:    fallbacks,
		cacheLookups: cacheLookups,
	}, nil
}

// Handler serves the prometheus scrape endpoint.
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.Handler()
}

// Shutdown flushes and stops the meter provider.
func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// RecordTurn counts one finished turn.
func (m *MetricsCollector) RecordTurn(ctx context.Context, agentID, outcome string) {
	if m == nil || m.turns == nil {
		return
	}
	m.turns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent_id", agentID),
		attribute.String("outcome", outcome),
	))
}

// RecordAgentCall records the latency of one agent endpoint call.
func (m *MetricsCollector) RecordAgentCall(ctx context.Context, agentID, status string, latency time.Duration) {
	if m == nil || m.agentLatency == nil {
		return
	}
	m.agentLatency.Record(ctx, latency.Seconds(), metric.WithAttributes(
		attribute.String("agent_id", agentID),
		attribute.String("status", status),
	))
}

// RecordFallback counts an alternate-host retry.
func (m *MetricsCollector) RecordFallback(ctx context.Context, code string) {
	if m == nil || m.fallbacks == nil {
		return
	}
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}

// RecordCacheLookup counts a history cache hit or miss.
func (m *MetricsCollector) RecordCacheLookup(ctx context.Context, hit bool) {
	if m == nil || m.cacheLookups == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
