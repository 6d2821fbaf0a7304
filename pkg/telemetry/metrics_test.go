// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/jllopis/agentloop/pkg/errors"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %s is not an int64 sum", m.Name)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestTurnMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := NewTurnMetricsWithMeter(mp.Meter("test"))
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	ctx := context.Background()

	m.RecordTurn(ctx, "agent-1", "direct")
	m.RecordTurn(ctx, "agent-1", "capability")
	m.RecordCapabilityCall(ctx, "Calculator Tool", "ok")
	m.RecordBackendLatency(ctx, 250*time.Millisecond, false)
	m.RecordError(ctx, errors.New(errors.CodeDecodeError, "bad reply", nil), "agent")
	m.RecordError(ctx, nil, "agent")

	got := collect(t, reader)
	if n := sumOf(t, got["agentloop.turns.total"]); n != 2 {
		t.Errorf("expected 2 turns, got %d", n)
	}
	if n := sumOf(t, got["agentloop.capability.calls"]); n != 1 {
		t.Errorf("expected 1 capability call, got %d", n)
	}
	if n := sumOf(t, got["agentloop.errors.total"]); n != 1 {
		t.Errorf("expected 1 error, got %d", n)
	}

	hist, ok := got["agentloop.backend.latency"].Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 {
		t.Fatalf("expected one latency histogram point, got %+v", got["agentloop.backend.latency"].Data)
	}
	if hist.DataPoints[0].Sum != 250 {
		t.Errorf("expected 250ms recorded, got %v", hist.DataPoints[0].Sum)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 3); got != "abc..." {
		t.Errorf("unexpected truncation %q", got)
	}
	if got := Truncate("abc", 0); got != "abc" {
		t.Errorf("unexpected truncation %q", got)
	}
}
