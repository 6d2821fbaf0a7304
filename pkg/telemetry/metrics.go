// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/agentloop/pkg/errors"
)

// TurnMetrics counts turns, capability calls and errors, and records backend
// latency. A nil *TurnMetrics is valid and records nothing.
type TurnMetrics struct {
	turns          metric.Int64Counter
	capabilityCall metric.Int64Counter
	errorCounter   metric.Int64Counter
	backendLatency metric.Float64Histogram
}

// NewTurnMetrics registers the instruments on the global meter provider.
func NewTurnMetrics() (*TurnMetrics, error) {
	return NewTurnMetricsWithMeter(otel.Meter("agentloop/agent"))
}

// NewTurnMetricsWithMeter registers the instruments on meter.
func NewTurnMetricsWithMeter(meter metric.Meter) (*TurnMetrics, error) {
	turns, err := meter.Int64Counter(
		"agentloop.turns.total",
		metric.WithDescription("Completed turns by outcome"),
	)
	if err != nil {
		return nil, err
	}

	capabilityCall, err := meter.Int64Counter(
		"agentloop.capability.calls",
		metric.WithDescription("Capability invocations by name and status"),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"agentloop.errors.total",
		metric.WithDescription("Errors by code and component"),
	)
	if err != nil {
		return nil, err
	}

	backendLatency, err := meter.Float64Histogram(
		"agentloop.backend.latency",
		metric.WithDescription("Backend completion latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &TurnMetrics{
		turns:          turns,
		capabilityCall: capabilityCall,
		errorCounter:   errorCounter,
		backendLatency: backendLatency,
	}, nil
}

// RecordTurn counts a finished turn.
func (m *TurnMetrics) RecordTurn(ctx context.Context, agentID, outcome string) {
	if m == nil {
		return
	}
	m.turns.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAgentID, agentID),
		attribute.String(AttrOutcome, outcome),
	))
}

// RecordCapabilityCall counts a capability invocation. status is ok, error
// or not_found.
func (m *TurnMetrics) RecordCapabilityCall(ctx context.Context, name, status string) {
	if m == nil {
		return
	}
	m.capabilityCall.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrCapabilityName, name),
		attribute.String(AttrCapabilityStatus, status),
	))
}

// RecordBackendLatency records how long a backend call took.
func (m *TurnMetrics) RecordBackendLatency(ctx context.Context, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.backendLatency.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributes(
		attribute.Bool("failed", failed),
	))
}

// RecordError counts err under its AgentError code.
func (m *TurnMetrics) RecordError(ctx context.Context, err error, component string) {
	if m == nil || err == nil {
		return
	}
	ae := errors.AsAgentError(err)
	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrErrorCode, string(ae.Code)),
		attribute.String(AttrErrorComponent, component),
		attribute.String("recoverable", ae.RecoverableString()),
	))
}
