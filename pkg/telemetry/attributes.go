// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides logging, tracing and metrics for agent turns.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span and metric attribute keys. LLM keys follow the gen_ai conventions.
const (
	AttrAgentID   = "agentloop.agent.id"
	AttrRunID     = "agentloop.turn.run_id"
	AttrSessionID = "agentloop.session.id"
	AttrOutcome   = "agentloop.turn.outcome"
	AttrInputLen  = "agentloop.turn.input_length"

	AttrMemoryEntries = "agentloop.memory.entries"
	AttrMemoryMax     = "agentloop.memory.max_entries"

	AttrDecisionKind   = "agentloop.decision.kind"
	AttrDecisionAction = "agentloop.decision.action"

	AttrCapabilityName    = "agentloop.capability.name"
	AttrCapabilityArgs    = "agentloop.capability.arguments"
	AttrCapabilityOutput  = "agentloop.capability.output"
	AttrCapabilityStatus  = "agentloop.capability.status"
	AttrCapabilitiesCount = "agentloop.capabilities.count"
	AttrCapabilitiesNames = "agentloop.capabilities.names"

	AttrLLMModel       = "gen_ai.request.model"
	AttrLLMProvider    = "gen_ai.system"
	AttrLLMPromptLen   = "gen_ai.request.prompt_length"
	AttrLLMReplyLen    = "gen_ai.response.length"
	AttrLLMDurationMs  = "gen_ai.duration_ms"
	AttrLLMCacheHit    = "gen_ai.cache.hit"
	AttrErrorCode      = "error.code"
	AttrErrorComponent = "error.component"
)

// TurnAttributes returns common attributes for a turn span.
func TurnAttributes(agentID, runID, sessionID string, inputLen int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrAgentID, agentID),
		attribute.String(AttrRunID, runID),
		attribute.Int(AttrInputLen, inputLen),
	}
	if sessionID != "" {
		attrs = append(attrs, attribute.String(AttrSessionID, sessionID))
	}
	return attrs
}

// MemoryAttributes describes conversation memory occupancy.
func MemoryAttributes(entries, max int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrMemoryEntries, entries),
		attribute.Int(AttrMemoryMax, max),
	}
}

// DecisionAttributes describes the decoded backend decision.
func DecisionAttributes(kind, action string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(AttrDecisionKind, kind)}
	if action != "" {
		attrs = append(attrs, attribute.String(AttrDecisionAction, action))
	}
	return attrs
}

// CapabilityAttributes describes a capability invocation. args and output
// are truncated to maxLen bytes (500 when maxLen <= 0).
func CapabilityAttributes(name string, args []string, output, status string, maxLen int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrCapabilityName, name),
		attribute.String(AttrCapabilityStatus, status),
	}
	if len(args) > 0 {
		trimmed := make([]string, len(args))
		for i, a := range args {
			trimmed[i] = Truncate(a, maxLen)
		}
		attrs = append(attrs, attribute.StringSlice(AttrCapabilityArgs, trimmed))
	}
	if output != "" {
		attrs = append(attrs, attribute.String(AttrCapabilityOutput, Truncate(output, maxLen)))
	}
	return attrs
}

// CatalogAttributes describes the capabilities offered to the backend.
func CatalogAttributes(names []string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.Int(AttrCapabilitiesCount, len(names))}
	if len(names) > 0 {
		attrs = append(attrs, attribute.StringSlice(AttrCapabilitiesNames, names))
	}
	return attrs
}

// BackendAttributes describes a backend call.
func BackendAttributes(provider, model string, promptLen, replyLen int, durationMs float64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrLLMPromptLen, promptLen),
		attribute.Int(AttrLLMReplyLen, replyLen),
	}
	if provider != "" {
		attrs = append(attrs, attribute.String(AttrLLMProvider, provider))
	}
	if model != "" {
		attrs = append(attrs, attribute.String(AttrLLMModel, model))
	}
	if durationMs > 0 {
		attrs = append(attrs, attribute.Float64(AttrLLMDurationMs, durationMs))
	}
	return attrs
}

// Truncate shortens s to maxLen bytes plus an ellipsis.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 500
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
