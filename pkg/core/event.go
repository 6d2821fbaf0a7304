package core

import (
	"context"
	"time"
)

// EventType identifies a semantic event emitted by an agent during a turn.
type EventType string

const (
	EventTurnStarted        EventType = "agent.turn.started"
	EventBackendReplied     EventType = "agent.backend.replied"
	EventCapabilityInvoked  EventType = "agent.capability.invoked"
	EventCapabilityNotFound EventType = "agent.capability.not_found"
	EventTurnCompleted      EventType = "agent.turn.completed"
	EventTurnFailed         EventType = "agent.turn.failed"
)

// Event captures a semantic streaming/logging event.
type Event struct {
	Type      EventType
	Agent     string
	RunID     string
	Timestamp time.Time
	Payload   map[string]any
}

// EventEmitter receives semantic events.
type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}

// NoopEventEmitter is a default no-op implementation.
type NoopEventEmitter struct{}

// Emit implements EventEmitter.
func (NoopEventEmitter) Emit(_ context.Context, _ Event) {}

// EventEmitterFunc adapts a function into an EventEmitter.
type EventEmitterFunc func(ctx context.Context, event Event)

// Emit implements EventEmitter.
func (f EventEmitterFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

// NewEvent builds a default event with timestamp.
func NewEvent(eventType EventType, agent string, runID string, payload map[string]any) Event {
	return Event{
		Type:      eventType,
		Agent:     agent,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
