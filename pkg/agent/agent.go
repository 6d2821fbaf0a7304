// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent implements the single-turn orchestrator: it renders the
// conversation and catalog into a prompt, asks the backend for a decision and
// dispatches it to a capability.
package agent

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jllopis/agentloop/pkg/audit"
	"github.com/jllopis/agentloop/pkg/capability"
	"github.com/jllopis/agentloop/pkg/core"
	"github.com/jllopis/agentloop/pkg/llm"
	"github.com/jllopis/agentloop/pkg/memory"
	"github.com/jllopis/agentloop/pkg/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultBackendTimeout bounds a single backend call.
	DefaultBackendTimeout = 60 * time.Second

	// DefaultFallbackMessage answers decisions naming an unknown capability.
	DefaultFallbackMessage = "I'm sorry, I couldn't process your request."

	// BackendErrorPrefix starts the payload recorded when the backend fails.
	BackendErrorPrefix = "An error occurred: "
)

// Phase is the orchestrator state within a turn.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseAwaitingBackend
	PhaseDecoding
	PhaseDispatching
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingBackend:
		return "awaiting_backend"
	case PhaseDecoding:
		return "decoding"
	case PhaseDispatching:
		return "dispatching"
	default:
		return "unknown"
	}
}

// ResultKind tells how a turn was answered.
type ResultKind string

const (
	ResultDirect     ResultKind = "direct"
	ResultCapability ResultKind = "capability"
	ResultFallback   ResultKind = "fallback"
)

// Result is the outcome of a turn.
type Result struct {
	Kind ResultKind
	// Text is set for direct and fallback results.
	Text string
	// Action and Output are set for capability results. Action also holds the
	// unknown name on fallback results.
	Action string
	Args   []string
	Output string
	// RawReply is the backend text the decision was decoded from.
	RawReply string
}

// String renders the result for the user. Capability results are shown as
// {"action": <name>, "args": <output>}.
func (r *Result) String() string {
	if r == nil {
		return ""
	}
	if r.Kind != ResultCapability {
		return r.Text
	}
	payload := struct {
		Action string `json:"action"`
		Args   string `json:"args"`
	}{r.Action, r.Output}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return r.Output
	}
	return strings.TrimRight(buf.String(), "\n")
}

// Agent runs conversational turns against a backend. Turns on one Agent are
// serialized; the Agent is safe to share between goroutines.
type Agent struct {
	id              string
	backend         llm.Completer
	registry        *capability.Registry
	pending         []core.Capability
	memory          *memory.Conversation
	maxMemory       int
	backendTimeout  time.Duration
	fallback        string
	auditStore      audit.Store
	events          core.EventEmitter
	logger          *slog.Logger
	metrics         *telemetry.TurnMetrics
	tracer          trace.Tracer
	sessionID       string
	backendProvider string
	backendModel    string
	now             func() time.Time

	mu    sync.Mutex
	phase atomic.Int32
}

// Option configures an Agent instance.
type Option func(*Agent) error

// New creates an Agent with a required id and backend.
func New(id string, backend llm.Completer, opts ...Option) (*Agent, error) {
	a := &Agent{
		id:             strings.TrimSpace(id),
		backend:        backend,
		maxMemory:      memory.DefaultMaxEntries,
		backendTimeout: DefaultBackendTimeout,
		fallback:       DefaultFallbackMessage,
		now:            time.Now,
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	if a.id == "" {
		return nil, NewInvalidInputError("agent id is required")
	}
	if a.backend == nil {
		return nil, NewInvalidInputError("agent backend is required")
	}
	if a.registry == nil {
		a.registry, _ = capability.NewRegistry()
	}
	for _, c := range a.pending {
		if err := a.registry.Register(c); err != nil {
			return nil, err
		}
	}
	a.pending = nil
	if a.auditStore == nil {
		a.auditStore = audit.NopStore{}
	}
	if a.events == nil {
		a.events = core.NoopEventEmitter{}
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.tracer == nil {
		a.tracer = otel.Tracer("agentloop/agent")
	}
	if a.sessionID == "" {
		a.sessionID = core.NewSessionID()
	}
	a.memory = memory.NewConversation(a.maxMemory)
	return a, nil
}

// WithRegistry sets the capability registry consulted for every turn.
func WithRegistry(r *capability.Registry) Option {
	return func(a *Agent) error {
		if r == nil {
			return NewInvalidInputError("registry is nil")
		}
		a.registry = r
		return nil
	}
}

// WithCapabilities registers capabilities into the agent registry.
func WithCapabilities(caps ...core.Capability) Option {
	return func(a *Agent) error {
		a.pending = append(a.pending, caps...)
		return nil
	}
}

// WithMaxMemory bounds the conversation memory. Values <= 0 use the default.
func WithMaxMemory(n int) Option {
	return func(a *Agent) error {
		a.maxMemory = n
		return nil
	}
}

// WithBackendTimeout bounds each backend call. Zero disables the bound.
func WithBackendTimeout(d time.Duration) Option {
	return func(a *Agent) error {
		if d < 0 {
			return NewInvalidInputError("backend timeout must not be negative")
		}
		a.backendTimeout = d
		return nil
	}
}

// WithFallbackMessage overrides the reply used for unknown capabilities.
func WithFallbackMessage(msg string) Option {
	return func(a *Agent) error {
		if strings.TrimSpace(msg) == "" {
			return NewInvalidInputError("fallback message is empty")
		}
		a.fallback = msg
		return nil
	}
}

// WithAuditStore records every turn into store.
func WithAuditStore(store audit.Store) Option {
	return func(a *Agent) error {
		a.auditStore = store
		return nil
	}
}

// WithEventEmitter sets the receiver of semantic turn events.
func WithEventEmitter(emitter core.EventEmitter) Option {
	return func(a *Agent) error {
		a.events = emitter
		return nil
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) error {
		a.logger = logger
		return nil
	}
}

// WithMetrics attaches turn metrics.
func WithMetrics(m *telemetry.TurnMetrics) Option {
	return func(a *Agent) error {
		a.metrics = m
		return nil
	}
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(a *Agent) error {
		a.tracer = t
		return nil
	}
}

// WithSessionID fixes the session id reported in logs and audit records.
func WithSessionID(id string) Option {
	return func(a *Agent) error {
		a.sessionID = strings.TrimSpace(id)
		return nil
	}
}

// WithBackendInfo labels backend spans with provider and model.
func WithBackendInfo(provider, model string) Option {
	return func(a *Agent) error {
		a.backendProvider = provider
		a.backendModel = model
		return nil
	}
}

// ID returns the agent identifier.
func (a *Agent) ID() string { return a.id }

// SessionID returns the session the agent reports its turns under.
func (a *Agent) SessionID() string { return a.sessionID }

// Memory returns the conversation memory. Callers should only read from it.
func (a *Agent) Memory() *memory.Conversation { return a.memory }

// Registry returns the capability registry.
func (a *Agent) Registry() *capability.Registry { return a.registry }

// Phase returns the current turn phase.
func (a *Agent) Phase() Phase { return Phase(a.phase.Load()) }

func (a *Agent) setPhase(p Phase) { a.phase.Store(int32(p)) }
