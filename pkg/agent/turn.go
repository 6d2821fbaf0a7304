// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jllopis/agentloop/pkg/audit"
	"github.com/jllopis/agentloop/pkg/core"
	"github.com/jllopis/agentloop/pkg/protocol"
	"github.com/jllopis/agentloop/pkg/resilience"
	"github.com/jllopis/agentloop/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const spanValueMaxLen = 256

// RunTurn processes one user input: it records it, asks the backend for a
// decision and answers directly, dispatches to a capability or falls back.
// Only a reply that cannot be decoded, or cancellation of ctx, fails a turn.
func (a *Agent) RunTurn(ctx context.Context, input string) (*Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer a.setPhase(PhaseIdle)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, runID := core.EnsureRunID(ctx)
	sessionID, ok := core.SessionID(ctx)
	if !ok {
		sessionID = a.sessionID
		ctx = core.WithSessionID(ctx, sessionID)
	}

	ctx, span := a.tracer.Start(ctx, "Agent.RunTurn")
	defer span.End()
	span.SetAttributes(telemetry.TurnAttributes(a.id, runID, sessionID, len(input))...)

	log := a.logger.With(
		slog.String("agent_id", a.id),
		slog.String("run_id", runID),
		slog.String("session_id", sessionID),
	)
	rec := audit.Record{
		AgentID:   a.id,
		SessionID: sessionID,
		RunID:     runID,
		Input:     input,
		StartedAt: a.now(),
	}

	log.InfoContext(ctx, "agent.turn.start", slog.Int("input_length", len(input)))
	a.emit(ctx, core.EventTurnStarted, runID, map[string]any{
		"session_id": sessionID,
		"input":      input,
	})

	a.memory.AppendUser(input)
	prompt := protocol.EncodePrompt(protocol.PromptInput{
		Context:   a.memory.Render(),
		Catalog:   a.registry.List(),
		UserInput: input,
	})
	span.SetAttributes(telemetry.CatalogAttributes(a.registry.Names())...)

	a.setPhase(PhaseAwaitingBackend)
	reply, err := a.complete(ctx, log, prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, a.cancelTurn(ctx, span, log, rec, ctxErr)
		}
		rec.BackendErr = err.Error()
		reply = BackendErrorPrefix + err.Error()
	}
	rec.RawReply = reply

	a.memory.AppendAgent(reply)
	span.SetAttributes(telemetry.MemoryAttributes(a.memory.Len(), a.memory.Max())...)
	a.emit(ctx, core.EventBackendReplied, runID, map[string]any{
		"reply":         reply,
		"backend_error": rec.BackendErr,
	})

	a.setPhase(PhaseDecoding)
	decision, err := protocol.Decode(reply)
	if err != nil {
		derr := WrapDecodeError(err)
		a.metrics.RecordError(ctx, derr, "agent-decode")
		a.metrics.RecordTurn(ctx, a.id, string(audit.OutcomeDecodeErr))
		span.RecordError(derr)
		span.SetStatus(codes.Error, "decode failed")
		log.ErrorContext(ctx, "agent.decode.error",
			slog.String("error", err.Error()),
			slog.String("error_code", string(derr.Code)),
			slog.String("raw_reply", telemetry.Truncate(reply, spanValueMaxLen)),
		)
		a.emit(ctx, core.EventTurnFailed, runID, map[string]any{
			"stage": "decode",
			"error": err.Error(),
		})
		rec.Outcome = audit.OutcomeDecodeErr
		rec.Error = err.Error()
		a.record(ctx, log, rec)
		return nil, derr
	}

	var result *Result
	switch d := decision.(type) {
	case protocol.RespondDirectly:
		span.SetAttributes(telemetry.DecisionAttributes(string(d.Kind()), protocol.ActionRespond)...)
		result = &Result{Kind: ResultDirect, Text: d.Text}
		rec.Outcome = audit.OutcomeDirect
		rec.Action = protocol.ActionRespond
		rec.Output = d.Text
	case protocol.InvokeCapability:
		span.SetAttributes(telemetry.DecisionAttributes(string(d.Kind()), d.Name)...)
		a.setPhase(PhaseDispatching)
		result = a.dispatch(ctx, log, runID, d)
		rec.Action = d.Name
		rec.Args = d.Args
		if result.Kind == ResultFallback {
			rec.Outcome = audit.OutcomeFallback
			rec.Output = result.Text
		} else {
			rec.Outcome = audit.OutcomeCapability
			rec.Output = result.Output
		}
	default:
		return nil, NewInvalidInputError(fmt.Sprintf("unsupported decision %T", decision))
	}
	result.RawReply = reply

	span.SetAttributes(attribute.String(telemetry.AttrOutcome, string(result.Kind)))
	span.SetStatus(codes.Ok, "turn completed")
	a.metrics.RecordTurn(ctx, a.id, string(result.Kind))
	log.InfoContext(ctx, "agent.turn.completed",
		slog.String("outcome", string(result.Kind)),
		slog.Duration("duration", a.now().Sub(rec.StartedAt)),
	)
	a.emit(ctx, core.EventTurnCompleted, runID, map[string]any{
		"outcome": string(result.Kind),
		"result":  result.String(),
	})
	a.record(ctx, log, rec)
	return result, nil
}

// complete calls the backend under the configured timeout.
func (a *Agent) complete(ctx context.Context, log *slog.Logger, prompt string) (string, error) {
	ctx, span := a.tracer.Start(ctx, "Backend.Complete")
	defer span.End()

	start := time.Now()
	reply, err := resilience.Timeout(ctx, a.backendTimeout, func(ctx context.Context) (string, error) {
		return a.backend.Complete(ctx, prompt)
	})
	elapsed := time.Since(start)
	a.metrics.RecordBackendLatency(ctx, elapsed, err != nil)
	span.SetAttributes(telemetry.BackendAttributes(a.backendProvider, a.backendModel,
		len(prompt), len(reply), float64(elapsed)/float64(time.Millisecond))...)

	if err != nil {
		berr := WrapBackendError(err, a.backendModel)
		a.metrics.RecordError(ctx, berr, "agent-backend")
		span.RecordError(err)
		span.SetStatus(codes.Error, "backend call failed")
		log.WarnContext(ctx, "agent.backend.error",
			slog.String("error", err.Error()),
			slog.String("error_code", string(berr.Code)),
			slog.Duration("elapsed", elapsed),
		)
		return "", err
	}
	span.SetStatus(codes.Ok, "")
	log.DebugContext(ctx, "agent.backend.reply",
		slog.Int("reply_length", len(reply)),
		slog.Duration("elapsed", elapsed),
	)
	return reply, nil
}

// dispatch resolves and invokes the capability named by d.
func (a *Agent) dispatch(ctx context.Context, log *slog.Logger, runID string, d protocol.InvokeCapability) *Result {
	c, err := a.registry.Find(d.Name)
	if err != nil {
		a.metrics.RecordCapabilityCall(ctx, d.Name, "not_found")
		log.WarnContext(ctx, "agent.capability.not_found",
			slog.String("capability", d.Name),
			slog.String("error", err.Error()),
		)
		a.emit(ctx, core.EventCapabilityNotFound, runID, map[string]any{
			"capability": d.Name,
			"args":       d.Args,
		})
		return &Result{Kind: ResultFallback, Text: a.fallback, Action: d.Name, Args: d.Args}
	}

	output, status := a.invoke(ctx, log, c, d.Args)
	a.metrics.RecordCapabilityCall(ctx, c.Name(), status)
	a.emit(ctx, core.EventCapabilityInvoked, runID, map[string]any{
		"capability": c.Name(),
		"args":       d.Args,
		"output":     output,
		"status":     status,
	})
	return &Result{Kind: ResultCapability, Action: d.Name, Args: d.Args, Output: output}
}

// invoke runs c and turns failures, panics included, into a descriptive
// output string.
func (a *Agent) invoke(ctx context.Context, log *slog.Logger, c core.Capability, args []string) (string, string) {
	ctx, span := a.tracer.Start(ctx, "Capability.Invoke")
	defer span.End()

	start := time.Now()
	output, err := safeInvoke(ctx, c, args)
	status := "ok"
	if err != nil {
		status = "error"
		terr := WrapToolError(err, c.Name())
		a.metrics.RecordError(ctx, terr, "agent-capability")
		span.RecordError(err)
		span.SetStatus(codes.Error, "capability failed")
		log.WarnContext(ctx, "agent.capability.error",
			slog.String("capability", c.Name()),
			slog.String("error", err.Error()),
			slog.String("error_code", string(terr.Code)),
		)
		output = capabilityErrorText(c.Name(), err)
	} else {
		span.SetStatus(codes.Ok, "")
		log.InfoContext(ctx, "agent.capability.invoked",
			slog.String("capability", c.Name()),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
	span.SetAttributes(telemetry.CapabilityAttributes(c.Name(), args, output, status, spanValueMaxLen)...)
	return output, status
}

func safeInvoke(ctx context.Context, c core.Capability, args []string) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("capability panicked: %v", r)
		}
	}()
	return c.Invoke(ctx, args)
}

func capabilityErrorText(name string, err error) string {
	return fmt.Sprintf("Error invoking %s: %v", name, err)
}

func (a *Agent) cancelTurn(ctx context.Context, span trace.Span, log *slog.Logger, rec audit.Record, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "turn canceled")
	a.metrics.RecordTurn(ctx, a.id, string(audit.OutcomeCanceled))
	log.WarnContext(ctx, "agent.turn.canceled", slog.String("error", err.Error()))
	a.emit(ctx, core.EventTurnFailed, rec.RunID, map[string]any{
		"stage": "backend",
		"error": err.Error(),
	})
	rec.Outcome = audit.OutcomeCanceled
	rec.Error = err.Error()
	a.record(context.WithoutCancel(ctx), log, rec)
	return err
}

func (a *Agent) record(ctx context.Context, log *slog.Logger, rec audit.Record) {
	rec.FinishedAt = a.now()
	if err := a.auditStore.Record(ctx, rec); err != nil {
		log.WarnContext(ctx, "agent.audit.error", slog.String("error", err.Error()))
	}
}

func (a *Agent) emit(ctx context.Context, eventType core.EventType, runID string, payload map[string]any) {
	a.events.Emit(ctx, core.NewEvent(eventType, a.id, runID, payload))
}
