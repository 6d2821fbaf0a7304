// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	stderrors "errors"

	"github.com/jllopis/agentloop/pkg/errors"
	"github.com/jllopis/agentloop/pkg/protocol"
)

// WrapBackendError wraps a backend failure. Timeouts keep their TIMEOUT code.
func WrapBackendError(err error, model string) *errors.AgentError {
	if err == nil {
		return nil
	}
	code := errors.CodeBackendError
	if errors.CodeOf(err) == errors.CodeTimeout {
		code = errors.CodeTimeout
	}
	ae := errors.New(code, "backend call failed", err).
		WithRecoverable(true)
	if model != "" {
		ae = ae.WithContext("model", model).
			WithAttribute("gen_ai.request.model", model)
	}
	return ae
}

// WrapToolError wraps a capability invocation failure.
func WrapToolError(err error, capabilityName string) *errors.AgentError {
	if err == nil {
		return nil
	}
	return errors.New(errors.CodeToolFailure, "capability invocation failed", err).
		WithContext("capability", capabilityName).
		WithAttribute("agentloop.capability.name", capabilityName).
		WithRecoverable(true)
}

// WrapDecodeError wraps a reply that could not be turned into a decision.
// The original *protocol.DecodeError stays reachable through errors.As.
func WrapDecodeError(err error) *errors.AgentError {
	if err == nil {
		return nil
	}
	ae := errors.New(errors.CodeDecodeError, "could not decode backend reply", err).
		WithRecoverable(false)
	var de *protocol.DecodeError
	if stderrors.As(err, &de) {
		ae = ae.WithContext("reason", de.Reason).
			WithContext("raw", de.Raw)
	}
	return ae
}

// NewInvalidInputError creates a new invalid input error.
func NewInvalidInputError(msg string) *errors.AgentError {
	return errors.New(errors.CodeInvalidInput, msg, nil).
		WithRecoverable(false)
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(resource, name string) *errors.AgentError {
	return errors.New(errors.CodeNotFound, resource+" not found", nil).
		WithContext("resource", resource).
		WithContext("name", name).
		WithRecoverable(false)
}
