// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/jllopis/agentloop/pkg/errors"
)

// CLIError wraps AgentError with a hint for the user.
type CLIError struct {
	*errors.AgentError
	Hint string
}

// NewCLIError creates a new CLI error.
func NewCLIError(ae *errors.AgentError, hint string) *CLIError {
	return &CLIError{AgentError: ae, Hint: hint}
}

// Error returns the formatted error message with hints.
func (e *CLIError) Error() string {
	if e.AgentError == nil {
		return "unknown error"
	}
	msg := e.AgentError.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// Unwrap returns the wrapped AgentError.
func (e *CLIError) Unwrap() error {
	if e.AgentError == nil {
		return nil
	}
	return e.AgentError
}

// NewInvalidArgumentError creates an invalid argument error with CLI hints.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	ae := errors.New(errors.CodeInvalidInput, "invalid argument: "+reason, nil).
		WithContext("argument", arg).
		WithRecoverable(false)
	return NewCLIError(ae, "run 'agentloop help' for usage information")
}

// NewConfigError creates a configuration error with CLI hints.
func NewConfigError(err error, configPath string) *CLIError {
	ae := errors.AsAgentError(err)
	hint := "check AGENTLOOP_ environment variables and --set overrides"
	if configPath != "" {
		hint = fmt.Sprintf("check %s for syntax errors", configPath)
	}
	return NewCLIError(ae.WithContext("config_path", configPath), hint)
}

// WrapStartupError wraps a failure to build a runtime component.
func WrapStartupError(err error, component string) *CLIError {
	ae := errors.New(errors.CodeInternal, component+" unavailable", err).
		WithContext("component", component).
		WithRecoverable(true)
	return NewCLIError(ae, fmt.Sprintf("check the %s settings and that its service is reachable", component))
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// printError writes err as a single line, or as {"error":{...}} in JSON mode.
func printError(w io.Writer, err error, asJSON bool) {
	body := errorBody{Code: string(errors.CodeOf(err)), Message: err.Error()}
	var cliErr *CLIError
	if stderrors.As(err, &cliErr) && cliErr.AgentError != nil {
		body = errorBody{Code: string(cliErr.Code), Message: cliErr.AgentError.Error(), Hint: cliErr.Hint}
	}

	if asJSON {
		_ = json.NewEncoder(w).Encode(map[string]errorBody{"error": body})
		return
	}
	fmt.Fprintf(w, "Error [%s]: %s\n", body.Code, body.Message)
	if body.Hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", body.Hint)
	}
}
