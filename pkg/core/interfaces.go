// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package core provides the core contracts shared by agentloop packages.
package core

import "context"

// Capability is a named, described, invocable unit of functionality.
// Implementations are constructed once at startup and are immutable after
// registration; Invoke may be called concurrently.
type Capability interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, args []string) (string, error)
}

// InvokeFunc is the function signature behind a CapabilityFunc.
type InvokeFunc func(ctx context.Context, args []string) (string, error)

// CapabilityFunc adapts a plain function into a Capability.
type CapabilityFunc struct {
	name        string
	description string
	fn          InvokeFunc
}

// NewCapabilityFunc builds a Capability from its parts.
func NewCapabilityFunc(name, description string, fn InvokeFunc) *CapabilityFunc {
	return &CapabilityFunc{name: name, description: description, fn: fn}
}

// Name returns the capability name.
func (c *CapabilityFunc) Name() string { return c.name }

// Description returns the capability description.
func (c *CapabilityFunc) Description() string { return c.description }

// Invoke calls the wrapped function.
func (c *CapabilityFunc) Invoke(ctx context.Context, args []string) (string, error) {
	if c.fn == nil {
		return "", nil
	}
	return c.fn(ctx, args)
}

var _ Capability = (*CapabilityFunc)(nil)
