// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol implements the decision protocol spoken with the
// reasoning backend: it renders the instruction prompt and decodes the
// backend's JSON reply into a Decision.
package protocol

// ActionRespond is the reserved action meaning "answer the user directly".
const ActionRespond = "respond_to_user"

// DecisionKind discriminates the Decision union.
type DecisionKind string

const (
	KindRespond DecisionKind = "respond"
	KindInvoke  DecisionKind = "invoke"
)

// Decision is what the backend chose to do for a turn. It is either a
// RespondDirectly or an InvokeCapability.
type Decision interface {
	Kind() DecisionKind
	isDecision()
}

// RespondDirectly carries text to return to the user unchanged.
type RespondDirectly struct {
	Text string
}

// Kind implements Decision.
func (RespondDirectly) Kind() DecisionKind { return KindRespond }
func (RespondDirectly) isDecision()        {}

// InvokeCapability names a capability and the positional arguments to call it with.
type InvokeCapability struct {
	Name string
	Args []string
}

// Kind implements Decision.
func (InvokeCapability) Kind() DecisionKind { return KindInvoke }
func (InvokeCapability) isDecision()        {}
