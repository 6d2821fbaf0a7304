// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package capability holds the ordered, case-insensitive capability registry
// the agent dispatches decisions against.
package capability

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/jllopis/agentloop/pkg/core"
	"github.com/jllopis/agentloop/pkg/errors"
)

// ErrNotFound matches any lookup failure returned by Find.
var ErrNotFound = errors.Sentinel(errors.CodeNotFound)

// Entry is the catalog view of a registered capability.
type Entry struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Arguments describes the argument contract shared by every capability:
// an ordered sequence of strings.
type Arguments struct {
	Args []string `json:"args" jsonschema_description:"Positional string arguments passed to the capability in order"`
}

// Registry owns an ordered set of capabilities keyed by case-insensitive name.
// Registering a name that already exists replaces the previous capability in
// place, so iteration order is the order of first registration.
type Registry struct {
	mu    sync.RWMutex
	order []core.Capability
	index map[string]int
}

// NewRegistry creates an empty registry, optionally pre-populated.
func NewRegistry(caps ...core.Capability) (*Registry, error) {
	r := &Registry{index: make(map[string]int)}
	for _, c := range caps {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Key normalizes a capability name for lookup.
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds c or replaces the capability with the same case-insensitive name.
func (r *Registry) Register(c core.Capability) error {
	if c == nil {
		return errors.New(errors.CodeInvalidInput, "capability is nil", nil)
	}
	key := Key(c.Name())
	if key == "" {
		return errors.New(errors.CodeInvalidInput, "capability name is required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index == nil {
		r.index = make(map[string]int)
	}
	if i, ok := r.index[key]; ok {
		r.order[i] = c
		return nil
	}
	r.index[key] = len(r.order)
	r.order = append(r.order, c)
	return nil
}

// Find returns the capability registered under name, ignoring case.
func (r *Registry) Find(name string) (core.Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[Key(name)]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, "capability not found", nil).
			WithContext("name", name).
			WithAttribute("capability.name", name)
	}
	return r.order[i], nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[Key(name)]
	return ok
}

// List returns the catalog in registration order.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]Entry, 0, len(r.order))
	for _, c := range r.order {
		entries = append(entries, Entry{Name: c.Name(), Description: c.Description()})
	}
	return entries
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.order))
	for _, c := range r.order {
		names = append(names, c.Name())
	}
	return names
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Schema returns the JSON Schema of the named capability's arguments.
func (r *Registry) Schema(name string) (*jsonschema.Schema, error) {
	c, err := r.Find(name)
	if err != nil {
		return nil, err
	}
	return ArgumentSchema(c), nil
}

// ArgumentSchema reflects the Arguments contract for c.
func ArgumentSchema(c core.Capability) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	s := reflector.Reflect(&Arguments{})
	s.Version = ""
	s.Title = c.Name()
	s.Description = c.Description()
	return s
}

// RawArgumentSchema returns ArgumentSchema(c) encoded as JSON.
func RawArgumentSchema(c core.Capability) (json.RawMessage, error) {
	data, err := json.Marshal(ArgumentSchema(c))
	if err != nil {
		return nil, fmt.Errorf("marshal schema for %s: %w", c.Name(), err)
	}
	return data, nil
}
