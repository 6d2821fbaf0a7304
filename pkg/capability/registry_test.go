// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/jllopis/agentloop/pkg/core"
	"github.com/jllopis/agentloop/pkg/errors"
)

func stub(name, result string) core.Capability {
	return core.NewCapabilityFunc(name, "stub "+name, func(context.Context, []string) (string, error) {
		return result, nil
	})
}

func TestRegistry_FindIsCaseInsensitive(t *testing.T) {
	reg, err := NewRegistry(stub("Clock Tool", "tick"))
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	for _, name := range []string{"Clock Tool", "clock tool", "CLOCK TOOL", "  clock tool "} {
		t.Run(name, func(t *testing.T) {
			c, err := reg.Find(name)
			if err != nil {
				t.Fatalf("Find(%q) failed: %v", name, err)
			}
			if c.Name() != "Clock Tool" {
				t.Errorf("expected Clock Tool, got %q", c.Name())
			}
		})
	}

	a, _ := reg.Find("clock tool")
	b, _ := reg.Find("CLOCK TOOL")
	if a != b {
		t.Error("expected the same capability instance for both spellings")
	}
}

func TestRegistry_FindUnknown(t *testing.T) {
	reg, _ := NewRegistry()
	_, err := reg.Find("nope")
	if err == nil {
		t.Fatal("expected error for unknown capability")
	}
	if !stderrors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if errors.CodeOf(err) != errors.CodeNotFound {
		t.Errorf("expected NOT_FOUND code, got %v", errors.CodeOf(err))
	}
}

func TestRegistry_LastRegistrationWinsInPlace(t *testing.T) {
	reg, _ := NewRegistry(stub("alpha", "1"), stub("beta", "2"))
	if err := reg.Register(stub("ALPHA", "3")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if reg.Len() != 2 {
		t.Fatalf("expected 2 capabilities, got %d", reg.Len())
	}
	names := reg.Names()
	if names[0] != "ALPHA" || names[1] != "beta" {
		t.Errorf("unexpected order: %v", names)
	}
	c, _ := reg.Find("alpha")
	out, _ := c.Invoke(context.Background(), nil)
	if out != "3" {
		t.Errorf("expected replacement to win, got %q", out)
	}
}

func TestRegistry_ListPreservesOrder(t *testing.T) {
	reg, _ := NewRegistry(stub("c", ""), stub("a", ""), stub("b", ""))
	entries := reg.List()
	want := []string{"c", "a", "b"}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, e := range entries {
		if e.Name != want[i] {
			t.Errorf("entry %d: expected %q, got %q", i, want[i], e.Name)
		}
		if e.Description != "stub "+want[i] {
			t.Errorf("entry %d: unexpected description %q", i, e.Description)
		}
	}
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	reg, _ := NewRegistry()
	if err := reg.Register(nil); errors.CodeOf(err) != errors.CodeInvalidInput {
		t.Errorf("expected INVALID_INPUT for nil, got %v", err)
	}
	if err := reg.Register(stub("   ", "")); errors.CodeOf(err) != errors.CodeInvalidInput {
		t.Errorf("expected INVALID_INPUT for blank name, got %v", err)
	}
	if reg.Has("") {
		t.Error("expected blank name not to be registered")
	}
}

func TestRegistry_Schema(t *testing.T) {
	reg, _ := NewRegistry(stub("Calculator Tool", ""))
	s, err := reg.Schema("calculator tool")
	if err != nil {
		t.Fatalf("Schema failed: %v", err)
	}
	if s.Title != "Calculator Tool" {
		t.Errorf("expected title Calculator Tool, got %q", s.Title)
	}

	raw, err := RawArgumentSchema(stub("Calculator Tool", ""))
	if err != nil {
		t.Fatalf("RawArgumentSchema failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}
	if decoded["type"] != "object" {
		t.Errorf("expected object schema, got %v", decoded["type"])
	}
	props, _ := decoded["properties"].(map[string]any)
	if _, ok := props["args"]; !ok {
		t.Errorf("expected args property, got %v", props)
	}
}
