// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// DecodeError reports a backend reply that could not be turned into a
// Decision. Raw holds the original reply for diagnostic logging.
type DecodeError struct {
	Reason string
	Raw    string
	Err    error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode: %s: %v", e.Reason, e.Err)
	}
	return "decode: " + e.Reason
}

// Unwrap returns the underlying parse error, if any.
func (e *DecodeError) Unwrap() error { return e.Err }

func decodeError(raw, reason string, err error) *DecodeError {
	return &DecodeError{Reason: reason, Raw: raw, Err: err}
}

// Decode turns a raw backend reply into a Decision.
//
// The JSON object is taken from a ```json fenced block when present, and
// otherwise from the first balanced {...} span in the text.
func Decode(raw string) (Decision, error) {
	candidate, ok := extractCandidate(raw)
	if !ok {
		return nil, decodeError(raw, "no JSON object found", nil)
	}

	dec := json.NewDecoder(strings.NewReader(candidate))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, decodeError(raw, "invalid JSON", err)
	}
	if dec.More() {
		return nil, decodeError(raw, "invalid JSON", fmt.Errorf("unexpected data after JSON value"))
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, decodeError(raw, fmt.Sprintf("expected a JSON object, got %s", jsonKind(value)), nil)
	}

	rawAction, ok := obj["action"]
	if !ok {
		return nil, decodeError(raw, `missing "action" key`, nil)
	}
	action, ok := rawAction.(string)
	if !ok || strings.TrimSpace(action) == "" {
		return nil, decodeError(raw, `"action" must be a non-empty string`, nil)
	}

	rawArgs, ok := obj["args"]
	if !ok {
		return nil, decodeError(raw, `missing "args" key`, nil)
	}
	args, err := coerceArgs(rawArgs)
	if err != nil {
		return nil, decodeError(raw, `invalid "args"`, err)
	}

	if action == ActionRespond {
		return RespondDirectly{Text: strings.Join(args, " ")}, nil
	}
	return InvokeCapability{Name: action, Args: args}, nil
}

// extractCandidate locates the JSON text to parse.
func extractCandidate(raw string) (string, bool) {
	if m := fencedJSON.FindStringSubmatch(raw); m != nil {
		return m[1], true
	}
	return firstObject(raw)
}

// firstObject returns the first top-level balanced {...} span that parses
// as JSON. Scanning resumes after a span that does not parse, so nested
// braces are never rescanned. When no span parses, the first balanced span is
// returned so the caller can report the parse diagnostic; an unterminated
// object yields the remainder of the text for the same reason.
func firstObject(raw string) (string, bool) {
	var fallback string
	found := false
	for i := 0; i < len(raw); i++ {
		if raw[i] != '{' {
			continue
		}
		end, ok := matchBrace(raw, i)
		if !ok {
			if !found {
				fallback, found = raw[i:], true
			}
			break
		}
		span := raw[i : end+1]
		if json.Valid([]byte(span)) {
			return span, true
		}
		if !found {
			fallback, found = span, true
		}
		i = end
	}
	return fallback, found
}

// matchBrace returns the index of the '}' closing the '{' at start. It tracks
// nesting depth and skips over string literals, honoring backslash escapes.
func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// coerceArgs normalizes "args" into an ordered sequence of strings.
// Scalars become a one-element slice, null becomes an empty slice.
func coerceArgs(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return []string{}, nil
	case []any:
		out := make([]string, 0, len(val))
		for i, item := range val {
			s, err := scalarString(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		s, err := scalarString(val)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
}

func scalarString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected a string, got %s", jsonKind(v))
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Encode renders d in the wire shape the backend is asked to produce.
func Encode(d Decision) ([]byte, error) {
	var payload struct {
		Action string `json:"action"`
		Args   any    `json:"args"`
	}
	switch v := d.(type) {
	case RespondDirectly:
		payload.Action, payload.Args = ActionRespond, v.Text
	case InvokeCapability:
		payload.Action = v.Name
		if len(v.Args) == 1 {
			payload.Args = v.Args[0]
		} else {
			payload.Args = v.Args
		}
	default:
		return nil, fmt.Errorf("encode: unsupported decision %T", d)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}
