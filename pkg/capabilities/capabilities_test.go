// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package capabilities

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/agentloop/pkg/errors"
)

func TestClock(t *testing.T) {
	fixed := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	clock := NewClock(WithNow(func() time.Time { return fixed }))
	ctx := context.Background()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "lisbon", args: []string{"Europe/Lisbon"}, want: "The current time is 2024-01-15 12:00:00 WET+0000."},
		{name: "new york", args: []string{"America/New_York"}, want: "The current time is 2024-01-15 07:00:00 EST-0500."},
		{name: "trimmed zone", args: []string{"  Asia/Tokyo "}, want: "The current time is 2024-01-15 21:00:00 JST+0900."},
		{name: "invalid zone", args: []string{"Not/AZone"}, want: "Invalid timezone: Not/AZone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := clock.Invoke(ctx, tt.args)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestClockLocalTime(t *testing.T) {
	fixed := time.Date(2024, 1, 15, 12, 0, 0, 0, time.Local)
	clock := NewClock(WithNow(func() time.Time { return fixed }))

	for _, args := range [][]string{nil, {""}} {
		got, err := clock.Invoke(context.Background(), args)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := "The current time is " + fixed.Format(ClockLayout) + "."
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}

func TestCalculator(t *testing.T) {
	calc := NewCalculator()
	ctx := context.Background()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "addition", args: []string{"2 + 2"}, want: "The result of '2 + 2' is 4"},
		{name: "square root", args: []string{"sqrt(16)"}, want: "The result of 'sqrt(16)' is 4"},
		{name: "cube root", args: []string{"cbrt(27) * 2"}, want: "The result of 'cbrt(27) * 2' is 6"},
		{name: "division", args: []string{"7 / 2"}, want: "The result of '7 / 2' is 3.5"},
		{name: "power operator", args: []string{"2 ** 10"}, want: "The result of '2 ** 10' is 1024"},
		{
			name: "code injection",
			args: []string{"import os"},
			want: "Sorry, I couldn't evaluate the expression 'import os'. Error: Invalid characters in expression.",
		},
		{
			name: "function outside strict set",
			args: []string{"abs(-1)"},
			want: "Sorry, I couldn't evaluate the expression 'abs(-1)'. Error: Invalid characters in expression.",
		},
		{
			name: "division by zero",
			args: []string{"1 / 0"},
			want: "Sorry, I couldn't evaluate the expression '1 / 0'. Error: division by zero",
		},
		{
			name: "missing argument",
			args: nil,
			want: "Sorry, I couldn't evaluate the expression ''. Error: no expression provided",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.Invoke(ctx, tt.args)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestCalculatorExtended(t *testing.T) {
	calc := NewCalculator(WithExtendedFunctions(true))
	ctx := context.Background()

	got, _ := calc.Invoke(ctx, []string{"max(abs(-3), round(pi, 2))"})
	if got != "The result of 'max(abs(-3), round(pi, 2))' is 3.14" {
		t.Errorf("unexpected result %q", got)
	}

	got, _ = calc.Invoke(ctx, []string{"exec(1)"})
	if got != "Sorry, I couldn't evaluate the expression 'exec(1)'. Error: Use of 'exec' is not allowed." {
		t.Errorf("unexpected result %q", got)
	}

	got, _ = calc.Invoke(ctx, []string{"__import__('os')"})
	if !strings.Contains(got, "Invalid characters in expression.") {
		t.Errorf("expected quotes to be rejected, got %q", got)
	}
}

func TestCalculatorDeepNesting(t *testing.T) {
	in := strings.Repeat("(", 1_000_000) + "1" + strings.Repeat(")", 1_000_000)
	got, err := NewCalculator().Invoke(context.Background(), []string{in})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(got, "Error: expression nested too deeply") {
		t.Errorf("unexpected result tail %q", got[max(0, len(got)-80):])
	}
}

func TestTextStats(t *testing.T) {
	ts := NewTextStats()
	ctx := context.Background()

	tests := []struct {
		name string
		args []string
		want TextStatsResult
	}{
		{
			name: "defaults",
			args: []string{"'Hello World'"},
			want: TextStatsResult{
				OriginalText: "'Hello World'", CleanedText: "Hello World",
				CharacterCount: 11, WordCount: 2, AverageWordLength: 5.5,
				UniqueCharacterCount: 7, CountSpaces: true, CountPunctuation: true,
			},
		},
		{
			name: "without spaces or punctuation",
			args: []string{"Hi, there!", "false", "false"},
			want: TextStatsResult{
				OriginalText: "Hi, there!", CleanedText: "Hi there",
				CharacterCount: 7, WordCount: 2, AverageWordLength: 3.5,
				UniqueCharacterCount: 6, CountSpaces: false, CountPunctuation: false,
			},
		},
		{
			name: "empty text",
			args: []string{""},
			want: TextStatsResult{CountSpaces: true, CountPunctuation: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ts.Invoke(ctx, tt.args)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var got TextStatsResult
			if err := json.Unmarshal([]byte(out), &got); err != nil {
				t.Fatalf("output is not JSON: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestTextStatsErrors(t *testing.T) {
	ts := NewTextStats()
	if _, err := ts.Invoke(context.Background(), nil); err == nil {
		t.Error("expected error without text")
	}
	if _, err := ts.Invoke(context.Background(), []string{"x", "maybe"}); err == nil {
		t.Error("expected error for non-boolean flag")
	}
}

func TestBuild(t *testing.T) {
	caps, err := Build(Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(caps) != 2 || caps[0].Name() != ClockName || caps[1].Name() != CalculatorName {
		t.Fatalf("expected default clock and calculator, got %v", caps)
	}

	caps, err = Build(Config{Enabled: []string{"websearch", " TextStats ", "webfetch"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := []string{caps[0].Name(), caps[1].Name(), caps[2].Name()}
	if strings.Join(names, ",") != "Web Search,Text Statistics,Web Fetch" {
		t.Errorf("unexpected order %v", names)
	}

	_, err = Build(Config{Enabled: []string{"shell"}})
	if errors.CodeOf(err) != errors.CodeConfigError {
		t.Errorf("expected CONFIG_ERROR, got %v", err)
	}
}
