// SPDX-License-Identifier: Apache-2.0
package expr

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEval(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"2 + 2", 4},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 / 4", 2.5},
		{"7 // 2", 3},
		{"-7 // 2", -4},
		{"2 ** 3 ** 2", 512},
		{"-2 ** 2", -4},
		{"2 ** -1", 0.5},
		{"--3", 3},
		{"+5 - -5", 10},
		{".5 + 1.0", 1.5},
		{"1e3", 1000},
		{"sqrt(16)", 4},
		{"cbrt(27)", 3},
		{"sqrt(16) + cbrt(8)", 6},
		{"abs(-3.5)", 3.5},
		{"round(2.5)", 2},
		{"round(3.14159, 2)", 3.14},
		{"min(4, 2, 8)", 2},
		{"max(4, 2, 8)", 8},
		{"pow(2, 10)", 1024},
		{"log(e)", 1},
		{"log(8, 2)", 3},
		{"sin(0)", 0},
		{"cos(0)", 1},
		{"tan(0)", 0},
		{"2 * pi", 2 * math.Pi},
		{"  ( ( 1 ) )  ", 1},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Eval(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		in      string
		message string
	}{
		{"", "empty expression"},
		{"   ", "empty expression"},
		{"1 / 0", "division by zero"},
		{"1 // 0", "integer division or modulo by zero"},
		{"sqrt(-1)", "math domain error"},
		{"log(0)", "math domain error"},
		{"(-8) ** 0.5", "math domain error"},
		{"0 ** -1", "zero cannot be raised to a negative power"},
		{"10 ** 400", "numerical result out of range"},
		{"import", "use of 'import' is not allowed"},
		{"os(1)", "use of 'os' is not allowed"},
		{"sqrt", "function 'sqrt' must be called"},
		{"sqrt(1, 2)", "sqrt() takes 1 argument(s), got 2"},
		{"pow(2)", "pow() takes 2 argument(s), got 1"},
		{"max()", "max() takes at least 1 argument(s), got 0"},
		{"round(1.5, 0.5)", "round() digits must be an integer"},
		{"(1 + 2", "expected ')' but found end of expression"},
		{"1 +", "unexpected end of expression"},
		{"1 2", "unexpected '2'"},
		{"2 % 3", "unexpected character '%'"},
		{"2 ^ 3", "unexpected character '^'"},
		{"1 é", "unexpected character 'é'"},
		{"*3", "unexpected '*'"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := Eval(tt.in)
			require.Error(t, err)
			var ee *Error
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, tt.message, ee.Msg)
		})
	}
}

func TestEvalNestingLimit(t *testing.T) {
	nested := func(n int) string {
		return strings.Repeat("(", n) + "1" + strings.Repeat(")", n)
	}

	v, err := Eval(nested(MaxDepth - 1))
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	for name, in := range map[string]string{
		"parentheses": nested(1_000_000),
		"signs":       strings.Repeat("-", 1_000_000) + "1",
		"exponents":   strings.Repeat("1 ** ", 100_000) + "1",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Eval(in)
			var ee *Error
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, "expression nested too deeply", ee.Msg)
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "4", Format(4))
	assert.Equal(t, "2.5", Format(2.5))
	assert.Equal(t, "-0.125", Format(-0.125))
	assert.Equal(t, "0", Format(math.Copysign(0, -1)))
	assert.Equal(t, "1e+21", Format(1e21))
}

func TestIdentifiers(t *testing.T) {
	assert.Equal(t, []string{"sqrt", "pi", "x"}, Identifiers("sqrt(pi) + x"))
	assert.Empty(t, Identifiers("1 + 2"))
}

func TestAllowed(t *testing.T) {
	for _, n := range Names() {
		assert.True(t, Allowed(n), n)
	}
	assert.False(t, Allowed("exec"))
	assert.Len(t, Names(), 13)
}
