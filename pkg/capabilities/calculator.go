// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package capabilities

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jllopis/agentloop/pkg/capabilities/expr"
)

// CalculatorName is the registered name of the calculator capability.
const CalculatorName = "Calculator Tool"

const calculatorChars = "0123456789+-*/()., "

var errInvalidChars = errors.New("Invalid characters in expression.")

// Calculator evaluates arithmetic expressions with pkg/capabilities/expr.
//
// In strict mode (the default) the only letters accepted are those of the
// sqrt and cbrt function names. Extended mode admits any identifier and leaves
// vetting to the evaluator's function allowlist.
type Calculator struct {
	extended bool
}

// CalculatorOption configures a Calculator.
type CalculatorOption func(*Calculator)

// WithExtendedFunctions admits every function and constant expr knows about.
func WithExtendedFunctions(enabled bool) CalculatorOption {
	return func(c *Calculator) { c.extended = enabled }
}

// NewCalculator creates the calculator capability.
func NewCalculator(opts ...CalculatorOption) *Calculator {
	c := &Calculator{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Calculator) Name() string { return CalculatorName }

func (c *Calculator) Description() string {
	if c.extended {
		return "Evaluates mathematical expressions. Supports + - * / ** //, parentheses and the functions " +
			"abs, round, min, max, pow, sqrt, cbrt, log, sin, cos, tan with the constants pi and e."
	}
	return "Evaluates simple mathematical expressions. Supports addition, " +
		"subtraction, multiplication, division, square root, and cube root."
}

// Invoke evaluates args[0]. Failures are described in the returned text.
func (c *Calculator) Invoke(_ context.Context, args []string) (string, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "Sorry, I couldn't evaluate the expression ''. Error: no expression provided", nil
	}
	expression := args[0]

	v, err := c.eval(expression)
	if err != nil {
		return fmt.Sprintf("Sorry, I couldn't evaluate the expression '%s'. Error: %s", expression, err), nil
	}
	return fmt.Sprintf("The result of '%s' is %s", expression, expr.Format(v)), nil
}

func (c *Calculator) eval(expression string) (float64, error) {
	if err := c.checkChars(expression); err != nil {
		return 0, err
	}
	for _, name := range expr.Identifiers(expression) {
		if !expr.Allowed(name) {
			return 0, fmt.Errorf("Use of '%s' is not allowed.", name)
		}
	}
	return expr.Eval(expression)
}

func (c *Calculator) checkChars(expression string) error {
	rest := expression
	if !c.extended {
		rest = strings.NewReplacer("sqrt", "", "cbrt", "").Replace(rest)
	}
	for _, r := range rest {
		if strings.ContainsRune(calculatorChars, r) {
			continue
		}
		if c.extended && (r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			continue
		}
		return errInvalidChars
	}
	return nil
}
