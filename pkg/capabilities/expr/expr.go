// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package expr evaluates arithmetic expressions with a small recursive-descent
// parser. Only numeric literals, the operators + - * / // ** with parentheses,
// and a fixed set of functions and constants are understood; nothing else is
// ever executed.
//
// Grammar:
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/" | "//") unary }
//	unary   = ("+" | "-") unary | power
//	power   = primary [ "**" unary ]
//	primary = number | name | name "(" [ expr { "," expr } ] ")" | "(" expr ")"
package expr

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Error reports a failure to parse or evaluate an expression.
type Error struct {
	Pos int
	Msg string
}

func (e *Error) Error() string { return e.Msg }

func errorf(pos int, format string, args ...any) *Error {
	return &Error{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

type function struct {
	minArgs, maxArgs int // maxArgs < 0 means variadic
	fn               func(pos int, args []float64) (float64, error)
}

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

var functions = map[string]function{
	"abs": {1, 1, func(_ int, a []float64) (float64, error) { return math.Abs(a[0]), nil }},
	"round": {1, 2, func(pos int, a []float64) (float64, error) {
		if len(a) == 1 {
			return math.RoundToEven(a[0]), nil
		}
		if a[1] != math.Trunc(a[1]) {
			return 0, errorf(pos, "round() digits must be an integer")
		}
		p := math.Pow(10, a[1])
		return math.RoundToEven(a[0]*p) / p, nil
	}},
	"min": {1, -1, func(_ int, a []float64) (float64, error) {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Min(m, v)
		}
		return m, nil
	}},
	"max": {1, -1, func(_ int, a []float64) (float64, error) {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Max(m, v)
		}
		return m, nil
	}},
	"pow": {2, 2, func(pos int, a []float64) (float64, error) { return power(pos, a[0], a[1]) }},
	"sqrt": {1, 1, func(pos int, a []float64) (float64, error) {
		if a[0] < 0 {
			return 0, errorf(pos, "math domain error")
		}
		return math.Sqrt(a[0]), nil
	}},
	"cbrt": {1, 1, func(_ int, a []float64) (float64, error) { return math.Cbrt(a[0]), nil }},
	"log": {1, 2, func(pos int, a []float64) (float64, error) {
		if a[0] <= 0 {
			return 0, errorf(pos, "math domain error")
		}
		if len(a) == 1 {
			return math.Log(a[0]), nil
		}
		if a[1] <= 0 || a[1] == 1 {
			return 0, errorf(pos, "math domain error")
		}
		return math.Log(a[0]) / math.Log(a[1]), nil
	}},
	"sin": {1, 1, func(_ int, a []float64) (float64, error) { return math.Sin(a[0]), nil }},
	"cos": {1, 1, func(_ int, a []float64) (float64, error) { return math.Cos(a[0]), nil }},
	"tan": {1, 1, func(_ int, a []float64) (float64, error) { return math.Tan(a[0]), nil }},
}

// Names returns the sorted list of function and constant names Eval accepts.
func Names() []string {
	out := make([]string, 0, len(functions)+len(constants))
	for n := range functions {
		out = append(out, n)
	}
	for n := range constants {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Allowed reports whether name is a known function or constant.
func Allowed(name string) bool {
	_, fn := functions[name]
	_, c := constants[name]
	return fn || c
}

// Eval parses and evaluates s.
func Eval(s string) (float64, error) {
	toks, err := lex(s)
	if err != nil {
		return 0, err
	}
	p := &parser{toks: toks}
	if p.peek().kind == tokEOF {
		return 0, errorf(0, "empty expression")
	}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return 0, errorf(t.pos, "unexpected %s", t)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, errorf(0, "result is not a finite number")
	}
	return v, nil
}

// Format renders v the way a calculator would: integers without a decimal
// point, other values in the shortest exact form.
func Format(v float64) string {
	if v == 0 {
		return "0"
	}
	if math.Abs(v) < 1e21 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// MaxDepth bounds nesting of parentheses, unary signs and exponents.
const MaxDepth = 256

type parser struct {
	toks  []token
	i     int
	depth int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) accept(kind tokenKind, op string) bool {
	t := p.peek()
	if t.kind == kind && t.text == op {
		p.i++
		return true
	}
	return false
}

func (p *parser) expr() (float64, error) {
	left, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case p.accept(tokOp, "+"):
			right, err := p.term()
			if err != nil {
				return 0, err
			}
			left += right
		case p.accept(tokOp, "-"):
			right, err := p.term()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *parser) term() (float64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "*" && t.text != "/" && t.text != "//") {
			return left, nil
		}
		p.next()
		right, err := p.unary()
		if err != nil {
			return 0, err
		}
		switch t.text {
		case "*":
			left *= right
		case "/":
			if right == 0 {
				return 0, errorf(t.pos, "division by zero")
			}
			left /= right
		case "//":
			if right == 0 {
				return 0, errorf(t.pos, "integer division or modulo by zero")
			}
			left = math.Floor(left / right)
		}
	}
}

func (p *parser) unary() (float64, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > MaxDepth {
		return 0, errorf(p.peek().pos, "expression nested too deeply")
	}
	switch {
	case p.accept(tokOp, "-"):
		v, err := p.unary()
		return -v, err
	case p.accept(tokOp, "+"):
		return p.unary()
	}
	return p.power()
}

func (p *parser) power() (float64, error) {
	base, err := p.primary()
	if err != nil {
		return 0, err
	}
	t := p.peek()
	if !p.accept(tokOp, "**") {
		return base, nil
	}
	exp, err := p.unary()
	if err != nil {
		return 0, err
	}
	return power(t.pos, base, exp)
}

func (p *parser) primary() (float64, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return t.num, nil
	case tokName:
		if p.peek().kind == tokLParen {
			return p.call(t)
		}
		if v, ok := constants[t.text]; ok {
			return v, nil
		}
		if _, ok := functions[t.text]; ok {
			return 0, errorf(t.pos, "function '%s' must be called", t.text)
		}
		return 0, errorf(t.pos, "use of '%s' is not allowed", t.text)
	case tokLParen:
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if c := p.next(); c.kind != tokRParen {
			return 0, errorf(c.pos, "expected ')' but found %s", c)
		}
		return v, nil
	case tokEOF:
		return 0, errorf(t.pos, "unexpected end of expression")
	default:
		return 0, errorf(t.pos, "unexpected %s", t)
	}
}

func (p *parser) call(name token) (float64, error) {
	fn, ok := functions[name.text]
	if !ok {
		return 0, errorf(name.pos, "use of '%s' is not allowed", name.text)
	}
	p.next() // (

	var args []float64
	if p.peek().kind != tokRParen {
		for {
			v, err := p.expr()
			if err != nil {
				return 0, err
			}
			args = append(args, v)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if c := p.next(); c.kind != tokRParen {
		return 0, errorf(c.pos, "expected ')' but found %s", c)
	}

	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return 0, errorf(name.pos, "%s() takes %s, got %d", name.text, arity(fn), len(args))
	}
	return fn.fn(name.pos, args)
}

func arity(fn function) string {
	switch {
	case fn.maxArgs < 0:
		return fmt.Sprintf("at least %d argument(s)", fn.minArgs)
	case fn.minArgs == fn.maxArgs:
		return fmt.Sprintf("%d argument(s)", fn.minArgs)
	default:
		return fmt.Sprintf("%d to %d arguments", fn.minArgs, fn.maxArgs)
	}
}

func power(pos int, base, exp float64) (float64, error) {
	if base == 0 && exp < 0 {
		return 0, errorf(pos, "zero cannot be raised to a negative power")
	}
	if base < 0 && exp != math.Trunc(exp) {
		return 0, errorf(pos, "math domain error")
	}
	v := math.Pow(base, exp)
	if math.IsInf(v, 0) {
		return 0, errorf(pos, "numerical result out of range")
	}
	return v, nil
}
