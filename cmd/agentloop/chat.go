// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/jllopis/agentloop/pkg/agent"
	"github.com/jllopis/agentloop/pkg/errors"
)

const (
	greeting = "Hello! How can I assist you today?"
	farewell = "See you later!"
)

func isExit(input string) bool {
	switch strings.ToLower(input) {
	case "exit", "bye", "close":
		return true
	}
	return false
}

// maxInputLine caps a single chat line. Longer lines are dropped.
const maxInputLine = 1 << 20

var errLineTooLong = stderrors.New("input line too long")

// runChat reads one user turn per line until an exit word, end of input or
// cancellation. Turn failures are reported and the conversation continues.
func runChat(ctx context.Context, a *app, std streams) error {
	fmt.Fprintln(std.out, greeting)

	r := bufio.NewReader(std.in)
	for {
		fmt.Fprint(std.out, "> ")
		line, err := readLine(r, maxInputLine)
		if stderrors.Is(err, errLineTooLong) {
			fmt.Fprintln(std.out)
			printError(std.err, NewCLIError(
				errors.New(errors.CodeInvalidInput, fmt.Sprintf("input line exceeds %d bytes and was ignored", maxInputLine), nil),
				"shorten the message or use 'agentloop ask'"), false)
			continue
		}
		if err == io.EOF {
			fmt.Fprintln(std.out)
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if isExit(input) {
			fmt.Fprintln(std.out, farewell)
			return nil
		}

		result, err := a.agent.RunTurn(ctx, input)
		if err != nil {
			if stderrors.Is(err, context.Canceled) || ctx.Err() != nil {
				fmt.Fprintln(std.out, farewell)
				return nil
			}
			printError(std.err, err, false)
			continue
		}
		fmt.Fprintln(std.out, result.String())
	}
}

// readLine returns the next line without its terminator. A line longer than
// limit is consumed and reported as errLineTooLong. A final line without a
// newline is returned before io.EOF.
func readLine(r *bufio.Reader, limit int) (string, error) {
	var b strings.Builder
	tooLong, seen := false, false
	for {
		chunk, err := r.ReadSlice('\n')
		seen = seen || len(chunk) > 0
		if !tooLong {
			if b.Len()+len(chunk) > limit+1 {
				tooLong = true
				b.Reset()
			} else {
				b.Write(chunk)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF && seen {
			break
		}
		if err != nil {
			return "", err
		}
		break
	}
	if tooLong {
		return "", errLineTooLong
	}
	return strings.TrimRight(b.String(), "\r\n"), nil
}

type askOutput struct {
	Input  string   `json:"input"`
	Kind   string   `json:"kind"`
	Action string   `json:"action,omitempty"`
	Args   []string `json:"args,omitempty"`
	Output string   `json:"output"`
}

// runAsk runs a single turn with the remaining arguments as input.
func runAsk(ctx context.Context, a *app, args []string, std streams, asJSON bool) error {
	input := strings.TrimSpace(strings.Join(args, " "))
	if input == "" {
		return NewInvalidArgumentError("text", "ask needs the text of the question")
	}

	result, err := a.agent.RunTurn(ctx, input)
	if err != nil {
		return err
	}
	if !asJSON {
		fmt.Fprintln(std.out, result.String())
		return nil
	}

	out := askOutput{Input: input, Kind: string(result.Kind), Action: result.Action, Args: result.Args, Output: result.Text}
	if result.Kind == agent.ResultCapability {
		out.Output = result.Output
	}
	enc := json.NewEncoder(std.out)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return errors.New(errors.CodeInternal, "encode result", err)
	}
	return nil
}
