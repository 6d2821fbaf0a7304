// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"errors"
	"strings"
)

// DefaultSystemPrompt is the system message sent ahead of every prompt.
const DefaultSystemPrompt = "You are a helpful AI assistant."

// Completer is the reasoning backend: it turns one prompt into one raw reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function into a Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ChatCompleter adapts a chat Provider into a Completer.
type ChatCompleter struct {
	provider     Provider
	model        string
	systemPrompt string
	temperature  float64
	jsonMode     bool
}

// ChatOption configures a ChatCompleter.
type ChatOption func(*ChatCompleter)

// WithModel sets the model name passed to the provider.
func WithModel(model string) ChatOption {
	return func(c *ChatCompleter) { c.model = model }
}

// WithSystemPrompt replaces DefaultSystemPrompt.
func WithSystemPrompt(prompt string) ChatOption {
	return func(c *ChatCompleter) { c.systemPrompt = prompt }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ChatOption {
	return func(c *ChatCompleter) { c.temperature = t }
}

// WithJSONMode toggles the provider's JSON response mode. It is on by default.
func WithJSONMode(enabled bool) ChatOption {
	return func(c *ChatCompleter) { c.jsonMode = enabled }
}

// NewChatCompleter wraps provider as a Completer.
func NewChatCompleter(provider Provider, opts ...ChatOption) *ChatCompleter {
	c := &ChatCompleter{
		provider:     provider,
		systemPrompt: DefaultSystemPrompt,
		jsonMode:     true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the configured model name.
func (c *ChatCompleter) Model() string { return c.model }

// Complete implements Completer.
func (c *ChatCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if c.provider == nil {
		return "", errors.New("llm: no provider configured")
	}
	messages := make([]Message, 0, 2)
	if c.systemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: c.systemPrompt})
	}
	messages = append(messages, Message{Role: RoleUser, Content: prompt})

	resp, err := c.provider.Chat(ctx, ChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		JSONMode:    c.jsonMode,
	})
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", errors.New("llm: provider returned no response")
	}
	return strings.TrimSpace(resp.Content), nil
}

var _ Completer = (*ChatCompleter)(nil)
