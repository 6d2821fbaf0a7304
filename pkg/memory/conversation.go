// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package memory provides the bounded conversation log the agent renders
// into every prompt.
package memory

import (
	"strings"
	"sync"
	"time"
)

// DefaultMaxEntries is the capacity used when none is configured.
const DefaultMaxEntries = 10

// Speaker tags who produced a conversation entry.
type Speaker string

const (
	SpeakerUser  Speaker = "User"
	SpeakerAgent Speaker = "Agent"
)

// Entry is a single immutable line of the conversation.
type Entry struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// String renders the entry as "<speaker>: <text>".
func (e Entry) String() string {
	return string(e.Speaker) + ": " + e.Text
}

// Conversation is a fixed-capacity, append-ordered log of entries. Once the
// log is full every append evicts the oldest entry. It is backed by a ring
// buffer so Append is O(1). All methods are safe for concurrent use.
type Conversation struct {
	mu    sync.RWMutex
	buf   []Entry
	start int
	size  int
}

// NewConversation creates a log holding at most maxEntries entries.
// A non-positive capacity falls back to DefaultMaxEntries.
func NewConversation(maxEntries int) *Conversation {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Conversation{buf: make([]Entry, maxEntries)}
}

// Append adds e to the end of the log, evicting the oldest entry when full.
func (c *Conversation) Append(e Entry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	capacity := len(c.buf)
	if c.size < capacity {
		c.buf[(c.start+c.size)%capacity] = e
		c.size++
		return
	}
	c.buf[c.start] = e
	c.start = (c.start + 1) % capacity
}

// AppendUser is shorthand for appending a User entry.
func (c *Conversation) AppendUser(text string) {
	c.Append(Entry{Speaker: SpeakerUser, Text: text})
}

// AppendAgent is shorthand for appending an Agent entry.
func (c *Conversation) AppendAgent(text string) {
	c.Append(Entry{Speaker: SpeakerAgent, Text: text})
}

// Entries returns a copy of the log, oldest first.
func (c *Conversation) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entriesLocked()
}

func (c *Conversation) entriesLocked() []Entry {
	out := make([]Entry, c.size)
	for i := 0; i < c.size; i++ {
		out[i] = c.buf[(c.start+i)%len(c.buf)]
	}
	return out
}

// Render joins the entries as "<speaker>: <text>" lines separated by newlines.
func (c *Conversation) Render() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var b strings.Builder
	for i := 0; i < c.size; i++ {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(c.buf[(c.start+i)%len(c.buf)].String())
	}
	return b.String()
}

// Len returns the number of entries currently held.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}

// Max returns the configured capacity.
func (c *Conversation) Max() int {
	return len(c.buf)
}

// Clear drops every entry.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.buf {
		c.buf[i] = Entry{}
	}
	c.start, c.size = 0, 0
}
