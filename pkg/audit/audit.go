// Package audit records one entry per agent turn: what the user said, what
// the backend replied, what was decided and how the turn ended. Records are
// written for inspection only and are never read back into conversation
// memory.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outcome classifies how a turn ended.
type Outcome string

const (
	OutcomeDirect     Outcome = "direct"
	OutcomeCapability Outcome = "capability"
	OutcomeFallback   Outcome = "fallback"
	OutcomeDecodeErr  Outcome = "decode_error"
	OutcomeCanceled   Outcome = "canceled"
)

// Record is a single audited turn.
type Record struct {
	ID         string    `json:"id"`
	AgentID    string    `json:"agent_id"`
	SessionID  string    `json:"session_id,omitempty"`
	RunID      string    `json:"run_id"`
	Input      string    `json:"input"`
	RawReply   string    `json:"raw_reply"`
	Action     string    `json:"action,omitempty"`
	Args       []string  `json:"args,omitempty"`
	Output     string    `json:"output,omitempty"`
	Outcome    Outcome   `json:"outcome"`
	BackendErr string    `json:"backend_error,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration returns how long the turn took.
func (r Record) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Store persists turn records.
type Store interface {
	Record(ctx context.Context, rec Record) error
	List(ctx context.Context, filter Filter) ([]Record, error)
}

// Filter limits record queries. Zero fields match everything.
type Filter struct {
	AgentID   string
	SessionID string
	Outcome   Outcome
	Limit     int
}

func (f Filter) match(r Record) bool {
	if f.AgentID != "" && r.AgentID != f.AgentID {
		return false
	}
	if f.SessionID != "" && r.SessionID != f.SessionID {
		return false
	}
	if f.Outcome != "" && r.Outcome != f.Outcome {
		return false
	}
	return true
}

// MemoryStore keeps records in memory.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

// NewMemoryStore returns an in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Record appends a record.
func (s *MemoryStore) Record(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.Args = append([]string(nil), rec.Args...)
	s.records = append(s.records, rec)
	return nil
}

// List returns filtered records, oldest first.
func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		if !filter.match(rec) {
			continue
		}
		out = append(out, rec)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// NopStore discards every record.
type NopStore struct{}

func (NopStore) Record(context.Context, Record) error { return nil }

func (NopStore) List(context.Context, Filter) ([]Record, error) { return nil, nil }

func encodeArgs(args []string) (string, error) {
	if len(args) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(args)
	return string(data), err
}

func decodeArgs(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil || len(out) == 0 {
		return nil
	}
	return out
}

// normalizeTime ensures timestamps are in UTC.
func normalizeTime(value time.Time) time.Time {
	if value.IsZero() {
		return value
	}
	return value.UTC()
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = NopStore{}
)
