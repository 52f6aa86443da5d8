// Package history records finished batch runs.
//
// Only batch outcomes are kept. Table state (filters, sorts, selection) is
// never persisted.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when no run has the requested id.
var ErrNotFound = errors.New("batch not found")

// Entry is one finished batch.
type Entry struct {
	ID           string          `json:"id"`
	TemplateName string          `json:"templateName"`
	Targets      int             `json:"targets"`
	Attempted    int             `json:"attempted"`
	Failed       int             `json:"failed"`
	Status       string          `json:"status"`
	Report       json.RawMessage `json:"-"`
	ClientIP     string          `json:"clientIp,omitempty"`
	StartedAt    time.Time       `json:"startedAt"`
	FinishedAt   time.Time       `json:"finishedAt"`
}

// HasReport reports whether the run produced an error report.
func (e Entry) HasReport() bool { return len(e.Report) > 0 }

// Store persists finished runs.
type Store interface {
	Record(ctx context.Context, e Entry) error
	List(ctx context.Context, limit int) ([]Entry, error)
	Get(ctx context.Context, id string) (*Entry, error)
}

// MemoryStore keeps the most recent runs in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry // oldest first
	limit   int
}

// NewMemoryStore keeps at most limit runs; the oldest are evicted first.
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = 200
	}
	return &MemoryStore{limit: limit}
}

func (m *MemoryStore) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.Report = append(json.RawMessage(nil), e.Report...)
	m.entries = append(m.entries, e)
	if over := len(m.entries) - m.limit; over > 0 {
		m.entries = append([]Entry(nil), m.entries[over:]...)
	}
	return nil
}

// List returns up to limit runs, newest first.
func (m *MemoryStore) List(_ context.Context, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.entries) {
		limit = len(m.entries)
	}
	out := make([]Entry, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].ID == id {
			e := m.entries[i]
			return &e, nil
		}
	}
	return nil, ErrNotFound
}
