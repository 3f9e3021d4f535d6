package history

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/filemesh/core"
	"github.com/hupe1980/filemesh/engine"
)

// ErrNotFound is returned for unknown or evicted run IDs.
var ErrNotFound = errors.New("history: run not found")

// DefaultCapacity bounds the in-memory store when no capacity is given.
const DefaultCapacity = 256

// Record is the stored outcome of one run.
type Record struct {
	RunID     string        `json:"run_id" yaml:"run_id"`
	Request   string        `json:"request" yaml:"request"`
	Answer    string        `json:"answer,omitempty" yaml:"answer,omitempty"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
	Status    int           `json:"status" yaml:"status"`
	Trace     core.Trace    `json:"trace" yaml:"trace"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// NewRecord captures r.
func NewRecord(r *engine.Result) Record {
	rec := Record{
		RunID:     r.RunID,
		Request:   r.Request,
		Status:    r.Status,
		Trace:     slices.Clone(r.Trace),
		StartedAt: r.StartedAt,
		Duration:  r.Duration,
	}
	if r.OK() {
		rec.Answer = r.Answer
	} else {
		rec.Error = r.Message()
	}
	return rec
}

// InMemoryStore keeps the most recent records in a process local map. It is
// safe for concurrent access; the oldest record is evicted once capacity is
// reached. Returned records are clones.
type InMemoryStore struct {
	mu       sync.RWMutex
	capacity int
	records  map[string]Record
	order    []string
}

// NewInMemoryStore constructs an empty store holding at most capacity
// records. capacity <= 0 means DefaultCapacity.
func NewInMemoryStore(capacity int) *InMemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &InMemoryStore{capacity: capacity, records: make(map[string]Record)}
}

// Save stores a record of r. Results without a run ID are ignored.
func (s *InMemoryStore) Save(r *engine.Result) {
	if r == nil || r.RunID == "" {
		return
	}

	rec := NewRecord(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.RunID]; !ok {
		s.order = append(s.order, rec.RunID)
	}
	s.records[rec.RunID] = rec

	for len(s.order) > s.capacity {
		delete(s.records, s.order[0])
		s.order = s.order[1:]
	}
}

// Get returns the record of runID.
func (s *InMemoryStore) Get(runID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[runID]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec.Trace = slices.Clone(rec.Trace)
	return rec, nil
}

// List returns up to limit records, newest first. limit <= 0 returns all.
func (s *InMemoryStore) List(limit int) []Record {
	return s.Search("", limit)
}

// Search returns up to limit records, newest first, whose request or answer
// contains query (case-insensitive). An empty query matches every record.
func (s *InMemoryStore) Search(query string, limit int) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(query)

	out := []Record{}
	for i := len(s.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}

		rec := s.records[s.order[i]]
		if query != "" &&
			!strings.Contains(strings.ToLower(rec.Request), query) &&
			!strings.Contains(strings.ToLower(rec.Answer), query) {
			continue
		}

		rec.Trace = slices.Clone(rec.Trace)
		out = append(out, rec)
	}
	return out
}

// Len returns the number of stored records.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Callback returns an engine callback saving every finished run.
func (s *InMemoryStore) Callback() engine.Callback {
	return engine.NewFunctionCallback(engine.CallbackRunEnd, func(_ context.Context, cc *engine.CallbackContext) error {
		s.Save(cc.Result)
		return nil
	})
}
