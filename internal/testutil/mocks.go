// Package testutil provides shared fakes of domain interfaces for use in
// tests across the codebase.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"log-manager/internal/domain"
)

// === Query Engine Fake ===

// FakeQueryEngine implements domain.QueryEngine with an in-memory status
// table. The XxxFn fields override the default behaviour when set.
type FakeQueryEngine struct {
	StartQueryFn     func(ctx context.Context, in domain.StartQueryInput) (string, error)
	GetQueryStatusFn func(ctx context.Context, id string) (*domain.EngineStatus, error)
	StopQueryFn      func(ctx context.Context, id string) error

	// StopIsNoop leaves the execution state untouched on StopQuery, as an
	// engine that has not processed the stop yet would.
	StopIsNoop bool

	mu          sync.Mutex
	seq         int
	statuses    map[string]domain.EngineStatus
	started     []domain.StartQueryInput
	stopped     []string
	statusCalls map[string]int
}

// NewFakeQueryEngine creates an empty FakeQueryEngine.
func NewFakeQueryEngine() *FakeQueryEngine {
	return &FakeQueryEngine{
		statuses:    make(map[string]domain.EngineStatus),
		statusCalls: make(map[string]int),
	}
}

// StartQuery implements domain.QueryEngine. New executions start RUNNING.
func (f *FakeQueryEngine) StartQuery(ctx context.Context, in domain.StartQueryInput) (string, error) {
	f.mu.Lock()
	f.started = append(f.started, in)
	f.mu.Unlock()

	if f.StartQueryFn != nil {
		return f.StartQueryFn(ctx, in)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("exec-%d", f.seq)
	f.statuses[id] = domain.EngineStatus{State: domain.ExecutionRunning}
	return id, nil
}

// GetQueryStatus implements domain.QueryEngine.
func (f *FakeQueryEngine) GetQueryStatus(ctx context.Context, id string) (*domain.EngineStatus, error) {
	f.mu.Lock()
	f.statusCalls[id]++
	f.mu.Unlock()

	if f.GetQueryStatusFn != nil {
		return f.GetQueryStatusFn(ctx, id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.statuses[id]
	if !ok {
		return nil, fmt.Errorf("query execution %s was not found", id)
	}
	return &st, nil
}

// StopQuery implements domain.QueryEngine.
func (f *FakeQueryEngine) StopQuery(ctx context.Context, id string) error {
	f.mu.Lock()
	f.stopped = append(f.stopped, id)
	f.mu.Unlock()

	if f.StopQueryFn != nil {
		return f.StopQueryFn(ctx, id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.statuses[id]
	if !ok {
		return fmt.Errorf("query execution %s was not found", id)
	}
	if !f.StopIsNoop && !st.State.IsTerminal() {
		f.statuses[id] = domain.EngineStatus{State: domain.ExecutionCancelled, FailureReason: "Query cancelled by user"}
	}
	return nil
}

// SetStatus sets what the engine reports for id.
func (f *FakeQueryEngine) SetStatus(id string, st domain.EngineStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = st
}

// Started returns every StartQuery input in call order.
func (f *FakeQueryEngine) Started() []domain.StartQueryInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.StartQueryInput(nil), f.started...)
}

// StartedSQL returns the SQL of every StartQuery call, sorted.
func (f *FakeQueryEngine) StartedSQL() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.started))
	for i, in := range f.started {
		out[i] = in.SQL
	}
	sort.Strings(out)
	return out
}

// Stopped returns the ids passed to StopQuery.
func (f *FakeQueryEngine) Stopped() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.stopped...)
}

// StatusCalls returns how many times id was polled.
func (f *FakeQueryEngine) StatusCalls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls[id]
}

var _ domain.QueryEngine = (*FakeQueryEngine)(nil)

// === Object Store Fake ===

// MemObjectStore implements domain.ObjectStore over an in-memory map.
type MemObjectStore struct {
	ListFn func(ctx context.Context, prefix string, maxKeys int) ([]domain.ObjectInfo, error)
	GetFn  func(ctx context.Context, key string) (io.ReadCloser, error)

	mu      sync.Mutex
	objects map[string][]byte
	gets    []string
}

// NewMemObjectStore creates an empty MemObjectStore.
func NewMemObjectStore() *MemObjectStore {
	return &MemObjectStore{objects: make(map[string][]byte)}
}

// Put stores body under key.
func (s *MemObjectStore) Put(key string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = body
}

// List implements domain.ObjectStore.
func (s *MemObjectStore) List(ctx context.Context, prefix string, maxKeys int) ([]domain.ObjectInfo, error) {
	if s.ListFn != nil {
		return s.ListFn(ctx, prefix, maxKeys)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if maxKeys > 0 && len(keys) > maxKeys {
		keys = keys[:maxKeys]
	}
	out := make([]domain.ObjectInfo, len(keys))
	for i, k := range keys {
		out[i] = domain.ObjectInfo{Key: k, Size: int64(len(s.objects[k]))}
	}
	return out, nil
}

// Get implements domain.ObjectStore.
func (s *MemObjectStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	s.gets = append(s.gets, key)
	s.mu.Unlock()
	if s.GetFn != nil {
		return s.GetFn(ctx, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.objects[key]
	if !ok {
		return nil, domain.ErrNotFound("object %q not found", key)
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

// Gets returns the keys fetched so far.
func (s *MemObjectStore) Gets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.gets...)
}

var _ domain.ObjectStore = (*MemObjectStore)(nil)
