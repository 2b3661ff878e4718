// Package task is the Task Lifecycle Supervisor (§4.1): it owns Task
// creation and state, drives each task through decomposition, scheduling
// and evaluation, and broadcasts status transitions to subscribers.
package task

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/taskmesh/domain"
)

// Store is the single-writer-per-task, concurrent-reader Task catalog,
// grounded on session.InMemoryStore's RWMutex-protected map with
// clone-on-read semantics.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*domain.Task
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{tasks: make(map[string]*domain.Task)}
}

// Create allocates a new pending Task and stores it.
func (s *Store) Create(description string, priority domain.Priority) *domain.Task {
	t := &domain.Task{
		ID:          uuid.NewString(),
		Description: description,
		Priority:    priority,
		Status:      domain.TaskPending,
	}
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	s.mu.Lock()
	s.tasks[t.ID] = t
	s.mu.Unlock()
	return t.Clone()
}

// Get returns a clone of the task with id, if it exists.
func (s *Store) Get(id string) (*domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// List returns clones of every task, newest first.
func (s *Store) List() []*domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Delete removes the task with id. Reports whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	return true
}

// Mutate applies fn to the stored task under the write lock and stamps
// UpdatedAt, giving callers a single-writer view without exposing the
// internal pointer. Reports whether the task existed.
func (s *Store) Mutate(id string, fn func(*domain.Task)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	fn(t)
	t.UpdatedAt = time.Now()
	return true
}

// SetPriority updates a task's priority directly, validating the value.
func (s *Store) SetPriority(id string, p domain.Priority) bool {
	if !domain.ValidPriority(p) {
		return false
	}
	return s.Mutate(id, func(t *domain.Task) { t.Priority = p })
}
