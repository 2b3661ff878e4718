// Package memory implements the Agent Memory of §2/§4.3: a per-agent
// short-term key/value map and a long-term episodic store of prior task
// outcomes, the latter backed by the Vector Store Gateway so that "relevant
// prior tasks" retrieval (§4.3 step 2) is real semantic search rather than
// substring matching.
package memory

import (
	"sync"
)

// ShortTerm is a naive process-local key/value memory scoped by agent id. It
// is the direct descendant of the teacher's session-scoped in-memory store,
// generalized from session ids to agent ids since this orchestrator has no
// session concept.
type ShortTerm struct {
	mu   sync.RWMutex
	data map[string]map[string]any
}

// NewShortTerm constructs an empty ShortTerm store.
func NewShortTerm() *ShortTerm {
	return &ShortTerm{data: make(map[string]map[string]any)}
}

// Get returns a shallow copy of agentID's key/value map.
func (s *ShortTerm) Get(agentID string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.data[agentID]
	if !ok {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Put merges delta into agentID's key/value map.
func (s *ShortTerm) Put(agentID string, delta map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[agentID]; !ok {
		s.data[agentID] = make(map[string]any)
	}
	for k, v := range delta {
		s.data[agentID][k] = v
	}
}
