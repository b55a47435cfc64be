// Package storage implements Workflow Storage (spec §4.9/§6): a
// read-mostly, load-once store of workflow definitions plus an
// optional Postgres-backed persistence layer for execution records.
//
// Grounded on the teacher's MemoryStore
// (internal/infrastructure/storage/memory.go): same map-per-aggregate,
// mutex-guarded shape, narrowed from the teacher's six aggregate kinds
// (workflow/execution/node/edge/trigger/event) to the one FlowScript
// actually has — workflow definitions — since executions here live in
// internal/manager, not in a separate persisted aggregate. postgres.go
// adds PostgresExecutionStore, but nothing in this module writes
// execution records to it.
package storage

import (
	"sync"

	"github.com/flowscript-dev/flowscript/internal/domain"
)

// MemoryWorkflowStore is the default, in-process WorkflowStore (spec
// §1's assumed in-memory store): workflows are registered once at
// startup/load time and read many times per execution start.
type MemoryWorkflowStore struct {
	mu        sync.RWMutex
	workflows map[string]*domain.Workflow
}

// NewMemoryWorkflowStore builds an empty store.
func NewMemoryWorkflowStore() *MemoryWorkflowStore {
	return &MemoryWorkflowStore{workflows: make(map[string]*domain.Workflow)}
}

// Put registers or replaces a workflow definition by ID.
func (s *MemoryWorkflowStore) Put(wf *domain.Workflow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[wf.ID] = wf
}

// PutJSON parses raw workflow JSON (spec §3's wire format) and
// registers it, returning the parsed workflow so the caller can e.g.
// validate it against a Node Registry before accepting traffic.
func (s *MemoryWorkflowStore) PutJSON(raw []byte) (*domain.Workflow, error) {
	wf, err := domain.ParseWorkflow(raw)
	if err != nil {
		return nil, err
	}
	s.Put(wf)
	return wf, nil
}

// Get looks up a workflow by ID, failing UnknownWorkflow if absent
// (spec §6 "errors: UnknownWorkflow").
func (s *MemoryWorkflowStore) Get(id string) (*domain.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, domain.UnknownWorkflow(id)
	}
	return wf, nil
}

// List returns every registered workflow definition.
func (s *MemoryWorkflowStore) List() []*domain.Workflow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Workflow, 0, len(s.workflows))
	for _, wf := range s.workflows {
		out = append(out, wf)
	}
	return out
}

// Delete removes a workflow definition, permitting ID reuse.
func (s *MemoryWorkflowStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workflows, id)
}
