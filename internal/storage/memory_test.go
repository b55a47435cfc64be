package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowscript-dev/flowscript/internal/domain"
)

func TestMemoryWorkflowStore_PutAndGet(t *testing.T) {
	s := NewMemoryWorkflowStore()
	wf := &domain.Workflow{ID: "wf-1", Root: domain.Sequence{}}
	s.Put(wf)

	got, err := s.Get("wf-1")
	require.NoError(t, err)
	assert.Same(t, wf, got)
}

func TestMemoryWorkflowStore_GetUnknownFails(t *testing.T) {
	s := NewMemoryWorkflowStore()
	_, err := s.Get("missing")
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeUnknownWorkflow))
}

func TestMemoryWorkflowStore_PutJSONParsesAndRegisters(t *testing.T) {
	s := NewMemoryWorkflowStore()
	wf, err := s.PutJSON([]byte(`{"id":"wf-json","initialState":{"x":1},"nodes":{"log":{}}}`))
	require.NoError(t, err)
	assert.Equal(t, "wf-json", wf.ID)

	got, err := s.Get("wf-json")
	require.NoError(t, err)
	assert.Equal(t, wf, got)
}

func TestMemoryWorkflowStore_ListAndDelete(t *testing.T) {
	s := NewMemoryWorkflowStore()
	s.Put(&domain.Workflow{ID: "a", Root: domain.Sequence{}})
	s.Put(&domain.Workflow{ID: "b", Root: domain.Sequence{}})
	assert.Len(t, s.List(), 2)

	s.Delete("a")
	assert.Len(t, s.List(), 1)
	_, err := s.Get("a")
	require.Error(t, err)
}
