// Package context implements the Execution Context: the per-node-call
// view the Flow Interpreter opens for each node invocation, borrowing
// the execution's shared state for the call's lifetime.
package context

import "github.com/flowscript-dev/flowscript/internal/domain"

// Frame is one node call's Execution Context; it implements
// domain.Executable.
type Frame struct {
	nodeID   string
	config   map[string]any
	state    domain.StateHandle
	bindings []map[string]any
	scratch  map[string]any
}

// New builds a Frame. scratch may be nil, in which case a fresh empty
// map is used (the common non-loop-controller case).
func New(nodeID string, config map[string]any, state domain.StateHandle, bindings []map[string]any, scratch map[string]any) *Frame {
	if scratch == nil {
		scratch = map[string]any{}
	}
	return &Frame{nodeID: nodeID, config: config, state: state, bindings: bindings, scratch: scratch}
}

func (f *Frame) Config() map[string]any     { return f.config }
func (f *Frame) NodeID() string             { return f.nodeID }
func (f *Frame) State() domain.StateHandle  { return f.state }
func (f *Frame) Bindings() []map[string]any { return f.bindings }
func (f *Frame) Scratch() map[string]any    { return f.scratch }
