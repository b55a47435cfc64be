package domain

import "context"

// Executable is the per-call-site view a node descriptor's Execute
// function receives: the node's resolved config (after template
// substitution), a handle onto shared execution state, and the
// current loop-binding scope chain, innermost first (spec §4.3). A
// pausing node does not block inside Execute: it simply returns the
// reserved EdgePause edge with {formSchema?, prompt?, timeoutMs?} data
// and returns immediately. Suspension itself — parking the execution
// until a resume arrives — is the Flow Interpreter's and Human-Pause
// Controller's responsibility (spec §4.6), not the node body's.
type Executable interface {
	// Config is this call site's node config, after template resolution.
	Config() map[string]any
	// NodeID is the call-site identifier (NodeInvocation.ID).
	NodeID() string
	// State returns the shared state handle for Get/Set/Update.
	State() StateHandle
	// Bindings returns the loop-binding scope chain, innermost first.
	Bindings() []map[string]any
	// Scratch returns a mutable map private to this call site: for a
	// loop controller it is the same map instance across every
	// iteration of one Loop element (so e.g. forEach can track its
	// current index), and a fresh empty map for any non-loop
	// invocation (spec §4.5: "iteration state is kept in the context
	// frame, not in the shared state document").
	Scratch() map[string]any
}

// StateHandle is the subset of the State Manager a node body needs;
// defined here (rather than imported from internal/state) to keep
// domain free of dependents.
type StateHandle interface {
	Get(path string) (any, error)
	Set(path string, value any) error
	Update(path string, fn func(current any) (any, error)) error
}

// ExecuteFunc is a node descriptor's body. It returns the edge the
// flow should follow next; for control nodes the edge name must be a
// member of the descriptor's Alphabet.
type ExecuteFunc func(ctx context.Context, call Executable) (Edge, error)

// NodeDescriptor is a registered node kind (spec §4.2).
type NodeDescriptor struct {
	Name string
	Kind NodeKind

	// Execute runs one invocation of this node.
	Execute ExecuteFunc

	// ConfigKeys, when non-nil, is the closed set of config keys this
	// node accepts; an unknown key is a CodeConfigInvalid error at
	// workflow validation time. Nil means no static check is done.
	// "_id" and "retry" are always reserved/allowed regardless of this
	// set: "_id" is the call-site override key, "retry" is the ambient
	// per-node retry policy block honored by the interpreter itself.
	ConfigKeys []string
	// RequiredKeys is the subset of ConfigKeys that must be present.
	RequiredKeys []string

	// Pausing marks a human-pause node: Execute may return EdgePause.
	Pausing bool

	// ResumeEdge is the edge name the interpreter substitutes for the
	// node's effective outcome once a pause is resumed (default
	// "submitted" when empty, spec §4.6).
	ResumeEdge string

	// Alphabet is the closed set of edge names a control-kind node may
	// emit. Required (non-empty) for NodeKindControl, ignored
	// otherwise: branch/action nodes have an open-ended edge vocabulary
	// checked only against the branch map they are wired into.
	Alphabet []string
}

// ValidateConfig checks a raw call-site config against the
// descriptor's declared key set, independent of any template
// substitution (which happens later, at call time).
func (d NodeDescriptor) ValidateConfig(nodeID string, config map[string]any) error {
	if d.ConfigKeys != nil {
		allowed := make(map[string]bool, len(d.ConfigKeys))
		for _, k := range d.ConfigKeys {
			allowed[k] = true
		}
		for k := range config {
			if k == "_id" || k == "retry" {
				continue
			}
			if !allowed[k] {
				return ConfigInvalid(nodeID, k, "unknown config key")
			}
		}
	}
	for _, k := range d.RequiredKeys {
		if _, ok := config[k]; !ok {
			return ConfigInvalid(nodeID, k, "required config key missing")
		}
	}
	return nil
}
