// Package registry implements the Node Registry: a process-wide
// mapping from node name to node descriptor (spec §4.2).
package registry

import (
	"fmt"
	"sync"

	"github.com/flowscript-dev/flowscript/internal/domain"
)

// Registry holds registered node descriptors, keyed by name.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]domain.NodeDescriptor
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{nodes: make(map[string]domain.NodeDescriptor)}
}

// Register adds a descriptor. Re-registering an existing name is an
// error unless the registry has been Cleared in between (spec §4.2).
func (r *Registry) Register(d domain.NodeDescriptor) error {
	if d.Name == "" {
		return domain.NewError(domain.CodeInvalidInput, "node descriptor must have a name")
	}
	if d.Execute == nil {
		return domain.NewError(domain.CodeInvalidInput, "node descriptor must have an Execute function")
	}
	if d.Kind == domain.NodeKindControl && len(d.Alphabet) == 0 {
		return domain.NewError(domain.CodeInvalidInput, "control node descriptor must declare a non-empty Alphabet")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.nodes[d.Name]; exists {
		return domain.NewError(domain.CodeInvalidInput, fmt.Sprintf("node %q is already registered", d.Name))
	}
	r.nodes[d.Name] = d
	return nil
}

// Get looks up a descriptor by name.
func (r *Registry) Get(name string) (domain.NodeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.nodes[name]
	return d, ok
}

// MustGet looks up a descriptor, returning UnknownNode if absent.
func (r *Registry) MustGet(name string) (domain.NodeDescriptor, error) {
	d, ok := r.Get(name)
	if !ok {
		return domain.NodeDescriptor{}, domain.UnknownNode(name)
	}
	return d, nil
}

// Lookup adapts the registry to the shape domain.Workflow.Validate
// expects, without domain needing to import registry.
func (r *Registry) Lookup(name string) (domain.NodeKind, []string, bool) {
	d, ok := r.Get(name)
	if !ok {
		return "", nil, false
	}
	return d.Kind, d.Alphabet, true
}

// Clear removes every registered descriptor, permitting re-registration
// of previously used names.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes = make(map[string]domain.NodeDescriptor)
}

// Names returns the registered node names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.nodes))
	for name := range r.nodes {
		out = append(out, name)
	}
	return out
}
