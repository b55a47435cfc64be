package state

import (
	"encoding/json"
	"sync"

	"github.com/flowscript-dev/flowscript/internal/domain"
)

// Listener is notified after a Set becomes visible.
type Listener func(path string, newValue any)

// Manager is one execution's State Manager (spec §4.1): a single JSON
// document, path-addressed get/set/update, and change notification.
// All operations are serialized under one mutex, satisfying the
// "no two nodes of the same execution ever run concurrently" scheduling
// invariant as it applies to state access.
type Manager struct {
	mu        sync.Mutex
	root      map[string]any
	listeners map[int]Listener
	nextID    int
}

// New builds a Manager seeded with initial (deep-copied so the caller's
// map is never aliased into the execution's state document).
func New(initial map[string]any) *Manager {
	root, _ := deepCopyMap(initial)
	if root == nil {
		root = map[string]any{}
	}
	return &Manager{root: root, listeners: map[int]Listener{}}
}

// Get resolves path against the document. A missing field or
// out-of-range index returns (nil, nil) — "undefined" per spec §4.1 —
// rather than an error; only a malformed path or traversal through a
// non-container is an error.
func (m *Manager) Get(path string) (any, error) {
	segs, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return navigateGet(m.root, segs, path)
}

// Set writes value at path, creating intermediate objects for missing
// segments. Writing through an array requires the index to already
// exist or to equal the array's current length (append). Listeners
// fire after the write is visible.
func (m *Manager) Set(path string, value any) error {
	segs, err := parsePath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if len(segs) == 0 {
		obj, ok := value.(map[string]any)
		if !ok {
			m.mu.Unlock()
			return domain.TypeMismatch(path, "root value must be a JSON object")
		}
		m.root = obj
	} else if err := setAt(m.root, segs, 0, value, path); err != nil {
		m.mu.Unlock()
		return err
	}
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	for _, l := range listeners {
		l(path, value)
	}
	return nil
}

// Update reads the current value at path, passes it through fn, and
// writes the result back — all under one critical section, so callers
// needing read-modify-write semantics never race a concurrent Set on
// the same execution.
func (m *Manager) Update(path string, fn func(current any) (any, error)) error {
	segs, err := parsePath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	current, err := navigateGet(m.root, segs, path)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	next, err := fn(current)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if len(segs) == 0 {
		obj, ok := next.(map[string]any)
		if !ok {
			m.mu.Unlock()
			return domain.TypeMismatch(path, "root value must be a JSON object")
		}
		m.root = obj
	} else if err := setAt(m.root, segs, 0, next, path); err != nil {
		m.mu.Unlock()
		return err
	}
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	for _, l := range listeners {
		l(path, next)
	}
	return nil
}

// Snapshot returns a deep copy of the entire document.
func (m *Manager) Snapshot() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out, _ := deepCopyMap(m.root)
	return out
}

// Subscribe registers a listener and returns an unsubscribe function.
func (m *Manager) Subscribe(l Listener) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Manager) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		out = append(out, l)
	}
	return out
}

// navigateGet walks segs against root without mutating it.
func navigateGet(root map[string]any, segs []segment, path string) (any, error) {
	var cur any = root
	for _, seg := range segs {
		if cur == nil {
			return nil, nil
		}
		switch seg.kind {
		case segField:
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil, domain.TypeMismatch(path, "cannot descend into non-object")
			}
			cur, ok = obj[seg.field]
			if !ok {
				return nil, nil
			}
		case segIndex:
			arr, ok := cur.([]any)
			if !ok {
				return nil, domain.TypeMismatch(path, "cannot index into non-array")
			}
			if seg.index >= len(arr) {
				return nil, nil
			}
			cur = arr[seg.index]
		}
	}
	return cur, nil
}

// setAt applies value at segs[i:] rooted at container, mutating
// container and the chain below it in place. container must be a
// map[string]any (true of m.root, and of any object materialized by
// an earlier call to setAt).
func setAt(container map[string]any, segs []segment, i int, value any, path string) error {
	seg := segs[i]
	last := i == len(segs)-1

	switch seg.kind {
	case segField:
		if last {
			container[seg.field] = value
			return nil
		}
		child, exists := container[seg.field]
		switch next := segs[i+1]; next.kind {
		case segField:
			obj, ok := asObject(child, exists)
			if !ok {
				return domain.TypeMismatch(path, "cannot descend into non-object")
			}
			container[seg.field] = obj
			return setAt(obj, segs, i+1, value, path)
		case segIndex:
			arr, ok := asArray(child, exists)
			if !ok {
				return domain.TypeMismatch(path, "cannot index into non-array")
			}
			newArr, err := setInArray(arr, segs, i+1, value, path)
			if err != nil {
				return err
			}
			container[seg.field] = newArr
			return nil
		}
	case segIndex:
		// Only reachable when the root itself is addressed by index,
		// which parsePath disallows ($ is always an object); kept for
		// completeness of the recursion.
		return domain.InvalidPath(path, "root document is always an object")
	}
	return nil
}

// setInArray applies value at segs[i:] where segs[i] is a segIndex
// step whose array is arr; returns the (possibly reallocated) array.
func setInArray(arr []any, segs []segment, i int, value any, path string) ([]any, error) {
	seg := segs[i]
	idx := seg.index
	if idx > len(arr) {
		return nil, domain.InvalidPath(path, "array index out of range (must exist or equal length)")
	}
	last := i == len(segs)-1
	if idx == len(arr) {
		arr = append(arr, nil)
	}
	if last {
		arr[idx] = value
		return arr, nil
	}

	child := arr[idx]
	switch next := segs[i+1]; next.kind {
	case segField:
		obj, ok := asObject(child, child != nil)
		if !ok {
			return nil, domain.TypeMismatch(path, "cannot descend into non-object")
		}
		arr[idx] = obj
		if err := setAt(obj, segs, i+1, value, path); err != nil {
			return nil, err
		}
	case segIndex:
		childArr, ok := asArray(child, child != nil)
		if !ok {
			return nil, domain.TypeMismatch(path, "cannot index into non-array")
		}
		newArr, err := setInArray(childArr, segs, i+1, value, path)
		if err != nil {
			return nil, err
		}
		arr[idx] = newArr
	}
	return arr, nil
}

func asObject(v any, exists bool) (map[string]any, bool) {
	if !exists || v == nil {
		return map[string]any{}, true
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

func asArray(v any, exists bool) ([]any, bool) {
	if !exists || v == nil {
		return []any{}, true
	}
	arr, ok := v.([]any)
	return arr, ok
}

// deepCopyMap round-trips through encoding/json, which is sufficient
// here: state documents are themselves JSON-compatible values (the
// only values ever written are ones that came from JSON, template
// resolution, or node outputs serialized the same way).
func deepCopyMap(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
