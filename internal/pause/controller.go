// Package pause implements the Human-Pause Controller: it turns a
// node's pause-edge into a suspended continuation that a later
// resume (or an expiring timeout) unblocks (spec §4.6).
//
// Grounded on the teacher's channel-based signaling idiom in
// internal/infrastructure/websocket/hub.go (register/unregister over
// buffered channels under one mutex), adapted from broadcast fan-out
// to a single-shot resume-or-timeout rendezvous per pending pause.
package pause

import (
	"context"
	"sync"
	"time"

	"github.com/flowscript-dev/flowscript/internal/domain"
)

// Resolution is what a suspended node call resumes with: the
// effective edge name (the descriptor's ResumeEdge on a real resume,
// or the reserved "timeout" edge) and the data supplied to resume, if
// any.
type Resolution struct {
	Edge string
	Data any
}

// Pending describes one outstanding pause, for status inspection
// (spec §3 "Pending Pause").
type Pending struct {
	NodeID     string
	FormSchema any
	ExpiresAt  *time.Time
}

type entry struct {
	resumeEdge string
	formSchema any
	expiresAt  *time.Time
	timer      *time.Timer
	ch         chan Resolution
	resolved   bool
}

// Controller manages the pending pauses for a single execution. It is
// owned by that execution's record and is not safe to share across
// executions.
type Controller struct {
	executionID string

	mu      sync.Mutex
	entries map[string]*entry
	done    map[string]bool
}

// New builds an empty Controller scoped to executionID (used only to
// enrich error messages).
func New(executionID string) *Controller {
	return &Controller{executionID: executionID, entries: make(map[string]*entry), done: make(map[string]bool)}
}

// Begin records a pending pause for nodeID. resumeEdge is the edge
// name a real resume should resolve to (descriptor.ResumeEdge,
// defaulted by the caller to "submitted"). If timeout > 0, the pause
// auto-resolves to the reserved "timeout" edge after timeout elapses
// unless resumed first.
func (c *Controller) Begin(nodeID, resumeEdge string, formSchema any, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[nodeID]; exists {
		return domain.NewError(domain.CodeInvalidState, "a pause is already pending for this node")
	}

	e := &entry{
		resumeEdge: resumeEdge,
		formSchema: formSchema,
		ch:         make(chan Resolution, 1),
	}
	if timeout > 0 {
		deadline := time.Now().Add(timeout)
		e.expiresAt = &deadline
		e.timer = time.AfterFunc(timeout, func() {
			c.resolve(nodeID, Resolution{Edge: domain.EdgeTimeout})
		})
	}
	c.entries[nodeID] = e
	delete(c.done, nodeID)
	return nil
}

// Await blocks until nodeID's pause resolves, by resume, timeout, or
// ctx cancellation (which reports domain.Cancelled()).
func (c *Controller) Await(ctx context.Context, nodeID string) (Resolution, error) {
	c.mu.Lock()
	e, ok := c.entries[nodeID]
	c.mu.Unlock()
	if !ok {
		return Resolution{}, domain.UnknownPause(c.executionID, nodeID)
	}

	select {
	case res := <-e.ch:
		return res, nil
	case <-ctx.Done():
		return Resolution{}, domain.Cancelled()
	}
}

// Resume delivers data to the pending pause for nodeID, resolving its
// Await with the descriptor's resume edge. Fails UnknownPause if no
// pause is pending, AlreadyResumed if it already resolved.
func (c *Controller) Resume(nodeID string, data any) error {
	c.mu.Lock()
	e, ok := c.entries[nodeID]
	if !ok {
		c.mu.Unlock()
		if c.done[nodeID] {
			return domain.AlreadyResumed(c.executionID, nodeID)
		}
		return domain.UnknownPause(c.executionID, nodeID)
	}
	if e.resolved {
		c.mu.Unlock()
		return domain.AlreadyResumed(c.executionID, nodeID)
	}
	e.resolved = true
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(c.entries, nodeID)
	c.done[nodeID] = true
	c.mu.Unlock()

	e.ch <- Resolution{Edge: e.resumeEdge, Data: data}
	return nil
}

// resolve is the internal counterpart used by the timeout timer: it
// resolves nodeID's pause with res if still pending, silently doing
// nothing if it was already resumed or cancelled in the meantime.
func (c *Controller) resolve(nodeID string, res Resolution) {
	c.mu.Lock()
	e, ok := c.entries[nodeID]
	if !ok || e.resolved {
		c.mu.Unlock()
		return
	}
	e.resolved = true
	delete(c.entries, nodeID)
	c.done[nodeID] = true
	c.mu.Unlock()

	e.ch <- res
}

// Cancel unblocks every pending Await immediately without delivering
// a resume, used when the owning execution is cancelled (spec §4.7).
func (c *Controller) Cancel() {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]*entry)
	c.mu.Unlock()

	for _, e := range entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		if !e.resolved {
			e.resolved = true
			e.ch <- Resolution{Edge: domain.EdgeError}
		}
	}
}

// Has reports whether nodeID has a pending pause.
func (c *Controller) Has(nodeID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[nodeID]
	return ok
}

// List returns a snapshot of every pending pause, for status inspection.
func (c *Controller) List() []Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Pending, 0, len(c.entries))
	for nodeID, e := range c.entries {
		out = append(out, Pending{NodeID: nodeID, FormSchema: e.formSchema, ExpiresAt: e.expiresAt})
	}
	return out
}
