// Package interpreter implements the Flow Interpreter (spec §4.4):
// it walks a compiled flow-element tree, resolving each node through
// the Node Registry, routing on returned edges, and driving loop
// controllers and human pauses.
//
// Grounded on the teacher's WorkflowEngine.executeNode
// (internal/application/executor/engine.go): template resolution
// before dispatch, wrapping a node's error as a domain failure, and
// notifying observers around each call — adapted from the teacher's
// wave-parallel DAG walk to a sequential recursive walk of a nested
// node/branch/loop/sequence tree, since FlowScript has no join nodes
// or topological waves to schedule.
package interpreter

import (
	"context"
	"time"

	flowcontext "github.com/flowscript-dev/flowscript/internal/context"
	"github.com/flowscript-dev/flowscript/internal/domain"
	"github.com/flowscript-dev/flowscript/internal/pause"
	"github.com/flowscript-dev/flowscript/internal/registry"
	"github.com/flowscript-dev/flowscript/internal/template"
)

// StateHandle is the subset of the State Manager the interpreter
// needs to build Execution Contexts and the Template Resolver.
type StateHandle interface {
	domain.StateHandle
	template.StateGetter
}

// EmitFunc publishes one event for this execution.
type EmitFunc func(domain.Event)

// StatusSetter lets the interpreter flip the owning execution's
// status around a human pause, without depending on the Execution
// Manager package.
type StatusSetter func(domain.ExecutionStatus) error

// RunContext is everything one Run call needs: the shared state, the
// current loop-binding chain, and the execution/workflow identity
// used to stamp emitted events.
type RunContext struct {
	ExecutionID string
	WorkflowID  string
	State       StateHandle
	Bindings    []map[string]any
	Emit        EmitFunc
	Pause       *pause.Controller
	SetStatus   StatusSetter
}

// withBindings returns a copy of rc with bindings replaced; rc itself
// is never mutated, so sibling branches/iterations never see each
// other's binding frames.
func (rc *RunContext) withBindings(bindings []map[string]any) *RunContext {
	next := *rc
	next.Bindings = bindings
	return &next
}

// Interpreter walks flow-element trees against a Node Registry.
type Interpreter struct {
	Registry *registry.Registry
}

// New builds an Interpreter bound to reg.
func New(reg *registry.Registry) *Interpreter {
	return &Interpreter{Registry: reg}
}

// Run evaluates el and returns its terminal edge (spec §4.4).
func (in *Interpreter) Run(ctx context.Context, rc *RunContext, el domain.FlowElement) (domain.Edge, error) {
	switch v := el.(type) {
	case domain.NodeInvocation:
		return in.runNode(ctx, rc, v, nil)
	case domain.Sequence:
		return in.runSequence(ctx, rc, v)
	case domain.Branch:
		return in.runBranch(ctx, rc, v)
	case domain.Loop:
		return in.runLoop(ctx, rc, v)
	default:
		return domain.Edge{}, domain.NewError(domain.CodeInvalidState, "unknown flow element type")
	}
}

func (in *Interpreter) runSequence(ctx context.Context, rc *RunContext, seq domain.Sequence) (domain.Edge, error) {
	last := domain.NewEdge(domain.EdgeNext)
	for _, el := range seq {
		edge, err := in.Run(ctx, rc, el)
		if err != nil {
			return domain.Edge{}, err
		}
		last = edge
	}
	return last, nil
}

func (in *Interpreter) runBranch(ctx context.Context, rc *RunContext, b domain.Branch) (domain.Edge, error) {
	condEdge, err := in.Run(ctx, rc, b.Condition)
	if err != nil {
		return domain.Edge{}, err
	}

	target, ok := b.Map[condEdge.Name]
	if !ok {
		target, ok = b.Map[domain.EdgeCatchAll]
	}
	if !ok {
		return domain.Edge{}, domain.UnroutedEdge(condEdge.Name)
	}
	return in.Run(ctx, rc, target)
}

func (in *Interpreter) runLoop(ctx context.Context, rc *RunContext, l domain.Loop) (domain.Edge, error) {
	descriptor, err := in.Registry.MustGet(l.Controller.Name)
	if err != nil {
		return domain.Edge{}, err
	}

	scratch := map[string]any{}
	for {
		edge, err := in.runNode(ctx, rc, l.Controller, scratch)
		if err != nil {
			return domain.Edge{}, err
		}
		if !isAlphabetMember(descriptor.Alphabet, edge.Name) {
			return domain.Edge{}, domain.NewError(domain.CodeInvalidState,
				"control node emitted an edge outside its declared alphabet")
		}
		if edge.Name == domain.EdgeExit || edge.Name == domain.EdgeError {
			return edge, nil
		}

		bodyRC := rc
		if bindings, ok := edge.Data().(map[string]any); ok && bindings != nil {
			bodyRC = rc.withBindings(append([]map[string]any{bindings}, rc.Bindings...))
		}
		if _, err := in.Run(ctx, bodyRC, l.Body); err != nil {
			return domain.Edge{}, err
		}
	}
}

func isAlphabetMember(alphabet []string, name string) bool {
	for _, a := range alphabet {
		if a == name {
			return true
		}
	}
	return false
}

// runNode dispatches one node invocation: template-resolve its
// config, emit node-entered, call Execute, handle a pause edge if the
// descriptor allows it, then emit node-exited.
func (in *Interpreter) runNode(ctx context.Context, rc *RunContext, inv domain.NodeInvocation, scratch map[string]any) (domain.Edge, error) {
	if err := ctx.Err(); err != nil {
		return domain.Edge{}, domain.Cancelled()
	}

	descriptor, err := in.Registry.MustGet(inv.Name)
	if err != nil {
		return domain.Edge{}, err
	}
	if err := descriptor.ValidateConfig(inv.ID, inv.Config); err != nil {
		return domain.Edge{}, err
	}

	resolver := &template.Resolver{
		State:    rc.State,
		Bindings: rc.Bindings,
		OnMiss: func(path string) {
			rc.emit(domain.Event{Kind: domain.EventTemplateMiss, NodeID: inv.ID, NodeName: inv.Name, Path: path})
		},
	}
	resolvedConfig, err := resolver.ProcessConfig(inv.Config)
	if err != nil {
		return domain.Edge{}, err
	}

	frame := flowcontext.New(inv.ID, resolvedConfig, rc.State, rc.Bindings, scratch)
	policy := parseRetryPolicy(resolvedConfig)

	rc.emit(domain.Event{Kind: domain.EventNodeEntered, NodeID: inv.ID, NodeName: inv.Name})
	var edge domain.Edge
	execErr := withRetry(ctx, policy, func() error {
		var err error
		edge, err = descriptor.Execute(ctx, frame)
		return err
	})
	if execErr != nil {
		// withRetry's ctx.Done() path surfaces as a plain ctx.Err()
		// (e.g. context.Canceled) rather than a domain error; fold it
		// into domain.Cancelled() here so a cancel landing while a
		// node is retrying produces StatusCancelled, not StatusFailed.
		if ctx.Err() != nil {
			return domain.Edge{}, domain.Cancelled()
		}
		return domain.Edge{}, domain.NodeFailed(inv.ID, execErr)
	}

	if descriptor.Pausing && edge.Name == domain.EdgePause {
		edge, err = in.awaitResume(ctx, rc, inv, descriptor, edge)
		if err != nil {
			return domain.Edge{}, err
		}
	}

	rc.emit(domain.Event{Kind: domain.EventNodeExited, NodeID: inv.ID, NodeName: inv.Name, Edge: edge.Name})
	return edge, nil
}

// pauseData is the shape a pausing node's EdgePause data carries.
type pauseData struct {
	FormSchema any
	Prompt     string
	TimeoutMs  int
}

func parsePauseData(raw any) pauseData {
	m, ok := raw.(map[string]any)
	if !ok {
		return pauseData{}
	}
	pd := pauseData{FormSchema: m["formSchema"]}
	if prompt, ok := m["prompt"].(string); ok {
		pd.Prompt = prompt
	}
	switch v := m["timeoutMs"].(type) {
	case int:
		pd.TimeoutMs = v
	case float64:
		pd.TimeoutMs = int(v)
	}
	return pd
}

// awaitResume suspends nodeID until resumed or timed out (spec §4.6),
// blocking the calling goroutine — which is this execution's
// dedicated goroutine — so the recursive call stack itself is the
// continuation to resume into.
func (in *Interpreter) awaitResume(ctx context.Context, rc *RunContext, inv domain.NodeInvocation, descriptor domain.NodeDescriptor, pauseEdge domain.Edge) (domain.Edge, error) {
	pd := parsePauseData(pauseEdge.Data())
	resumeEdge := descriptor.ResumeEdge
	if resumeEdge == "" {
		resumeEdge = "submitted"
	}

	var timeout time.Duration
	if pd.TimeoutMs > 0 {
		timeout = time.Duration(pd.TimeoutMs) * time.Millisecond
	}
	if err := rc.Pause.Begin(inv.ID, resumeEdge, pd.FormSchema, timeout); err != nil {
		return domain.Edge{}, err
	}

	if rc.SetStatus != nil {
		if err := rc.SetStatus(domain.StatusPaused); err != nil {
			return domain.Edge{}, err
		}
	}
	rc.emit(domain.Event{Kind: domain.EventPaused, NodeID: inv.ID, NodeName: inv.Name, FormSchema: pd.FormSchema})

	res, err := rc.Pause.Await(ctx, inv.ID)
	if err != nil {
		return domain.Edge{}, err
	}
	// Manager.Cancel calls ex.cancel() before ex.pauseCtl.Cancel(), so
	// ctx is already done by the time Cancel's resolution reaches this
	// pause; Await's select can pick either ready case pseudo-randomly,
	// so re-check ctx rather than trust which case won.
	if ctx.Err() != nil {
		return domain.Edge{}, domain.Cancelled()
	}

	if rc.SetStatus != nil {
		if err := rc.SetStatus(domain.StatusRunning); err != nil {
			return domain.Edge{}, err
		}
	}
	rc.emit(domain.Event{Kind: domain.EventResumed, NodeID: inv.ID, NodeName: inv.Name})

	return domain.NewEdgeWithData(res.Edge, func() any { return res.Data }), nil
}

func (rc *RunContext) emit(e domain.Event) {
	if rc.Emit == nil {
		return
	}
	e.ExecutionID = rc.ExecutionID
	e.WorkflowID = rc.WorkflowID
	e.At = time.Now()
	rc.Emit(e)
}
