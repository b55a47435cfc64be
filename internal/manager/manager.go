// Package manager implements the Execution Manager (spec §4.7): it
// supervises many concurrent executions, each running on its own
// goroutine, and exposes start/status/resume/cancel/list/subscribe.
//
// Grounded on the teacher's WorkflowEngine.ExecuteWorkflow orchestration
// (internal/application/executor/engine.go) and the execution status
// machine in internal/domain/execution.go, adapted from the teacher's
// worker-pool dispatch to one goroutine per execution communicating
// over a context.CancelFunc and the Human-Pause Controller's channels
// — matching the teacher's own preference for channel-driven
// coordination in internal/infrastructure/websocket/hub.go.
package manager

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/flowscript-dev/flowscript/internal/domain"
	"github.com/flowscript-dev/flowscript/internal/eventbus"
	"github.com/flowscript-dev/flowscript/internal/interpreter"
	"github.com/flowscript-dev/flowscript/internal/metrics"
	"github.com/flowscript-dev/flowscript/internal/pause"
	"github.com/flowscript-dev/flowscript/internal/registry"
	"github.com/flowscript-dev/flowscript/internal/state"
)

// WorkflowStore is the read side of Workflow Storage the manager needs
// to start an execution. internal/storage.MemoryWorkflowStore and
// internal/storage.PostgresWorkflowStore both satisfy this.
type WorkflowStore interface {
	Get(id string) (*domain.Workflow, error)
}

// Filter narrows List to executions matching non-zero fields.
type Filter struct {
	WorkflowID string
	Status     domain.ExecutionStatus
}

func (f Filter) matches(r Record) bool {
	if f.WorkflowID != "" && f.WorkflowID != r.WorkflowID {
		return false
	}
	if f.Status != "" && f.Status != r.Status {
		return false
	}
	return true
}

// Record is a point-in-time snapshot of one execution (spec §6
// "Persisted state layout"), returned by Status and List.
type Record struct {
	ExecutionID   string
	WorkflowID    string
	Status        domain.ExecutionStatus
	StartTime     time.Time
	EndTime       *time.Time
	StateSnapshot map[string]any
	PendingPauses []pause.Pending
	History       []domain.Event
	Err           error
}

const (
	defaultEventBufferSize     = 64
	defaultHistoryLimit        = 500
	defaultMaxRetainedTerminal = 1000
)

// Config configures a Manager. Zero-value fields fall back to
// defaults sized for a single-process demo deployment.
type Config struct {
	Registry    *registry.Registry
	Interpreter *interpreter.Interpreter
	Store       WorkflowStore
	Logger      zerolog.Logger

	// EventBufferSize is each execution's per-subscriber Event Bus
	// buffer (spec §4.8).
	EventBufferSize int
	// HistoryLimit bounds the in-memory event history kept per
	// execution for Status/List inspection; older events are dropped
	// first, newest retained.
	HistoryLimit int
	// MaxRetainedTerminal bounds how many terminal (completed/failed/
	// cancelled) execution records stay resident before the oldest is
	// evicted, so a long-running process doesn't leak memory over many
	// short-lived executions.
	MaxRetainedTerminal int

	// Metrics, when set, aggregates every execution's event stream into
	// per-workflow/per-node duration counters (SPEC_FULL.md "Metrics
	// summary"). Nil disables aggregation.
	Metrics *metrics.Collector
}

// Manager supervises concurrent executions of workflows drawn from a
// WorkflowStore against a shared Node Registry.
type Manager struct {
	cfg      Config
	observer *metrics.Observer

	mu            sync.Mutex
	executions    map[string]*execution
	terminalOrder []string // oldest-first FIFO of terminal execution ids, for eviction
}

// New builds a Manager. Registry, Interpreter, and Store are required.
func New(cfg Config) *Manager {
	if cfg.EventBufferSize <= 0 {
		cfg.EventBufferSize = defaultEventBufferSize
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.MaxRetainedTerminal <= 0 {
		cfg.MaxRetainedTerminal = defaultMaxRetainedTerminal
	}
	m := &Manager{cfg: cfg, executions: make(map[string]*execution)}
	if cfg.Metrics != nil {
		m.observer = metrics.NewObserver(cfg.Metrics)
	}
	return m
}

// Metrics returns the Collector aggregating every execution run through
// this Manager, or nil if Config.Metrics was not set.
func (m *Manager) Metrics() *metrics.Collector {
	return m.cfg.Metrics
}

// execution is one running workflow instance: its own state document,
// pause controller, event bus, and cancellation — never shared across
// executions (spec §5 "No cross-execution shared mutable state").
type execution struct {
	mu sync.Mutex

	id         string
	workflowID string
	status     domain.ExecutionStatus
	startTime  time.Time
	endTime    *time.Time
	err        error

	history      []domain.Event
	historyLimit int

	state    *state.Manager
	pauseCtl *pause.Controller
	bus      *eventbus.Bus
	cancel   context.CancelFunc
	done     chan struct{}
}

func (e *execution) snapshot() Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	hist := make([]domain.Event, len(e.history))
	copy(hist, e.history)
	return Record{
		ExecutionID:   e.id,
		WorkflowID:    e.workflowID,
		Status:        e.status,
		StartTime:     e.startTime,
		EndTime:       e.endTime,
		StateSnapshot: e.state.Snapshot(),
		PendingPauses: e.pauseCtl.List(),
		History:       hist,
		Err:           e.err,
	}
}

// setStatus enforces the status machine (spec §4.7); used both as the
// RunContext.SetStatus hook (around a human pause) and internally when
// an execution terminates.
func (e *execution) setStatus(next domain.ExecutionStatus) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.status.CanTransitionTo(next) {
		return domain.NewError(domain.CodeInvalidState, "illegal execution status transition")
	}
	e.status = next
	return nil
}

// stamp fills in the identity/timestamp fields that interpreter.emit
// would stamp internally; needed here because the manager publishes a
// handful of its own lifecycle events (execution-started and friends)
// directly, outside the interpreter's own emit path.
func (e *execution) stamp(ev domain.Event) domain.Event {
	ev.ExecutionID = e.id
	ev.WorkflowID = e.workflowID
	ev.At = time.Now()
	return ev
}

func (e *execution) recordEvent(ev domain.Event) {
	e.mu.Lock()
	e.history = append(e.history, ev)
	if over := len(e.history) - e.historyLimit; over > 0 {
		e.history = e.history[over:]
	}
	e.mu.Unlock()
}

// Start allocates a State Manager seeded with the workflow's initial
// state overlaid by input, and hands control to the Flow Interpreter
// on a dedicated goroutine (spec §3 "Data flow").
func (m *Manager) Start(ctx context.Context, workflowID string, input map[string]any) (string, error) {
	wf, err := m.cfg.Store.Get(workflowID)
	if err != nil {
		return "", err
	}
	if err := wf.Validate(m.cfg.Registry.Lookup); err != nil {
		return "", err
	}

	executionID := uuid.NewString()
	runCtx, cancel := context.WithCancel(context.Background())

	ex := &execution{
		id:           executionID,
		workflowID:   workflowID,
		status:       domain.StatusPending,
		startTime:    time.Now(),
		historyLimit: m.cfg.HistoryLimit,
		state:        state.New(overlay(wf.InitialState, input)),
		pauseCtl:     pause.New(executionID),
		bus:          eventbus.New(executionID, m.cfg.EventBufferSize),
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	m.mu.Lock()
	m.executions[executionID] = ex
	m.mu.Unlock()

	if m.observer != nil {
		if sub, err := m.Subscribe(executionID); err == nil {
			go m.observer.Consume(workflowID, sub.Events)
		}
	}

	rc := &interpreter.RunContext{
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		State:       ex.state,
		Emit: func(e domain.Event) {
			ex.recordEvent(e)
			ex.bus.Publish(e)
		},
		Pause:     ex.pauseCtl,
		SetStatus: ex.setStatus,
	}

	ex.state.Subscribe(func(path string, newValue any) {
		rc.Emit(ex.stamp(domain.Event{Kind: domain.EventStateChanged, Path: path, NewValue: newValue}))
	})

	if err := ex.setStatus(domain.StatusRunning); err != nil {
		return "", err
	}
	rc.Emit(ex.stamp(domain.Event{Kind: domain.EventExecutionStarted}))

	m.cfg.Logger.Info().Str("execution_id", executionID).Str("workflow_id", workflowID).Msg("execution started")
	go m.run(runCtx, ex, rc, wf)

	return executionID, nil
}

func (m *Manager) run(ctx context.Context, ex *execution, rc *interpreter.RunContext, wf *domain.Workflow) {
	defer close(ex.done)

	_, err := m.cfg.Interpreter.Run(ctx, rc, wf.Root)

	now := time.Now()
	ex.mu.Lock()
	ex.endTime = &now
	ex.mu.Unlock()

	switch {
	case err == nil:
		_ = ex.setStatus(domain.StatusCompleted)
		rc.Emit(ex.stamp(domain.Event{Kind: domain.EventExecutionCompleted, FinalState: ex.state.Snapshot()}))
	case domain.IsCode(err, domain.CodeCancelled):
		_ = ex.setStatus(domain.StatusCancelled)
		rc.Emit(ex.stamp(domain.Event{Kind: domain.EventExecutionCancelled}))
	default:
		ex.mu.Lock()
		ex.err = err
		ex.mu.Unlock()
		_ = ex.setStatus(domain.StatusFailed)
		kind, msg := "", err.Error()
		var derr *domain.Error
		if errors.As(err, &derr) {
			kind, msg = string(derr.Code), derr.Message
		}
		rc.Emit(ex.stamp(domain.Event{Kind: domain.EventExecutionFailed, ErrorKind: kind, Message: msg, Err: err}))
	}

	ex.mu.Lock()
	finalStatus := ex.status
	ex.mu.Unlock()
	m.cfg.Logger.Info().Str("execution_id", ex.id).Str("status", string(finalStatus)).Msg("execution finished")

	m.retireIfTerminal(ex)
}

// retireIfTerminal tracks ex for eviction and, once the retained cap
// is exceeded, closes and drops the oldest terminal record's Event
// Bus (its Record itself is simply forgotten, matching "terminal
// records are retained for inspection" only up to a bound).
func (m *Manager) retireIfTerminal(ex *execution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terminalOrder = append(m.terminalOrder, ex.id)
	for len(m.terminalOrder) > m.cfg.MaxRetainedTerminal {
		evictID := m.terminalOrder[0]
		m.terminalOrder = m.terminalOrder[1:]
		if evicted, ok := m.executions[evictID]; ok {
			evicted.bus.Close()
			delete(m.executions, evictID)
		}
	}
}

// Status returns a snapshot of one execution's record.
func (m *Manager) Status(id string) (Record, error) {
	ex, err := m.get(id)
	if err != nil {
		return Record{}, err
	}
	return ex.snapshot(), nil
}

// Resume delivers data into the pending pause keyed by nodeId (spec
// §4.6). Fails NotPaused if the execution isn't currently paused,
// UnknownPause/AlreadyResumed per the pause controller.
func (m *Manager) Resume(id, nodeID string, data any) error {
	ex, err := m.get(id)
	if err != nil {
		return err
	}
	ex.mu.Lock()
	paused := ex.status == domain.StatusPaused
	ex.mu.Unlock()
	if !paused {
		return domain.NotPaused(id)
	}
	if err := ex.pauseCtl.Resume(nodeID, data); err != nil {
		return err
	}
	m.cfg.Logger.Info().Str("execution_id", id).Str("node_id", nodeID).Msg("execution resumed")
	return nil
}

// Cancel cooperatively interrupts a running or paused execution (spec
// §5): it cancels the execution's context, checked at the next node
// boundary, and immediately unblocks any pending pause.
func (m *Manager) Cancel(id string) error {
	ex, err := m.get(id)
	if err != nil {
		return err
	}
	ex.cancel()
	ex.pauseCtl.Cancel()
	m.cfg.Logger.Info().Str("execution_id", id).Msg("execution cancel requested")
	return nil
}

// List returns snapshots of every execution matching filter.
func (m *Manager) List(filter Filter) []Record {
	m.mu.Lock()
	ids := make([]*execution, 0, len(m.executions))
	for _, ex := range m.executions {
		ids = append(ids, ex)
	}
	m.mu.Unlock()

	out := make([]Record, 0, len(ids))
	for _, ex := range ids {
		r := ex.snapshot()
		if filter.matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// Subscribe returns a live event subscriber for one execution's Event
// Bus (spec §4.8/§6 "subscribeEvents").
func (m *Manager) Subscribe(id string) (*eventbus.Subscriber, error) {
	ex, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return ex.bus.Subscribe(), nil
}

// Unsubscribe releases a subscriber immediately rather than waiting for
// it to become unreachable (e.g. when a streaming transport's
// connection closes cleanly).
func (m *Manager) Unsubscribe(id string, sub *eventbus.Subscriber) error {
	ex, err := m.get(id)
	if err != nil {
		return err
	}
	ex.bus.Unsubscribe(sub)
	return nil
}

// Wait blocks until execution id reaches a terminal status, or ctx is
// done first. Used by synchronous callers (tests, examples) that want
// to run a workflow to completion without polling Status.
func (m *Manager) Wait(ctx context.Context, id string) error {
	ex, err := m.get(id)
	if err != nil {
		return err
	}
	select {
	case <-ex.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) get(id string) (*execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ex, ok := m.executions[id]
	if !ok {
		return nil, domain.UnknownExecution(id)
	}
	return ex, nil
}

// overlay shallow-merges input over initial, per spec §3's "seeded
// with the workflow's initial state overlaid by input" — top-level
// keys in input take precedence, everything else from initial passes
// through unchanged.
func overlay(initial, input map[string]any) map[string]any {
	out := make(map[string]any, len(initial)+len(input))
	for k, v := range initial {
		out[k] = v
	}
	for k, v := range input {
		out[k] = v
	}
	return out
}
