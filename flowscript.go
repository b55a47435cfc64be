// Package flowscript is the public facade: it wires a Node Registry,
// Flow Interpreter, Workflow Storage, and Execution Manager into one
// Engine so a caller needing only "run workflows" doesn't have to
// construct internal/* packages by hand.
//
// Grounded on the teacher's root-level factory.go (NewMemoryStorage/
// NewPostgresStorage constructors, NewExecutor wiring): the same
// thin-facade-over-internal-packages shape, narrowed to FlowScript's
// one Engine rather than the teacher's separate Storage/Executor
// surfaces, since FlowScript's Execution Manager already owns both the
// workflow store reference and the interpreter.
package flowscript

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/flowscript-dev/flowscript/internal/domain"
	"github.com/flowscript-dev/flowscript/internal/eventbus"
	"github.com/flowscript-dev/flowscript/internal/flowcond"
	"github.com/flowscript-dev/flowscript/internal/interpreter"
	"github.com/flowscript-dev/flowscript/internal/manager"
	"github.com/flowscript-dev/flowscript/internal/metrics"
	"github.com/flowscript-dev/flowscript/internal/nodebuiltin"
	"github.com/flowscript-dev/flowscript/internal/registry"
	"github.com/flowscript-dev/flowscript/internal/storage"
)

// Options configures a new Engine. Zero-value Options builds an
// in-memory-only engine with the built-in node library registered.
type Options struct {
	// Logger receives lifecycle log lines; the zero value discards them.
	Logger zerolog.Logger
	// DatabaseDSN, when non-empty, backs Workflow Storage with
	// PostgresWorkflowStore instead of MemoryWorkflowStore.
	DatabaseDSN string
	// SkipBuiltinNodes omits registering internal/nodebuiltin's nodes and
	// the whileCondition/forEach loop controllers, for callers that want a
	// bare registry to populate themselves.
	SkipBuiltinNodes bool
	// HTTPClient is forwarded to the built-in httpRequest node.
	HTTPClient *http.Client
	// DefaultOpenAIKey is forwarded to the built-in llmSummarize node.
	DefaultOpenAIKey string
	// DisableMetrics skips building a metrics.Collector; Engine.Manager.Metrics()
	// then returns nil.
	DisableMetrics bool

	EventBufferSize     int
	HistoryLimit        int
	MaxRetainedTerminal int
}

// Engine is the running FlowScript instance: a Node Registry workflows
// are validated and executed against, and the Execution Manager that
// supervises their runs.
type Engine struct {
	Registry *registry.Registry
	Manager  *manager.Manager
	Store    WorkflowPutter
}

// WorkflowPutter is the Workflow Storage an Engine holds; it carries
// only the read-side lookup the Execution Manager uses (Get). Writing
// a definition goes through the concrete type: the Put methods of
// storage.MemoryWorkflowStore and storage.PostgresWorkflowStore differ
// in shape (context.Context vs. not), so callers type-assert
// Engine.Store.
type WorkflowPutter interface {
	manager.WorkflowStore
}

// New builds an Engine per opts.
func New(opts Options) (*Engine, error) {
	reg := registry.New()
	if !opts.SkipBuiltinNodes {
		if err := nodebuiltin.Register(reg, nodebuiltin.Options{
			HTTPClient:       opts.HTTPClient,
			DefaultOpenAIKey: opts.DefaultOpenAIKey,
		}); err != nil {
			return nil, err
		}
		if err := interpreter.RegisterLoopControllers(reg, flowcond.NewEvaluator()); err != nil {
			return nil, err
		}
	}

	var store WorkflowPutter
	if opts.DatabaseDSN != "" {
		pg := storage.NewPostgresWorkflowStore(opts.DatabaseDSN)
		if err := pg.InitSchema(context.Background()); err != nil {
			return nil, err
		}
		store = pg
	} else {
		store = storage.NewMemoryWorkflowStore()
	}

	var collector *metrics.Collector
	if !opts.DisableMetrics {
		collector = metrics.NewCollector()
	}

	mgr := manager.New(manager.Config{
		Registry:            reg,
		Interpreter:         interpreter.New(reg),
		Store:               store,
		Logger:              opts.Logger,
		Metrics:             collector,
		EventBufferSize:     opts.EventBufferSize,
		HistoryLimit:        opts.HistoryLimit,
		MaxRetainedTerminal: opts.MaxRetainedTerminal,
	})

	return &Engine{Registry: reg, Manager: mgr, Store: store}, nil
}

// RegisterWorkflowJSON parses and registers a workflow definition; it
// only works when Store is an in-memory store (the Postgres store's
// equivalent is Put(ctx, raw), reached via Engine.Store's concrete
// type).
func (e *Engine) RegisterWorkflowJSON(raw []byte) (*domain.Workflow, error) {
	mem, ok := e.Store.(*storage.MemoryWorkflowStore)
	if !ok {
		return nil, domain.NewError(domain.CodeInvalidInput, "RegisterWorkflowJSON requires the in-memory store; use the Postgres store's Put directly")
	}
	return mem.PutJSON(raw)
}

// Start begins one execution of workflowID (spec §6 "start").
func (e *Engine) Start(ctx context.Context, workflowID string, input map[string]any) (string, error) {
	return e.Manager.Start(ctx, workflowID, input)
}

// Status returns a point-in-time snapshot of one execution.
func (e *Engine) Status(executionID string) (manager.Record, error) {
	return e.Manager.Status(executionID)
}

// Resume delivers data into a pending human pause.
func (e *Engine) Resume(executionID, nodeID string, data any) error {
	return e.Manager.Resume(executionID, nodeID, data)
}

// Cancel cooperatively cancels a running or paused execution.
func (e *Engine) Cancel(executionID string) error {
	return e.Manager.Cancel(executionID)
}

// Subscribe returns a live event subscriber for one execution.
func (e *Engine) Subscribe(executionID string) (*eventbus.Subscriber, error) {
	return e.Manager.Subscribe(executionID)
}

// Wait blocks until executionID reaches a terminal status.
func (e *Engine) Wait(ctx context.Context, executionID string) error {
	return e.Manager.Wait(ctx, executionID)
}

// WaitTimeout is a convenience wrapper around Wait for callers that
// don't want to build their own context.
func (e *Engine) WaitTimeout(executionID string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return e.Wait(ctx, executionID)
}
