package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/flowscript-dev/flowscript/internal/domain"
)

// PostgresWorkflowStore and PostgresExecutionStore are the optional
// persistence backend for spec §6's "Persisted state layout", built
// on bun the way the teacher's BunStore
// (internal/infrastructure/storage/bun_store.go) is: one bun.DB over a
// pgdriver connector, one table per aggregate, InitSchema creating
// tables idempotently. FlowScript narrows the teacher's seven-model
// schema (workflow/execution/event/node/edge/trigger/execution-state)
// to the two aggregates spec §6 actually names: workflow definitions
// and an append-only per-execution event log plus a snapshot row.
type workflowRow struct {
	bun.BaseModel `bun:"table:workflows,alias:w"`

	ID        string    `bun:"id,pk"`
	Document  []byte    `bun:"document,type:jsonb"` // the original workflow JSON, re-parsed on load
	CreatedAt time.Time `bun:"created_at"`
}

type executionRow struct {
	bun.BaseModel `bun:"table:executions,alias:x"`

	ExecutionID   string          `bun:"execution_id,pk"`
	WorkflowID    string          `bun:"workflow_id"`
	Status        string          `bun:"status"`
	StartTime     time.Time       `bun:"start_time"`
	EndTime       *time.Time      `bun:"end_time"`
	StateSnapshot map[string]any  `bun:"state_snapshot,type:jsonb"`
	PendingPauses map[string]any  `bun:"pending_pauses,type:jsonb"`
}

type executionEventRow struct {
	bun.BaseModel `bun:"table:execution_events,alias:e"`

	ID          int64     `bun:"id,pk,autoincrement"`
	ExecutionID string    `bun:"execution_id"`
	Kind        string    `bun:"kind"`
	At          time.Time `bun:"at"`
	Payload     []byte    `bun:"payload,type:jsonb"`
}

// PostgresWorkflowStore persists workflow definitions, satisfying the
// same manager.WorkflowStore interface as MemoryWorkflowStore.
type PostgresWorkflowStore struct {
	db *bun.DB
}

// NewPostgresWorkflowStore opens a connection pool against dsn. The
// caller should call InitSchema once before first use.
func NewPostgresWorkflowStore(dsn string) *PostgresWorkflowStore {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return &PostgresWorkflowStore{db: bun.NewDB(sqldb, pgdialect.New())}
}

// InitSchema creates the workflows table if it does not already exist.
func (s *PostgresWorkflowStore) InitSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*workflowRow)(nil)).IfNotExists().Exec(ctx)
	return err
}

// Put stores raw, upserting by workflow ID.
func (s *PostgresWorkflowStore) Put(ctx context.Context, raw []byte) (*domain.Workflow, error) {
	wf, err := domain.ParseWorkflow(raw)
	if err != nil {
		return nil, err
	}
	row := &workflowRow{ID: wf.ID, Document: raw, CreatedAt: time.Now()}
	_, err = s.db.NewInsert().Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("document = EXCLUDED.document").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return wf, nil
}

// Get loads and re-parses a workflow by ID, failing UnknownWorkflow if
// absent (matches manager.WorkflowStore's synchronous Get(id) shape;
// the underlying query still runs with a background context since bun
// requires one).
func (s *PostgresWorkflowStore) Get(id string) (*domain.Workflow, error) {
	var row workflowRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(context.Background())
	if err != nil {
		return nil, domain.UnknownWorkflow(id)
	}
	return domain.ParseWorkflow(row.Document)
}

// PostgresExecutionStore persists execution snapshots and an
// append-only event history, mirroring spec §6's record shape
// `{executionId, workflowId, status, ..., history[]}`.
type PostgresExecutionStore struct {
	db *bun.DB
}

// NewPostgresExecutionStore opens a connection pool against dsn.
func NewPostgresExecutionStore(dsn string) *PostgresExecutionStore {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return &PostgresExecutionStore{db: bun.NewDB(sqldb, pgdialect.New())}
}

// InitSchema creates the executions and execution_events tables.
func (s *PostgresExecutionStore) InitSchema(ctx context.Context) error {
	for _, model := range []any{(*executionRow)(nil), (*executionEventRow)(nil)} {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// AppendEvent inserts one event row; the table is append-only until
// the execution terminates (spec §6).
func (s *PostgresExecutionStore) AppendEvent(ctx context.Context, executionID string, kind string, at time.Time, payload []byte) error {
	row := &executionEventRow{ExecutionID: executionID, Kind: kind, At: at, Payload: payload}
	_, err := s.db.NewInsert().Model(row).Exec(ctx)
	return err
}

// UpsertSnapshot writes or replaces the current execution record row.
func (s *PostgresExecutionStore) UpsertSnapshot(ctx context.Context, row executionRow) error {
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (execution_id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("end_time = EXCLUDED.end_time").
		Set("state_snapshot = EXCLUDED.state_snapshot").
		Set("pending_pauses = EXCLUDED.pending_pauses").
		Exec(ctx)
	return err
}
