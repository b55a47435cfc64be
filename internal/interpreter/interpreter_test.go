package interpreter

import (
	"context"
	"testing"
	"time"

	"github.com/flowscript-dev/flowscript/internal/domain"
	"github.com/flowscript-dev/flowscript/internal/flowcond"
	"github.com/flowscript-dev/flowscript/internal/pause"
	"github.com/flowscript-dev/flowscript/internal/registry"
	"github.com/flowscript-dev/flowscript/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func edgeNode(name, emit string) domain.NodeDescriptor {
	return domain.NodeDescriptor{
		Name: name,
		Kind: domain.NodeKindAction,
		Execute: func(ctx context.Context, call domain.Executable) (domain.Edge, error) {
			return domain.NewEdge(emit), nil
		},
	}
}

func newRunContext(st *state.Manager) (*RunContext, []domain.Event) {
	var events []domain.Event
	rc := &RunContext{
		ExecutionID: "exec-1",
		WorkflowID:  "wf-1",
		State:       st,
		Emit:        func(e domain.Event) { events = append(events, e) },
		Pause:       pause.New("exec-1"),
	}
	return rc, nil
}

func TestInterpreter_SequenceReturnsLastEdge(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(edgeNode("a", "next")))
	require.NoError(t, reg.Register(edgeNode("b", "done")))
	in := New(reg)

	rc, _ := newRunContext(state.New(nil))
	seq := domain.Sequence{
		domain.NodeInvocation{ID: "a", Name: "a", Config: map[string]any{}},
		domain.NodeInvocation{ID: "b", Name: "b", Config: map[string]any{}},
	}
	edge, err := in.Run(context.Background(), rc, seq)
	require.NoError(t, err)
	assert.Equal(t, "done", edge.Name)
}

func TestInterpreter_EmptySequenceReturnsNext(t *testing.T) {
	in := New(registry.New())
	rc, _ := newRunContext(state.New(nil))
	edge, err := in.Run(context.Background(), rc, domain.Sequence{})
	require.NoError(t, err)
	assert.Equal(t, domain.EdgeNext, edge.Name)
}

func TestInterpreter_BranchRoutesByExactMatch(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(edgeNode("cond", "yes")))
	require.NoError(t, reg.Register(edgeNode("onYes", "done-yes")))
	require.NoError(t, reg.Register(edgeNode("onNo", "done-no")))
	in := New(reg)

	rc, _ := newRunContext(state.New(nil))
	branch := domain.Branch{
		Condition: domain.NodeInvocation{ID: "cond", Name: "cond", Config: map[string]any{}},
		Map: map[string]domain.FlowElement{
			"yes": domain.NodeInvocation{ID: "onYes", Name: "onYes", Config: map[string]any{}},
			"no":  domain.NodeInvocation{ID: "onNo", Name: "onNo", Config: map[string]any{}},
		},
	}
	edge, err := in.Run(context.Background(), rc, branch)
	require.NoError(t, err)
	assert.Equal(t, "done-yes", edge.Name)
}

func TestInterpreter_BranchFallsBackToCatchAll(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(edgeNode("cond", "unlisted")))
	require.NoError(t, reg.Register(edgeNode("fallback", "done")))
	in := New(reg)

	rc, _ := newRunContext(state.New(nil))
	branch := domain.Branch{
		Condition: domain.NodeInvocation{ID: "cond", Name: "cond", Config: map[string]any{}},
		Map: map[string]domain.FlowElement{
			"*": domain.NodeInvocation{ID: "fallback", Name: "fallback", Config: map[string]any{}},
		},
	}
	edge, err := in.Run(context.Background(), rc, branch)
	require.NoError(t, err)
	assert.Equal(t, "done", edge.Name)
}

func TestInterpreter_BranchUnroutedEdgeFails(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(edgeNode("cond", "unlisted")))
	in := New(reg)

	rc, _ := newRunContext(state.New(nil))
	branch := domain.Branch{
		Condition: domain.NodeInvocation{ID: "cond", Name: "cond", Config: map[string]any{}},
		Map:       map[string]domain.FlowElement{"other": domain.Sequence{}},
	}
	_, err := in.Run(context.Background(), rc, branch)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeUnroutedEdge))
}

func TestInterpreter_BranchNeverReadsConditionEdgeData(t *testing.T) {
	reg := registry.New()
	calls := 0
	require.NoError(t, reg.Register(domain.NodeDescriptor{
		Name: "cond",
		Kind: domain.NodeKindAction,
		Execute: func(ctx context.Context, call domain.Executable) (domain.Edge, error) {
			return domain.NewEdgeWithData("yes", func() any {
				calls++
				return "expensive payload"
			}), nil
		},
	}))
	require.NoError(t, reg.Register(edgeNode("onYes", "done-yes")))
	in := New(reg)

	rc, _ := newRunContext(state.New(nil))
	branch := domain.Branch{
		Condition: domain.NodeInvocation{ID: "cond", Name: "cond", Config: map[string]any{}},
		Map: map[string]domain.FlowElement{
			"yes": domain.NodeInvocation{ID: "onYes", Name: "onYes", Config: map[string]any{}},
		},
	}
	edge, err := in.Run(context.Background(), rc, branch)
	require.NoError(t, err)
	assert.Equal(t, "done-yes", edge.Name)

	// runBranch only ever inspects condEdge.Name to pick the target; it
	// never reads the condition edge's Data(), so a spy factory on it
	// must stay uninvoked (spec §8 property 4).
	assert.Equal(t, 0, calls)
}

func TestInterpreter_NodeFailureWrapsAsNodeFailed(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(domain.NodeDescriptor{
		Name: "boom",
		Execute: func(ctx context.Context, call domain.Executable) (domain.Edge, error) {
			return domain.Edge{}, assertError{}
		},
	}))
	in := New(reg)

	rc, _ := newRunContext(state.New(nil))
	_, err := in.Run(context.Background(), rc, domain.NodeInvocation{ID: "boom", Name: "boom", Config: map[string]any{}})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeNodeFailed))
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

func TestInterpreter_TemplateResolutionBeforeExecute(t *testing.T) {
	reg := registry.New()
	var seenURL string
	require.NoError(t, reg.Register(domain.NodeDescriptor{
		Name:       "fetch",
		ConfigKeys: []string{"url"},
		Execute: func(ctx context.Context, call domain.Executable) (domain.Edge, error) {
			seenURL, _ = call.Config()["url"].(string)
			return domain.NewEdge(domain.EdgeNext), nil
		},
	}))
	in := New(reg)

	st := state.New(map[string]any{"host": "example.com"})
	rc, _ := newRunContext(st)
	_, err := in.Run(context.Background(), rc, domain.NodeInvocation{
		ID: "fetch", Name: "fetch", Config: map[string]any{"url": "https://{{host}}/ping"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/ping", seenURL)
}

func TestInterpreter_PauseAndResumeRendezvous(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(domain.NodeDescriptor{
		Name:       "approval",
		Pausing:    true,
		ResumeEdge: "submitted",
		Execute: func(ctx context.Context, call domain.Executable) (domain.Edge, error) {
			return domain.NewEdgeWithData(domain.EdgePause, func() any {
				return map[string]any{"formSchema": map[string]any{"type": "object"}}
			}), nil
		},
	}))
	in := New(reg)

	rc, _ := newRunContext(state.New(nil))
	var statuses []domain.ExecutionStatus
	rc.SetStatus = func(s domain.ExecutionStatus) error {
		statuses = append(statuses, s)
		return nil
	}

	type result struct {
		edge domain.Edge
		err  error
	}
	done := make(chan result, 1)
	go func() {
		edge, err := in.Run(context.Background(), rc, domain.NodeInvocation{ID: "ask", Name: "approval", Config: map[string]any{}})
		done <- result{edge, err}
	}()

	require.Eventually(t, func() bool { return rc.Pause.Has("ask") }, time.Second, time.Millisecond)
	require.NoError(t, rc.Pause.Resume("ask", map[string]any{"approved": true}))

	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, "submitted", r.edge.Name)
	assert.Equal(t, []domain.ExecutionStatus{domain.StatusPaused, domain.StatusRunning}, statuses)
}

func TestInterpreter_WhileLoop(t *testing.T) {
	reg := registry.New()
	evaluator := flowcond.NewEvaluator()
	require.NoError(t, RegisterLoopControllers(reg, evaluator))
	require.NoError(t, reg.Register(domain.NodeDescriptor{
		Name: "increment",
		Execute: func(ctx context.Context, call domain.Executable) (domain.Edge, error) {
			err := call.State().Update("$.i", func(current any) (any, error) {
				n, _ := current.(float64)
				return n + 1, nil
			})
			return domain.NewEdge(domain.EdgeNext), err
		},
	}))
	in := New(reg)

	st := state.New(map[string]any{"i": float64(0)})
	rc, _ := newRunContext(st)
	loop := domain.Loop{
		Controller: domain.NodeInvocation{ID: "w", Name: "whileCondition", Config: map[string]any{"condition": "state.i < 3"}},
		Body:       domain.NodeInvocation{ID: "inc", Name: "increment", Config: map[string]any{}},
	}
	edge, err := in.Run(context.Background(), rc, loop)
	require.NoError(t, err)
	assert.Equal(t, domain.EdgeExit, edge.Name)

	v, err := st.Get("$.i")
	require.NoError(t, err)
	assert.Equal(t, float64(3), v)
}

func TestInterpreter_ForEachLoopBindsItemAndIndex(t *testing.T) {
	reg := registry.New()
	require.NoError(t, RegisterLoopControllers(reg, flowcond.NewEvaluator()))

	var seen []string
	require.NoError(t, reg.Register(domain.NodeDescriptor{
		Name: "collect",
		Execute: func(ctx context.Context, call domain.Executable) (domain.Edge, error) {
			item, _ := call.Bindings()[0]["item"].(string)
			idx, _ := call.Bindings()[0]["itemIndex"].(int)
			seen = append(seen, item)
			assert.Equal(t, len(seen)-1, idx)
			return domain.NewEdge(domain.EdgeNext), nil
		},
	}))
	in := New(reg)

	rc, _ := newRunContext(state.New(nil))
	loop := domain.Loop{
		Controller: domain.NodeInvocation{ID: "fe", Name: "forEach", Config: map[string]any{
			"items": []any{"a", "b", "c"},
			"as":    "item",
		}},
		Body: domain.NodeInvocation{ID: "collect", Name: "collect", Config: map[string]any{}},
	}
	edge, err := in.Run(context.Background(), rc, loop)
	require.NoError(t, err)
	assert.Equal(t, domain.EdgeExit, edge.Name)
	assert.Equal(t, []string{"a", "b", "c"}, seen)
	assert.Empty(t, rc.Bindings)
}

func TestInterpreter_RetryRecoversFromTransientFailure(t *testing.T) {
	reg := registry.New()
	var calls int
	require.NoError(t, reg.Register(domain.NodeDescriptor{
		Name: "flaky",
		Execute: func(ctx context.Context, call domain.Executable) (domain.Edge, error) {
			calls++
			if calls < 3 {
				return domain.Edge{}, assertError{}
			}
			return domain.NewEdge(domain.EdgeNext), nil
		},
	}))
	in := New(reg)

	rc, _ := newRunContext(state.New(nil))
	edge, err := in.Run(context.Background(), rc, domain.NodeInvocation{
		ID: "f", Name: "flaky", Config: map[string]any{
			"retry": map[string]any{"maxAttempts": 3, "initialDelayMs": 1, "jitter": false},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.EdgeNext, edge.Name)
	assert.Equal(t, 3, calls)
}

func TestInterpreter_RetryExhaustedStillFails(t *testing.T) {
	reg := registry.New()
	var calls int
	require.NoError(t, reg.Register(domain.NodeDescriptor{
		Name: "alwaysFails",
		Execute: func(ctx context.Context, call domain.Executable) (domain.Edge, error) {
			calls++
			return domain.Edge{}, assertError{}
		},
	}))
	in := New(reg)

	rc, _ := newRunContext(state.New(nil))
	_, err := in.Run(context.Background(), rc, domain.NodeInvocation{
		ID: "f", Name: "alwaysFails", Config: map[string]any{
			"retry": map[string]any{"maxAttempts": 2, "initialDelayMs": 1, "jitter": false},
		},
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeNodeFailed))
	assert.Equal(t, 3, calls) // initial try + 2 retries
}

func TestInterpreter_CancelDuringRetryBackoffYieldsCancelled(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(domain.NodeDescriptor{
		Name: "alwaysFails",
		Execute: func(ctx context.Context, call domain.Executable) (domain.Edge, error) {
			return domain.Edge{}, assertError{}
		},
	}))
	in := New(reg)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	rc, _ := newRunContext(state.New(nil))
	_, err := in.Run(ctx, rc, domain.NodeInvocation{
		ID: "f", Name: "alwaysFails", Config: map[string]any{
			"retry": map[string]any{"maxAttempts": 5, "initialDelayMs": 50, "jitter": false},
		},
	})

	// withRetry's ctx.Done() case surfaces as a plain ctx.Err(); runNode
	// must fold that into domain.Cancelled() rather than wrapping it as
	// a node failure, so a cancel landing mid-backoff ends the
	// execution cancelled, not failed.
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeCancelled))
	assert.False(t, domain.IsCode(err, domain.CodeNodeFailed))
}
