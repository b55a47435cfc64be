package template

import (
	"testing"

	"github.com/flowscript-dev/flowscript/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_WholeTokenPreservesType(t *testing.T) {
	st := state.New(map[string]any{"count": float64(3)})
	r := &Resolver{State: st}

	v, err := r.Process("{{count}}")
	require.NoError(t, err)
	assert.Equal(t, float64(3), v)
}

func TestResolver_EmbeddedTokenFormatsAsString(t *testing.T) {
	st := state.New(map[string]any{"name": "ada"})
	r := &Resolver{State: st}

	v, err := r.Process("hello {{name}}!")
	require.NoError(t, err)
	assert.Equal(t, "hello ada!", v)
}

func TestResolver_BindingsTakePrecedenceOverState(t *testing.T) {
	st := state.New(map[string]any{"item": "from-state"})
	r := &Resolver{
		State:    st,
		Bindings: []map[string]any{{"item": "from-binding"}},
	}

	v, err := r.Process("{{item}}")
	require.NoError(t, err)
	assert.Equal(t, "from-binding", v)
}

func TestResolver_InnermostBindingWins(t *testing.T) {
	r := &Resolver{
		Bindings: []map[string]any{
			{"item": "inner"},
			{"item": "outer"},
		},
	}

	v, err := r.Process("{{item}}")
	require.NoError(t, err)
	assert.Equal(t, "inner", v)
}

func TestResolver_NestedPathThroughBinding(t *testing.T) {
	r := &Resolver{
		Bindings: []map[string]any{
			{"item": map[string]any{"tags": []any{"a", "b"}}},
		},
	}

	v, err := r.Process("{{item.tags[1]}}")
	require.NoError(t, err)
	assert.Equal(t, "b", v)
}

func TestResolver_StatePrefixIsStripped(t *testing.T) {
	st := state.New(map[string]any{"user": map[string]any{"name": "ada"}})
	r := &Resolver{State: st}

	v, err := r.Process("{{state.user.name}}")
	require.NoError(t, err)
	assert.Equal(t, "ada", v)
}

func TestResolver_MissLeavesTokenUnchangedAndEmitsMiss(t *testing.T) {
	var missed []string
	r := &Resolver{OnMiss: func(path string) { missed = append(missed, path) }}

	v, err := r.Process("{{nothing.here}}")
	require.NoError(t, err)
	assert.Equal(t, "{{nothing.here}}", v)
	assert.Equal(t, []string{"nothing.here"}, missed)
}

func TestResolver_RecursesThroughMapsAndSlices(t *testing.T) {
	st := state.New(map[string]any{"x": "resolved"})
	r := &Resolver{State: st}

	cfg := map[string]any{
		"url":     "https://example.com/{{x}}",
		"headers": map[string]any{"X-Val": "{{x}}"},
		"list":    []any{"{{x}}", "plain"},
		"count":   5,
	}
	out, err := r.ProcessConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/resolved", out["url"])
	assert.Equal(t, "resolved", out["headers"].(map[string]any)["X-Val"])
	assert.Equal(t, []any{"resolved", "plain"}, out["list"])
	assert.Equal(t, 5, out["count"])
}
