package flowcond

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluator_BareIdentifierTruthiness(t *testing.T) {
	e := NewEvaluator()

	ok, err := e.Evaluate("done", map[string]any{"done": true})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Evaluate("done", map[string]any{"done": false})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluator_Predicate(t *testing.T) {
	e := NewEvaluator()

	ok, err := e.Evaluate("i < limit", map[string]any{"i": 2, "limit": 5})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Evaluate("i < limit", map[string]any{"i": 9, "limit": 5})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluator_UndefinedVariableIsGracefulFalse(t *testing.T) {
	e := NewEvaluator()

	ok, err := e.Evaluate("notYetBound", map[string]any{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluator_NonBooleanResultErrors(t *testing.T) {
	e := NewEvaluator()

	_, err := e.Evaluate("1 + 1", map[string]any{})
	require.Error(t, err)
}

func TestEvaluator_CompiledProgramIsCached(t *testing.T) {
	e := NewEvaluator()

	_, err := e.Evaluate("x > 0", map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Len(t, e.compiled, 1)

	_, err = e.Evaluate("x > 0", map[string]any{"x": 2})
	require.NoError(t, err)
	assert.Len(t, e.compiled, 1)
}
