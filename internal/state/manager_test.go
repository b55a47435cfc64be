package state

import (
	"sync"
	"testing"

	"github.com/flowscript-dev/flowscript/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_GetSetRoundTrip(t *testing.T) {
	m := New(map[string]any{"user": map[string]any{"name": "ada"}})

	v, err := m.Get("$.user.name")
	require.NoError(t, err)
	assert.Equal(t, "ada", v)

	require.NoError(t, m.Set("$.user.age", float64(30)))
	v, err = m.Get("$.user.age")
	require.NoError(t, err)
	assert.Equal(t, float64(30), v)
}

func TestManager_GetMissingReturnsUndefined(t *testing.T) {
	m := New(map[string]any{"user": map[string]any{"name": "ada"}})

	v, err := m.Get("$.user.email")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = m.Get("$.missing.deep.path")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestManager_SetCreatesIntermediateObjects(t *testing.T) {
	m := New(nil)

	require.NoError(t, m.Set("$.a.b.c", "leaf"))
	v, err := m.Get("$.a.b.c")
	require.NoError(t, err)
	assert.Equal(t, "leaf", v)
}

func TestManager_ArrayAppendAndIndexInPlace(t *testing.T) {
	m := New(map[string]any{"items": []any{}})

	require.NoError(t, m.Set("$.items[0]", "first"))
	require.NoError(t, m.Set("$.items[1]", "second"))
	require.NoError(t, m.Set("$.items[0]", "replaced"))

	v, err := m.Get("$.items")
	require.NoError(t, err)
	assert.Equal(t, []any{"replaced", "second"}, v)
}

func TestManager_ArrayIndexGapIsInvalidPath(t *testing.T) {
	m := New(map[string]any{"items": []any{}})

	err := m.Set("$.items[2]", "oops")
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeInvalidPath))
}

func TestManager_TypeMismatchOnFieldThroughScalar(t *testing.T) {
	m := New(map[string]any{"count": 3})

	_, err := m.Get("$.count.nested")
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeTypeMismatch))

	err = m.Set("$.count.nested", 1)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeTypeMismatch))
}

func TestManager_MalformedPathIsInvalidPath(t *testing.T) {
	m := New(nil)

	_, err := m.Get("user.name")
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeInvalidPath))

	_, err = m.Get("$.items[*]")
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeInvalidPath))
}

func TestManager_UpdateIsAtomicReadModifyWrite(t *testing.T) {
	m := New(map[string]any{"counter": float64(0)})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Update("$.counter", func(current any) (any, error) {
				n, _ := current.(float64)
				return n + 1, nil
			})
		}()
	}
	wg.Wait()

	v, err := m.Get("$.counter")
	require.NoError(t, err)
	assert.Equal(t, float64(50), v)
}

func TestManager_SubscribeFiresAfterWriteVisible(t *testing.T) {
	m := New(nil)

	var gotPath string
	var gotValue any
	var visibleDuringCallback any
	unsubscribe := m.Subscribe(func(path string, newValue any) {
		gotPath = path
		gotValue = newValue
		visibleDuringCallback, _ = m.Get(path)
	})
	defer unsubscribe()

	require.NoError(t, m.Set("$.flag", true))
	assert.Equal(t, "$.flag", gotPath)
	assert.Equal(t, true, gotValue)
	assert.Equal(t, true, visibleDuringCallback)
}

func TestManager_UnsubscribeStopsDelivery(t *testing.T) {
	m := New(nil)

	calls := 0
	unsubscribe := m.Subscribe(func(string, any) { calls++ })
	require.NoError(t, m.Set("$.a", 1))
	unsubscribe()
	require.NoError(t, m.Set("$.b", 2))

	assert.Equal(t, 1, calls)
}

func TestManager_SnapshotIsADeepCopy(t *testing.T) {
	m := New(map[string]any{"nested": map[string]any{"n": float64(1)}})

	snap := m.Snapshot()
	snap["nested"].(map[string]any)["n"] = float64(999)

	v, err := m.Get("$.nested.n")
	require.NoError(t, err)
	assert.Equal(t, float64(1), v)
}
