package nodebuiltin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	flowcontext "github.com/flowscript-dev/flowscript/internal/context"
	"github.com/flowscript-dev/flowscript/internal/domain"
	"github.com/flowscript-dev/flowscript/internal/state"
)

func TestHumanApproval_ReturnsPauseWithDefaultSchema(t *testing.T) {
	node := HumanApproval()
	assert.True(t, node.Pausing)
	assert.Equal(t, "submitted", node.ResumeEdge)

	frame := flowcontext.New("ask", map[string]any{"prompt": "approve?"}, state.New(nil), nil, nil)
	edge, err := node.Execute(context.Background(), frame)
	require.NoError(t, err)
	assert.Equal(t, domain.EdgePause, edge.Name)

	data, ok := edge.Data().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "approve?", data["prompt"])
	assert.NotNil(t, data["formSchema"])
}

func TestHumanApproval_HonorsCustomFormSchema(t *testing.T) {
	node := HumanApproval()
	schema := map[string]any{"type": "object", "properties": map[string]any{"reason": map[string]any{"type": "string"}}}
	frame := flowcontext.New("ask", map[string]any{"formSchema": schema}, state.New(nil), nil, nil)

	edge, err := node.Execute(context.Background(), frame)
	require.NoError(t, err)
	data := edge.Data().(map[string]any)
	assert.Equal(t, schema, data["formSchema"])
}
