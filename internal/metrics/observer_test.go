package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowscript-dev/flowscript/internal/domain"
)

func TestObserver_ConsumeRecordsNodeAndWorkflowMetrics(t *testing.T) {
	collector := NewCollector()
	observer := NewObserver(collector)

	t0 := time.Now()
	events := make(chan domain.Event, 8)
	events <- domain.Event{Kind: domain.EventExecutionStarted, At: t0}
	events <- domain.Event{Kind: domain.EventNodeEntered, NodeID: "n1", NodeName: "delay", At: t0}
	events <- domain.Event{Kind: domain.EventNodeExited, NodeID: "n1", NodeName: "delay", Edge: domain.EdgeNext, At: t0.Add(10 * time.Millisecond)}
	events <- domain.Event{Kind: domain.EventExecutionCompleted, At: t0.Add(20 * time.Millisecond)}
	close(events)

	observer.Consume("wf-1", events)

	wf, ok := collector.Workflow("wf-1")
	require.True(t, ok)
	assert.Equal(t, 1, wf.SuccessCount)
	assert.Equal(t, 20*time.Millisecond, wf.TotalDuration)

	node, ok := collector.Node("delay")
	require.True(t, ok)
	assert.Equal(t, 1, node.SuccessCount)
	assert.Equal(t, 10*time.Millisecond, node.TotalDuration)
}

func TestObserver_ConsumeRecordsFailureOutcome(t *testing.T) {
	collector := NewCollector()
	observer := NewObserver(collector)

	t0 := time.Now()
	events := make(chan domain.Event, 4)
	events <- domain.Event{Kind: domain.EventExecutionStarted, At: t0}
	events <- domain.Event{Kind: domain.EventExecutionFailed, At: t0.Add(5 * time.Millisecond)}
	close(events)

	observer.Consume("wf-2", events)

	wf, ok := collector.Workflow("wf-2")
	require.True(t, ok)
	assert.Equal(t, 1, wf.FailureCount)
}
