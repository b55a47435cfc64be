package metrics

import (
	"time"

	"github.com/flowscript-dev/flowscript/internal/domain"
)

// Observer feeds a Collector from one execution's Event Bus stream,
// grounded on the teacher's ObserverManager
// (internal/infrastructure/monitoring/observer.go) collapsed onto
// FlowScript's single Event envelope: instead of one callback method
// per event kind, Consume switches on Event.Kind and derives durations
// from the entered/exited and started/finished timestamp pairs the
// interpreter already stamps onto every event.
type Observer struct {
	collector *Collector
}

// NewObserver wires a Collector to drain event streams into.
func NewObserver(collector *Collector) *Observer {
	return &Observer{collector: collector}
}

// Consume reads events for one execution of workflowID until the
// channel closes (execution retired or subscriber dropped), recording
// node and workflow metrics as lifecycle events arrive. It blocks, so
// callers run it in its own goroutine per subscription, the same
// pattern internal/transport/streamws uses for its write pump.
func (o *Observer) Consume(workflowID string, events <-chan domain.Event) {
	nodeEntered := make(map[string]time.Time)
	var executionStarted time.Time

	for e := range events {
		switch e.Kind {
		case domain.EventExecutionStarted:
			executionStarted = e.At
		case domain.EventNodeEntered:
			nodeEntered[e.NodeID] = e.At
		case domain.EventNodeExited:
			if start, ok := nodeEntered[e.NodeID]; ok {
				o.collector.RecordNode(e.NodeName, e.At.Sub(start), e.Edge != domain.EdgeError)
				delete(nodeEntered, e.NodeID)
			}
		case domain.EventExecutionCompleted:
			o.collector.RecordExecution(workflowID, durationSince(executionStarted, e.At), OutcomeSuccess)
		case domain.EventExecutionFailed:
			o.collector.RecordExecution(workflowID, durationSince(executionStarted, e.At), OutcomeFailure)
		case domain.EventExecutionCancelled:
			o.collector.RecordExecution(workflowID, durationSince(executionStarted, e.At), OutcomeCancelled)
		}
	}
}

func durationSince(start, end time.Time) time.Duration {
	if start.IsZero() {
		return 0
	}
	return end.Sub(start)
}
