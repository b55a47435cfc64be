package streamws

import (
	"time"

	"github.com/flowscript-dev/flowscript/internal/domain"
)

// wireEvent is the JSON envelope an Event is sent as; it exists so the
// wire format is camelCase and stable independent of domain.Event's
// Go field names.
type wireEvent struct {
	Kind        domain.EventKind `json:"kind"`
	ExecutionID string           `json:"executionId"`
	WorkflowID  string           `json:"workflowId,omitempty"`
	At          time.Time        `json:"at"`

	NodeID   string `json:"nodeId,omitempty"`
	NodeName string `json:"nodeName,omitempty"`
	Edge     string `json:"edge,omitempty"`

	Path     string `json:"path,omitempty"`
	NewValue any    `json:"newValue,omitempty"`

	FormSchema any            `json:"formSchema,omitempty"`
	FinalState map[string]any `json:"finalState,omitempty"`

	ErrorKind string `json:"errorKind,omitempty"`
	Message   string `json:"message,omitempty"`

	SubscriberID string `json:"subscriberId,omitempty"`
}

func toWireEvent(e domain.Event) wireEvent {
	return wireEvent{
		Kind: e.Kind, ExecutionID: e.ExecutionID, WorkflowID: e.WorkflowID, At: e.At,
		NodeID: e.NodeID, NodeName: e.NodeName, Edge: e.Edge,
		Path: e.Path, NewValue: e.NewValue,
		FormSchema: e.FormSchema, FinalState: e.FinalState,
		ErrorKind: e.ErrorKind, Message: e.Message,
		SubscriberID: e.SubscriberID,
	}
}

// command is a client -> server control frame. Only "cancel" is
// currently handled; anything else is rejected (spec §6: cancellation
// is reachable from the streaming surface, not just the management API).
type command struct {
	Action string `json:"action"`
}

type response struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
