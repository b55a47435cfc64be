package domain

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code from spec §7's taxonomy.
type Code string

const (
	CodeUnknownWorkflow  Code = "UNKNOWN_WORKFLOW"
	CodeUnknownExecution Code = "UNKNOWN_EXECUTION"
	CodeUnknownNode      Code = "UNKNOWN_NODE"
	CodeConfigInvalid    Code = "CONFIG_INVALID"
	CodeInvalidPath      Code = "INVALID_PATH"
	CodeTypeMismatch     Code = "TYPE_MISMATCH"
	CodeNodeFailed       Code = "NODE_FAILED"
	CodeUnroutedEdge     Code = "UNROUTED_EDGE"
	CodeNotPaused        Code = "NOT_PAUSED"
	CodeUnknownPause     Code = "UNKNOWN_PAUSE"
	CodeAlreadyResumed   Code = "ALREADY_RESUMED"
	CodeCancelled        Code = "CANCELLED"
	CodeInvalidInput     Code = "INVALID_INPUT"
	CodeInvalidState     Code = "INVALID_STATE"
)

// Error is the single error type carrying every code in the taxonomy.
// It mirrors the teacher's DomainError (internal/domain/types.go):
// a machine Code, a human Message, and an optional wrapped Cause.
type Error struct {
	Code    Code
	Message string
	Cause   error

	// Path is set for CodeConfigInvalid/CodeInvalidPath errors.
	Path string
	// Edge is set for CodeUnroutedEdge.
	Edge string
	// NodeID is set when the error is attributable to one node.
	NodeID string
}

func (e *Error) Error() string {
	switch {
	case e.Path != "" && e.NodeID != "":
		return fmt.Sprintf("%s: %s (node=%s path=%s)", e.Code, e.Message, e.NodeID, e.Path)
	case e.Path != "":
		return fmt.Sprintf("%s: %s (path=%s)", e.Code, e.Message, e.Path)
	case e.Edge != "":
		return fmt.Sprintf("%s: %s (edge=%s)", e.Code, e.Message, e.Edge)
	case e.NodeID != "":
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.NodeID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, &Error{Code: CodeX}) match on code alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func WrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// UnknownWorkflow builds a CodeUnknownWorkflow error.
func UnknownWorkflow(id string) *Error {
	return NewError(CodeUnknownWorkflow, fmt.Sprintf("workflow %q not found", id))
}

// UnknownExecution builds a CodeUnknownExecution error.
func UnknownExecution(id string) *Error {
	return NewError(CodeUnknownExecution, fmt.Sprintf("execution %q not found", id))
}

// UnknownNode builds a CodeUnknownNode error.
func UnknownNode(name string) *Error {
	return NewError(CodeUnknownNode, fmt.Sprintf("node %q is not registered", name))
}

// ConfigInvalid builds a CodeConfigInvalid error for the given config path.
func ConfigInvalid(nodeID, path, message string) *Error {
	return &Error{Code: CodeConfigInvalid, Message: message, Path: path, NodeID: nodeID}
}

// InvalidPath builds a CodeInvalidPath error.
func InvalidPath(path, message string) *Error {
	return &Error{Code: CodeInvalidPath, Message: message, Path: path}
}

// TypeMismatch builds a CodeTypeMismatch error.
func TypeMismatch(path, message string) *Error {
	return &Error{Code: CodeTypeMismatch, Message: message, Path: path}
}

// NodeFailed wraps the error returned by a node's Execute per spec §7.
func NodeFailed(nodeID string, cause error) *Error {
	return &Error{Code: CodeNodeFailed, Message: "node execution failed", NodeID: nodeID, Cause: cause}
}

// UnroutedEdge builds a CodeUnroutedEdge error.
func UnroutedEdge(edge string) *Error {
	return &Error{Code: CodeUnroutedEdge, Message: "edge has no matching branch entry and no catch-all", Edge: edge}
}

// NotPaused builds a CodeNotPaused error.
func NotPaused(executionID string) *Error {
	return NewError(CodeNotPaused, fmt.Sprintf("execution %q is not paused", executionID))
}

// UnknownPause builds a CodeUnknownPause error.
func UnknownPause(executionID, nodeID string) *Error {
	return &Error{Code: CodeUnknownPause, Message: fmt.Sprintf("no pending pause for execution %q", executionID), NodeID: nodeID}
}

// AlreadyResumed builds a CodeAlreadyResumed error.
func AlreadyResumed(executionID, nodeID string) *Error {
	return &Error{Code: CodeAlreadyResumed, Message: fmt.Sprintf("pause for execution %q already resumed", executionID), NodeID: nodeID}
}

// Cancelled builds the terminal, non-error closure signal of spec §7.
// It still implements error so it can flow through normal returns, but
// callers should treat it as a closure rather than a failure.
func Cancelled() *Error {
	return NewError(CodeCancelled, "execution cancelled")
}

// IsCode reports whether err is, or wraps, a *Error with the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}
