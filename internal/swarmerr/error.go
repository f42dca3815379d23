// Package swarmerr provides the component-scoped error type shared by every
// package in this module. It generalizes the pattern the teacher repeats
// per-package (team.TeamError, tools.ToolRegistryError): a struct naming the
// component and operation that failed, a human message, and an optionally
// wrapped cause.
package swarmerr

import (
	"fmt"
	"time"
)

// Kind tags an Error with one entry from the spec's error taxonomy so
// callers can type-switch without string matching.
type Kind string

const (
	KindConfiguration       Kind = "configuration"
	KindCircularDependency  Kind = "circular_dependency"
	KindAgentNotFound       Kind = "agent_not_found"
	KindToolExecution       Kind = "tool_execution"
	KindLLM                 Kind = "llm"
	KindMCP                 Kind = "mcp"
	KindMCPTimeout          Kind = "mcp_timeout"
	KindMCPTransport        Kind = "mcp_transport"
	KindTurnTimeout         Kind = "turn_timeout"
	KindExecutionTimeout    Kind = "execution_timeout"
	KindState               Kind = "state"
)

// Error is the component-scoped error type used throughout this module.
type Error struct {
	Kind      Kind
	Component string
	Operation string
	Message   string
	Err       error
	Timestamp time.Time
}

// New builds an Error with the current time as its Timestamp.
func New(kind Kind, component, operation, message string, err error) *Error {
	return &Error{
		Kind:      kind,
		Component: component,
		Operation: operation,
		Message:   message,
		Err:       err,
		Timestamp: time.Now(),
	}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Component, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Component, e.Operation, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, swarmerr.KindX) style matching via a sentinel
// wrapper - callers typically use errors.As(&*Error) and inspect Kind
// directly, but this keeps errors.Is usable against bare Kind values when
// built with Sentinel.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	if te.Kind == "" {
		return false
	}
	return e.Kind == te.Kind
}

// Sentinel returns a bare *Error carrying only a Kind, usable as a target
// for errors.Is(err, swarmerr.Sentinel(swarmerr.KindAgentNotFound)).
func Sentinel(kind Kind) *Error {
	return &Error{Kind: kind}
}
