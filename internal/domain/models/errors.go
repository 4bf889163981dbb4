package models

import (
	"errors"
	"fmt"
)

var (
	ErrNoInstruments = errors.New("no instruments resolvable")
	ErrAgentTimeout  = errors.New("agent timed out")
	ErrChannelClosed = errors.New("stream channel closed")
	ErrNotFound      = errors.New("not found")
)

// TransportFailure is a streaming disconnect or a failed network call.
type TransportFailure struct {
	Op  string
	Err error
}

func (e *TransportFailure) Error() string { return fmt.Sprintf("transport %s: %v", e.Op, e.Err) }
func (e *TransportFailure) Unwrap() error { return e.Err }

// AgentFailure is a panic, error or timeout inside one agent.
type AgentFailure struct {
	Agent  string
	Symbol string
	Err    error
}

func (e *AgentFailure) Error() string {
	return fmt.Sprintf("agent %s on %s: %v", e.Agent, e.Symbol, e.Err)
}
func (e *AgentFailure) Unwrap() error { return e.Err }

// Kind classifies the failure for metrics.
func (e *AgentFailure) Kind() string {
	if errors.Is(e.Err, ErrAgentTimeout) {
		return "timeout"
	}
	var p *PanicError
	if errors.As(e.Err, &p) {
		return "panic"
	}
	return "error"
}

// PanicError carries a recovered panic value.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// InstrumentCycleFailure means a symbol was skipped for one cycle.
type InstrumentCycleFailure struct {
	Symbol string
	Stage  string
	Err    error
}

func (e *InstrumentCycleFailure) Error() string {
	return fmt.Sprintf("instrument %s failed at %s: %v", e.Symbol, e.Stage, e.Err)
}
func (e *InstrumentCycleFailure) Unwrap() error { return e.Err }

// PersistenceFailure is a feedback store read or write error.
type PersistenceFailure struct {
	Store string
	Op    string
	Err   error
}

func (e *PersistenceFailure) Error() string {
	return fmt.Sprintf("persistence %s %s: %v", e.Store, e.Op, e.Err)
}
func (e *PersistenceFailure) Unwrap() error { return e.Err }

// FatalConfigurationError stops the loop from starting.
type FatalConfigurationError struct {
	Reason string
	Err    error
}

func (e *FatalConfigurationError) Error() string {
	if e.Err == nil {
		return "fatal configuration: " + e.Reason
	}
	return fmt.Sprintf("fatal configuration: %s: %v", e.Reason, e.Err)
}
func (e *FatalConfigurationError) Unwrap() error { return e.Err }
