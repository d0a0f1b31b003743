// Package kernelerr defines the kernel's structured error taxonomy.
//
// A single Error type carries a Kind plus whatever structured fields
// that kind needs, rather than one Go type per kind — callers classify
// with errors.As and switch on Kind.
package kernelerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the error taxonomy.
type Kind int

const (
	Unknown Kind = iota
	AgentNotFound
	AgentAlreadyExists
	CapabilityDenied
	TaintViolation
	QuotaExceeded
	InvalidState
	MaxIterationsExceeded
	LlmDriver
	Network
	Sandbox
	Config
	ManifestParse
	AuthDenied
	ShuttingDown
	Internal
)

func (k Kind) String() string {
	switch k {
	case AgentNotFound:
		return "AgentNotFound"
	case AgentAlreadyExists:
		return "AgentAlreadyExists"
	case CapabilityDenied:
		return "CapabilityDenied"
	case TaintViolation:
		return "TaintViolation"
	case QuotaExceeded:
		return "QuotaExceeded"
	case InvalidState:
		return "InvalidState"
	case MaxIterationsExceeded:
		return "MaxIterationsExceeded"
	case LlmDriver:
		return "LlmDriver"
	case Network:
		return "Network"
	case Sandbox:
		return "Sandbox"
	case Config:
		return "Config"
	case ManifestParse:
		return "ManifestParse"
	case AuthDenied:
		return "AuthDenied"
	case ShuttingDown:
		return "ShuttingDown"
	case Internal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is the kernel's single structured error type.
type Error struct {
	Kind    Kind
	Message string

	// CapabilityDenied
	Capability string

	// TaintViolation
	Label  string
	Sink   string
	Source string

	// QuotaExceeded
	Spent uint64
	Limit uint64

	// InvalidState
	Current   string
	Operation string

	// MaxIterationsExceeded
	Attempts uint32
	Partial  string

	// Retryable is meaningful for LlmDriver/Network: whether the
	// originating failure should be retried by the caller.
	Retryable bool

	Err error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error with the same Kind, so callers
// can do errors.Is(err, kernelerr.New(kernelerr.AgentNotFound, "")).
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return te.Kind == e.Kind
	}
	return false
}

// New builds a plain Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind wrapping err.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *Error; otherwise returns Unknown, false.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return Unknown, false
}
