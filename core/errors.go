package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrEmptyRequest is returned when the request text is blank.
	ErrEmptyRequest = errors.New("request text is empty")
	// ErrMalformedDecision indicates supervisor output that could not be coerced into the menu.
	ErrMalformedDecision = errors.New("malformed routing decision")
	// ErrUnknownRoute indicates a routing token naming no registered role.
	ErrUnknownRoute = errors.New("unknown route")
	// ErrNoWorkerReply indicates the run finished before any worker replied.
	ErrNoWorkerReply = errors.New("no worker reply to return")
	// ErrStepLimitExceeded indicates the run hit its configured step bound.
	ErrStepLimitExceeded = errors.New("step limit exceeded")
	// ErrBusy indicates the engine has no free run slot.
	ErrBusy = errors.New("too many concurrent runs")
)

// Kind classifies failures for status mapping.
type Kind int

const (
	// KindInternal is an unclassified failure.
	KindInternal Kind = iota
	// KindInvalidInput is a malformed request rejected before orchestration.
	KindInvalidInput
	// KindCapability is a failure of the reasoning capability (error,
	// timeout, output outside the menu).
	KindCapability
	// KindInvariant is a defect in graph or registry construction.
	KindInvariant
	// KindStepLimit is a run exceeding its configured step bound.
	KindStepLimit
	// KindUnavailable is a run rejected because the engine is saturated.
	KindUnavailable
)

// String returns a stable label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindCapability:
		return "capability"
	case KindInvariant:
		return "invariant"
	case KindStepLimit:
		return "step_limit"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// StatusCode maps the kind to an HTTP-style status code.
func (k Kind) StatusCode() int {
	switch k {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure raised at a node or at the driver boundary.
type Error struct {
	Kind Kind
	Node string
	Err  error
}

// NewError constructs a classified error.
func NewError(kind Kind, node string, err error) *Error {
	return &Error{Kind: kind, Node: node, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("%s error at node %s: %v", e.Kind, e.Node, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error { return e.Err }

// KindOf classifies any error. Unclassified deadline errors count as
// capability failures because every blocking call in a run targets the
// reasoning capability.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}

	switch {
	case errors.Is(err, ErrEmptyRequest):
		return KindInvalidInput
	case errors.Is(err, ErrStepLimitExceeded):
		return KindStepLimit
	case errors.Is(err, ErrBusy):
		return KindUnavailable
	case errors.Is(err, ErrUnknownRoute), errors.Is(err, ErrNoWorkerReply):
		return KindInvariant
	case errors.Is(err, ErrMalformedDecision), errors.Is(err, context.DeadlineExceeded):
		return KindCapability
	default:
		return KindInternal
	}
}

// StatusCode returns the status code for err, or 200 for nil.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return KindOf(err).StatusCode()
}
