package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies run-level failures surfaced to callers.
type ErrorKind string

const (
	KindRetrievalUnavailable  ErrorKind = "RetrievalUnavailable"
	KindJudgmentUnavailable   ErrorKind = "JudgmentUnavailable"
	KindMalformedVerdict      ErrorKind = "MalformedVerdict"
	KindGenerationUnavailable ErrorKind = "GenerationUnavailable"
	KindStepBudgetExceeded    ErrorKind = "StepBudgetExceeded"
	KindUnknown               ErrorKind = "Unknown"
)

// Sentinel errors wrapped by the adapters. The reflection core matches on
// these with errors.Is and never inspects adapter error strings.
var (
	ErrRetrievalUnavailable  = errors.New("retrieval service unavailable")
	ErrJudgmentUnavailable   = errors.New("judgment service unavailable")
	ErrMalformedVerdict      = errors.New("malformed verdict")
	ErrGenerationUnavailable = errors.New("generation service unavailable")
	ErrStepBudgetExceeded    = errors.New("step budget exceeded")
)

// KindOf maps an adapter error onto its taxonomy kind.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrRetrievalUnavailable):
		return KindRetrievalUnavailable
	case errors.Is(err, ErrMalformedVerdict):
		return KindMalformedVerdict
	case errors.Is(err, ErrJudgmentUnavailable):
		return KindJudgmentUnavailable
	case errors.Is(err, ErrGenerationUnavailable):
		return KindGenerationUnavailable
	case errors.Is(err, ErrStepBudgetExceeded):
		return KindStepBudgetExceeded
	}
	return KindUnknown
}

// NodeError is the structured failure descriptor for a run that reached the
// failed terminal state. Node names the graph node whose execution failed.
type NodeError struct {
	Node string
	Kind ErrorKind
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s failed (%s): %v", e.Node, e.Kind, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// NewNodeError classifies err and attaches the originating node name.
func NewNodeError(node string, err error) *NodeError {
	return &NodeError{Node: node, Kind: KindOf(err), Err: err}
}
