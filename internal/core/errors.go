package core

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyText is returned when a sample's text is empty after trimming.
	// It is the only error surfaced to callers of the scoring service.
	ErrEmptyText = errors.New("content text is empty")

	// ErrNoPredictors is reported by the gateway when zero predictors
	// produced a usable output. The service converts it into the
	// conservative fallback verdict rather than propagating it.
	ErrNoPredictors = errors.New("no predictors responded")
)

// PredictorErrorKind classifies why a single predictor invocation failed.
type PredictorErrorKind string

const (
	PredictorTimeout         PredictorErrorKind = "timeout"
	PredictorUnavailable     PredictorErrorKind = "unavailable"
	PredictorInvalidResponse PredictorErrorKind = "invalid_response"
)

// PredictorError wraps a single predictor's failure. It is isolated at
// the gateway boundary and never reaches the caller.
type PredictorError struct {
	PredictorID string
	Kind        PredictorErrorKind
	Err         error
}

func (e *PredictorError) Error() string {
	return fmt.Sprintf("predictor %s: %s: %v", e.PredictorID, e.Kind, e.Err)
}

func (e *PredictorError) Unwrap() error {
	return e.Err
}
