package model

import (
	"errors"
	"fmt"
)

// FailureKind tags the recoverable failure classes of a detection run.
// Every failure maps to a specific, actionable user message; none of them
// corrupts state used by later runs.
type FailureKind int

const (
	FailureUnknown FailureKind = iota
	// FailureEmptyInput: zero rasters or features matched the filters.
	FailureEmptyInput
	// FailureDegenerateStatistics: too few samples for variance, or an
	// AOI with no unmasked pixels.
	FailureDegenerateStatistics
	// FailureInvalidGeometry: AOI missing, non-polygonal or self-intersecting.
	FailureInvalidGeometry
	// FailureBackendLimit: a reduction would exceed the pixel/feature budget.
	FailureBackendLimit
)

func (k FailureKind) String() string {
	switch k {
	case FailureEmptyInput:
		return "empty_input"
	case FailureDegenerateStatistics:
		return "degenerate_statistics"
	case FailureInvalidGeometry:
		return "invalid_geometry"
	case FailureBackendLimit:
		return "backend_limit_exceeded"
	default:
		return "unknown"
	}
}

type DetectionError struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *DetectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DetectionError) Unwrap() error { return e.Err }

// Errf builds a tagged detection error.
func Errf(kind FailureKind, format string, args ...any) error {
	return &DetectionError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapErr tags an underlying error with a failure kind.
func WrapErr(kind FailureKind, err error, message string) error {
	return &DetectionError{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the failure kind from an error chain, or FailureUnknown.
func KindOf(err error) FailureKind {
	var de *DetectionError
	if errors.As(err, &de) {
		return de.Kind
	}
	return FailureUnknown
}
