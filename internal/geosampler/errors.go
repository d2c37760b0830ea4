package geosampler

import (
	"errors"
	"fmt"

	"github.com/hirelocal/dispatch/internal/pkg/models"
)

// FailureKind classifies why a position source failed.
type FailureKind string

const (
	// FailureDenied means the user refused location access. Terminal for the
	// whole attempt: no fallback source may run.
	FailureDenied FailureKind = "DENIED"
	// FailureUnavailable means the source could not produce a usable fix.
	FailureUnavailable FailureKind = "UNAVAILABLE"
	// FailureTimeout means the source did not answer within its bounded wait.
	FailureTimeout FailureKind = "TIMEOUT"
)

// SampleError is the typed failure returned by position sources and by the
// sampler once every fallback is exhausted.
type SampleError struct {
	Kind   FailureKind
	Source models.PositionSource
	Err    error
}

func (e *SampleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("position source %s failed (%s): %v", e.Source, e.Kind, e.Err)
	}
	return fmt.Sprintf("position source %s failed (%s)", e.Source, e.Kind)
}

func (e *SampleError) Unwrap() error {
	return e.Err
}

// NewSampleError creates a typed sample failure.
func NewSampleError(kind FailureKind, source models.PositionSource, err error) *SampleError {
	return &SampleError{Kind: kind, Source: source, Err: err}
}

// KindOf extracts the failure kind from an error, defaulting to UNAVAILABLE
// for untyped errors.
func KindOf(err error) FailureKind {
	var se *SampleError
	if errors.As(err, &se) {
		return se.Kind
	}
	return FailureUnavailable
}

// IsDenied reports whether the error is a permission denial.
func IsDenied(err error) bool {
	return KindOf(err) == FailureDenied
}
