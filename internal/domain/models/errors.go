package models

import (
	"context"
	"errors"
)

var (
	ErrInsufficientData   = errors.New("insufficient data")
	ErrNonFiniteData      = errors.New("non-finite feature values")
	ErrArtifactMissing    = errors.New("model artifact not found")
	ErrArtifactCorrupt    = errors.New("model artifact corrupt")
	ErrUpstreamFetch      = errors.New("market data unavailable")
	ErrTrainingFailed     = errors.New("training failed")
	ErrFeatureContract    = errors.New("feature order does not match model metadata")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTrainingInProgress = errors.New("training in progress")
	ErrStorage            = errors.New("model store failure")
)

// ErrorKind classifies per-symbol failures.
type ErrorKind string

const (
	KindNone             ErrorKind = ""
	KindInsufficientData ErrorKind = "insufficient_data"
	KindNonFiniteData    ErrorKind = "non_finite_data"
	KindArtifactMissing  ErrorKind = "artifact_missing"
	KindArtifactCorrupt  ErrorKind = "artifact_corrupt"
	KindUpstreamFetch    ErrorKind = "upstream_fetch"
	KindTraining         ErrorKind = "training_failure"
	KindFeatureContract  ErrorKind = "feature_contract"
	KindInvalidInput     ErrorKind = "invalid_input"
	KindInProgress       ErrorKind = "training_in_progress"
	KindStorage          ErrorKind = "storage"
	KindCanceled         ErrorKind = "canceled"
	KindUnknown          ErrorKind = "unknown"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrInsufficientData, KindInsufficientData},
	{ErrNonFiniteData, KindNonFiniteData},
	{ErrArtifactMissing, KindArtifactMissing},
	{ErrArtifactCorrupt, KindArtifactCorrupt},
	{ErrUpstreamFetch, KindUpstreamFetch},
	{ErrTrainingFailed, KindTraining},
	{ErrFeatureContract, KindFeatureContract},
	{ErrInvalidInput, KindInvalidInput},
	{ErrTrainingInProgress, KindInProgress},
	{ErrStorage, KindStorage},
}

// KindOf maps an error chain to its kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// Skippable reports whether a bulk run records the failure and moves on.
// Only cancellation stops a run.
func Skippable(kind ErrorKind) bool {
	return kind != KindCanceled
}
