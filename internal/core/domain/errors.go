package domain

import (
	"errors"
	"fmt"
)

// ============================================================================
// Validation Errors
// ============================================================================

var (
	ErrInvalidModelName  = errors.New("model name is required")
	ErrInvalidStage      = errors.New("invalid stage: must be one of None, Staging, Production, Archived")
	ErrInvalidVersion    = errors.New("model version must be a positive integer")
	ErrArchiveNotAllowed = errors.New("archiving existing versions is only supported for Staging and Production")
)

// ============================================================================
// Tracking Store Errors
// ============================================================================

var (
	ErrNoVersions             = errors.New("no versions found for model")
	ErrVersionNotFound        = errors.New("model version not found")
	ErrUnsupportedTrackingURI = errors.New("unsupported tracking URI")
)

// ErrorKind discriminates why a tracking store call failed.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindTransitionRejected
	KindServiceUnavailable
	KindSerialization
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindTransitionRejected:
		return "transition_rejected"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindSerialization:
		return "serialization"
	default:
		return "unknown"
	}
}

// TrackingError is returned by every tracking store adapter.
type TrackingError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *TrackingError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TrackingError) Unwrap() error {
	return e.Err
}

func NewTrackingError(kind ErrorKind, op string, err error) *TrackingError {
	return &TrackingError{Kind: kind, Op: op, Err: err}
}

// KindOf reports the kind of the first TrackingError in err's chain.
func KindOf(err error) ErrorKind {
	var te *TrackingError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}
