package types

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures so the operator knows whether to
// retry, wait, or install something.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalidURL
	KindNetwork
	KindExtraction
	KindIO
	KindMergeFailed
	KindMergeToolNotFound
	KindCancelled
	KindDuplicate
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidURL:
		return "invalid_url"
	case KindNetwork:
		return "network"
	case KindExtraction:
		return "extraction"
	case KindIO:
		return "io"
	case KindMergeFailed:
		return "merge_failed"
	case KindMergeToolNotFound:
		return "merge_tool_not_found"
	case KindCancelled:
		return "cancelled"
	case KindDuplicate:
		return "duplicate"
	}
	return "unknown"
}

// Retryable reports whether a failure of this kind is worth retrying with
// backoff. Extraction and IO failures are deterministic; a missing merge
// tool needs an install, not a retry.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindNetwork, KindMergeFailed:
		return true
	}
	return false
}

// OperatorMessage returns a short human-readable hint for each kind.
func (k ErrorKind) OperatorMessage() string {
	switch k {
	case KindInvalidURL:
		return "not a recognized player URL"
	case KindNetwork:
		return "network unreachable or site not responding"
	case KindExtraction:
		return "page format changed, extractor needs updating"
	case KindIO:
		return "cannot write to destination (disk full or permission denied)"
	case KindMergeFailed:
		return "merge tool failed"
	case KindMergeToolNotFound:
		return "merge tool not found, install ffmpeg and make sure it is on PATH"
	case KindCancelled:
		return "cancelled"
	case KindDuplicate:
		return "duplicate of an earlier item in this batch"
	}
	return "unknown error"
}

// PipelineError is the error type every pipeline stage returns. It scopes a
// cause to an ErrorKind and the operation that produced it.
type PipelineError struct {
	Kind ErrorKind
	Op   string // e.g. "fetch player page", "download frame 12"
	Err  error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind.OperatorMessage())
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind.OperatorMessage(), e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind and operation label.
func NewError(kind ErrorKind, op string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Op: op, Err: err}
}

// Errorf is NewError with a formatted cause.
func Errorf(kind ErrorKind, op string, format string, args ...any) *PipelineError {
	return &PipelineError{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the ErrorKind from err, or KindUnknown when err carries
// no PipelineError in its chain.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindUnknown
}
