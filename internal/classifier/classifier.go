// Package classifier decides whether an executor response forwards the
// complaint, bounces it with no usable target, or answers it.
package classifier

import (
	"complaintflow/backend/internal/analysis"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Decision string

const (
	DecisionForward Decision = "forward"
	DecisionStop    Decision = "stop"
	DecisionOK      Decision = "ok"
)

// Request is everything the classifier sees about one executor response.
// Identity and timing fields only shape ModeratorMessage.
type Request struct {
	ComplaintID          int64           `json:"complaint_id"`
	ComplaintDescription string          `json:"complaint_description"`
	District             *string         `json:"district,omitempty"`
	ExecutorID           int64           `json:"executor_id"`
	ExecutorResponse     string          `json:"executor_response"`
	StatusHint           *string         `json:"status,omitempty"`
	ExecutedAt           *time.Time      `json:"executed_at,omitempty"`
	Timing               analysis.Timing `json:"timing"`
}

// Result is a fully parsed verdict. TargetExecutorName and ModeratorMessage
// are nil rather than empty.
type Result struct {
	Decision           Decision
	TargetExecutorName *string
	IsBlockingBounce   bool
	ModeratorMessage   *string
}

// Forward reports a classified intent to redirect.
func (r Result) Forward() bool { return r.Decision == DecisionForward }

// Bounce reports a dead-end deflection.
func (r Result) Bounce() bool { return r.IsBlockingBounce || r.Decision == DecisionStop }

// Target returns the trimmed target name, or "" when there is none.
func (r Result) Target() string {
	if r.TargetExecutorName == nil {
		return ""
	}
	return strings.TrimSpace(*r.TargetExecutorName)
}

// Notes returns the moderator message or "".
func (r Result) Notes() string {
	if r.ModeratorMessage == nil {
		return ""
	}
	return *r.ModeratorMessage
}

type Classifier interface {
	Classify(ctx context.Context, req Request) (Result, error)
}

// ErrClassification matches every *Error via errors.Is.
var ErrClassification = errors.New("classification failed")

type ErrorKind string

const (
	KindTransport   ErrorKind = "transport"
	KindMalformed   ErrorKind = "malformed"
	KindTimeout     ErrorKind = "timeout"
	KindUnavailable ErrorKind = "unavailable"
)

// Error is the only error type classifiers return.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("classification failed (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrClassification }

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Disabled is used when no classifier backend is configured. Every call
// fails, so executor updates are rejected instead of silently accepted.
type Disabled struct{}

func (Disabled) Classify(context.Context, Request) (Result, error) {
	return Result{}, newError(KindUnavailable, "no classifier configured")
}
