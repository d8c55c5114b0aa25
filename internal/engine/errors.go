package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure by the stage of the pipeline that produced it.
type Kind string

const (
	KindInvalidInput          Kind = "invalid_input"
	KindFetch                 Kind = "fetch"
	KindTranscriptUnavailable Kind = "transcript_unavailable"
	KindParse                 Kind = "parse"
	KindSummarization         Kind = "summarization"
	KindTimeout               Kind = "timeout"
	KindReductionStalled      Kind = "reduction_stalled"

	// KindInternal labels failures that carry no engine kind.
	KindInternal Kind = "internal"
)

// Error is the structured failure returned by every engine operation.
// Stage names the step that failed ("extract", "map", "reduce", ...).
type Error struct {
	Kind   Kind
	Stage  string
	Status int // HTTP status for fetch failures, 0 otherwise
	Msg    string
	Err    error
}

// Sentinels for errors.Is matching by kind.
var (
	ErrInvalidInput          = &Error{Kind: KindInvalidInput}
	ErrFetch                 = &Error{Kind: KindFetch}
	ErrTranscriptUnavailable = &Error{Kind: KindTranscriptUnavailable}
	ErrParse                 = &Error{Kind: KindParse}
	ErrSummarization         = &Error{Kind: KindSummarization}
	ErrTimeout               = &Error{Kind: KindTimeout}
	ErrReductionStalled      = &Error{Kind: KindReductionStalled}
)

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = kindText(e.Kind)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stage != "" {
		return e.Stage + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality against a sentinel (an *Error with no cause and no stage).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Err != nil || t.Stage != "" || t.Msg != "" {
		return false
	}
	return t.Kind == e.Kind
}

func kindText(k Kind) string {
	switch k {
	case KindInvalidInput:
		return "invalid input"
	case KindFetch:
		return "fetch failed"
	case KindTranscriptUnavailable:
		return "transcript unavailable"
	case KindParse:
		return "cannot parse content"
	case KindSummarization:
		return "summarization failed"
	case KindTimeout:
		return "deadline exceeded"
	case KindReductionStalled:
		return "reduction stalled"
	}
	return string(k)
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func invalidInput(stage, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Stage: stage, Msg: fmt.Sprintf(format, args...)}
}

func fetchStatusError(stage string, status int) *Error {
	return &Error{
		Kind:   KindFetch,
		Stage:  stage,
		Status: status,
		Msg:    fmt.Sprintf("status %d %s", status, http.StatusText(status)),
	}
}

// WrapFetch classifies a transport error as TimeoutError or FetchError.
// Errors already carrying a kind pass through untouched.
func WrapFetch(stage string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != "" {
		return err
	}
	if isDeadline(err) {
		return &Error{Kind: KindTimeout, Stage: stage, Err: err}
	}
	return &Error{Kind: KindFetch, Stage: stage, Err: err}
}

// WithStage returns err with its stage set, unless it already has one.
func WithStage(stage string, err error) error {
	var e *Error
	if !errors.As(err, &e) {
		return &Error{Kind: KindSummarization, Stage: stage, Err: err}
	}
	if e.Stage != "" {
		return err
	}
	cp := *e
	cp.Stage = stage
	return &cp
}

func isDeadline(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
