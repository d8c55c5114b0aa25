// Package toolutil provides shared helper functions for go_summarize MCP tools
// and the one-shot CLI.
package toolutil

import (
	"errors"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_summarize/internal/engine"
)

// Extract preview limits, in characters.
const (
	DefaultExtractLength = 10000
	MaxExtractLength     = 200000
)

// NormURL trims whitespace and surrounding quotes that chat clients tend to add.
func NormURL(raw string) string {
	return strings.Trim(strings.TrimSpace(raw), `"'<>`)
}

// NormMaxUnits maps a tool's max_units field to a request value:
// non-positive means "server default" (0), anything above ceiling is capped.
func NormMaxUnits(v, ceiling int) int {
	if v <= 0 {
		return 0
	}
	if ceiling > 0 && v > ceiling {
		return ceiling
	}
	return v
}

// NormLength applies the default and ceiling to a max_length field.
func NormLength(v int) int {
	switch {
	case v <= 0:
		return DefaultExtractLength
	case v > MaxExtractLength:
		return MaxExtractLength
	}
	return v
}

// Failure describes err for tool callers: kind, failing stage, HTTP status if any.
func Failure(err error) *engine.ToolFailure {
	f := &engine.ToolFailure{Kind: engine.KindInternal, Message: err.Error()}
	var e *engine.Error
	if errors.As(err, &e) {
		f.Kind = e.Kind
		f.Stage = e.Stage
		f.Status = e.Status
	}
	return f
}

// FailureMessage renders err the way the CLI reports a failed run.
func FailureMessage(err error) string {
	return fmt.Sprintf("Failed to summarize content [%s]: %s", Failure(err).Kind, err)
}

// exitCodes gives each failure kind its own process exit status.
var exitCodes = map[engine.Kind]int{
	engine.KindInvalidInput:          2,
	engine.KindFetch:                 3,
	engine.KindTranscriptUnavailable: 4,
	engine.KindParse:                 5,
	engine.KindSummarization:         6,
	engine.KindTimeout:               7,
	engine.KindReductionStalled:      8,
}

// ExitCode maps err to the CLI exit status; 1 for errors without a known kind.
func ExitCode(err error) int {
	if code, ok := exitCodes[engine.KindOf(err)]; ok {
		return code
	}
	return 1
}

// IsUserError reports failures caused by the input rather than by the server
// or an upstream service.
func IsUserError(err error) bool {
	return errors.Is(err, engine.ErrInvalidInput) || errors.Is(err, engine.ErrTranscriptUnavailable)
}
