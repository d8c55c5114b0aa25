package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

// Summarizer renders a prompt template around a text and asks the Generator for a summary.
type Summarizer struct {
	gen     Generator
	timeout time.Duration
	retries int
	limiter *rate.Limiter // nil = unlimited
}

// NewSummarizer configures per-call deadline, retry budget and rate limit from c.
func NewSummarizer(gen Generator, c Config) *Summarizer {
	s := &Summarizer{gen: gen, timeout: c.LLMCallTimeout, retries: c.LLMMaxRetries}
	if c.LLMRPS > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(c.LLMRPS), max(1, c.LLMConcurrency))
	}
	return s
}

// Summarize returns a partial summary of text derived from the given chunk indices.
// Failures come back as TimeoutError or SummarizationError.
func (s *Summarizer) Summarize(ctx context.Context, tmpl, text string, chunks []int) (Summary, error) {
	if s.gen == nil {
		return Summary{}, &Error{Kind: KindSummarization, Msg: "no text-generation service configured"}
	}
	prompt := RenderPrompt(tmpl, text)

	var (
		out string
		err error
	)
	if s.retries == 0 {
		out, err = s.call(ctx, prompt)
	} else {
		out, err = s.callWithRetry(ctx, prompt)
	}
	if err != nil {
		if isDeadline(err) {
			return Summary{}, &Error{Kind: KindTimeout, Msg: "text generation deadline exceeded", Err: err}
		}
		return Summary{}, &Error{Kind: KindSummarization, Err: err}
	}
	if out == "" {
		return Summary{}, &Error{Kind: KindSummarization, Msg: "malformed response: empty text"}
	}
	return Summary{Text: out, Level: LevelPartial, SourceChunks: append([]int(nil), chunks...)}, nil
}

func (s *Summarizer) callWithRetry(ctx context.Context, prompt string) (string, error) {
	operation := func() (string, error) {
		out, err := s.call(ctx, prompt)
		if err != nil && !isTransient(err) {
			return "", backoff.Permanent(err)
		}
		if err != nil {
			slog.Debug("llm: transient failure, retrying", slog.Any("error", err))
		}
		return out, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.MaxInterval = 20 * time.Second

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(s.retries+1)),
	)
}

// call performs exactly one generation request under the per-call deadline.
func (s *Summarizer) call(ctx context.Context, prompt string) (string, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			// Wait fails early when the deadline falls before the next token
			if ctx.Err() == nil {
				err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
			}
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}
	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	metrics.LLMCalls.Add(1)
	start := time.Now()
	out, err := s.gen.Generate(callCtx, prompt)
	if err != nil {
		metrics.LLMErrors.Add(1)
		// the client may report a canceled request rather than the deadline itself
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !isDeadline(err) {
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		return "", err
	}
	slog.Debug("llm: call done",
		slog.Int("prompt_chars", len(prompt)),
		slog.Int("output_chars", len(out)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return strings.TrimSpace(out), nil
}
