package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Request is one summarization request. Requests share no mutable state.
type Request struct {
	ID       string
	URL      string
	MaxUnits int // 0 = configured default
}

// NewRequest stamps a fresh request ID.
func NewRequest(rawURL string, maxUnits int) Request {
	return Request{ID: uuid.NewString(), URL: rawURL, MaxUnits: maxUnits}
}

// Result is the outcome of a successful request.
type Result struct {
	RequestID string
	Document  Document
	Summary   Summary
	Strategy  Strategy
	Stats     Stats
}

// Pipeline wires extractor, chunker, summarizer and reducer together.
type Pipeline struct {
	extractor   *Extractor
	chunker     *Chunker
	summarizer  *Summarizer
	prompts     PromptSet
	maxUnits    int
	concurrency int
}

// NewPipeline builds a pipeline from c. c is expected to have passed Init/Validate.
func NewPipeline(c Config) (*Pipeline, error) {
	c = c.withDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	counter, err := NewUnitCounter(c.Unit, c.TokenEncoding)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		extractor:   NewExtractor(c),
		chunker:     NewChunker(counter, c.ChunkOverlap),
		summarizer:  NewSummarizer(c.Generator, c),
		prompts:     c.Prompts,
		maxUnits:    c.MaxUnits,
		concurrency: c.LLMConcurrency,
	}, nil
}

// Extractor exposes the content extractor for callers that only need text.
func (p *Pipeline) Extractor() *Extractor { return p.extractor }

// MaxUnits is the configured per-call bound.
func (p *Pipeline) MaxUnits() int { return p.maxUnits }

// Counter returns the unit counter used for size decisions.
func (p *Pipeline) Counter() UnitCounter { return p.chunker.Counter }

// Run extracts the request's URL and summarizes the resulting document.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	maxUnits := req.MaxUnits
	if maxUnits == 0 {
		maxUnits = p.maxUnits
	}
	log := slog.With(slog.String("request_id", req.ID))
	metrics.SummarizeRequests.Add(1)
	start := time.Now()

	doc, err := p.extractor.Extract(ctx, req.URL)
	if err != nil {
		metrics.SummarizeErrors.Add(1)
		log.Warn("summarize: extract failed", slog.String("url", req.URL), slog.Any("error", err))
		return Result{RequestID: req.ID}, err
	}
	log.Info("summarize: extracted",
		slog.String("url", req.URL),
		slog.String("kind", string(doc.SourceKind)),
		slog.Int("bytes", len(doc.Content)),
	)

	res, err := p.SummarizeDocument(ctx, doc, maxUnits)
	res.RequestID = req.ID
	if err != nil {
		metrics.SummarizeErrors.Add(1)
		log.Warn("summarize: failed", slog.Any("error", err), slog.Int("llm_calls", res.Stats.LLMCalls))
		return res, err
	}
	log.Info("summarize: done",
		slog.String("strategy", string(res.Strategy)),
		slog.Int("chunks", res.Stats.Chunks),
		slog.Int("reduce_passes", res.Stats.ReducePasses),
		slog.Int("llm_calls", res.Stats.LLMCalls),
		slog.Duration("elapsed", time.Since(start)),
		slog.String("preview", TruncateRunes(res.Summary.Text, 120, "...")),
	)
	return res, nil
}

// SummarizeDocument produces the final summary of doc, calling the model once
// when the content fits maxUnits and running chunk/map/reduce otherwise.
func (p *Pipeline) SummarizeDocument(ctx context.Context, doc Document, maxUnits int) (Result, error) {
	res := Result{Document: doc}
	if maxUnits <= 0 {
		return res, invalidInput("summarize", "max units must be > 0, got %d", maxUnits)
	}
	if strings.TrimSpace(doc.Content) == "" {
		return res, invalidInput("summarize", "no text content to summarize")
	}

	counter := p.chunker.Counter
	res.Stats.ContentUnits = counter.Count(doc.Content)

	if res.Stats.ContentUnits <= maxUnits {
		res.Strategy = StrategyDirect
		res.Stats.Chunks = 1
		res.Stats.LLMCalls = 1
		s, err := p.summarizer.Summarize(ctx, p.prompts.Direct, doc.Content, []int{0})
		if err != nil {
			return res, WithStage("direct", err)
		}
		s.Level = LevelFinal
		res.Summary = s
		return res, nil
	}

	res.Strategy = StrategyMapReduce
	chunks, err := p.chunker.Split(doc, maxUnits)
	if err != nil {
		return res, WithStage("chunk", err)
	}
	res.Stats.Chunks = len(chunks)
	metrics.ChunksProduced.Add(int64(len(chunks)))

	partials, err := mapOrdered(ctx, p.concurrency, chunks, func(ctx context.Context, ch Chunk) (Summary, error) {
		return p.summarizer.Summarize(ctx, p.prompts.Map, ch.Text, []int{ch.Index})
	})
	res.Stats.MapCalls = len(chunks)
	res.Stats.LLMCalls = len(chunks)
	if err != nil {
		return res, WithStage("map", err)
	}

	reducer := NewReducer(p.summarizer, p.chunker, p.prompts.Combine, maxUnits, p.concurrency)
	final, rstats, err := reducer.Combine(ctx, partials)
	res.Stats.CombineCalls = rstats.CombineCalls
	res.Stats.ReducePasses = rstats.ReducePasses
	res.Stats.LLMCalls += rstats.LLMCalls
	if err != nil {
		return res, WithStage("reduce", err)
	}
	res.Summary = final
	return res, nil
}

// mapOrdered runs fn over items with at most limit calls in flight.
// out[i] always corresponds to items[i]; the first error cancels the rest.
func mapOrdered[T any](ctx context.Context, limit int, items []T, fn func(context.Context, T) (Summary, error)) ([]Summary, error) {
	out := make([]Summary, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, limit))
	for i, item := range items {
		g.Go(func() error {
			s, err := fn(gctx, item)
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
