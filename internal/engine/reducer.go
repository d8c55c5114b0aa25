package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// summarySeparator joins partial summaries before they are combined.
const summarySeparator = "\n\n"

// Reducer folds ordered partial summaries into one final summary,
// collapsing in as many passes as the size bound requires.
type Reducer struct {
	sum         *Summarizer
	chunker     *Chunker
	counter     UnitCounter
	template    string
	maxUnits    int
	concurrency int
}

// NewReducer returns a reducer bound to maxUnits per combine call.
func NewReducer(sum *Summarizer, chunker *Chunker, template string, maxUnits, concurrency int) *Reducer {
	return &Reducer{
		sum:         sum,
		chunker:     chunker,
		counter:     chunker.Counter,
		template:    template,
		maxUnits:    maxUnits,
		concurrency: max(1, concurrency),
	}
}

// Combine returns the final summary of partials. Each pass either fits the
// concatenation into one combine call, or collapses groups of partials and
// tries again. A pass that does not shrink the text fails with ReductionStalledError.
func (r *Reducer) Combine(ctx context.Context, partials []Summary) (Summary, Stats, error) {
	var stats Stats
	if len(partials) == 0 {
		return Summary{}, stats, invalidInput("reduce", "no partial summaries to combine")
	}

	current := partials
	prevUnits := -1
	for {
		stats.ReducePasses++
		metrics.ReducePasses.Add(1)

		joined := joinSummaries(current)
		units := r.counter.Count(joined)
		if units <= r.maxUnits {
			final, err := r.sum.Summarize(ctx, r.template, joined, unionChunks(current))
			stats.CombineCalls++
			stats.LLMCalls++
			if err != nil {
				return Summary{}, stats, err
			}
			final.Level = LevelFinal
			return final, stats, nil
		}
		if prevUnits >= 0 && units >= prevUnits {
			return Summary{}, stats, &Error{
				Kind:  KindReductionStalled,
				Stage: "reduce",
				Msg: fmt.Sprintf("pass %d produced %d units, previous pass %d (bound %d)",
					stats.ReducePasses, units, prevUnits, r.maxUnits),
			}
		}
		prevUnits = units

		groups, err := r.group(current)
		if err != nil {
			return Summary{}, stats, err
		}
		slog.Debug("reduce: collapsing",
			slog.Int("pass", stats.ReducePasses),
			slog.Int("units", units),
			slog.Int("partials", len(current)),
			slog.Int("groups", len(groups)),
		)
		next, err := mapOrdered(ctx, r.concurrency, groups, func(ctx context.Context, g summaryGroup) (Summary, error) {
			return r.sum.Summarize(ctx, r.template, g.text, g.chunks)
		})
		stats.CombineCalls += len(groups)
		stats.LLMCalls += len(groups)
		if err != nil {
			return Summary{}, stats, err
		}
		current = next
	}
}

type summaryGroup struct {
	text   string
	chunks []int
}

// group packs consecutive summaries into groups that fit one combine call.
// A summary that alone exceeds the bound is re-chunked.
func (r *Reducer) group(parts []Summary) ([]summaryGroup, error) {
	var (
		groups []summaryGroup
		cur    []Summary
	)
	flush := func() {
		if len(cur) > 0 {
			groups = append(groups, summaryGroup{text: joinSummaries(cur), chunks: unionChunks(cur)})
			cur = nil
		}
	}
	for _, p := range parts {
		if r.counter.Count(p.Text) > r.maxUnits {
			flush()
			pieces, err := r.chunker.Split(Document{Content: p.Text}, r.maxUnits)
			if err != nil {
				return nil, err
			}
			for _, piece := range pieces {
				groups = append(groups, summaryGroup{text: piece.Text, chunks: p.SourceChunks})
			}
			continue
		}
		if len(cur) > 0 && r.counter.Count(joinSummaries(append(cur[:len(cur):len(cur)], p))) > r.maxUnits {
			flush()
		}
		cur = append(cur, p)
	}
	flush()
	return groups, nil
}

func joinSummaries(parts []Summary) string {
	texts := make([]string, len(parts))
	for i, p := range parts {
		texts[i] = p.Text
	}
	return strings.Join(texts, summarySeparator)
}

// unionChunks returns the sorted set of chunk indices covered by parts.
func unionChunks(parts []Summary) []int {
	var out []int
	for _, p := range parts {
		out = append(out, p.SourceChunks...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
