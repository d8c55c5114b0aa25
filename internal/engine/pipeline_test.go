package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTranscripts struct {
	title string
	segs  []Segment
	err   error
	calls int
}

func (f *fakeTranscripts) Fetch(_ context.Context, _ string) (Transcript, error) {
	f.calls++
	if f.err != nil {
		return Transcript{}, f.err
	}
	return Transcript{Title: f.title, Segments: f.segs}, nil
}

func newTestPipeline(t *testing.T, c Config) *Pipeline {
	t.Helper()
	if c.LLMConcurrency == 0 {
		c.LLMConcurrency = 4
	}
	p, err := NewPipeline(c)
	require.NoError(t, err)
	return p
}

func pageServer(t *testing.T, routes map[string]func(w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunVideoDirect(t *testing.T) {
	llm := &fakeLLM{size: 40}
	yt := &fakeTranscripts{title: "Greetings", segs: []Segment{{Text: "Hello", Start: 0}, {Text: "world", Start: 1.2}, {Text: "today", Start: 2.5}}}
	p := newTestPipeline(t, Config{Generator: llm, Transcripts: yt, MaxUnits: 2000})

	res, err := p.Run(context.Background(), NewRequest("https://example.com/watch?v=dQw4w9WgXcQ", 0))
	require.NoError(t, err)

	assert.Equal(t, "Hello world today", res.Document.Content)
	assert.Equal(t, SourceVideo, res.Document.SourceKind)
	assert.Equal(t, "dQw4w9WgXcQ", res.Document.VideoID)
	assert.Equal(t, "Greetings", res.Document.Title)
	assert.Equal(t, StrategyDirect, res.Strategy)
	assert.Equal(t, LevelFinal, res.Summary.Level)
	assert.NotEmpty(t, res.RequestID)
	require.Equal(t, 1, llm.calls())
	assert.Equal(t, RenderPrompt(DefaultPrompts.Direct, "Hello world today"), llm.prompts[0])
	assert.Zero(t, res.Stats.CombineCalls)
}

func TestSummarizeDocumentMapReduce(t *testing.T) {
	llm := &fakeLLM{size: 100}
	p := newTestPipeline(t, Config{Generator: llm, MaxUnits: 2000})
	doc := Document{Content: longText(500), SourceKind: SourcePage}

	res, err := p.SummarizeDocument(context.Background(), doc, 2000)
	require.NoError(t, err)

	assert.Equal(t, StrategyMapReduce, res.Strategy)
	assert.Equal(t, 50000, res.Stats.ContentUnits)
	assert.Equal(t, 25, res.Stats.Chunks)
	assert.Equal(t, 25, res.Stats.MapCalls)
	assert.Equal(t, 2, res.Stats.ReducePasses)
	assert.Equal(t, 3, res.Stats.CombineCalls)
	assert.Equal(t, 28, res.Stats.LLMCalls)
	assert.Equal(t, 25, llm.count("Summarize this part"))
	assert.Equal(t, 3, llm.count(combinePrefix))
	assert.Equal(t, LevelFinal, res.Summary.Level)
	assert.Len(t, res.Summary.SourceChunks, 25)
}

func TestRunPageMainContent(t *testing.T) {
	srv := pageServer(t, map[string]func(http.ResponseWriter){
		"/article": func(w http.ResponseWriter) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, `<html><head><title>Go Notes</title></head><body>
				<nav>Menu Home</nav>
				<main><h1>Channels</h1><p>Channels connect goroutines.</p><script>var x = 1;</script><p>Close them once.</p></main>
				<footer>(c) 2026</footer></body></html>`)
		},
	})
	llm := &fakeLLM{size: 30}
	p := newTestPipeline(t, Config{Generator: llm, HTTPClient: srv.Client(), MaxUnits: 2000})

	res, err := p.Run(context.Background(), NewRequest(srv.URL+"/article", 0))
	require.NoError(t, err)
	assert.Equal(t, "Channels Channels connect goroutines. Close them once.", res.Document.Content)
	assert.Equal(t, "Go Notes", res.Document.Title)
	assert.Equal(t, SourcePage, res.Document.SourceKind)
	assert.Equal(t, 1, llm.calls())
}

func TestRunPageNotFound(t *testing.T) {
	srv := pageServer(t, nil)
	llm := &fakeLLM{}
	p := newTestPipeline(t, Config{Generator: llm, HTTPClient: srv.Client(), MaxUnits: 2000})

	_, err := p.Run(context.Background(), NewRequest(srv.URL+"/missing", 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetch), "got %v", err)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, http.StatusNotFound, e.Status)
	assert.Zero(t, llm.calls(), "no model call may happen when extraction fails")
}

func TestRunTranscriptsDisabled(t *testing.T) {
	llm := &fakeLLM{}
	yt := &fakeTranscripts{err: &Error{Kind: KindTranscriptUnavailable, Msg: "transcripts are disabled for this video"}}
	p := newTestPipeline(t, Config{Generator: llm, Transcripts: yt, MaxUnits: 2000})

	_, err := p.Run(context.Background(), NewRequest("https://youtu.be/dQw4w9WgXcQ", 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTranscriptUnavailable))
	assert.False(t, errors.Is(err, ErrFetch))
	assert.Zero(t, llm.calls())
}

func TestJoinSegments(t *testing.T) {
	segs := []Segment{{Text: " Hello "}, {Text: ""}, {Text: "\n"}, {Text: "world"}}
	assert.Equal(t, "Hello world", JoinSegments(segs))
	assert.Empty(t, JoinSegments(nil))
}

func TestRunTranscriptTransportFailure(t *testing.T) {
	yt := &fakeTranscripts{err: errors.New("connection reset by peer")}
	p := newTestPipeline(t, Config{Generator: &fakeLLM{}, Transcripts: yt, MaxUnits: 2000})

	_, err := p.Run(context.Background(), NewRequest("https://youtu.be/dQw4w9WgXcQ", 0))
	assert.True(t, errors.Is(err, ErrFetch), "got %v", err)
}

func TestRunInvalidInput(t *testing.T) {
	p := newTestPipeline(t, Config{Generator: &fakeLLM{}, MaxUnits: 2000})
	for _, raw := range []string{"", "   ", "ftp://example.com/file", "not a url"} {
		t.Run(raw, func(t *testing.T) {
			_, err := p.Run(context.Background(), NewRequest(raw, 0))
			assert.True(t, errors.Is(err, ErrInvalidInput), "got %v", err)
		})
	}
}

func TestRunEmptyPage(t *testing.T) {
	srv := pageServer(t, map[string]func(http.ResponseWriter){
		"/empty": func(w http.ResponseWriter) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><body><script>only()</script></body></html>`)
		},
	})
	llm := &fakeLLM{}
	p := newTestPipeline(t, Config{Generator: llm, HTTPClient: srv.Client(), MaxUnits: 2000})

	_, err := p.Run(context.Background(), NewRequest(srv.URL+"/empty", 0))
	assert.True(t, errors.Is(err, ErrInvalidInput), "got %v", err)
	assert.Zero(t, llm.calls())
}

func TestRunMapFailureNamesStage(t *testing.T) {
	llm := &fakeLLM{fail: func(prompt string) error {
		if strings.HasPrefix(prompt, "Summarize this part") {
			return errors.New("status 500: internal")
		}
		return nil
	}}
	p := newTestPipeline(t, Config{Generator: llm, MaxUnits: 2000})

	res, err := p.SummarizeDocument(context.Background(), Document{Content: longText(50)}, 2000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSummarization))
	assert.True(t, strings.HasPrefix(err.Error(), "map: "), "got %q", err.Error())
	assert.Empty(t, res.Summary.Text)
}

func TestRunRequestMaxUnitsOverride(t *testing.T) {
	llm := &fakeLLM{size: 20}
	yt := &fakeTranscripts{segs: []Segment{{Text: longText(10)}}}
	p := newTestPipeline(t, Config{Generator: llm, Transcripts: yt, MaxUnits: 2000})

	res, err := p.Run(context.Background(), NewRequest("https://youtu.be/dQw4w9WgXcQ", 300))
	require.NoError(t, err)
	assert.Equal(t, StrategyMapReduce, res.Strategy)
	assert.Equal(t, 4, res.Stats.Chunks)
}

func TestRunUsesDocumentCache(t *testing.T) {
	yt := &fakeTranscripts{segs: []Segment{{Text: "cached words"}}}
	p := newTestPipeline(t, Config{Generator: &fakeLLM{}, Transcripts: yt, MaxUnits: 2000, CacheTTL: time.Minute})

	for range 3 {
		_, err := p.Run(context.Background(), NewRequest("https://youtu.be/dQw4w9WgXcQ", 0))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, yt.calls)
}

func TestMapOrderedKeepsOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}
	out, err := mapOrdered(context.Background(), 3, items, func(_ context.Context, n int) (Summary, error) {
		return Summary{Text: fmt.Sprint(n)}, nil
	})
	require.NoError(t, err)
	got := make([]string, len(out))
	for i, s := range out {
		got[i] = s.Text
	}
	assert.Equal(t, []string{"5", "1", "4", "2", "3"}, got)
}
