// go_summarize: URL summarization MCP server.
//
// Exposes two MCP tools: summarize_url and extract_content.
// Runs as HTTP MCP server or stdio transport. Given a URL argument it runs
// once, prints the summary and exits:
//
//	go_summarize https://www.youtube.com/watch?v=dQw4w9WgXcQ
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-kit/llm"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_summarize/internal/engine"
	"github.com/anatolykoptev/go_summarize/internal/engine/sources"
	"github.com/anatolykoptev/go_summarize/internal/summaryserver"
	"github.com/anatolykoptev/go_summarize/internal/toolutil"
)

var (
	version = "dev"
	mcpPort = env.Str("MCP_PORT", "8893")
)

func main() {
	p, err := initEngine()
	if err != nil {
		fmt.Fprintln(os.Stderr, "go_summarize:", err)
		os.Exit(2)
	}

	if len(os.Args) > 1 {
		os.Exit(runOnce(p, strings.Join(os.Args[1:], " ")))
	}

	slog.Info("starting go_summarize",
		slog.String("port", mcpPort),
		slog.String("model", engine.Cfg.LLMModel),
		slog.Int("max_units", engine.Cfg.MaxUnits),
		slog.String("unit", engine.Cfg.Unit),
	)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_summarize",
		Version: version,
	}, nil)

	summaryserver.RegisterTools(server, p)
	slog.Info("tools registered", slog.Int("count", summaryserver.ToolCount))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_summarize",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 600 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

// runOnce summarizes one URL and returns the process exit code.
func runOnce(p *engine.Pipeline, rawURL string) int {
	rawURL = toolutil.NormURL(rawURL)
	if rawURL == "" {
		fmt.Fprintln(os.Stderr, "Please enter a URL")
		return 2
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := p.Run(ctx, engine.NewRequest(rawURL, 0))
	if err != nil {
		fmt.Fprintln(os.Stderr, toolutil.FailureMessage(err))
		return toolutil.ExitCode(err)
	}
	headline := "Website Summary:"
	if res.Document.SourceKind == engine.SourceVideo {
		headline = "Video Summary:"
	}
	fmt.Println(headline)
	fmt.Println(res.Summary.Text)
	return 0
}

func initEngine() (*engine.Pipeline, error) {
	c := engine.Config{
		LLMProvider:        env.Str("LLM_PROVIDER", "kit"),
		LLMAPIKey:          env.Str("LLM_API_KEY", env.Str("GROQ_API_KEY", "")),
		LLMAPIKeyFallbacks: env.List("LLM_API_KEY_FALLBACKS", ""),
		LLMAPIBase:         env.Str("LLM_API_BASE", "https://api.groq.com/openai/v1"),
		LLMModel:           env.Str("LLM_MODEL", "llama-3.1-8b-instant"),
		LLMTemperature:     env.Float("LLM_TEMPERATURE", 0.2),
		LLMMaxTokens:       env.Int("LLM_MAX_TOKENS", 1024),
		LLMCallTimeout:     env.Duration("LLM_CALL_TIMEOUT", 90*time.Second),
		LLMMaxRetries:      env.Int("LLM_MAX_RETRIES", 0),
		LLMRPS:             env.Float("LLM_RPS", 0),
		LLMConcurrency:     env.Int("LLM_CONCURRENCY", 4),
		MaxUnits:           env.Int("MAX_UNITS", 12000),
		ChunkOverlap:       env.Int("CHUNK_OVERLAP", 0),
		Unit:               env.Str("UNIT", engine.UnitChars),
		TokenEncoding:      env.Str("TOKEN_ENCODING", "cl100k_base"),
		Prompts: engine.PromptSet{
			Direct:  env.Str("PROMPT_DIRECT", engine.DefaultPrompts.Direct),
			Map:     env.Str("PROMPT_MAP", engine.DefaultPrompts.Map),
			Combine: env.Str("PROMPT_COMBINE", engine.DefaultPrompts.Combine),
		},
		FetchTimeout:    env.Duration("FETCH_TIMEOUT", 15*time.Second),
		FetchRetries:    env.Int("FETCH_RETRIES", 0),
		MaxBodyBytes:    int64(env.Int("MAX_BODY_BYTES", 6*1024*1024)),
		TranscriptLangs: env.List("TRANSCRIPT_LANGS", "en"),
		CacheTTL:        env.Duration("CACHE_TTL", 15*time.Minute),
		CacheMaxEntries: env.Int("CACHE_MAX_ENTRIES", 500),
		RedisURL:        env.Str("REDIS_URL", ""),
	}
	if c.LLMAPIKey == "" {
		return nil, errors.New("LLM_API_KEY (or GROQ_API_KEY) is not set")
	}

	c.HTTPClient = engine.NewFetchClient(30 * time.Second)
	c.Transcripts = sources.NewYouTube(c.HTTPClient, c.TranscriptLangs)

	switch c.LLMProvider {
	case "openai":
		c.Generator = engine.NewOpenAIGenerator(c)
	case "kit", "":
		c.Generator = engine.NewKitGenerator(llm.NewClient(c.LLMAPIBase, c.LLMAPIKey, c.LLMModel,
			llm.WithFallbackKeys(c.LLMAPIKeyFallbacks),
			llm.WithMaxTokens(c.LLMMaxTokens),
			llm.WithTemperature(c.LLMTemperature),
			llm.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
		))
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q (want kit or openai)", c.LLMProvider)
	}

	if err := engine.Init(c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return engine.NewPipeline(*engine.Cfg)
}
