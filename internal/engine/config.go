package engine

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Unit names accepted by Config.Unit.
const (
	UnitChars  = "chars"
	UnitTokens = "tokens"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	LLMProvider        string // "kit" (default) or "openai"
	LLMAPIKey          string
	LLMAPIKeyFallbacks []string
	LLMAPIBase         string
	LLMModel           string
	LLMTemperature     float64
	LLMMaxTokens       int
	LLMCallTimeout     time.Duration // per generation call, 0 = no deadline
	LLMMaxRetries      int           // retries on timeout / rate limit, 0 = none
	LLMRPS             float64       // client-side rate limit, 0 = unlimited
	LLMConcurrency     int           // parallel map/collapse calls

	MaxUnits      int
	ChunkOverlap  int
	Unit          string
	TokenEncoding string
	Prompts       PromptSet

	FetchTimeout    time.Duration
	FetchRetries    int // transport-level retries for page fetches, never on HTTP status
	MaxBodyBytes    int64
	TranscriptLangs []string

	CacheTTL        time.Duration // 0 disables the document cache
	CacheMaxEntries int
	RedisURL        string

	HTTPClient  *http.Client
	Generator   Generator         // text-generation service
	Transcripts TranscriptService // nil = video URLs fail as transcript unavailable
}

var cfg Config

// Cfg exposes the active engine configuration.
// Always points to the current cfg value.
var Cfg = &cfg

// Init validates c, fills defaults and installs it as the engine configuration.
func Init(c Config) error {
	c = c.withDefaults()
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c
	Cfg = &cfg
	return nil
}

func (c Config) withDefaults() Config {
	if c.LLMConcurrency <= 0 {
		c.LLMConcurrency = 1
	}
	if c.MaxUnits == 0 {
		c.MaxUnits = 12000
	}
	if c.Unit == "" {
		c.Unit = UnitChars
	}
	if c.Prompts == (PromptSet{}) {
		c.Prompts = DefaultPrompts
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = 15 * time.Second
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 6 * 1024 * 1024
	}
	if len(c.TranscriptLangs) == 0 {
		c.TranscriptLangs = []string{"en"}
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

// Validate checks limits and prompt templates.
func (c Config) Validate() error {
	if c.MaxUnits <= 0 {
		return errors.New("max units must be > 0")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.MaxUnits {
		return fmt.Errorf("chunk overlap must be in [0, %d)", c.MaxUnits)
	}
	if c.Unit != UnitChars && c.Unit != UnitTokens {
		return fmt.Errorf("unknown unit %q (want %s or %s)", c.Unit, UnitChars, UnitTokens)
	}
	if c.LLMMaxRetries < 0 || c.FetchRetries < 0 {
		return errors.New("retries must be >= 0")
	}
	if c.LLMRPS < 0 {
		return errors.New("llm rps must be >= 0")
	}
	return c.Prompts.Validate()
}
