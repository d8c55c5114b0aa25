package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDefaults(t *testing.T) {
	saved := cfg
	t.Cleanup(func() { cfg = saved })

	require.NoError(t, Init(Config{}))
	assert.Equal(t, 12000, Cfg.MaxUnits)
	assert.Equal(t, UnitChars, Cfg.Unit)
	assert.Equal(t, 1, Cfg.LLMConcurrency)
	assert.Equal(t, DefaultPrompts, Cfg.Prompts)
	assert.Equal(t, []string{"en"}, Cfg.TranscriptLangs)
	assert.NotNil(t, Cfg.HTTPClient)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"negative max units", func(c *Config) { c.MaxUnits = -1 }},
		{"overlap too large", func(c *Config) { c.ChunkOverlap = c.MaxUnits }},
		{"unknown unit", func(c *Config) { c.Unit = "words" }},
		{"negative retries", func(c *Config) { c.LLMMaxRetries = -1 }},
		{"negative rps", func(c *Config) { c.LLMRPS = -0.5 }},
		{"prompt without placeholder", func(c *Config) { c.Prompts.Direct = "summarize" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Config{}.withDefaults()
			tt.mod(&c)
			assert.Error(t, c.Validate())
		})
	}
}
