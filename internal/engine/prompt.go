package engine

import (
	"fmt"
	"strings"
)

// LLM prompt templates: data only, no logic beyond placeholder handling.

// TextPlaceholder is the single substitution point of every template.
const TextPlaceholder = "{text}"

// PromptSet holds the three templates used by the pipeline.
type PromptSet struct {
	Direct  string // whole document under the size bound
	Map     string // one chunk of a long document
	Combine string // concatenated partial summaries
}

// DefaultPrompts ask for plain-language summaries.
var DefaultPrompts = PromptSet{
	Direct:  "Summarize the following content in simple terms:\n\n{text}",
	Map:     "Summarize this part of the transcript in simple terms:\n\n{text}",
	Combine: "Combine the following partial summaries into a final concise summary:\n\n{text}",
}

// Validate requires exactly one placeholder per template.
func (p PromptSet) Validate() error {
	for name, tmpl := range map[string]string{"direct": p.Direct, "map": p.Map, "combine": p.Combine} {
		if n := strings.Count(tmpl, TextPlaceholder); n != 1 {
			return fmt.Errorf("prompt %s: want exactly one %s placeholder, found %d", name, TextPlaceholder, n)
		}
	}
	return nil
}

// RenderPrompt fills the template's placeholder with text.
func RenderPrompt(tmpl, text string) string {
	return strings.Replace(tmpl, TextPlaceholder, text, 1)
}
