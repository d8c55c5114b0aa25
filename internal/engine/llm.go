package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/anatolykoptev/go-kit/llm"
	"github.com/openai/openai-go"
)

// Generator is the text-generation service: one rendered prompt in, generated text out.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// KitGenerator calls an OpenAI-compatible endpoint through go-kit's llm client.
type KitGenerator struct {
	client *llm.Client
}

// NewKitGenerator wraps an already configured go-kit client.
func NewKitGenerator(client *llm.Client) *KitGenerator {
	return &KitGenerator{client: client}
}

func (g *KitGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Complete(ctx, "", prompt)
	if err != nil {
		return "", err
	}
	return stripFences(resp), nil
}

// stripFences removes markdown code fences from LLM output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```markdown")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// isTransient reports timeouts and rate-limit / overload responses,
// the only failures worth retrying against the generation service.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if isDeadline(err) {
		return true
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return IsRetryableStatus(apiErr.StatusCode)
	}
	s := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "rate limit", "too many requests", "503", "overloaded"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
