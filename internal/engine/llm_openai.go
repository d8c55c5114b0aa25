package engine

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIGenerator uses the official OpenAI SDK chat completions endpoint.
// Any OpenAI-compatible base URL works (Groq, Gemini, local servers).
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewOpenAIGenerator builds a generator from the LLM fields of c.
// SDK-level retries are disabled; the summarizer owns retry policy.
func NewOpenAIGenerator(c Config) *OpenAIGenerator {
	opts := []option.RequestOption{
		option.WithAPIKey(c.LLMAPIKey),
		option.WithMaxRetries(0),
	}
	if c.LLMAPIBase != "" {
		opts = append(opts, option.WithBaseURL(c.LLMAPIBase))
	}
	client := openai.NewClient(opts...)
	return &OpenAIGenerator{
		client:      &client,
		model:       c.LLMModel,
		temperature: c.LLMTemperature,
		maxTokens:   c.LLMMaxTokens,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(g.temperature),
	}
	if g.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(g.maxTokens))
	}
	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("response has no choices")
	}
	return stripFences(resp.Choices[0].Message.Content), nil
}
