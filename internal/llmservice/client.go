package llmservice

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"form-rag/internal/config"
)

// Client wraps a langchaingo completion model behind a single-prompt
// generation call.
type Client struct {
	llm llms.Model
}

func New(cfg *config.LLMConfig) (*Client, error) {
	var llm llms.Model
	var err error
	if cfg.Provider == "ollama" {
		llm, err = ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
	} else {
		llm, err = openai.New(
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
		)
	}
	if err != nil {
		return nil, err
	}
	return &Client{llm: llm}, nil
}

// Generate runs a single-prompt completion and returns the raw text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, c.llm, prompt)
}
