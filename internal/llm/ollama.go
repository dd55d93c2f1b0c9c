package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaCompleter runs prompts against a local ollama server.
type OllamaCompleter struct {
	llm *ollama.LLM
}

func NewOllamaCompleter(serverURL, model string) (*OllamaCompleter, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}

	client, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create ollama client: %w", err)
	}
	return &OllamaCompleter{llm: client}, nil
}

func (o *OllamaCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	completion, err := llms.GenerateFromSinglePrompt(ctx, o.llm, prompt,
		llms.WithTemperature(Temperature),
		llms.WithMaxTokens(MaxOutputTokens),
	)
	if err != nil {
		return "", fmt.Errorf("ollama generation failed: %w", err)
	}
	return completion, nil
}
