package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const RequestTimeout = 30 * time.Second

// TokenUsage tracks usage counts for the configured model.
type TokenUsage struct {
	CompletionTokens int64 `json:"completion_tokens"`
	PromptTokens     int64 `json:"prompt_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// OpenAICompleter talks to any OpenAI compatible chat completions endpoint,
// including Gemini's.
type OpenAICompleter struct {
	client openai.Client
	model  string

	mu    sync.Mutex
	usage TokenUsage
}

func NewOpenAICompleter(apiKey, baseURL, model string) *OpenAICompleter {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// A slow turn is answered with a fallback instead of being retried.
		option.WithMaxRetries(0),
		option.WithRequestTimeout(RequestTimeout),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = DefaultModel
	}

	return &OpenAICompleter{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (o *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	res, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       o.model,
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(Temperature),
		MaxTokens:   openai.Int(MaxOutputTokens),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &ProviderError{StatusCode: apiErr.StatusCode, Err: err}
		}
		return "", fmt.Errorf("openai generation failed: %w", err)
	}

	o.mu.Lock()
	o.usage.CompletionTokens += res.Usage.CompletionTokens
	o.usage.PromptTokens += res.Usage.PromptTokens
	o.usage.TotalTokens += res.Usage.TotalTokens
	total := o.usage.TotalTokens
	o.mu.Unlock()

	slog.Debug("llm completion", "model", o.model, "prompt_tokens", res.Usage.PromptTokens, "completion_tokens", res.Usage.CompletionTokens, "total_tokens", total)

	if len(res.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return res.Choices[0].Message.Content, nil
}

func (o *OpenAICompleter) Usage() TokenUsage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.usage
}
