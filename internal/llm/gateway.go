package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"support-backend/internal/database"
)

const (
	DefaultModel    = "gemini-3-flash-preview"
	MaxOutputTokens = 5000
	Temperature     = 0.7
)

type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Gateway turns a customer message plus recent history into a reply. It never
// returns an error: provider failures become one of the Fallback* replies.
type Gateway struct {
	completer Completer
	preamble  string
}

func NewGateway(completer Completer, knowledge *Knowledge) *Gateway {
	if knowledge == nil {
		knowledge = DefaultKnowledge()
	}
	return &Gateway{completer: completer, preamble: knowledge.Preamble()}
}

func (g *Gateway) Generate(ctx context.Context, userText string, history []database.Message) string {
	prompt := BuildPrompt(g.preamble, userText, history)

	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	reply, err := g.completer.Complete(ctx, prompt)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = ErrEmptyCompletion
	}
	if err != nil {
		fallback := FallbackFor(err)
		slog.Error("error generating ai reply", "history_len", len(history), "fallback", fallback, "error", err)
		return fallback
	}

	return strings.TrimSpace(reply)
}

func speaker(sender string) string {
	if sender == database.SenderUser {
		return "Customer"
	}
	return "Agent"
}

func BuildPrompt(preamble, userText string, history []database.Message) string {
	var b strings.Builder

	b.WriteString(preamble)
	b.WriteString("\n\n")

	if len(history) > 0 {
		b.WriteString("Conversation History:\n")
		for _, msg := range history {
			fmt.Fprintf(&b, "%s: %s\n", speaker(msg.Sender), msg.Text)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Customer: %s\nAgent:", userText)

	return b.String()
}
