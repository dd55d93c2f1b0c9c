package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"support-backend/pkg/api"
)

const (
	MaxMessageLength = 5000

	ConnectionErrorMessage = "Unable to connect to chat service. Please refresh the page."
	SendErrorMessage       = "Failed to send message. Please try again."
)

var (
	ErrNotConnected = errors.New("chat service is not connected")
	ErrBusy         = errors.New("a message is already being sent")
)

// Suggestions are offered before the first message of a conversation.
var Suggestions = []string{
	"What is your return policy?",
	"Do you ship to Canada?",
	"What are your support hours?",
}

type ChatAPI interface {
	SendMessage(ctx context.Context, req api.SendMessageRequest) (api.SendMessageResponse, error)
	GetHistory(ctx context.Context, sessionID string, limit int) (api.HistoryResponse, error)
	CheckHealth(ctx context.Context) bool
}

// State is a copy of the widget state at one point in time.
type State struct {
	Messages  []api.Message
	SessionID string
	Loading   bool
	Connected bool
	Error     string
}

// Widget holds the client side state of a support chat. It is safe for
// concurrent use; front ends render from Snapshot.
type Widget struct {
	api   ChatAPI
	store SessionStore

	mu        sync.Mutex
	messages  []api.Message
	sessionID string
	loading   bool
	connected bool
	errorText string
	// conversation is bumped by NewConversation so replies to an earlier
	// conversation are dropped.
	conversation int

	now func() time.Time
}

func NewWidget(chatAPI ChatAPI, store SessionStore) *Widget {
	if store == nil {
		store = &MemorySessionStore{}
	}
	return &Widget{api: chatAPI, store: store, now: time.Now}
}

// Init checks the api is reachable and restores a saved session's history.
func (w *Widget) Init(ctx context.Context) {
	connected := w.api.CheckHealth(ctx)

	w.mu.Lock()
	w.connected = connected
	if !connected {
		w.errorText = ConnectionErrorMessage
	} else if w.errorText == ConnectionErrorMessage {
		w.errorText = ""
	}
	w.mu.Unlock()

	saved, err := w.store.Load()
	if err != nil {
		slog.Warn("unable to load saved session", "error", err)
		return
	}
	if saved == "" {
		return
	}

	w.mu.Lock()
	w.sessionID = saved
	w.mu.Unlock()

	history, err := w.api.GetHistory(ctx, saved, 0)
	if err != nil {
		slog.Error("failed to load history", "session_id", saved, "error", err)
		return
	}

	w.mu.Lock()
	if w.sessionID == saved {
		w.messages = history.Messages
	}
	w.mu.Unlock()
}

// Send posts a message. The user's message is shown immediately and stays in
// the transcript even if the request fails.
func (w *Widget) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	w.mu.Lock()
	if !w.connected {
		w.mu.Unlock()
		return ErrNotConnected
	}
	if w.loading {
		w.mu.Unlock()
		return ErrBusy
	}

	w.errorText = ""
	w.loading = true
	sessionID := w.sessionID
	conversation := w.conversation
	now := w.now()
	w.messages = append(w.messages, api.Message{
		Id:             fmt.Sprintf("temp-%d", now.UnixMilli()),
		ConversationId: sessionID,
		Sender:         api.SenderUser,
		Text:           text,
		CreatedAt:      now,
	})
	w.mu.Unlock()

	res, err := w.api.SendMessage(ctx, api.SendMessageRequest{Message: text, SessionId: sessionID})

	w.mu.Lock()
	defer w.mu.Unlock()
	w.loading = false

	if w.conversation != conversation {
		slog.Info("dropping reply for a conversation that was reset", "session_id", res.SessionId)
		return err
	}

	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			w.errorText = apiErr.Message
		} else {
			w.errorText = SendErrorMessage
		}
		return err
	}

	if sessionID == "" && w.sessionID == "" {
		w.sessionID = res.SessionId
		if err := w.store.Save(res.SessionId); err != nil {
			slog.Warn("unable to save session", "error", err)
		}
	}

	now = w.now()
	w.messages = append(w.messages, api.Message{
		Id:             fmt.Sprintf("ai-%d", now.UnixMilli()),
		ConversationId: res.SessionId,
		Sender:         api.SenderAI,
		Text:           res.Reply,
		CreatedAt:      now,
	})
	return nil
}

// NewConversation forgets the current session. No request is made; the next
// Send starts a new conversation.
func (w *Widget) NewConversation() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.conversation++
	w.messages = nil
	w.sessionID = ""
	w.errorText = ""
	if err := w.store.Clear(); err != nil {
		slog.Warn("unable to clear saved session", "error", err)
	}
}

func (w *Widget) Snapshot() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	return State{
		Messages:  slices.Clone(w.messages),
		SessionID: w.sessionID,
		Loading:   w.loading,
		Connected: w.connected,
		Error:     w.errorText,
	}
}

func CharactersRemaining(text string) int {
	return MaxMessageLength - utf8.RuneCountInString(text)
}
