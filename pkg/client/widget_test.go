package client_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"support-backend/pkg/api"
	"support-backend/pkg/client"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu         sync.Mutex
	healthy    bool
	sendErr    error
	historyErr error
	history    map[string][]api.Message
	sent       []api.SendMessageRequest
	historyFor []string
	// onSend runs while a message is in flight.
	onSend func()
}

func (f *fakeAPI) SendMessage(ctx context.Context, req api.SendMessageRequest) (api.SendMessageResponse, error) {
	if f.onSend != nil {
		f.onSend()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	if f.sendErr != nil {
		return api.SendMessageResponse{}, f.sendErr
	}
	sessionID := req.SessionId
	if sessionID == "" {
		sessionID = "cnewsession00000000000000"
	}
	return api.SendMessageResponse{Reply: "echo: " + req.Message, SessionId: sessionID}, nil
}

func (f *fakeAPI) GetHistory(ctx context.Context, sessionID string, limit int) (api.HistoryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyFor = append(f.historyFor, sessionID)
	if f.historyErr != nil {
		return api.HistoryResponse{}, f.historyErr
	}
	return api.HistoryResponse{SessionId: sessionID, Messages: f.history[sessionID]}, nil
}

func (f *fakeAPI) CheckHealth(ctx context.Context) bool {
	return f.healthy
}

func TestWidgetInitDisconnected(t *testing.T) {
	w := client.NewWidget(&fakeAPI{healthy: false}, nil)
	w.Init(context.Background())

	state := w.Snapshot()
	assert.False(t, state.Connected)
	assert.Equal(t, client.ConnectionErrorMessage, state.Error)

	assert.ErrorIs(t, w.Send(context.Background(), "hello"), client.ErrNotConnected)
	assert.Empty(t, w.Snapshot().Messages)
}

func TestWidgetInitRestoresSession(t *testing.T) {
	store := &client.MemorySessionStore{}
	require.NoError(t, store.Save("csaved0000000000000000000"))

	fake := &fakeAPI{healthy: true, history: map[string][]api.Message{
		"csaved0000000000000000000": {
			{Id: "1", Sender: api.SenderUser, Text: "hi"},
			{Id: "2", Sender: api.SenderAI, Text: "hello"},
		},
	}}
	w := client.NewWidget(fake, store)
	w.Init(context.Background())

	state := w.Snapshot()
	assert.True(t, state.Connected)
	assert.Empty(t, state.Error)
	assert.Equal(t, "csaved0000000000000000000", state.SessionID)
	assert.Len(t, state.Messages, 2)
}

func TestWidgetInitHistoryFailureNotSurfaced(t *testing.T) {
	store := &client.MemorySessionStore{}
	require.NoError(t, store.Save("cgone00000000000000000000"))

	w := client.NewWidget(&fakeAPI{healthy: true, historyErr: errors.New("not found")}, store)
	w.Init(context.Background())

	state := w.Snapshot()
	assert.Empty(t, state.Error)
	assert.Empty(t, state.Messages)
	assert.Equal(t, "cgone00000000000000000000", state.SessionID)
}

func TestWidgetSend(t *testing.T) {
	store := &client.MemorySessionStore{}
	fake := &fakeAPI{healthy: true}
	w := client.NewWidget(fake, store)
	w.Init(context.Background())

	require.NoError(t, w.Send(context.Background(), "   "))
	assert.Empty(t, fake.sent)

	require.NoError(t, w.Send(context.Background(), "  Do you ship to Canada? "))
	state := w.Snapshot()
	require.Len(t, state.Messages, 2)
	assert.True(t, strings.HasPrefix(state.Messages[0].Id, "temp-"))
	assert.Equal(t, "Do you ship to Canada?", state.Messages[0].Text)
	assert.Equal(t, api.SenderAI, state.Messages[1].Sender)
	assert.Equal(t, "echo: Do you ship to Canada?", state.Messages[1].Text)
	assert.Equal(t, "cnewsession00000000000000", state.SessionID)
	assert.False(t, state.Loading)

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "cnewsession00000000000000", saved)

	require.NoError(t, w.Send(context.Background(), "thanks"))
	assert.Equal(t, "cnewsession00000000000000", fake.sent[1].SessionId)
}

func TestWidgetSendFailureKeepsOptimisticMessage(t *testing.T) {
	fake := &fakeAPI{healthy: true, sendErr: &client.APIError{Status: 500, Message: "An internal error occurred"}}
	w := client.NewWidget(fake, nil)
	w.Init(context.Background())

	assert.Error(t, w.Send(context.Background(), "hello"))

	state := w.Snapshot()
	require.Len(t, state.Messages, 1)
	assert.Equal(t, "hello", state.Messages[0].Text)
	assert.Equal(t, "An internal error occurred", state.Error)
	assert.False(t, state.Loading)
	assert.Empty(t, state.SessionID)

	fake.sendErr = errors.New("connection refused")
	assert.Error(t, w.Send(context.Background(), "retry"))
	assert.Equal(t, client.SendErrorMessage, w.Snapshot().Error)

	fake.sendErr = nil
	require.NoError(t, w.Send(context.Background(), "third"))
	state = w.Snapshot()
	assert.Empty(t, state.Error)
	assert.Len(t, state.Messages, 4)
}

func TestWidgetNewConversation(t *testing.T) {
	store := &client.MemorySessionStore{}
	fake := &fakeAPI{healthy: true}
	w := client.NewWidget(fake, store)
	w.Init(context.Background())

	require.NoError(t, w.Send(context.Background(), "hello"))
	w.NewConversation()

	state := w.Snapshot()
	assert.Empty(t, state.Messages)
	assert.Empty(t, state.SessionID)
	assert.Empty(t, state.Error)

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, saved)
	assert.Len(t, fake.sent, 1)

	require.NoError(t, w.Send(context.Background(), "fresh"))
	assert.Empty(t, fake.sent[1].SessionId)
}

func TestWidgetDropsReplyAfterNewConversation(t *testing.T) {
	store := &client.MemorySessionStore{}
	fake := &fakeAPI{healthy: true}
	w := client.NewWidget(fake, store)
	w.Init(context.Background())

	fake.onSend = w.NewConversation
	require.NoError(t, w.Send(context.Background(), "hello"))

	state := w.Snapshot()
	assert.Empty(t, state.Messages)
	assert.Empty(t, state.SessionID)
	assert.False(t, state.Loading)

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, saved)

	fake.onSend = nil
	require.NoError(t, w.Send(context.Background(), "fresh"))
	state = w.Snapshot()
	require.Len(t, state.Messages, 2)
	assert.Equal(t, "fresh", state.Messages[0].Text)
	assert.Equal(t, "cnewsession00000000000000", state.SessionID)
}

func TestCharactersRemaining(t *testing.T) {
	assert.Equal(t, client.MaxMessageLength, client.CharactersRemaining(""))
	assert.Equal(t, client.MaxMessageLength-3, client.CharactersRemaining("héy"))
}
