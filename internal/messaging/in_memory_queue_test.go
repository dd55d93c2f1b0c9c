package messaging_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"support-backend/internal/messaging"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueuePublishTranscriptTask(t *testing.T) {
	queue := messaging.NewInMemoryQueue()
	defer queue.Close()

	payload := messaging.TranscriptTaskPayload{
		EventId:        uuid.New(),
		ConversationId: "cabcdefghijklmnopqrstuvwx",
		MessageCount:   4,
		OccurredAt:     time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, queue.PublishTranscriptTask(context.Background(), payload))

	task := <-queue.Tasks()
	assert.Equal(t, messaging.TranscriptQueue, task.Type())

	var received messaging.TranscriptTaskPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &received))
	assert.Equal(t, payload.EventId, received.EventId)
	assert.Equal(t, payload.ConversationId, received.ConversationId)
	assert.Equal(t, payload.MessageCount, received.MessageCount)
	assert.True(t, payload.OccurredAt.Equal(received.OccurredAt))

	assert.NoError(t, task.Ack())
}

func TestInMemoryQueueClosed(t *testing.T) {
	queue := messaging.NewInMemoryQueue()
	queue.Close()
	queue.Close()

	err := queue.PublishTranscriptTask(context.Background(), messaging.TranscriptTaskPayload{})
	assert.ErrorIs(t, err, messaging.ErrQueueClosed)

	_, ok := <-queue.Tasks()
	assert.False(t, ok)
}

func TestInMemoryQueueFullRespectsContext(t *testing.T) {
	queue := messaging.NewInMemoryQueue()
	defer queue.Close()

	for i := 0; i < 100; i++ {
		require.NoError(t, queue.PublishTranscriptTask(context.Background(), messaging.TranscriptTaskPayload{}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, queue.PublishTranscriptTask(ctx, messaging.TranscriptTaskPayload{}), context.DeadlineExceeded)
}
