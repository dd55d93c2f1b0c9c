package integrationtests

import (
	"context"
	"errors"
	"encoding/json"
	"testing"
	"time"

	"support-backend/internal/messaging"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRabbitMQ(t *testing.T) {
	skipIfShort(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	publisher, receiver := setupRabbitMQContainer(t, ctx)

	t.Run("Publish and Receive TranscriptTask", func(t *testing.T) {
		payload := messaging.TranscriptTaskPayload{
			EventId:        uuid.New(),
			ConversationId: "cabcdefghijklmnopqrstuvwx",
			MessageCount:   2,
			OccurredAt:     time.Now().UTC().Truncate(time.Millisecond),
		}
		require.NoError(t, publisher.PublishTranscriptTask(ctx, payload))

		select {
		case task := <-receiver.Tasks():
			assert.Equal(t, messaging.TranscriptQueue, task.Type())

			var received messaging.TranscriptTaskPayload
			require.NoError(t, json.Unmarshal(task.Payload(), &received))
			assert.Equal(t, payload.EventId, received.EventId)
			assert.Equal(t, payload.ConversationId, received.ConversationId)
			assert.Equal(t, payload.MessageCount, received.MessageCount)
			assert.True(t, payload.OccurredAt.Equal(received.OccurredAt))

			require.NoError(t, task.Ack())
		case <-time.After(4 * time.Second):
			t.Fatal("Timed out waiting for task")
		}
	})

	t.Run("Nacked task is redelivered once", func(t *testing.T) {
		payload := messaging.TranscriptTaskPayload{EventId: uuid.New(), ConversationId: "credelivered0000000000000"}
		require.NoError(t, publisher.PublishTranscriptTask(ctx, payload))

		for attempt := 0; attempt < 2; attempt++ {
			select {
			case task := <-receiver.Tasks():
				var received messaging.TranscriptTaskPayload
				require.NoError(t, json.Unmarshal(task.Payload(), &received))
				assert.Equal(t, payload.EventId, received.EventId)
				require.NoError(t, task.Nack())
			case <-time.After(4 * time.Second):
				t.Fatalf("Timed out waiting for delivery %d", attempt+1)
			}
		}

		select {
		case task := <-receiver.Tasks():
			t.Fatalf("unexpected third delivery of %s", string(task.Payload()))
		case <-time.After(time.Second):
		}
	})

	t.Run("Publish after Close fails", func(t *testing.T) {
		publisher.Close()
		publisher.Close()

		require.Eventually(t, func() bool {
			err := publisher.PublishTranscriptTask(ctx, messaging.TranscriptTaskPayload{EventId: uuid.New()})
			return errors.Is(err, messaging.ErrRabbitMQUnavailable)
		}, 5*time.Second, 100*time.Millisecond)
	})
}
