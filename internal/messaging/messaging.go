package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TranscriptQueue = "transcript_queue"
	RetryDelay      = 5 * time.Second
	MaxConnectRetry = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

// TranscriptTaskPayload is published after every completed exchange so the
// conversation transcript can be archived.
type TranscriptTaskPayload struct {
	EventId        uuid.UUID
	ConversationId string
	MessageCount   int64
	OccurredAt     time.Time
}

type Publisher interface {
	PublishTranscriptTask(ctx context.Context, payload TranscriptTaskPayload) error

	Close()
}

type Reciever interface {
	Tasks() <-chan Task

	Close()
}
