package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"support-backend/internal/database"
	"support-backend/internal/messaging"
	"support-backend/internal/storage"
	"support-backend/pkg/api"

	"gorm.io/gorm"
)

const TranscriptPrefix = "transcripts"

// Transcript is the archived snapshot of a conversation. Every transcript task
// overwrites the previous snapshot with the full conversation.
type Transcript struct {
	ConversationId string          `json:"conversationId"`
	CreatedAt      time.Time       `json:"createdAt"`
	Metadata       json.RawMessage `json:"metadata"`
	ArchivedAt     time.Time       `json:"archivedAt"`
	Messages       []api.Message   `json:"messages"`
}

func TranscriptKey(conversationID string) string {
	return path.Join(TranscriptPrefix, conversationID+".json")
}

type TranscriptArchiver struct {
	db       *gorm.DB
	storage  storage.ObjectStore
	reciever messaging.Reciever
	bucket   string
}

func NewTranscriptArchiver(db *gorm.DB, storage storage.ObjectStore, reciever messaging.Reciever, bucket string) *TranscriptArchiver {
	return &TranscriptArchiver{
		db:       db,
		storage:  storage,
		reciever: reciever,
		bucket:   bucket,
	}
}

// Start processes tasks until ctx is cancelled or the reciever's task channel is closed.
func (a *TranscriptArchiver) Start(ctx context.Context) {
	slog.Info("starting transcript archiver", "bucket", a.bucket)

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-a.reciever.Tasks():
			if !ok {
				slog.Info("task channel closed, transcript archiver exiting")
				return
			}
			a.ProcessTask(ctx, task)
		}
	}
}

func (a *TranscriptArchiver) Stop() {
	slog.Info("stopping transcript archiver")
	a.reciever.Close()
}

func (a *TranscriptArchiver) ProcessTask(ctx context.Context, task messaging.Task) {
	var err error
	switch task.Type() {

	case messaging.TranscriptQueue:
		var payload messaging.TranscriptTaskPayload
		if err = json.Unmarshal(task.Payload(), &payload); err != nil || payload.ConversationId == "" {
			slog.Error("error unmarshalling transcript task", "error", err)
			if err := task.Reject(); err != nil { // Discard malformed message
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		err = a.archiveTranscript(ctx, payload)

	default:
		slog.Error("received unknown task type", "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	if err != nil {
		slog.Error("error processing task", "queue", task.Type(), "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error reporting processing failure on message from queue", "error", err)
		}
	} else {
		if err := task.Ack(); err != nil {
			slog.Error("error acknowledging message from queue", "error", err)
		}
	}
}

func (a *TranscriptArchiver) archiveTranscript(ctx context.Context, payload messaging.TranscriptTaskPayload) error {
	conversation, err := database.GetConversation(ctx, a.db, payload.ConversationId, true)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return a.removeTranscript(ctx, payload)
		}
		return fmt.Errorf("error loading conversation: %w", err)
	}

	transcript := Transcript{
		ConversationId: conversation.ID,
		CreatedAt:      conversation.CreatedAt,
		Metadata:       json.RawMessage(conversation.Metadata),
		ArchivedAt:     database.NowUTC(),
		Messages:       make([]api.Message, 0, len(conversation.Messages)),
	}
	for _, m := range conversation.Messages {
		transcript.Messages = append(transcript.Messages, api.Message{
			Id:             m.ID,
			ConversationId: m.ConversationID,
			Sender:         m.Sender,
			Text:           m.Text,
			CreatedAt:      m.CreatedAt,
		})
	}

	data, err := json.MarshalIndent(transcript, "", "  ")
	if err != nil {
		return fmt.Errorf("error serializing transcript: %w", err)
	}

	key := TranscriptKey(conversation.ID)
	if err := a.storage.PutObject(ctx, a.bucket, key, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("error uploading transcript: %w", err)
	}

	slog.Info("archived transcript", "conversation_id", conversation.ID, "messages", len(transcript.Messages), "key", key)
	return nil
}

// removeTranscript drops the snapshot of a conversation that has been deleted.
func (a *TranscriptArchiver) removeTranscript(ctx context.Context, payload messaging.TranscriptTaskPayload) error {
	key := TranscriptKey(payload.ConversationId)
	if err := a.storage.DeleteObject(ctx, a.bucket, key); err != nil {
		return fmt.Errorf("error removing transcript of deleted conversation: %w", err)
	}

	slog.Warn("conversation no longer exists, removed transcript", "conversation_id", payload.ConversationId, "event_id", payload.EventId, "key", key)
	return nil
}
