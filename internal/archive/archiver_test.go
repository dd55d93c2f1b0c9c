package archive_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"support-backend/internal/archive"
	"support-backend/internal/database"
	"support-backend/internal/messaging"
	"support-backend/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const bucket = "transcripts"

type fakeTask struct {
	queue    string
	payload  []byte
	acked    bool
	nacked   bool
	rejected bool
}

func (t *fakeTask) Type() string    { return t.queue }
func (t *fakeTask) Payload() []byte { return t.payload }
func (t *fakeTask) Ack() error      { t.acked = true; return nil }
func (t *fakeTask) Nack() error     { t.nacked = true; return nil }
func (t *fakeTask) Reject() error   { t.rejected = true; return nil }

type failingStore struct {
	storage.ObjectStore
}

func (failingStore) PutObject(ctx context.Context, bucket, key string, data io.Reader) error {
	return errors.New("disk full")
}

func (failingStore) DeleteObject(ctx context.Context, bucket, key string) error {
	return errors.New("permission denied")
}

func createDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), database.GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.GetMigrator(db).Migrate())
	return db
}

func transcriptTask(t *testing.T, conversationID string) *fakeTask {
	data, err := json.Marshal(messaging.TranscriptTaskPayload{
		EventId:        uuid.New(),
		ConversationId: conversationID,
		MessageCount:   2,
		OccurredAt:     time.Now().UTC(),
	})
	require.NoError(t, err)
	return &fakeTask{queue: messaging.TranscriptQueue, payload: data}
}

func seedConversation(t *testing.T, db *gorm.DB) string {
	ctx := context.Background()
	conversation, err := database.CreateConversation(ctx, db, map[string]any{"user_agent": "test"})
	require.NoError(t, err)
	_, err = database.CreateMessage(ctx, db, conversation.ID, database.SenderUser, "Where is my order?")
	require.NoError(t, err)
	_, err = database.CreateMessage(ctx, db, conversation.ID, database.SenderAI, "Orders ship within 24 hours.")
	require.NoError(t, err)
	return conversation.ID
}

func readTranscript(t *testing.T, store *storage.LocalObjectStore, conversationID string) archive.Transcript {
	reader, err := store.GetObject(context.Background(), bucket, archive.TranscriptKey(conversationID))
	require.NoError(t, err)
	defer reader.Close()

	var transcript archive.Transcript
	require.NoError(t, json.NewDecoder(reader).Decode(&transcript))
	return transcript
}

func TestArchiveTranscript(t *testing.T) {
	db := createDB(t)
	store, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	archiver := archive.NewTranscriptArchiver(db, store, messaging.NewInMemoryQueue(), bucket)

	conversationID := seedConversation(t, db)
	task := transcriptTask(t, conversationID)
	archiver.ProcessTask(context.Background(), task)
	assert.True(t, task.acked)

	transcript := readTranscript(t, store, conversationID)
	assert.Equal(t, conversationID, transcript.ConversationId)
	assert.JSONEq(t, `{"user_agent": "test"}`, string(transcript.Metadata))
	require.Len(t, transcript.Messages, 2)
	assert.Equal(t, database.SenderUser, transcript.Messages[0].Sender)
	assert.Equal(t, "Orders ship within 24 hours.", transcript.Messages[1].Text)

	_, err = database.CreateMessage(context.Background(), db, conversationID, database.SenderUser, "Thanks")
	require.NoError(t, err)
	archiver.ProcessTask(context.Background(), transcriptTask(t, conversationID))

	assert.Len(t, readTranscript(t, store, conversationID).Messages, 3)
}

func TestArchiveRemovesDeletedConversation(t *testing.T) {
	db := createDB(t)
	store, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)
	archiver := archive.NewTranscriptArchiver(db, store, messaging.NewInMemoryQueue(), bucket)

	conversationID := seedConversation(t, db)
	archiver.ProcessTask(context.Background(), transcriptTask(t, conversationID))
	assert.Len(t, readTranscript(t, store, conversationID).Messages, 2)

	require.NoError(t, database.DeleteConversation(context.Background(), db, conversationID))

	task := transcriptTask(t, conversationID)
	archiver.ProcessTask(context.Background(), task)
	assert.True(t, task.acked)

	_, err = store.GetObject(context.Background(), bucket, archive.TranscriptKey(conversationID))
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	never := transcriptTask(t, "cnever0000000000000000000")
	archiver.ProcessTask(context.Background(), never)
	assert.True(t, never.acked)
}

func TestArchiveRejectsBadTasks(t *testing.T) {
	db := createDB(t)
	store, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)
	archiver := archive.NewTranscriptArchiver(db, store, messaging.NewInMemoryQueue(), bucket)

	malformed := &fakeTask{queue: messaging.TranscriptQueue, payload: []byte("not json")}
	archiver.ProcessTask(context.Background(), malformed)
	assert.True(t, malformed.rejected)

	unknown := &fakeTask{queue: "other_queue", payload: []byte("{}")}
	archiver.ProcessTask(context.Background(), unknown)
	assert.True(t, unknown.rejected)
	assert.False(t, unknown.acked)
}

func TestArchiveNacksStorageFailure(t *testing.T) {
	db := createDB(t)
	archiver := archive.NewTranscriptArchiver(db, failingStore{}, messaging.NewInMemoryQueue(), bucket)

	task := transcriptTask(t, seedConversation(t, db))
	archiver.ProcessTask(context.Background(), task)
	assert.True(t, task.nacked)
	assert.False(t, task.acked)
}

func TestArchiveNacksTranscriptRemovalFailure(t *testing.T) {
	db := createDB(t)
	archiver := archive.NewTranscriptArchiver(db, failingStore{}, messaging.NewInMemoryQueue(), bucket)

	task := transcriptTask(t, "cdeleted00000000000000000")
	archiver.ProcessTask(context.Background(), task)
	assert.True(t, task.nacked)
	assert.False(t, task.acked)
}

func TestArchiverStart(t *testing.T) {
	db := createDB(t)
	store, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	queue := messaging.NewInMemoryQueue()
	archiver := archive.NewTranscriptArchiver(db, store, queue, bucket)

	done := make(chan struct{})
	go func() {
		archiver.Start(context.Background())
		close(done)
	}()

	conversationID := seedConversation(t, db)
	require.NoError(t, queue.PublishTranscriptTask(context.Background(), messaging.TranscriptTaskPayload{
		EventId:        uuid.New(),
		ConversationId: conversationID,
		MessageCount:   2,
		OccurredAt:     time.Now().UTC(),
	}))

	archiver.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("archiver did not stop")
	}

	assert.Len(t, readTranscript(t, store, conversationID).Messages, 2)
}
