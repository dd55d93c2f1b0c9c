package chat

import (
	"context"
	"log/slog"
	"time"

	"support-backend/internal/database"
	"support-backend/internal/messaging"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	maxLockedSessions = 1024
	publishTimeout    = 5 * time.Second
)

// Generator produces the AI reply for a customer message. It must not fail;
// provider errors are expected to be turned into a reply.
type Generator interface {
	Generate(ctx context.Context, userText string, history []database.Message) string
}

type ExchangeRequest struct {
	Text      string
	SessionID string
	// Metadata is stored on the conversation when a new one is created.
	Metadata map[string]any
}

type ExchangeResult struct {
	Reply     string
	SessionID string
}

type Service struct {
	db        *gorm.DB
	generator Generator
	publisher messaging.Publisher
	locks     *sessionLocks
}

// NewService creates the orchestrator. publisher may be nil, in which case no
// transcript events are emitted.
func NewService(db *gorm.DB, generator Generator, publisher messaging.Publisher) *Service {
	return &Service{
		db:        db,
		generator: generator,
		publisher: publisher,
		locks:     newSessionLocks(maxLockedSessions),
	}
}

func (s *Service) Exchange(ctx context.Context, req ExchangeRequest) (ExchangeResult, error) {
	text, fieldErrs := validateMessage(req.Text)
	if req.SessionID != "" {
		fieldErrs = append(fieldErrs, validateSessionID(req.SessionID)...)
	}
	if len(fieldErrs) > 0 {
		return ExchangeResult{}, validationError(fieldErrs...)
	}

	conversationID := req.SessionID
	if conversationID != "" {
		if err := s.locks.Lock(conversationID); err != nil {
			slog.Warn("exchange is not serialized", "session_id", conversationID, "error", err)
		} else {
			defer s.locks.Unlock(conversationID)
		}

		exists, err := database.ConversationExists(ctx, s.db, conversationID)
		if err != nil {
			return ExchangeResult{}, databaseError(err)
		}
		if !exists {
			return ExchangeResult{}, notFoundError("Invalid session ID")
		}
	} else {
		conversation, err := database.CreateConversation(ctx, s.db, req.Metadata)
		if err != nil {
			return ExchangeResult{}, databaseError(err)
		}
		conversationID = conversation.ID
		slog.Info("created conversation", "session_id", conversationID)
	}

	userMsg, err := database.CreateMessage(ctx, s.db, conversationID, database.SenderUser, text)
	if err != nil {
		return ExchangeResult{}, databaseError(err)
	}

	// Once the customer turn is stored it must get an agent turn, even if the
	// client goes away or the request deadline passes. The gateway applies its
	// own timeout.
	ctx = context.WithoutCancel(ctx)

	// The new message is the trailing customer line of the prompt, so it is
	// left out of the history block.
	history, err := database.RecentMessages(ctx, s.db, conversationID, MaxHistoryMessages, userMsg.ID)
	if err != nil {
		return ExchangeResult{}, databaseError(err)
	}

	reply := s.generator.Generate(ctx, text, history)

	if _, err := database.CreateMessage(ctx, s.db, conversationID, database.SenderAI, reply); err != nil {
		return ExchangeResult{}, databaseError(err)
	}

	s.publishTranscript(ctx, conversationID)

	return ExchangeResult{Reply: reply, SessionID: conversationID}, nil
}

func (s *Service) publishTranscript(ctx context.Context, conversationID string) {
	if s.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	count, err := database.CountMessages(ctx, s.db, conversationID)
	if err != nil {
		slog.Error("error counting messages for transcript event", "session_id", conversationID, "error", err)
		return
	}

	payload := messaging.TranscriptTaskPayload{
		EventId:        uuid.New(),
		ConversationId: conversationID,
		MessageCount:   count,
		OccurredAt:     database.NowUTC(),
	}
	if err := s.publisher.PublishTranscriptTask(ctx, payload); err != nil {
		slog.Error("error publishing transcript task", "session_id", conversationID, "error", err)
	}
}

// History returns a conversation's messages oldest first. A limit <= 0 returns
// every message.
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]database.Message, error) {
	if fieldErrs := validateSessionID(sessionID); len(fieldErrs) > 0 {
		return nil, validationError(fieldErrs...)
	}

	exists, err := database.ConversationExists(ctx, s.db, sessionID)
	if err != nil {
		return nil, databaseError(err)
	}
	if !exists {
		return nil, notFoundError("Invalid session ID")
	}

	messages, err := database.ListMessages(ctx, s.db, sessionID, limit)
	if err != nil {
		return nil, databaseError(err)
	}
	return messages, nil
}
