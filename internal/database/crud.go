package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func CreateConversation(ctx context.Context, txn *gorm.DB, metadata map[string]any) (*Conversation, error) {
	conversation := Conversation{Metadata: datatypes.JSON("{}")}
	if len(metadata) > 0 {
		data, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("could not marshal conversation metadata: %w", err)
		}
		conversation.Metadata = datatypes.JSON(data)
	}

	if err := txn.WithContext(ctx).Create(&conversation).Error; err != nil {
		slog.Error("error creating conversation", "error", err)
		return nil, fmt.Errorf("error creating conversation: %w", err)
	}
	return &conversation, nil
}

// GetConversation returns gorm.ErrRecordNotFound (wrapped) if the conversation does not exist.
func GetConversation(ctx context.Context, txn *gorm.DB, id string, withMessages bool) (*Conversation, error) {
	query := txn.WithContext(ctx)
	if withMessages {
		query = query.Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		})
	}

	var conversation Conversation
	if err := query.First(&conversation, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("error getting conversation %s: %w", id, err)
	}
	return &conversation, nil
}

func ConversationExists(ctx context.Context, txn *gorm.DB, id string) (bool, error) {
	var count int64
	if err := txn.WithContext(ctx).Model(&Conversation{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("error checking conversation %s: %w", id, err)
	}
	return count > 0, nil
}

func DeleteConversation(ctx context.Context, txn *gorm.DB, id string) error {
	return txn.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		// Messages are deleted explicitly since sqlite connections may not enforce the cascade.
		if err := txn.Delete(&Message{}, "conversation_id = ?", id).Error; err != nil {
			return fmt.Errorf("error deleting messages for conversation %s: %w", id, err)
		}
		result := txn.Delete(&Conversation{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("error deleting conversation %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("error deleting conversation %s: %w", id, gorm.ErrRecordNotFound)
		}
		return nil
	})
}

func CreateMessage(ctx context.Context, txn *gorm.DB, conversationID, sender, text string) (*Message, error) {
	message := Message{
		ConversationID: conversationID,
		Sender:         sender,
		Text:           text,
	}
	if err := txn.WithContext(ctx).Create(&message).Error; err != nil {
		slog.Error("error saving message", "conversation_id", conversationID, "sender", sender, "error", err)
		return nil, fmt.Errorf("error saving message: %w", err)
	}
	return &message, nil
}

// ListMessages returns messages oldest first. A limit <= 0 returns every message.
func ListMessages(ctx context.Context, txn *gorm.DB, conversationID string, limit int) ([]Message, error) {
	query := txn.WithContext(ctx).Where("conversation_id = ?", conversationID).Order("created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var messages []Message
	if err := query.Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("error listing messages for conversation %s: %w", conversationID, err)
	}
	return messages, nil
}

// RecentMessages returns the newest limit messages, ordered oldest first.
// Messages whose id is in excludeIDs do not count towards the limit.
func RecentMessages(ctx context.Context, txn *gorm.DB, conversationID string, limit int, excludeIDs ...string) ([]Message, error) {
	query := txn.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if len(excludeIDs) > 0 {
		query = query.Where("id NOT IN ?", excludeIDs)
	}

	var messages []Message
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("error loading recent messages for conversation %s: %w", conversationID, err)
	}

	slices.Reverse(messages)
	return messages, nil
}

func CountMessages(ctx context.Context, txn *gorm.DB, conversationID string) (int64, error) {
	var count int64
	if err := txn.WithContext(ctx).Model(&Message{}).Where("conversation_id = ?", conversationID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("error counting messages for conversation %s: %w", conversationID, err)
	}
	return count, nil
}
