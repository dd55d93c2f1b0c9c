package migration_1

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	windowIndex = "idx_messages_conversation_created"
	oldIndex    = "idx_messages_conversation_id"
)

type Message struct {
	ConversationID string    `gorm:"index:idx_messages_conversation_created,priority:1;index"`
	CreatedAt      time.Time `gorm:"index:idx_messages_conversation_created,priority:2"`
}

func Migration(db *gorm.DB) error {
	if err := db.Migrator().CreateIndex(&Message{}, windowIndex); err != nil {
		return fmt.Errorf("error creating %s index: %w", windowIndex, err)
	}

	if db.Migrator().HasIndex(&Message{}, oldIndex) {
		if err := db.Migrator().DropIndex(&Message{}, oldIndex); err != nil {
			return fmt.Errorf("error dropping %s index: %w", oldIndex, err)
		}
	}

	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().CreateIndex(&Message{}, oldIndex); err != nil {
		return fmt.Errorf("error creating %s index: %w", oldIndex, err)
	}

	if err := db.Migrator().DropIndex(&Message{}, windowIndex); err != nil {
		return fmt.Errorf("error dropping %s index: %w", windowIndex, err)
	}

	return nil
}
