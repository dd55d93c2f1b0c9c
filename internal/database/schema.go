package database

import (
	"time"

	"github.com/lucsky/cuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SenderUser string = "USER"
	SenderAI   string = "AI"
)

type Conversation struct {
	ID        string         `gorm:"size:32;primaryKey"`
	CreatedAt time.Time      `gorm:"not null"`
	Metadata  datatypes.JSON `gorm:"not null"`

	Messages []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

func (c *Conversation) BeforeCreate(txn *gorm.DB) error {
	if c.ID == "" {
		c.ID = cuid.New()
	}
	if len(c.Metadata) == 0 {
		c.Metadata = datatypes.JSON("{}")
	}
	return nil
}

type Message struct {
	ID             string    `gorm:"size:32;primaryKey"`
	ConversationID string    `gorm:"size:32;not null;index:idx_messages_conversation_created,priority:1"`
	Sender         string    `gorm:"size:8;not null"`
	Text           string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"not null;index:idx_messages_conversation_created,priority:2"`
}

func (m *Message) BeforeCreate(txn *gorm.DB) error {
	if m.ID == "" {
		m.ID = cuid.New()
	}
	return nil
}
