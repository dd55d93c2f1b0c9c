package migration_0

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Conversation struct {
	ID        string         `gorm:"size:32;primaryKey"`
	CreatedAt time.Time      `gorm:"not null"`
	Metadata  datatypes.JSON `gorm:"not null"`

	Messages []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

type Message struct {
	ID             string    `gorm:"size:32;primaryKey"`
	ConversationID string    `gorm:"size:32;not null;index"`
	Sender         string    `gorm:"size:8;not null"`
	Text           string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

func Migration(db *gorm.DB) error {
	return db.AutoMigrate(&Conversation{}, &Message{})
}
