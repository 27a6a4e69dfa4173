package models

import (
	"time"

	utils "DirectChat/pkg/utills"

	"gorm.io/gorm"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeFile  MessageType = "file"
	MessageTypeImage MessageType = "image"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeFile, MessageTypeImage:
		return true
	}
	return false
}

type Message struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	ConversationID uint        `gorm:"not null;index:idx_messages_conv_created,priority:1" json:"conversation_id"`
	SenderID       uint        `gorm:"not null;index" json:"sender_id"`
	RecipientID    uint        `gorm:"not null;index:idx_messages_recipient_read,priority:1" json:"recipient_id"`
	Content        string      `gorm:"type:text;not null" json:"content"`
	MessageType    MessageType `gorm:"size:10;not null;default:text" json:"message_type"`
	FileURL        string      `gorm:"size:500" json:"file_url,omitempty"`
	FileName       string      `gorm:"size:255" json:"file_name,omitempty"`
	IsRead         bool        `gorm:"not null;default:false;index:idx_messages_recipient_read,priority:2" json:"is_read"`
	CreatedAt      time.Time   `gorm:"index:idx_messages_conv_created,priority:2" json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	SearchText     string      `gorm:"type:text" json:"-"`

	Conversation *Conversation `gorm:"foreignKey:ConversationID;constraint:OnDelete:RESTRICT" json:"-"`
}

func (m *Message) BeforeSave(*gorm.DB) error {
	m.SearchText = utils.Fold(m.Content)
	return nil
}
