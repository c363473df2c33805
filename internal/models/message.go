package models

import "time"

// MessageType classifies message content.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
)

// Message is a direct message between two users.
type Message struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	FromUserID  uint        `gorm:"not null;index:idx_messages_pair" json:"from_user_id"`
	ToUserID    uint        `gorm:"not null;index:idx_messages_pair;index" json:"to_user_id"`
	Text        string      `gorm:"type:text" json:"text"`
	MediaURL    string      `json:"media_url"`
	MessageType MessageType `gorm:"type:varchar(10);not null;default:'text'" json:"message_type"`
	Seen        bool        `gorm:"not null;default:false" json:"seen"`
	CreatedAt   time.Time   `gorm:"index" json:"created_at"`

	FromUser *User `gorm:"foreignKey:FromUserID" json:"from_user,omitempty"`
	ToUser   *User `gorm:"foreignKey:ToUserID" json:"to_user,omitempty"`
}

// TableName specifies the table name for GORM
func (Message) TableName() string {
	return "messages"
}

// UnreadCount is the number of unseen messages from one sender.
type UnreadCount struct {
	FromUserID uint  `json:"from_user_id"`
	Count      int64 `json:"count"`
}

// Conversation summarizes the latest exchange with one counterpart.
type Conversation struct {
	User        User    `json:"user"`
	LastMessage Message `json:"last_message"`
	UnreadCount int64   `json:"unread_count"`
}
