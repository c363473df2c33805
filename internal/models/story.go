package models

import "time"

// StoryMediaType classifies story content.
type StoryMediaType string

const (
	StoryMediaText  StoryMediaType = "text"
	StoryMediaImage StoryMediaType = "image"
	StoryMediaVideo StoryMediaType = "video"
)

// Valid reports whether t is a known media type.
func (t StoryMediaType) Valid() bool {
	switch t {
	case StoryMediaText, StoryMediaImage, StoryMediaVideo:
		return true
	}
	return false
}

// Story is ephemeral content that is removed once ExpiresAt passes.
type Story struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	UserID          uint           `gorm:"not null;index" json:"user_id"`
	User            User           `gorm:"foreignKey:UserID" json:"user"`
	Content         string         `gorm:"type:text" json:"content"`
	MediaURL        string         `json:"media_url"`
	MediaType       StoryMediaType `gorm:"type:varchar(10);not null" json:"media_type"`
	BackgroundColor string         `gorm:"size:32" json:"background_color"`
	// ViewCount holds the ids of users who viewed the story.
	ViewCount []uint    `gorm:"serializer:json;type:text" json:"view_count"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
}

// TableName specifies the table name for GORM
func (Story) TableName() string {
	return "stories"
}

// HasViewer reports whether userID is already recorded as a viewer.
func (s *Story) HasViewer(userID uint) bool {
	for _, id := range s.ViewCount {
		if id == userID {
			return true
		}
	}
	return false
}
