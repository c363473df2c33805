// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// PostType classifies post content.
type PostType string

const (
	PostTypeText          PostType = "text"
	PostTypeImage         PostType = "image"
	PostTypeTextWithImage PostType = "text_with_image"
)

// Valid reports whether t is a known post type.
func (t PostType) Valid() bool {
	switch t {
	case PostTypeText, PostTypeImage, PostTypeTextWithImage:
		return true
	}
	return false
}

// Post represents a post in the monolith application.
type Post struct {
	ID        uint     `gorm:"primaryKey" json:"id"`
	UserID    uint     `gorm:"not null;index" json:"user_id"`
	User      User     `gorm:"foreignKey:UserID" json:"author"`
	Content   string   `gorm:"type:text" json:"content"`
	ImageURLs []string `gorm:"serializer:json;type:text" json:"image_urls"`
	PostType  PostType `gorm:"type:varchar(20);not null;default:'text'" json:"post_type"`
	// LikesCount is not persisted; computed at query time
	LikesCount int64 `gorm:"->;-:migration" json:"likes_count"`
	// LikedByMe indicates whether the requesting user liked this post (computed)
	LikedByMe bool `gorm:"->;-:migration" json:"liked_by_me"`
	// Likes lists the ids of users who liked the post.
	Likes     []uint    `gorm:"-" json:"likes"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Post) TableName() string {
	return "posts"
}

// Like represents a user's like on a post.
// The combination of UserID and PostID must be unique.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_like_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_like_user_post;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Like) TableName() string {
	return "likes"
}

// Comment represents a comment on a post.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	UserID    uint      `gorm:"not null" json:"user_id"`
	Content   string    `gorm:"size:500;not null" json:"content"`
	User      User      `gorm:"foreignKey:UserID" json:"user"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Comment) TableName() string {
	return "comments"
}
