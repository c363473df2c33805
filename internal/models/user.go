package models

import "time"

// DefaultBio is assigned to new accounts.
const DefaultBio = "Hi there! I'm using monolith."

// User is an account holder.
type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	FullName       string    `gorm:"size:255;not null" json:"full_name"`
	UserName       string    `gorm:"size:50;uniqueIndex;not null" json:"user_name"`
	Email          string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password       string    `gorm:"not null" json:"-"`
	Bio            string    `gorm:"size:500" json:"bio"`
	ProfilePicture string    `json:"profile_picture"`
	CoverPhoto     string    `json:"cover_photo"`
	Location       string    `gorm:"size:255" json:"location"`
	IsAdmin        bool      `gorm:"default:false" json:"is_admin"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// FollowersCount is computed by discovery queries.
	FollowersCount int64 `gorm:"->;-:migration" json:"followers_count"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// Profile is a user with their follow lists attached.
type Profile struct {
	User
	Followers []User `json:"followers"`
	Following []User `json:"following"`
}
