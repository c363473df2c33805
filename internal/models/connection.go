package models

import (
	"time"

	"gorm.io/gorm"
)

// ConnectionStatus represents the status of a connection request.
type ConnectionStatus string

const (
	// ConnectionStatusPending indicates a request awaiting the recipient.
	ConnectionStatusPending ConnectionStatus = "pending"
	// ConnectionStatusAccepted indicates a mutual connection.
	ConnectionStatusAccepted ConnectionStatus = "accepted"
)

// Connection is a directed request between two users that becomes a mutual
// link once accepted. At most one row exists per unordered pair.
type Connection struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	FromUserID uint             `gorm:"not null;index" json:"from_user_id"`
	ToUserID   uint             `gorm:"not null;index" json:"to_user_id"`
	UserLow    uint             `gorm:"not null;uniqueIndex:idx_connection_pair" json:"-"`
	UserHigh   uint             `gorm:"not null;uniqueIndex:idx_connection_pair" json:"-"`
	Status     ConnectionStatus `gorm:"type:varchar(20);default:'pending';index:idx_connections_status" json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`

	// Relationships
	FromUser User `gorm:"foreignKey:FromUserID" json:"from_user,omitempty"`
	ToUser   User `gorm:"foreignKey:ToUserID" json:"to_user,omitempty"`
}

// TableName specifies the table name for GORM
func (Connection) TableName() string {
	return "connections"
}

// BeforeCreate derives the unordered pair key. Direction stays in
// FromUserID/ToUserID.
func (c *Connection) BeforeCreate(_ *gorm.DB) error {
	c.UserLow, c.UserHigh = OrderedPair(c.FromUserID, c.ToUserID)
	return nil
}

// OrderedPair returns (min, max) of two user ids.
func OrderedPair(a, b uint) (uint, uint) {
	if a < b {
		return a, b
	}
	return b, a
}

// ConnectionState is a pair's state as seen from one side.
type ConnectionState string

const (
	ConnectionStateNone            ConnectionState = "none"
	ConnectionStatePendingSent     ConnectionState = "pending_sent"
	ConnectionStatePendingReceived ConnectionState = "pending_received"
	ConnectionStateConnected       ConnectionState = "connected"
)

// StateFor reports the state of c from viewerID's point of view. A nil
// connection is ConnectionStateNone.
func (c *Connection) StateFor(viewerID uint) ConnectionState {
	if c == nil {
		return ConnectionStateNone
	}
	if c.Status == ConnectionStatusAccepted {
		return ConnectionStateConnected
	}
	if c.FromUserID == viewerID {
		return ConnectionStatePendingSent
	}
	return ConnectionStatePendingReceived
}

// Follow is a one-directional subscription edge.
type Follow struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FollowerID uint      `gorm:"not null;uniqueIndex:idx_follow_pair" json:"follower_id"`
	FollowedID uint      `gorm:"not null;uniqueIndex:idx_follow_pair;index" json:"followed_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Follow) TableName() string {
	return "follows"
}
