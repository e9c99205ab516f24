package models

import "time"

// Notification represents a message delivered to a user or a whole role.
// TargetRole is set for broadcast notifications; UserID for direct ones.
type Notification struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     string    `gorm:"size:64;index" json:"user_id"`
	TargetRole string    `gorm:"size:32;index" json:"target_role"`
	SenderID   string    `gorm:"size:64;index" json:"sender_id"`
	Title      string    `gorm:"size:255;not null" json:"title"`
	Message    string    `gorm:"type:text" json:"message"`
	Type       string    `gorm:"size:32;default:info" json:"type"`
	Read       bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Notification types accepted by the dispatch endpoint.
const (
	NotificationTypeInfo    = "info"
	NotificationTypeSuccess = "success"
	NotificationTypeWarning = "warning"
	NotificationTypeError   = "error"
)
