package models

import (
	"time"

	"gorm.io/gorm"
)

// Student represents a learner whose conduct is scored each semester.
type Student struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	StudentCode string         `gorm:"size:32;uniqueIndex;not null" json:"student_code"`
	FullName    string         `gorm:"size:255;not null" json:"full_name"`
	Email       string         `gorm:"size:255;uniqueIndex;not null" json:"email"`
	ClassID     string         `gorm:"size:32;index" json:"class_id"`
	Phone       string         `gorm:"size:32" json:"phone"`
	DateOfBirth string         `gorm:"size:16" json:"date_of_birth"`
	Status      string         `gorm:"size:32;not null;default:active" json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

const (
	// StudentStatusActive marks a currently enrolled student.
	StudentStatusActive = "active"
	// StudentStatusArchived marks a student removed from active rosters.
	StudentStatusArchived = "archived"
)
