package dto

import (
	"time"

	"github.com/noah-isme/renluyen-go-api/internal/models"
)

// NotificationCreateRequest describes a notification dispatch payload.
// Either UserID (direct) or TargetRole (broadcast) must be set.
type NotificationCreateRequest struct {
	UserID     string `json:"user_id" validate:"required_without=TargetRole"`
	TargetRole string `json:"target_role" validate:"omitempty,oneof=student teacher all"`
	SenderID   string `json:"sender_id" validate:"required"`
	Title      string `json:"title" validate:"required,min=3,max=255"`
	Message    string `json:"message" validate:"required"`
	Type       string `json:"type" validate:"required,oneof=info success warning error"`
}

// NotificationResponse serializes a notification for API clients.
type NotificationResponse struct {
	ID         uint      `json:"id"`
	UserID     string    `json:"user_id"`
	TargetRole string    `json:"target_role"`
	SenderID   string    `json:"sender_id"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Type       string    `json:"type"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewNotificationResponse converts a Notification model into a DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:         model.ID,
		UserID:     model.UserID,
		TargetRole: model.TargetRole,
		SenderID:   model.SenderID,
		Title:      model.Title,
		Message:    model.Message,
		Type:       model.Type,
		Read:       model.Read,
		CreatedAt:  model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts notification models into DTOs.
func NewNotificationResponseSlice(models []models.Notification) []NotificationResponse {
	responses := make([]NotificationResponse, 0, len(models))
	for _, notification := range models {
		responses = append(responses, NewNotificationResponse(notification))
	}

	return responses
}
