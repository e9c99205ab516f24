package dto

import (
	"time"

	"github.com/noah-isme/renluyen-go-api/internal/models"
)

// StudentCreateRequest registers a new student on the roster.
type StudentCreateRequest struct {
	StudentCode string `json:"student_code" validate:"required,min=4,max=32"`
	FullName    string `json:"full_name" validate:"required,min=2,max=255"`
	Email       string `json:"email" validate:"required,email"`
	ClassID     string `json:"class_id" validate:"required,max=32"`
	Phone       string `json:"phone" validate:"omitempty,max=32"`
	DateOfBirth string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
}

// StudentUpdateRequest patches an existing student. Nil fields are ignored.
type StudentUpdateRequest struct {
	FullName    *string `json:"full_name" validate:"omitempty,min=2,max=255"`
	Email       *string `json:"email" validate:"omitempty,email"`
	ClassID     *string `json:"class_id" validate:"omitempty,max=32"`
	Phone       *string `json:"phone" validate:"omitempty,max=32"`
	DateOfBirth *string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Status      *string `json:"status" validate:"omitempty,oneof=active archived"`
}

// StudentListRequest filters the roster listing.
type StudentListRequest struct {
	Search   string `query:"search"`
	ClassID  string `query:"class_id"`
	Status   string `query:"status" validate:"omitempty,oneof=active archived"`
	Sort     string `query:"sort" validate:"omitempty,oneof=student_code full_name class_id created_at"`
	Page     int    `query:"page" validate:"omitempty,gte=1"`
	PageSize int    `query:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// StudentResponse serializes a student profile.
type StudentResponse struct {
	ID          uint      `json:"id"`
	StudentCode string    `json:"student_code"`
	FullName    string    `json:"full_name"`
	Email       string    `json:"email"`
	ClassID     string    `json:"class_id"`
	Phone       string    `json:"phone"`
	DateOfBirth string    `json:"date_of_birth"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PaginationMeta describes paging information for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// StudentListResponse wraps a page of students.
type StudentListResponse struct {
	Items      []StudentResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// NewStudentResponse converts a Student model into a DTO.
func NewStudentResponse(model models.Student) StudentResponse {
	return StudentResponse{
		ID:          model.ID,
		StudentCode: model.StudentCode,
		FullName:    model.FullName,
		Email:       model.Email,
		ClassID:     model.ClassID,
		Phone:       model.Phone,
		DateOfBirth: model.DateOfBirth,
		Status:      model.Status,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// NewStudentResponseSlice converts student models into DTOs.
func NewStudentResponseSlice(students []models.Student) []StudentResponse {
	responses := make([]StudentResponse, 0, len(students))
	for _, student := range students {
		responses = append(responses, NewStudentResponse(student))
	}

	return responses
}
