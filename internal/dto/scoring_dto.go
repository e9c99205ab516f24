package dto

import (
	"time"

	"github.com/noah-isme/renluyen-go-api/internal/models"
)

// ScoringPeriodQuery identifies the scoring record a student is working on.
type ScoringPeriodQuery struct {
	Semester     string `query:"semester" validate:"required,oneof=1 2 3"`
	AcademicYear string `query:"academic_year" validate:"required,len=9"`
}

// SectionUpdateRequest mutates a single rubric section of a draft record.
// Nil fields are left untouched.
type SectionUpdateRequest struct {
	Semester     string   `json:"semester" validate:"required,oneof=1 2 3"`
	AcademicYear string   `json:"academic_year" validate:"required,len=9"`
	SelfScore    *int     `json:"self_score" validate:"omitempty,gte=0"`
	Evidence     *string  `json:"evidence"`
	Files        []string `json:"files" validate:"omitempty,dive,url"`
}

// SectionInput carries one section's values in a bulk draft save.
type SectionInput struct {
	SectionNumber int      `json:"section_number" validate:"required,gte=1,lte=5"`
	SelfScore     int      `json:"self_score" validate:"gte=0"`
	Evidence      string   `json:"evidence"`
	Files         []string `json:"files" validate:"omitempty,dive,url"`
}

// DraftSaveRequest stores all sections of a draft in one call.
type DraftSaveRequest struct {
	Semester     string         `json:"semester" validate:"required,oneof=1 2 3"`
	AcademicYear string         `json:"academic_year" validate:"required,len=9"`
	Sections     []SectionInput `json:"sections" validate:"required,min=1,max=5,dive"`
}

// SubmitRequest finalizes a draft for teacher review.
type SubmitRequest struct {
	Semester     string `json:"semester" validate:"required,oneof=1 2 3"`
	AcademicYear string `json:"academic_year" validate:"required,len=9"`
}

// SectionResponse serializes one rubric section.
type SectionResponse struct {
	SectionNumber int      `json:"section_number"`
	Title         string   `json:"title"`
	MaxScore      int      `json:"max_score"`
	SelfScore     int      `json:"self_score"`
	Evidence      string   `json:"evidence"`
	Files         []string `json:"files"`
	Touched       bool     `json:"touched"`
}

// ScoringResponse is returned to API clients when viewing scoring records.
type ScoringResponse struct {
	ID             uint              `json:"id"`
	StudentID      uint              `json:"student_id"`
	Semester       string            `json:"semester"`
	AcademicYear   string            `json:"academic_year"`
	Sections       []SectionResponse `json:"sections"`
	TotalSelfScore int               `json:"total_self_score"`
	ClassScore     *int              `json:"class_score"`
	TeacherScore   *int              `json:"teacher_score"`
	FinalScore     *int              `json:"final_score"`
	GradeBand      string            `json:"grade_band,omitempty"`
	Feedback       string            `json:"feedback"`
	Status         string            `json:"status"`
	SubmittedAt    *time.Time        `json:"submitted_at"`
	GradedAt       *time.Time        `json:"graded_at"`
	GradedBy       *uint             `json:"graded_by"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Student        StudentLite       `json:"student"`
}

// StudentLite summarizes a student without exposing full profile data.
type StudentLite struct {
	ID          uint   `json:"id"`
	StudentCode string `json:"student_code"`
	FullName    string `json:"full_name"`
	ClassID     string `json:"class_id"`
}

// NewScoringResponse converts a ScoringRecord model into a DTO.
func NewScoringResponse(model models.ScoringRecord) ScoringResponse {
	response := ScoringResponse{
		ID:             model.ID,
		StudentID:      model.StudentID,
		Semester:       model.Semester,
		AcademicYear:   model.AcademicYear,
		TotalSelfScore: model.TotalSelfScore,
		ClassScore:     model.ClassScore,
		TeacherScore:   model.TeacherScore,
		FinalScore:     model.FinalScore,
		Feedback:       model.Feedback,
		Status:         model.Status,
		SubmittedAt:    model.SubmittedAt,
		GradedAt:       model.GradedAt,
		GradedBy:       model.GradedBy,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}

	if model.FinalScore != nil {
		response.GradeBand = models.GradeBand(*model.FinalScore)
	}

	sections := make([]SectionResponse, 0, len(model.Sections))
	for _, section := range model.Sections {
		max, _ := models.SectionMaxScore(section.SectionNumber)
		files := section.EvidenceFiles()
		if files == nil {
			files = []string{}
		}
		sections = append(sections, SectionResponse{
			SectionNumber: section.SectionNumber,
			Title:         models.SectionTitle(section.SectionNumber),
			MaxScore:      max,
			SelfScore:     section.SelfScore,
			Evidence:      section.Evidence,
			Files:         files,
			Touched:       section.Touched,
		})
	}
	response.Sections = sections

	if model.Student.ID != 0 {
		response.Student = StudentLite{
			ID:          model.Student.ID,
			StudentCode: model.Student.StudentCode,
			FullName:    model.Student.FullName,
			ClassID:     model.Student.ClassID,
		}
	}

	return response
}

// NewScoringResponseSlice converts scoring record models into DTOs.
func NewScoringResponseSlice(records []models.ScoringRecord) []ScoringResponse {
	responses := make([]ScoringResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, NewScoringResponse(record))
	}

	return responses
}
