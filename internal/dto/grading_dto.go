package dto

// GradeRequest carries a teacher's grading decision for a submitted record.
type GradeRequest struct {
	TeacherScore *int   `json:"teacher_score" validate:"required"`
	ClassScore   *int   `json:"class_score"`
	Feedback     string `json:"feedback" validate:"omitempty,min=3"`
}

// GradingQueueQuery filters the teacher's grading queue.
type GradingQueueQuery struct {
	Status       *string `query:"status" validate:"omitempty,oneof=draft submitted graded"`
	Semester     *string `query:"semester" validate:"omitempty,oneof=1 2 3"`
	AcademicYear *string `query:"academic_year" validate:"omitempty,len=9"`
	ClassID      *string `query:"class_id"`
}
