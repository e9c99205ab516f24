package dto

import "time"

// GradingSummary aggregates record counts for the teacher dashboard.
type GradingSummary struct {
	TotalRecords      int     `json:"total_records"`
	Draft             int     `json:"draft"`
	Submitted         int     `json:"submitted"`
	Graded            int     `json:"graded"`
	AverageFinalScore float64 `json:"average_final_score"`
	CompletionRate    float64 `json:"completion_rate"`
}

// PendingRecord summarizes one record awaiting grading.
type PendingRecord struct {
	RecordID       uint       `json:"record_id"`
	StudentCode    string     `json:"student_code"`
	StudentName    string     `json:"student_name"`
	ClassID        string     `json:"class_id"`
	Semester       string     `json:"semester"`
	AcademicYear   string     `json:"academic_year"`
	TotalSelfScore int        `json:"total_self_score"`
	SubmittedAt    *time.Time `json:"submitted_at"`
}

// TeacherDashboardResponse is the aggregated teacher landing view.
type TeacherDashboardResponse struct {
	Summary          GradingSummary  `json:"summary"`
	BandDistribution map[string]int  `json:"band_distribution"`
	PendingQueue     []PendingRecord `json:"pending_queue"`
}
