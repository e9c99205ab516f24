package models

import (
	"encoding/json"
	"math"
	"time"

	"gorm.io/datatypes"
)

// ScoringRecord holds one student's conduct self-evaluation for a semester.
// There is at most one record per (student, semester, academic year) tuple.
type ScoringRecord struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	StudentID      uint           `gorm:"not null;uniqueIndex:idx_scoring_period,priority:1" json:"student_id"`
	Semester       string         `gorm:"size:8;not null;uniqueIndex:idx_scoring_period,priority:2" json:"semester"`
	AcademicYear   string         `gorm:"size:16;not null;uniqueIndex:idx_scoring_period,priority:3" json:"academic_year"`
	Sections       []SectionScore `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"sections"`
	TotalSelfScore int            `gorm:"not null;default:0" json:"total_self_score"`
	ClassScore     *int           `json:"class_score"`
	TeacherScore   *int           `json:"teacher_score"`
	FinalScore     *int           `json:"final_score"`
	Feedback       string         `gorm:"type:text" json:"feedback"`
	Status         string         `gorm:"size:32;not null;default:draft" json:"status"`
	SubmittedAt    *time.Time     `json:"submitted_at"`
	GradedAt       *time.Time     `json:"graded_at"`
	GradedBy       *uint          `json:"graded_by"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Student        Student        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}

// SectionScore is a single rubric section within a scoring record. Touched
// distinguishes a deliberately entered zero from a section never filled in.
type SectionScore struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	ScoringRecordID uint           `gorm:"not null;index" json:"scoring_record_id"`
	SectionNumber   int            `gorm:"not null" json:"section_number"`
	SelfScore       int            `gorm:"not null;default:0" json:"self_score"`
	Evidence        string         `gorm:"type:text" json:"evidence"`
	Files           datatypes.JSON `gorm:"type:json" json:"files"`
	Touched         bool           `gorm:"not null;default:false" json:"touched"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

const (
	// ScoringStatusDraft indicates the record is still editable by the student.
	ScoringStatusDraft = "draft"
	// ScoringStatusSubmitted indicates the record awaits teacher grading.
	ScoringStatusSubmitted = "submitted"
	// ScoringStatusGraded indicates grading completed. Terminal.
	ScoringStatusGraded = "graded"
)

// SectionCount is the fixed number of rubric sections on every record.
const SectionCount = 5

var sectionMaxScores = [SectionCount]int{20, 25, 20, 25, 10}

var sectionTitles = [SectionCount]string{
	"I. Ý thức học tập",
	"II. Chấp hành nội quy",
	"III. Tham gia hoạt động xã hội",
	"IV. Ý thức công dân",
	"V. Tham gia công tác lớp hoặc thành tích đặc biệt",
}

// SectionMaxScore returns the point ceiling for a rubric section (1-based).
func SectionMaxScore(number int) (int, bool) {
	if number < 1 || number > SectionCount {
		return 0, false
	}
	return sectionMaxScores[number-1], true
}

// SectionTitle returns the display title for a rubric section (1-based).
func SectionTitle(number int) string {
	if number < 1 || number > SectionCount {
		return ""
	}
	return sectionTitles[number-1]
}

// NewScoringRecord builds a zeroed draft record with all five sections.
func NewScoringRecord(studentID uint, semester, academicYear string) ScoringRecord {
	sections := make([]SectionScore, 0, SectionCount)
	for number := 1; number <= SectionCount; number++ {
		sections = append(sections, SectionScore{SectionNumber: number})
	}

	return ScoringRecord{
		StudentID:    studentID,
		Semester:     semester,
		AcademicYear: academicYear,
		Sections:     sections,
		Status:       ScoringStatusDraft,
	}
}

// Section returns a pointer to the rubric section with the given number.
func (r *ScoringRecord) Section(number int) *SectionScore {
	for i := range r.Sections {
		if r.Sections[i].SectionNumber == number {
			return &r.Sections[i]
		}
	}
	return nil
}

// RecomputeTotal resets TotalSelfScore to the sum of all section self scores.
func (r *ScoringRecord) RecomputeTotal() {
	total := 0
	for i := range r.Sections {
		total += r.Sections[i].SelfScore
	}
	r.TotalSelfScore = total
}

// IsEditable reports whether the student may still change section scores.
func (r ScoringRecord) IsEditable() bool {
	return r.Status == ScoringStatusDraft
}

// IsGraded reports whether grading has completed.
func (r ScoringRecord) IsGraded() bool {
	return r.Status == ScoringStatusGraded
}

// EvidenceFiles decodes the stored file reference list.
func (s SectionScore) EvidenceFiles() []string {
	if len(s.Files) == 0 {
		return nil
	}

	var files []string
	if err := json.Unmarshal(s.Files, &files); err != nil {
		return nil
	}
	return files
}

// SetEvidenceFiles stores the ordered file reference list.
func (s *SectionScore) SetEvidenceFiles(files []string) error {
	if files == nil {
		files = []string{}
	}

	encoded, err := json.Marshal(files)
	if err != nil {
		return err
	}
	s.Files = datatypes.JSON(encoded)
	return nil
}

// ComputeFinalScore combines self, class and teacher scores into the final
// conduct score. With a class score present all three inputs are averaged;
// without one the teacher score stands alone.
func ComputeFinalScore(totalSelfScore int, classScore *int, teacherScore int) int {
	if classScore == nil {
		return teacherScore
	}
	return int(math.Round(float64(totalSelfScore+*classScore+teacherScore) / 3))
}

// Grade band labels, ordered from best to worst.
const (
	GradeExcellent = "Xuất sắc"
	GradeGood      = "Tốt"
	GradeFair      = "Khá"
	GradeAverage   = "Trung bình"
	GradeWeak      = "Yếu"
	GradePoor      = "Kém"
)

// GradeBand maps a 0-100 conduct score onto its qualitative band.
func GradeBand(score int) string {
	switch {
	case score >= 90:
		return GradeExcellent
	case score >= 80:
		return GradeGood
	case score >= 65:
		return GradeFair
	case score >= 50:
		return GradeAverage
	case score >= 35:
		return GradeWeak
	default:
		return GradePoor
	}
}
