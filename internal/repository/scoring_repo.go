package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/renluyen-go-api/internal/models"
)

// ErrStaleRecord indicates a conditional write found the record in a
// different status than the caller observed.
var ErrStaleRecord = errors.New("scoring record status changed concurrently")

// ScoringFilter narrows scoring record queries for the grading queue.
type ScoringFilter struct {
	Status       *string
	Semester     *string
	AcademicYear *string
	ClassID      *string
}

// ScoringRepository defines persistence for conduct scoring records.
type ScoringRepository interface {
	GetByID(ctx context.Context, id uint) (models.ScoringRecord, error)
	GetByPeriod(ctx context.Context, studentID uint, semester, academicYear string) (models.ScoringRecord, error)
	List(ctx context.Context, filter ScoringFilter) ([]models.ScoringRecord, error)
	ListByStudent(ctx context.Context, studentID uint) ([]models.ScoringRecord, error)
	Create(ctx context.Context, record *models.ScoringRecord) error
	// UpdateWithStatus persists the record only if its stored status still
	// equals expectedStatus. Returns ErrStaleRecord otherwise.
	UpdateWithStatus(ctx context.Context, record *models.ScoringRecord, expectedStatus string) error
}

type scoringRepository struct {
	db *gorm.DB
}

// NewScoringRepository instantiates the repository.
func NewScoringRepository(db *gorm.DB) ScoringRepository {
	return &scoringRepository{db: db}
}

func (r *scoringRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.ScoringRecord{}).
		Preload("Sections", func(db *gorm.DB) *gorm.DB {
			return db.Order("section_number ASC")
		}).
		Preload("Student")
}

func (r *scoringRepository) GetByID(ctx context.Context, id uint) (models.ScoringRecord, error) {
	var record models.ScoringRecord
	if err := r.baseQuery(ctx).First(&record, id).Error; err != nil {
		return models.ScoringRecord{}, err
	}

	return record, nil
}

func (r *scoringRepository) GetByPeriod(ctx context.Context, studentID uint, semester, academicYear string) (models.ScoringRecord, error) {
	var record models.ScoringRecord
	if err := r.baseQuery(ctx).
		Where("student_id = ?", studentID).
		Where("semester = ?", semester).
		Where("academic_year = ?", academicYear).
		First(&record).Error; err != nil {
		return models.ScoringRecord{}, err
	}

	return record, nil
}

func (r *scoringRepository) List(ctx context.Context, filter ScoringFilter) ([]models.ScoringRecord, error) {
	query := r.baseQuery(ctx)

	if filter.Status != nil {
		query = query.Where("scoring_records.status = ?", *filter.Status)
	}

	if filter.Semester != nil {
		query = query.Where("semester = ?", *filter.Semester)
	}

	if filter.AcademicYear != nil {
		query = query.Where("academic_year = ?", *filter.AcademicYear)
	}

	if filter.ClassID != nil {
		query = query.Joins("JOIN students ON students.id = scoring_records.student_id").
			Where("students.class_id = ?", *filter.ClassID)
	}

	// Columns qualified: the class filter joins students, which carries its
	// own status and created_at.
	var records []models.ScoringRecord
	if err := query.Order("scoring_records.submitted_at ASC, scoring_records.created_at ASC").Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

func (r *scoringRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.ScoringRecord, error) {
	var records []models.ScoringRecord
	if err := r.baseQuery(ctx).
		Where("student_id = ?", studentID).
		Order("academic_year DESC, semester DESC").
		Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

func (r *scoringRepository) Create(ctx context.Context, record *models.ScoringRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *scoringRepository) UpdateWithStatus(ctx context.Context, record *models.ScoringRecord, expectedStatus string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		update := tx.Model(&models.ScoringRecord{}).
			Where("id = ?", record.ID).
			Where("status = ?", expectedStatus).
			Updates(map[string]interface{}{
				"total_self_score": record.TotalSelfScore,
				"class_score":      record.ClassScore,
				"teacher_score":    record.TeacherScore,
				"final_score":      record.FinalScore,
				"feedback":         record.Feedback,
				"status":           record.Status,
				"submitted_at":     record.SubmittedAt,
				"graded_at":        record.GradedAt,
				"graded_by":        record.GradedBy,
			})
		if update.Error != nil {
			return update.Error
		}

		if update.RowsAffected == 0 {
			return ErrStaleRecord
		}

		for i := range record.Sections {
			if err := tx.Save(&record.Sections[i]).Error; err != nil {
				return err
			}
		}

		return nil
	})
}
