package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/renluyen-go-api/internal/models"
)

// StudentFilter defines filters for listing students.
type StudentFilter struct {
	Search   string
	ClassID  string
	Status   string
	Sort     string
	Page     int
	PageSize int
}

// StudentRepository exposes persistence helpers for student management.
type StudentRepository interface {
	List(ctx context.Context, filter StudentFilter) ([]models.Student, int64, error)
	GetByID(ctx context.Context, id uint) (models.Student, error)
	GetByCode(ctx context.Context, code string) (models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Student, error)
	Archive(ctx context.Context, id uint) error
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository constructs the student repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) List(ctx context.Context, filter StudentFilter) ([]models.Student, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Student{})

	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(student_code) LIKE ?", like, like, like)
	}

	if filter.ClassID != "" {
		query = query.Where("class_id = ?", filter.ClassID)
	}

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sort := filter.Sort
	if sort == "" {
		sort = "student_code ASC"
	}
	query = query.Order(sort)

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		offset := (page - 1) * filter.PageSize
		query = query.Limit(filter.PageSize).Offset(offset)
	}

	var students []models.Student
	if err := query.Find(&students).Error; err != nil {
		return nil, 0, err
	}

	return students, total, nil
}

func (r *studentRepository) GetByID(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return models.Student{}, err
	}

	return student, nil
}

func (r *studentRepository) GetByCode(ctx context.Context, code string) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).Where("student_code = ?", code).First(&student).Error; err != nil {
		return models.Student{}, err
	}

	return student, nil
}

func (r *studentRepository) Create(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Create(student).Error
}

func (r *studentRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Student, error) {
	tx := r.db.WithContext(ctx).Model(&models.Student{}).Where("id = ?", id)
	if err := tx.Updates(updates).Error; err != nil {
		return models.Student{}, err
	}

	return r.GetByID(ctx, id)
}

func (r *studentRepository) Archive(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		update := tx.Model(&models.Student{}).
			Where("id = ?", id).
			Update("status", models.StudentStatusArchived)
		if update.Error != nil {
			return update.Error
		}

		if update.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return tx.Delete(&models.Student{}, id).Error
	})
}
