package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/renluyen-go-api/internal/models"
)

// UploadRepository persists metadata about uploaded evidence files.
type UploadRepository interface {
	Create(ctx context.Context, record *models.UploadRecord) error
	ListByUser(ctx context.Context, userID uint, kind string) ([]models.UploadRecord, error)
}

type uploadRepository struct {
	db *gorm.DB
}

// NewUploadRepository constructs a repository for upload records.
func NewUploadRepository(db *gorm.DB) UploadRepository {
	return &uploadRepository{db: db}
}

func (r *uploadRepository) Create(ctx context.Context, record *models.UploadRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *uploadRepository) ListByUser(ctx context.Context, userID uint, kind string) ([]models.UploadRecord, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}

	var records []models.UploadRecord
	if err := query.Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}
