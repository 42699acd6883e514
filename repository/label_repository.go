package repository

import (
	"context"

	"storefront-service/models"

	"gorm.io/gorm"
)

// LabelRepository defines data-access operations for purchased labels.
type LabelRepository interface {
	Create(ctx context.Context, record *models.LabelRecord) error
	FindByLabelID(ctx context.Context, labelID string) (*models.LabelRecord, error)
	FindByWorkflowID(ctx context.Context, workflowID string) (*models.LabelRecord, error)
	FindAll(ctx context.Context, page, limit int) ([]models.LabelRecord, int64, error)
}

// GormLabelRepository implements LabelRepository using GORM.
type GormLabelRepository struct {
	db *gorm.DB
}

// NewGormLabelRepository creates a new GormLabelRepository.
func NewGormLabelRepository(db *gorm.DB) LabelRepository {
	return &GormLabelRepository{db: db}
}

func (r *GormLabelRepository) Create(ctx context.Context, record *models.LabelRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *GormLabelRepository) FindByLabelID(ctx context.Context, labelID string) (*models.LabelRecord, error) {
	var rec models.LabelRecord
	if err := r.db.WithContext(ctx).
		Where("label_id = ?", labelID).
		First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *GormLabelRepository) FindByWorkflowID(ctx context.Context, workflowID string) (*models.LabelRecord, error) {
	var rec models.LabelRecord
	if err := r.db.WithContext(ctx).
		Where("workflow_id = ?", workflowID).
		First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *GormLabelRepository) FindAll(ctx context.Context, page, limit int) ([]models.LabelRecord, int64, error) {
	var records []models.LabelRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&models.LabelRecord{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}
