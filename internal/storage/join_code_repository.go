package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"lembas/internal/models"
)

// JoinCodeRepository defines the interface for join code data operations.
type JoinCodeRepository interface {
	Create(ctx context.Context, code *models.JoinCode) error
	// GetByCode returns the join code row or (nil, nil) if none exists.
	GetByCode(ctx context.Context, code string) (*models.JoinCode, error)
	IncrementUse(ctx context.Context, code string) error
	Delete(ctx context.Context, code string) error
	DeleteByRole(ctx context.Context, role models.Role) error
	List(ctx context.Context) ([]models.JoinCode, error)
	ListByRole(ctx context.Context, role models.Role) ([]models.JoinCode, error)
}

type gormJoinCodeRepository struct {
	db *gorm.DB
}

// NewGormJoinCodeRepository creates a new GORM-based JoinCodeRepository.
func NewGormJoinCodeRepository(db *gorm.DB) JoinCodeRepository {
	return &gormJoinCodeRepository{db: db}
}

func (r *gormJoinCodeRepository) Create(ctx context.Context, code *models.JoinCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

func (r *gormJoinCodeRepository) GetByCode(ctx context.Context, code string) (*models.JoinCode, error) {
	var record models.JoinCode
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *gormJoinCodeRepository) IncrementUse(ctx context.Context, code string) error {
	return r.db.WithContext(ctx).
		Model(&models.JoinCode{}).
		Where("code = ?", code).
		Update("used_count", gorm.Expr("used_count + 1")).Error
}

func (r *gormJoinCodeRepository) Delete(ctx context.Context, code string) error {
	return r.db.WithContext(ctx).Where("code = ?", code).Delete(&models.JoinCode{}).Error
}

func (r *gormJoinCodeRepository) DeleteByRole(ctx context.Context, role models.Role) error {
	return r.db.WithContext(ctx).Where("role = ?", role).Delete(&models.JoinCode{}).Error
}

func (r *gormJoinCodeRepository) List(ctx context.Context) ([]models.JoinCode, error) {
	var codes []models.JoinCode
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&codes).Error
	return codes, err
}

func (r *gormJoinCodeRepository) ListByRole(ctx context.Context, role models.Role) ([]models.JoinCode, error) {
	var codes []models.JoinCode
	err := r.db.WithContext(ctx).Where("role = ?", role).Find(&codes).Error
	return codes, err
}
