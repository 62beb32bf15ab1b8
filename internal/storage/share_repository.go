package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"lembas/internal/models"
)

// ShareRepository defines the interface for recipe share data operations.
// Lookup methods return (nil, nil) when no matching share exists; a missing
// share is a normal condition on most call paths.
type ShareRepository interface {
	Create(ctx context.Context, share *models.RecipeShare) error
	GetByToken(ctx context.Context, token string) (*models.RecipeShare, error)
	GetPublicShare(ctx context.Context, recipeID uint) (*models.RecipeShare, error)
	GetUserShare(ctx context.Context, recipeID, granteeID uint) (*models.RecipeShare, error)
	UpdateCanEdit(ctx context.Context, shareID uint, canEdit bool) error
	Delete(ctx context.Context, shareID uint) error
	DeletePublicShare(ctx context.Context, recipeID uint) error
	DeleteUserShare(ctx context.Context, recipeID, granteeID uint) error
	DeleteBetweenUsers(ctx context.Context, userA, userB uint) error
	ListForRecipe(ctx context.Context, recipeID uint) ([]models.RecipeShare, error)
	ListForGrantee(ctx context.Context, granteeID uint) ([]models.RecipeShare, error)
}

type gormShareRepository struct {
	db *gorm.DB
}

// NewGormShareRepository creates a new GORM-based ShareRepository.
func NewGormShareRepository(db *gorm.DB) ShareRepository {
	return &gormShareRepository{db: db}
}

func (r *gormShareRepository) Create(ctx context.Context, share *models.RecipeShare) error {
	return r.db.WithContext(ctx).Create(share).Error
}

func (r *gormShareRepository) GetByToken(ctx context.Context, token string) (*models.RecipeShare, error) {
	var share models.RecipeShare
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&share).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &share, nil
}

func (r *gormShareRepository) GetPublicShare(ctx context.Context, recipeID uint) (*models.RecipeShare, error) {
	var share models.RecipeShare
	err := r.db.WithContext(ctx).
		Where("recipe_id = ? AND type = ?", recipeID, models.PublicShareType).
		First(&share).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &share, nil
}

func (r *gormShareRepository) GetUserShare(ctx context.Context, recipeID, granteeID uint) (*models.RecipeShare, error) {
	var share models.RecipeShare
	err := r.db.WithContext(ctx).
		Where("recipe_id = ? AND grantee_id = ? AND type = ?", recipeID, granteeID, models.UserShareType).
		First(&share).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &share, nil
}

// UpdateCanEdit flips the edit-intent bit in place; the token and the share
// row itself stay stable.
func (r *gormShareRepository) UpdateCanEdit(ctx context.Context, shareID uint, canEdit bool) error {
	return r.db.WithContext(ctx).
		Model(&models.RecipeShare{}).
		Where("id = ?", shareID).
		Update("can_edit", canEdit).Error
}

func (r *gormShareRepository) Delete(ctx context.Context, shareID uint) error {
	return r.db.WithContext(ctx).Delete(&models.RecipeShare{}, shareID).Error
}

func (r *gormShareRepository) DeletePublicShare(ctx context.Context, recipeID uint) error {
	return r.db.WithContext(ctx).
		Where("recipe_id = ? AND type = ?", recipeID, models.PublicShareType).
		Delete(&models.RecipeShare{}).Error
}

func (r *gormShareRepository) DeleteUserShare(ctx context.Context, recipeID, granteeID uint) error {
	return r.db.WithContext(ctx).
		Where("recipe_id = ? AND grantee_id = ? AND type = ?", recipeID, granteeID, models.UserShareType).
		Delete(&models.RecipeShare{}).Error
}

// DeleteBetweenUsers removes every user share in either direction between
// two users: shares of A's recipes granted to B and shares of B's recipes
// granted to A. Called when a friendship is removed.
func (r *gormShareRepository) DeleteBetweenUsers(ctx context.Context, userA, userB uint) error {
	ownedBy := func(owner uint) *gorm.DB {
		return r.db.Model(&models.Recipe{}).Select("id").Where("owner_id = ?", owner)
	}
	return r.db.WithContext(ctx).
		Where("type = ?", models.UserShareType).
		Where(
			r.db.Where("recipe_id IN (?) AND grantee_id = ?", ownedBy(userA), userB).
				Or("recipe_id IN (?) AND grantee_id = ?", ownedBy(userB), userA),
		).
		Delete(&models.RecipeShare{}).Error
}

func (r *gormShareRepository) ListForRecipe(ctx context.Context, recipeID uint) ([]models.RecipeShare, error) {
	var shares []models.RecipeShare
	err := r.db.WithContext(ctx).
		Where("recipe_id = ?", recipeID).
		Order("created_at DESC").
		Find(&shares).Error
	if err != nil {
		return nil, err
	}
	return shares, nil
}

func (r *gormShareRepository) ListForGrantee(ctx context.Context, granteeID uint) ([]models.RecipeShare, error) {
	var shares []models.RecipeShare
	err := r.db.WithContext(ctx).
		Where("grantee_id = ? AND type = ?", granteeID, models.UserShareType).
		Find(&shares).Error
	if err != nil {
		return nil, err
	}
	return shares, nil
}
