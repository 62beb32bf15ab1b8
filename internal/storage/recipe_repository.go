package storage

import (
	"context"

	"gorm.io/gorm"

	"lembas/internal/models"
)

// RecipeRepository defines the interface for recipe data operations.
// Owner-scoped lookups are the normal path; GetByID is unscoped and exists
// only for the share-token path, which must pass through the access
// evaluator before anything is returned to a caller.
type RecipeRepository interface {
	ListByOwner(ctx context.Context, ownerID uint) ([]models.Recipe, error)
	GetByID(ctx context.Context, id uint) (*models.Recipe, error)
	GetByIDForOwner(ctx context.Context, id, ownerID uint) (*models.Recipe, error)
	Save(ctx context.Context, recipe *models.Recipe) error
	Delete(ctx context.Context, id, ownerID uint) (bool, error)
	SetPublicFlag(ctx context.Context, id uint, isPublic bool) error
}

type gormRecipeRepository struct {
	db *gorm.DB
}

// NewGormRecipeRepository creates a new GORM-based RecipeRepository.
func NewGormRecipeRepository(db *gorm.DB) RecipeRepository {
	return &gormRecipeRepository{db: db}
}

// ListByOwner returns all recipes of one owner, title-sorted
// case-insensitively for a deterministic display order.
func (r *gormRecipeRepository) ListByOwner(ctx context.Context, ownerID uint) ([]models.Recipe, error) {
	var recipes []models.Recipe
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("LOWER(title) ASC").
		Find(&recipes).Error
	if err != nil {
		return nil, err
	}
	return recipes, nil
}

// GetByID retrieves a recipe regardless of owner.
func (r *gormRecipeRepository) GetByID(ctx context.Context, id uint) (*models.Recipe, error) {
	var recipe models.Recipe
	err := r.db.WithContext(ctx).First(&recipe, id).Error
	if err != nil {
		return nil, err
	}
	return &recipe, nil
}

// GetByIDForOwner retrieves a recipe only if it belongs to ownerID.
func (r *gormRecipeRepository) GetByIDForOwner(ctx context.Context, id, ownerID uint) (*models.Recipe, error) {
	var recipe models.Recipe
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&recipe).Error
	if err != nil {
		return nil, err
	}
	return &recipe, nil
}

// Save upserts a recipe keyed by its ID.
func (r *gormRecipeRepository) Save(ctx context.Context, recipe *models.Recipe) error {
	return r.db.WithContext(ctx).Save(recipe).Error
}

// Delete removes a recipe scoped to its owner. Returns whether a row was
// actually removed.
func (r *gormRecipeRepository) Delete(ctx context.Context, id, ownerID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&models.Recipe{})
	return res.RowsAffected > 0, res.Error
}

// SetPublicFlag mirrors the public-share registry state onto the recipe row.
func (r *gormRecipeRepository) SetPublicFlag(ctx context.Context, id uint, isPublic bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Recipe{}).
		Where("id = ?", id).
		Update("is_public", isPublic).Error
}
