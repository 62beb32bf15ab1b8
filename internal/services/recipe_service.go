package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"lembas/internal/models"
	"lembas/internal/storage"
)

// ErrEditForbidden is returned when a share token resolves but does not
// grant edit access to the acting user.
var ErrEditForbidden = errors.New("share does not grant edit access")

// RecipeService defines the interface for owner-scoped recipe operations
// plus the shared-edit path.
type RecipeService interface {
	List(ctx context.Context, ownerID uint) ([]models.Recipe, error)
	Get(ctx context.Context, ownerID, recipeID uint) (*models.Recipe, error)
	Save(ctx context.Context, ownerID uint, input *RecipeInput) (*models.Recipe, error)
	Delete(ctx context.Context, ownerID, recipeID uint) error
	EditViaShare(ctx context.Context, actor models.Actor, token string, input *RecipeInput) (*models.Recipe, error)
}

type recipeService struct {
	store     storage.Store
	evaluator *Evaluator
	publisher SyncPublisher
}

// NewRecipeService creates a new RecipeService instance.
func NewRecipeService(store storage.Store, evaluator *Evaluator, publisher SyncPublisher) RecipeService {
	return &recipeService{store: store, evaluator: evaluator, publisher: publisher}
}

func (s *recipeService) List(ctx context.Context, ownerID uint) ([]models.Recipe, error) {
	recipes, err := s.store.Recipes().ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes for user %d: %w", ownerID, err)
	}
	return recipes, nil
}

func (s *recipeService) Get(ctx context.Context, ownerID, recipeID uint) (*models.Recipe, error) {
	recipe, err := s.store.Recipes().GetByIDForOwner(ctx, recipeID, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("failed to load recipe %d: %w", recipeID, err)
	}
	return recipe, nil
}

// Save creates or updates a recipe through the boundary normalizer. An
// input carrying an ID updates the caller's own recipe of that ID; the
// owner set at creation is pinned for the lifetime of the row.
func (s *recipeService) Save(ctx context.Context, ownerID uint, input *RecipeInput) (*models.Recipe, error) {
	normalized, err := NormalizeRecipeInput(input)
	if err != nil {
		return nil, err
	}

	var recipe *models.Recipe
	if input.ID != 0 {
		existing, err := s.store.Recipes().GetByIDForOwner(ctx, input.ID, ownerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrRecipeNotFound
			}
			return nil, fmt.Errorf("failed to load recipe %d: %w", input.ID, err)
		}
		applyNormalized(existing, normalized)
		recipe = existing
	} else {
		normalized.OwnerID = ownerID
		recipe = normalized
	}

	if err := s.store.Recipes().Save(ctx, recipe); err != nil {
		return nil, fmt.Errorf("failed to save recipe: %w", err)
	}

	s.publisher.RecipesChanged(ctx, ownerID)
	return recipe, nil
}

// applyNormalized copies the client-settable fields onto an existing row,
// leaving identity, ownership and the public flag untouched.
func applyNormalized(dst, src *models.Recipe) {
	dst.Title = src.Title
	dst.Description = src.Description
	dst.Author = src.Author
	dst.Tags = src.Tags
	dst.Ingredients = src.Ingredients
	dst.Steps = src.Steps
	dst.Notes = src.Notes
	dst.ServingsQuantity = src.ServingsQuantity
	dst.ServingsUnit = src.ServingsUnit
}

// Delete removes the caller's recipe and every share that points at it.
func (s *recipeService) Delete(ctx context.Context, ownerID, recipeID uint) error {
	txErr := s.store.Transaction(ctx, func(tx storage.Store) error {
		removed, err := tx.Recipes().Delete(ctx, recipeID, ownerID)
		if err != nil {
			return fmt.Errorf("failed to delete recipe %d: %w", recipeID, err)
		}
		if !removed {
			return ErrRecipeNotFound
		}
		shares, err := tx.Shares().ListForRecipe(ctx, recipeID)
		if err != nil {
			return fmt.Errorf("failed to list shares of recipe %d: %w", recipeID, err)
		}
		for _, share := range shares {
			if err := tx.Shares().Delete(ctx, share.ID); err != nil {
				return fmt.Errorf("failed to delete share %d of recipe %d: %w", share.ID, recipeID, err)
			}
		}
		return nil
	})
	if txErr != nil {
		return txErr
	}

	log.Printf("Recipe %d deleted by owner %d", recipeID, ownerID)
	s.publisher.RecipesChanged(ctx, ownerID)
	return nil
}

// EditViaShare updates a recipe through a share token. The capability is
// re-derived from current stored state at call time, so an edit racing a
// concurrent unfriend fails instead of sneaking through on the stale grant.
func (s *recipeService) EditViaShare(ctx context.Context, actor models.Actor, token string, input *RecipeInput) (*models.Recipe, error) {
	share, err := s.store.Shares().GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to look up share token: %w", err)
	}
	if share == nil {
		return nil, ErrShareNotFound
	}

	recipe, err := s.store.Recipes().GetByID(ctx, share.RecipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShareNotFound
		}
		return nil, fmt.Errorf("failed to load recipe %d for shared edit: %w", share.RecipeID, err)
	}

	access, err := s.evaluator.Evaluate(ctx, actor, recipe, share)
	if err != nil {
		return nil, err
	}
	if !access.CanEdit {
		return nil, ErrEditForbidden
	}

	normalized, err := NormalizeRecipeInput(input)
	if err != nil {
		return nil, err
	}
	applyNormalized(recipe, normalized)

	if err := s.store.Recipes().Save(ctx, recipe); err != nil {
		return nil, fmt.Errorf("failed to save shared edit of recipe %d: %w", recipe.ID, err)
	}

	// Push to the owner's own connections; shared-recipe consumers fetch.
	s.publisher.RecipesChanged(ctx, recipe.OwnerID)
	return recipe, nil
}
