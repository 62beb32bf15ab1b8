package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"lembas/internal/models"
	"lembas/internal/storage"
)

var (
	ErrRecipeNotFound = errors.New("recipe does not exist")
	ErrNotRecipeOwner = errors.New("only the recipe owner may manage its shares")
	ErrNotFriends     = errors.New("users are not friends")
	ErrShareNotFound  = errors.New("share token does not resolve")
)

// ResolvedShare is what a share token dereferences to: the recipe plus the
// actor's capabilities on it.
type ResolvedShare struct {
	Recipe *models.Recipe `json:"recipe"`
	Access Access         `json:"access"`
	Share  *models.RecipeShare
}

// ShareService defines the interface for the share registry.
type ShareService interface {
	SetPublicShare(ctx context.Context, ownerID, recipeID uint, enabled bool) (*models.RecipeShare, error)
	GrantUserShare(ctx context.Context, ownerID, recipeID, granteeID uint, canEdit bool) (*models.RecipeShare, error)
	RevokeUserShare(ctx context.Context, ownerID, recipeID, granteeID uint) error
	ListShares(ctx context.Context, ownerID, recipeID uint) ([]models.ShareInfo, error)
	ResolveToken(ctx context.Context, actor models.Actor, token string) (*ResolvedShare, error)
	ListSharedWithMe(ctx context.Context, userID uint) ([]models.SharedRecipe, error)
}

type shareService struct {
	store     storage.Store
	evaluator *Evaluator
	publisher SyncPublisher
}

// NewShareService creates a new ShareService instance.
func NewShareService(store storage.Store, evaluator *Evaluator, publisher SyncPublisher) ShareService {
	return &shareService{store: store, evaluator: evaluator, publisher: publisher}
}

// newShareToken mints an unguessable share token: uuid hex, dashes stripped.
func newShareToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ownedRecipe loads the recipe and checks the caller owns it. An unknown
// recipe is not-found; someone else's recipe is forbidden.
func (s *shareService) ownedRecipe(ctx context.Context, tx storage.Store, ownerID, recipeID uint) (*models.Recipe, error) {
	recipe, err := tx.Recipes().GetByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("failed to load recipe %d: %w", recipeID, err)
	}
	if recipe.OwnerID != ownerID {
		return nil, ErrNotRecipeOwner
	}
	return recipe, nil
}

// SetPublicShare enables or disables the recipe's public share. Enabling is
// idempotent and reuses the existing token; disabling hard-deletes the row.
// The recipe's isPublic flag mirrors registry state either way.
func (s *shareService) SetPublicShare(ctx context.Context, ownerID, recipeID uint, enabled bool) (*models.RecipeShare, error) {
	var result *models.RecipeShare
	txErr := s.store.Transaction(ctx, func(tx storage.Store) error {
		if _, err := s.ownedRecipe(ctx, tx, ownerID, recipeID); err != nil {
			return err
		}

		if !enabled {
			if err := tx.Shares().DeletePublicShare(ctx, recipeID); err != nil {
				return fmt.Errorf("failed to delete public share for recipe %d: %w", recipeID, err)
			}
			return tx.Recipes().SetPublicFlag(ctx, recipeID, false)
		}

		existing, err := tx.Shares().GetPublicShare(ctx, recipeID)
		if err != nil {
			return fmt.Errorf("failed to check public share for recipe %d: %w", recipeID, err)
		}
		if existing != nil {
			// Enabling twice must not rotate the token.
			result = existing
		} else {
			share := &models.RecipeShare{
				RecipeID: recipeID,
				Token:    newShareToken(),
				Type:     models.PublicShareType,
			}
			if err := tx.Shares().Create(ctx, share); err != nil {
				return fmt.Errorf("failed to create public share for recipe %d: %w", recipeID, err)
			}
			result = share
		}
		return tx.Recipes().SetPublicFlag(ctx, recipeID, true)
	})
	if txErr != nil {
		return nil, txErr
	}

	// The isPublic flag is part of the owner's recipe list.
	s.publisher.RecipesChanged(ctx, ownerID)
	return result, nil
}

// GrantUserShare shares a recipe with a friend. Granting twice updates
// canEdit in place; the token stays stable for the (recipe, grantee) pair.
func (s *shareService) GrantUserShare(ctx context.Context, ownerID, recipeID, granteeID uint, canEdit bool) (*models.RecipeShare, error) {
	if _, err := s.ownedRecipe(ctx, s.store, ownerID, recipeID); err != nil {
		return nil, err
	}

	areFriends, err := s.store.Friendships().AreUsersFriends(ctx, ownerID, granteeID)
	if err != nil {
		return nil, fmt.Errorf("failed to check friendship between %d and %d: %w", ownerID, granteeID, err)
	}
	if !areFriends {
		return nil, ErrNotFriends
	}

	existing, err := s.store.Shares().GetUserShare(ctx, recipeID, granteeID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user share: %w", err)
	}
	if existing != nil {
		if existing.CanEdit != canEdit {
			if err := s.store.Shares().UpdateCanEdit(ctx, existing.ID, canEdit); err != nil {
				return nil, fmt.Errorf("failed to update share %d: %w", existing.ID, err)
			}
			existing.CanEdit = canEdit
		}
		return existing, nil
	}

	share := &models.RecipeShare{
		RecipeID:  recipeID,
		Token:     newShareToken(),
		Type:      models.UserShareType,
		GranteeID: &granteeID,
		CanEdit:   canEdit,
	}
	if err := s.store.Shares().Create(ctx, share); err != nil {
		return nil, fmt.Errorf("failed to create user share for recipe %d: %w", recipeID, err)
	}
	return share, nil
}

// RevokeUserShare removes the grantee's share of the recipe. Revoking a
// share that does not exist is a no-op.
func (s *shareService) RevokeUserShare(ctx context.Context, ownerID, recipeID, granteeID uint) error {
	if _, err := s.ownedRecipe(ctx, s.store, ownerID, recipeID); err != nil {
		return err
	}
	if err := s.store.Shares().DeleteUserShare(ctx, recipeID, granteeID); err != nil {
		return fmt.Errorf("failed to revoke user share for recipe %d: %w", recipeID, err)
	}
	return nil
}

// ListShares returns the recipe's public share plus its user shares,
// filtered live against current friendship state. A stale user share whose
// grantee is no longer the owner's friend is deleted on read and excluded.
func (s *shareService) ListShares(ctx context.Context, ownerID, recipeID uint) ([]models.ShareInfo, error) {
	if _, err := s.ownedRecipe(ctx, s.store, ownerID, recipeID); err != nil {
		return nil, err
	}

	shares, err := s.store.Shares().ListForRecipe(ctx, recipeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares for recipe %d: %w", recipeID, err)
	}

	live := make([]models.RecipeShare, 0, len(shares))
	granteeIDs := make([]uint, 0, len(shares))
	for _, share := range shares {
		if share.Type == models.UserShareType && share.GranteeID != nil {
			stillFriends, err := s.store.Friendships().AreUsersFriends(ctx, ownerID, *share.GranteeID)
			if err != nil {
				return nil, fmt.Errorf("failed to check friendship for share %d: %w", share.ID, err)
			}
			if !stillFriends {
				// Lazy invalidation: corrective side effect, not an error.
				if err := s.store.Shares().Delete(ctx, share.ID); err != nil {
					log.Printf("Failed to delete stale share %d during listing: %v", share.ID, err)
				}
				continue
			}
			granteeIDs = append(granteeIDs, *share.GranteeID)
		}
		live = append(live, share)
	}

	usernames := make(map[uint]string, len(granteeIDs))
	if len(granteeIDs) > 0 {
		infos, err := s.store.Users().GetMultipleBasicInfoByIDs(ctx, granteeIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to load grantee info for recipe %d: %w", recipeID, err)
		}
		for _, info := range infos {
			usernames[info.ID] = info.Username
		}
	}

	result := make([]models.ShareInfo, 0, len(live))
	for _, share := range live {
		info := models.ShareInfo{
			ID:      share.ID,
			Token:   share.Token,
			Type:    share.Type,
			CanEdit: share.CanEdit,
		}
		if share.GranteeID != nil {
			info.GranteeID = *share.GranteeID
			info.Username = usernames[*share.GranteeID]
		}
		result = append(result, info)
	}
	return result, nil
}

// ResolveToken dereferences a share token for the given actor. Every
// failure mode reads as not-found so the public boundary leaks nothing:
// unknown token, deleted recipe and revoked access are indistinguishable.
func (s *shareService) ResolveToken(ctx context.Context, actor models.Actor, token string) (*ResolvedShare, error) {
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
		return nil, fmt.Errorf("failed to load recipe %d for share token: %w", share.RecipeID, err)
	}

	access, err := s.evaluator.Evaluate(ctx, actor, recipe, share)
	if err != nil {
		return nil, err
	}
	if !access.CanView {
		if share.Type == models.UserShareType {
			// The friendship behind the grant is gone; drop the stale row.
			if err := s.store.Shares().Delete(ctx, share.ID); err != nil {
				log.Printf("Failed to delete stale share %d during token resolution: %v", share.ID, err)
			}
		}
		return nil, ErrShareNotFound
	}

	return &ResolvedShare{Recipe: recipe, Access: access, Share: share}, nil
}

// ListSharedWithMe returns the recipes shared to the user through user
// shares, filtered live by friendship with each owner.
func (s *shareService) ListSharedWithMe(ctx context.Context, userID uint) ([]models.SharedRecipe, error) {
	shares, err := s.store.Shares().ListForGrantee(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares for user %d: %w", userID, err)
	}

	result := make([]models.SharedRecipe, 0, len(shares))
	for _, share := range shares {
		recipe, err := s.store.Recipes().GetByID(ctx, share.RecipeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load recipe %d for shared listing: %w", share.RecipeID, err)
		}

		stillFriends, err := s.store.Friendships().AreUsersFriends(ctx, recipe.OwnerID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to check friendship for share %d: %w", share.ID, err)
		}
		if !stillFriends {
			if err := s.store.Shares().Delete(ctx, share.ID); err != nil {
				log.Printf("Failed to delete stale share %d during shared listing: %v", share.ID, err)
			}
			continue
		}

		ownerInfo, err := s.store.Users().GetBasicInfoByID(ctx, recipe.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("failed to load owner info for recipe %d: %w", recipe.ID, err)
		}

		result = append(result, models.SharedRecipe{
			Recipe:        *recipe,
			ShareToken:    share.Token,
			CanEdit:       share.CanEdit,
			SharedAt:      share.CreatedAt.Format(time.RFC3339),
			OwnerUsername: ownerInfo.Username,
		})
	}
	return result, nil
}
