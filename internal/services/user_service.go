package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"lembas/internal/models"
	"lembas/internal/storage"
)

var (
	ErrAdminOnly       = errors.New("admin privileges required")
	ErrOwnerOnly       = errors.New("owner privileges required")
	ErrUserNotFound    = errors.New("user does not exist")
	ErrCannotEditSelf  = errors.New("cannot modify your own account here")
	ErrCannotEditOwner = errors.New("the owner account cannot be modified")
)

// UserService defines the interface for the user directory and the admin
// user-management surface.
type UserService interface {
	Directory(ctx context.Context) ([]models.UserBasicInfo, error)
	ChangeRole(ctx context.Context, actor models.Actor, userID uint, role models.Role) error
	DeleteUser(ctx context.Context, actor models.Actor, userID uint) error
}

type userService struct {
	store     storage.Store
	publisher SyncPublisher
}

// NewUserService creates a new UserService instance.
func NewUserService(store storage.Store, publisher SyncPublisher) UserService {
	return &userService{store: store, publisher: publisher}
}

// Directory lists every account as id+username, for friend pickers and the
// admin user table alike.
func (s *userService) Directory(ctx context.Context) ([]models.UserBasicInfo, error) {
	users, err := s.store.Users().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// ChangeRole sets another user's role. Owner-only; the owner account itself
// is immutable so the instance always keeps exactly one owner.
func (s *userService) ChangeRole(ctx context.Context, actor models.Actor, userID uint, role models.Role) error {
	if actor.Role != models.RoleOwner {
		return ErrOwnerOnly
	}
	if actor.ID == userID {
		return ErrCannotEditSelf
	}
	if !role.Valid() || role == models.RoleOwner {
		return ErrInvalidRole
	}

	target, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}
	if target.Role == models.RoleOwner {
		return ErrCannotEditOwner
	}

	changed, err := s.store.Users().UpdateRole(ctx, userID, role)
	if err != nil {
		return fmt.Errorf("failed to update role of user %d: %w", userID, err)
	}
	if !changed {
		return ErrUserNotFound
	}
	log.Printf("User %d role changed to %s by %d", userID, role, actor.ID)
	return nil
}

// DeleteUser removes an account and everything anchored to it: recipes with
// their shares, friendships with their cross shares, and pending requests.
func (s *userService) DeleteUser(ctx context.Context, actor models.Actor, userID uint) error {
	if !actor.Role.IsAdmin() {
		return ErrAdminOnly
	}
	if actor.ID == userID {
		return ErrCannotEditSelf
	}

	target, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}
	if target.Role == models.RoleOwner {
		return ErrCannotEditOwner
	}
	// Admins are managed by the owner.
	if target.Role == models.RoleAdmin && actor.Role != models.RoleOwner {
		return ErrOwnerOnly
	}

	var friendIDs []uint
	txErr := s.store.Transaction(ctx, func(tx storage.Store) error {
		friendIDs, err = tx.Friendships().GetFriendIDs(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to list friendships of user %d: %w", userID, err)
		}
		for _, friendID := range friendIDs {
			if _, err := tx.Friendships().Delete(ctx, userID, friendID); err != nil {
				return fmt.Errorf("failed to delete friendship of user %d: %w", userID, err)
			}
			if err := tx.Shares().DeleteBetweenUsers(ctx, userID, friendID); err != nil {
				return fmt.Errorf("failed to delete shares between %d and %d: %w", userID, friendID, err)
			}
			if err := tx.FriendRequests().ClosePendingBetween(ctx, userID, friendID, models.FriendRequestStatusRejected); err != nil {
				return fmt.Errorf("failed to close requests between %d and %d: %w", userID, friendID, err)
			}
		}

		recipes, err := tx.Recipes().ListByOwner(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to list recipes of user %d: %w", userID, err)
		}
		for _, recipe := range recipes {
			shares, err := tx.Shares().ListForRecipe(ctx, recipe.ID)
			if err != nil {
				return fmt.Errorf("failed to list shares of recipe %d: %w", recipe.ID, err)
			}
			for _, share := range shares {
				if err := tx.Shares().Delete(ctx, share.ID); err != nil {
					return fmt.Errorf("failed to delete share %d: %w", share.ID, err)
				}
			}
			if _, err := tx.Recipes().Delete(ctx, recipe.ID, userID); err != nil {
				return fmt.Errorf("failed to delete recipe %d: %w", recipe.ID, err)
			}
		}

		removed, err := tx.Users().Delete(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to delete user %d: %w", userID, err)
		}
		if !removed {
			return ErrUserNotFound
		}
		return nil
	})
	if txErr != nil {
		return txErr
	}

	log.Printf("User %d deleted by %d", userID, actor.ID)
	if len(friendIDs) > 0 {
		s.publisher.FriendsChanged(ctx, friendIDs...)
	}
	return nil
}
