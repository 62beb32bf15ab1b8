package storage

import (
	"context"

	"gorm.io/gorm"

	"lembas/internal/models"
)

// FriendshipRepository defines the interface for friendship data operations.
type FriendshipRepository interface {
	Create(ctx context.Context, friendship *models.Friendship) error
	AreUsersFriends(ctx context.Context, userID1, userID2 uint) (bool, error)
	Delete(ctx context.Context, userID1, userID2 uint) (bool, error)
	GetFriendIDs(ctx context.Context, userID uint) ([]uint, error)
	ListForUser(ctx context.Context, userID uint) ([]models.Friendship, error)
}

type gormFriendshipRepository struct {
	db *gorm.DB
}

// NewGormFriendshipRepository creates a new GormFriendshipRepository.
func NewGormFriendshipRepository(db *gorm.DB) FriendshipRepository {
	return &gormFriendshipRepository{db: db}
}

// Create creates a friendship row on the canonical pair. Creating an
// already existing pair is a no-op, which keeps concurrent acceptance of
// crossing requests idempotent.
func (r *gormFriendshipRepository) Create(ctx context.Context, friendship *models.Friendship) error {
	friendship.EnsureCanonicalOrder()
	return r.db.WithContext(ctx).
		Where("user_id1 = ? AND user_id2 = ?", friendship.UserID1, friendship.UserID2).
		FirstOrCreate(friendship).Error
}

// AreUsersFriends checks if two users are currently friends.
func (r *gormFriendshipRepository) AreUsersFriends(ctx context.Context, userID1, userID2 uint) (bool, error) {
	u1, u2 := models.CanonicalPair(userID1, userID2)
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Friendship{}).
		Where("user_id1 = ? AND user_id2 = ?", u1, u2).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Delete removes the friendship row for the pair. Returns whether a row
// was actually removed. The delete is unscoped: a soft-deleted row would
// keep occupying the unique index on the pair and block a later re-friend.
func (r *gormFriendshipRepository) Delete(ctx context.Context, userID1, userID2 uint) (bool, error) {
	u1, u2 := models.CanonicalPair(userID1, userID2)
	res := r.db.WithContext(ctx).
		Unscoped().
		Where("user_id1 = ? AND user_id2 = ?", u1, u2).
		Delete(&models.Friendship{})
	return res.RowsAffected > 0, res.Error
}

// GetFriendIDs retrieves a list of user IDs who are friends with the given userID.
func (r *gormFriendshipRepository) GetFriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	// The user can sit on either side of the canonical pair, so both
	// columns have to be plucked.
	var idsPart1 []uint
	err := r.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("user_id1 = ?", userID).
		Pluck("user_id2", &idsPart1).Error
	if err != nil {
		return nil, err
	}

	var idsPart2 []uint
	err = r.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("user_id2 = ?", userID).
		Pluck("user_id1", &idsPart2).Error
	if err != nil {
		return nil, err
	}

	return append(idsPart1, idsPart2...), nil
}

// ListForUser returns the friendship rows the user participates in.
func (r *gormFriendshipRepository) ListForUser(ctx context.Context, userID uint) ([]models.Friendship, error) {
	var friendships []models.Friendship
	err := r.db.WithContext(ctx).
		Where("user_id1 = ? OR user_id2 = ?", userID, userID).
		Find(&friendships).Error
	if err != nil {
		return nil, err
	}
	return friendships, nil
}
