package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"lembas/internal/models"
)

// FriendRequestRepository defines the interface for friend request data
// operations.
type FriendRequestRepository interface {
	Create(ctx context.Context, request *models.FriendRequest) error
	GetByID(ctx context.Context, requestID uint) (*models.FriendRequest, error)
	// GetByPair returns the request row for the ordered (requester,
	// recipient) pair regardless of status, or (nil, nil) if none exists.
	GetByPair(ctx context.Context, requesterID, recipientID uint) (*models.FriendRequest, error)
	SetStatus(ctx context.Context, requestID uint, status models.FriendRequestStatus) error
	// Revive resets a previously resolved request back to pending,
	// clearing its response timestamp.
	Revive(ctx context.Context, requestID uint) error
	// ClosePendingBetween resolves every pending request between the two
	// users (both directions) to the given terminal status.
	ClosePendingBetween(ctx context.Context, userA, userB uint, status models.FriendRequestStatus) error
	ListPendingForRecipient(ctx context.Context, recipientID uint) ([]models.FriendRequest, error)
	ListPendingFromRequester(ctx context.Context, requesterID uint) ([]models.FriendRequest, error)
}

type gormFriendRequestRepository struct {
	db *gorm.DB
}

// NewGormFriendRequestRepository creates a new GormFriendRequestRepository.
func NewGormFriendRequestRepository(db *gorm.DB) FriendRequestRepository {
	return &gormFriendRequestRepository{db: db}
}

func (r *gormFriendRequestRepository) Create(ctx context.Context, request *models.FriendRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *gormFriendRequestRepository) GetByID(ctx context.Context, requestID uint) (*models.FriendRequest, error) {
	var request models.FriendRequest
	err := r.db.WithContext(ctx).First(&request, requestID).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *gormFriendRequestRepository) GetByPair(ctx context.Context, requesterID, recipientID uint) (*models.FriendRequest, error) {
	var request models.FriendRequest
	err := r.db.WithContext(ctx).
		Where("requester_user_id = ? AND recipient_user_id = ?", requesterID, recipientID).
		First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

// SetStatus resolves a request to a terminal status and records when.
func (r *gormFriendRequestRepository) SetStatus(ctx context.Context, requestID uint, status models.FriendRequestStatus) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.FriendRequest{}).
		Where("id = ?", requestID).
		Updates(map[string]interface{}{"status": status, "responded_at": &now}).Error
}

func (r *gormFriendRequestRepository) Revive(ctx context.Context, requestID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.FriendRequest{}).
		Where("id = ?", requestID).
		Updates(map[string]interface{}{
			"status":       models.FriendRequestStatusPending,
			"responded_at": nil,
			"created_at":   time.Now(),
		}).Error
}

func (r *gormFriendRequestRepository) ClosePendingBetween(ctx context.Context, userA, userB uint, status models.FriendRequestStatus) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.FriendRequest{}).
		Where("status = ?", models.FriendRequestStatusPending).
		Where(
			r.db.Where("requester_user_id = ? AND recipient_user_id = ?", userA, userB).
				Or("requester_user_id = ? AND recipient_user_id = ?", userB, userA),
		).
		Updates(map[string]interface{}{"status": status, "responded_at": &now}).Error
}

func (r *gormFriendRequestRepository) ListPendingForRecipient(ctx context.Context, recipientID uint) ([]models.FriendRequest, error) {
	var requests []models.FriendRequest
	err := r.db.WithContext(ctx).
		Where("recipient_user_id = ? AND status = ?", recipientID, models.FriendRequestStatusPending).
		Order("created_at DESC").
		Find(&requests).Error
	return requests, err
}

func (r *gormFriendRequestRepository) ListPendingFromRequester(ctx context.Context, requesterID uint) ([]models.FriendRequest, error) {
	var requests []models.FriendRequest
	err := r.db.WithContext(ctx).
		Where("requester_user_id = ? AND status = ?", requesterID, models.FriendRequestStatusPending).
		Order("created_at DESC").
		Find(&requests).Error
	return requests, err
}
