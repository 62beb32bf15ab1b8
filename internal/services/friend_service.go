package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"lembas/internal/models"
	"lembas/internal/storage"
)

var (
	ErrSelfFriendRequest   = errors.New("cannot send a friend request to yourself")
	ErrAlreadyFriends      = errors.New("users are already friends")
	ErrRecipientNotFound   = errors.New("recipient user does not exist")
	ErrRequestNotFound     = errors.New("friend request does not exist")
	ErrNotRequestRecipient = errors.New("you are not the recipient of this friend request")
	ErrRequestNotPending   = errors.New("friend request is not pending")
	ErrFriendshipNotFound  = errors.New("friendship does not exist")
)

// SendRequestResult reports what sending a friend request actually did:
// when a reverse pending request existed the send auto-accepts and the two
// users come out friends.
type SendRequestResult struct {
	Request      *models.FriendRequest `json:"request,omitempty"`
	BecameFriend bool                  `json:"becameFriends"`
}

// FriendService defines the interface for friendship and friend request
// operations.
type FriendService interface {
	AreFriends(ctx context.Context, userID1, userID2 uint) (bool, error)
	SendRequest(ctx context.Context, requesterID, recipientID uint) (*SendRequestResult, error)
	AcceptRequest(ctx context.Context, recipientID, requestID uint) error
	RejectRequest(ctx context.Context, recipientID, requestID uint) error
	RemoveFriend(ctx context.Context, userID, friendID uint) error
	ListFriends(ctx context.Context, userID uint) ([]models.FriendInfo, error)
	ListRequests(ctx context.Context, userID uint) (*models.FriendRequestLists, error)
}

type friendService struct {
	store     storage.Store
	publisher SyncPublisher
}

// NewFriendService creates a new FriendService instance.
func NewFriendService(store storage.Store, publisher SyncPublisher) FriendService {
	return &friendService{store: store, publisher: publisher}
}

func (s *friendService) AreFriends(ctx context.Context, userID1, userID2 uint) (bool, error) {
	return s.store.Friendships().AreUsersFriends(ctx, userID1, userID2)
}

// SendRequest creates or revives a pending request. If the recipient has a
// pending request towards the requester already, sending is equivalent to
// accepting: both requests resolve to accepted and the friendship is
// created, all in one transaction.
func (s *friendService) SendRequest(ctx context.Context, requesterID, recipientID uint) (*SendRequestResult, error) {
	if requesterID == recipientID {
		return nil, ErrSelfFriendRequest
	}

	if _, err := s.store.Users().GetByID(ctx, recipientID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, fmt.Errorf("failed to check recipient user %d: %w", recipientID, err)
	}

	areFriends, err := s.store.Friendships().AreUsersFriends(ctx, requesterID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to check friendship between %d and %d: %w", requesterID, recipientID, err)
	}
	if areFriends {
		return nil, ErrAlreadyFriends
	}

	result := &SendRequestResult{}
	txErr := s.store.Transaction(ctx, func(tx storage.Store) error {
		// A pending reverse request means the other side already asked.
		reverse, err := tx.FriendRequests().GetByPair(ctx, recipientID, requesterID)
		if err != nil {
			return fmt.Errorf("failed to check reverse friend request: %w", err)
		}
		if reverse != nil && reverse.Status == models.FriendRequestStatusPending {
			if err := s.acceptPair(ctx, tx, reverse); err != nil {
				return err
			}
			result.BecameFriend = true
			result.Request = reverse
			return nil
		}

		forward, err := tx.FriendRequests().GetByPair(ctx, requesterID, recipientID)
		if err != nil {
			return fmt.Errorf("failed to check existing friend request: %w", err)
		}
		switch {
		case forward == nil:
			request := &models.FriendRequest{
				RequesterUserID: requesterID,
				RecipientUserID: recipientID,
				Status:          models.FriendRequestStatusPending,
			}
			if err := tx.FriendRequests().Create(ctx, request); err != nil {
				return fmt.Errorf("failed to create friend request: %w", err)
			}
			result.Request = request
		case forward.Status == models.FriendRequestStatusPending:
			// Re-sending while pending is a no-op.
			result.Request = forward
		default:
			// A resolved row (rejected, or accepted from a friendship since
			// removed) is revived back to pending.
			if err := tx.FriendRequests().Revive(ctx, forward.ID); err != nil {
				return fmt.Errorf("failed to revive friend request %d: %w", forward.ID, err)
			}
			forward.Status = models.FriendRequestStatusPending
			forward.RespondedAt = nil
			result.Request = forward
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	s.publisher.FriendsChanged(ctx, requesterID, recipientID)
	return result, nil
}

// acceptPair resolves a pending request (and any mirror request between the
// same pair) to accepted and creates the friendship. Must run inside a
// transaction.
func (s *friendService) acceptPair(ctx context.Context, tx storage.Store, request *models.FriendRequest) error {
	if err := tx.FriendRequests().ClosePendingBetween(ctx, request.RequesterUserID, request.RecipientUserID, models.FriendRequestStatusAccepted); err != nil {
		return fmt.Errorf("failed to accept friend requests between %d and %d: %w", request.RequesterUserID, request.RecipientUserID, err)
	}
	friendship := &models.Friendship{
		UserID1: request.RequesterUserID,
		UserID2: request.RecipientUserID,
	}
	if err := tx.Friendships().Create(ctx, friendship); err != nil {
		return fmt.Errorf("failed to create friendship for users %d and %d: %w", request.RequesterUserID, request.RecipientUserID, err)
	}
	request.Status = models.FriendRequestStatusAccepted
	now := time.Now()
	request.RespondedAt = &now
	return nil
}

// AcceptRequest accepts a pending request addressed to recipientID.
func (s *friendService) AcceptRequest(ctx context.Context, recipientID, requestID uint) error {
	var requesterID uint
	txErr := s.store.Transaction(ctx, func(tx storage.Store) error {
		request, err := tx.FriendRequests().GetByID(ctx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRequestNotFound
			}
			return fmt.Errorf("failed to retrieve friend request %d: %w", requestID, err)
		}
		if request.RecipientUserID != recipientID {
			return ErrNotRequestRecipient
		}
		if request.Status != models.FriendRequestStatusPending {
			return ErrRequestNotPending
		}
		requesterID = request.RequesterUserID
		return s.acceptPair(ctx, tx, request)
	})
	if txErr != nil {
		return txErr
	}

	log.Printf("Friend request %d accepted by user %d", requestID, recipientID)
	s.publisher.FriendsChanged(ctx, requesterID, recipientID)
	return nil
}

// RejectRequest rejects a pending request addressed to recipientID. No
// friendship is created.
func (s *friendService) RejectRequest(ctx context.Context, recipientID, requestID uint) error {
	request, err := s.store.FriendRequests().GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRequestNotFound
		}
		return fmt.Errorf("failed to retrieve friend request %d: %w", requestID, err)
	}
	if request.RecipientUserID != recipientID {
		return ErrNotRequestRecipient
	}
	if request.Status != models.FriendRequestStatusPending {
		return ErrRequestNotPending
	}

	if err := s.store.FriendRequests().SetStatus(ctx, requestID, models.FriendRequestStatusRejected); err != nil {
		return fmt.Errorf("failed to reject friend request %d: %w", requestID, err)
	}

	log.Printf("Friend request %d rejected by user %d", requestID, recipientID)
	s.publisher.FriendsChanged(ctx, request.RequesterUserID, recipientID)
	return nil
}

// RemoveFriend deletes the friendship and cascades: every user share
// between the pair (both directions) is removed and any lingering pending
// requests between them close out as rejected.
func (s *friendService) RemoveFriend(ctx context.Context, userID, friendID uint) error {
	txErr := s.store.Transaction(ctx, func(tx storage.Store) error {
		removed, err := tx.Friendships().Delete(ctx, userID, friendID)
		if err != nil {
			return fmt.Errorf("failed to delete friendship between %d and %d: %w", userID, friendID, err)
		}
		if !removed {
			return ErrFriendshipNotFound
		}
		if err := tx.Shares().DeleteBetweenUsers(ctx, userID, friendID); err != nil {
			return fmt.Errorf("failed to cascade share deletion between %d and %d: %w", userID, friendID, err)
		}
		if err := tx.FriendRequests().ClosePendingBetween(ctx, userID, friendID, models.FriendRequestStatusRejected); err != nil {
			return fmt.Errorf("failed to close pending requests between %d and %d: %w", userID, friendID, err)
		}
		return nil
	})
	if txErr != nil {
		return txErr
	}

	log.Printf("Friendship between %d and %d removed", userID, friendID)
	s.publisher.FriendsChanged(ctx, userID, friendID)
	return nil
}

// ListFriends returns the user's friends sorted case-insensitively by
// username.
func (s *friendService) ListFriends(ctx context.Context, userID uint) ([]models.FriendInfo, error) {
	friendships, err := s.store.Friendships().ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friendships for user %d: %w", userID, err)
	}
	if len(friendships) == 0 {
		return []models.FriendInfo{}, nil
	}

	since := make(map[uint]time.Time, len(friendships))
	ids := make([]uint, 0, len(friendships))
	for _, f := range friendships {
		friendID := f.UserID1
		if friendID == userID {
			friendID = f.UserID2
		}
		since[friendID] = f.CreatedAt
		ids = append(ids, friendID)
	}

	infos, err := s.store.Users().GetMultipleBasicInfoByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load friend info for user %d: %w", userID, err)
	}

	friends := make([]models.FriendInfo, 0, len(infos))
	for _, info := range infos {
		friends = append(friends, models.FriendInfo{
			UserID:   info.ID,
			Username: info.Username,
			Since:    since[info.ID].Format(time.RFC3339),
		})
	}
	sort.Slice(friends, func(i, j int) bool {
		return strings.ToLower(friends[i].Username) < strings.ToLower(friends[j].Username)
	})
	return friends, nil
}

// ListRequests returns the user's pending requests in both directions, each
// entry carrying the counterpart's username.
func (s *friendService) ListRequests(ctx context.Context, userID uint) (*models.FriendRequestLists, error) {
	incoming, err := s.store.FriendRequests().ListPendingForRecipient(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list incoming requests for user %d: %w", userID, err)
	}
	outgoing, err := s.store.FriendRequests().ListPendingFromRequester(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list outgoing requests for user %d: %w", userID, err)
	}

	ids := make([]uint, 0, len(incoming)+len(outgoing))
	for _, req := range incoming {
		ids = append(ids, req.RequesterUserID)
	}
	for _, req := range outgoing {
		ids = append(ids, req.RecipientUserID)
	}
	usernames := make(map[uint]string, len(ids))
	if len(ids) > 0 {
		infos, err := s.store.Users().GetMultipleBasicInfoByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load request counterpart info for user %d: %w", userID, err)
		}
		for _, info := range infos {
			usernames[info.ID] = info.Username
		}
	}

	lists := &models.FriendRequestLists{
		Incoming: make([]models.PendingRequestInfo, 0, len(incoming)),
		Outgoing: make([]models.PendingRequestInfo, 0, len(outgoing)),
	}
	for _, req := range incoming {
		lists.Incoming = append(lists.Incoming, models.PendingRequestInfo{
			ID:        req.ID,
			FromUser:  req.RequesterUserID,
			ToUser:    req.RecipientUserID,
			Username:  usernames[req.RequesterUserID],
			CreatedAt: req.CreatedAt,
		})
	}
	for _, req := range outgoing {
		lists.Outgoing = append(lists.Outgoing, models.PendingRequestInfo{
			ID:        req.ID,
			FromUser:  req.RequesterUserID,
			ToUser:    req.RecipientUserID,
			Username:  usernames[req.RecipientUserID],
			CreatedAt: req.CreatedAt,
		})
	}
	return lists, nil
}
