package models

import "time"

// FriendRequestStatus is the lifecycle state of a friend request.
type FriendRequestStatus string

const (
	FriendRequestStatusPending  FriendRequestStatus = "pending"
	FriendRequestStatusAccepted FriendRequestStatus = "accepted"
	FriendRequestStatusRejected FriendRequestStatus = "rejected"
)

// FriendRequest represents a friend request record. At most one row exists
// per ordered (requester, recipient) pair; re-sending after a rejection
// revives the same row back to pending.
type FriendRequest struct {
	BaseModel
	RequesterUserID uint                `gorm:"not null;uniqueIndex:idx_friend_request_pair" json:"fromUserId"`
	RecipientUserID uint                `gorm:"not null;uniqueIndex:idx_friend_request_pair" json:"toUserId"`
	Status          FriendRequestStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	RespondedAt     *time.Time          `json:"respondedAt,omitempty"`
}

// TableName specifies the table name for the FriendRequest model.
func (FriendRequest) TableName() string {
	return "friend_requests"
}

// PendingRequestInfo is a pending-request listing entry. Username is the
// counterpart: the requester for incoming entries, the recipient for
// outgoing ones.
type PendingRequestInfo struct {
	ID        uint      `json:"id"`
	FromUser  uint      `json:"fromUserId"`
	ToUser    uint      `json:"toUserId"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// FriendRequestLists groups a user's pending requests by direction.
type FriendRequestLists struct {
	Incoming []PendingRequestInfo `json:"incoming"`
	Outgoing []PendingRequestInfo `json:"outgoing"`
}
