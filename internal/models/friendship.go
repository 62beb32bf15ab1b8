package models

// Friendship represents a friendship relationship between two users.
// To avoid duplicates and simplify queries, UserID1 should always be less
// than UserID2 (the canonical pair order).
type Friendship struct {
	BaseModel
	UserID1 uint `gorm:"not null;uniqueIndex:idx_friendship_users" json:"userId1"`
	User1   User `gorm:"foreignKey:UserID1" json:"-"`
	UserID2 uint `gorm:"not null;uniqueIndex:idx_friendship_users" json:"userId2"`
	User2   User `gorm:"foreignKey:UserID2" json:"-"`
}

// TableName specifies the table name for the Friendship model.
func (Friendship) TableName() string {
	return "friendships"
}

// EnsureCanonicalOrder sets UserID1 to the smaller ID and UserID2 to the
// larger ID. This must be called before creating a Friendship record.
func (f *Friendship) EnsureCanonicalOrder() {
	if f.UserID1 > f.UserID2 {
		f.UserID1, f.UserID2 = f.UserID2, f.UserID1
	}
}

// CanonicalPair returns an unordered user-id pair in canonical order.
func CanonicalPair(a, b uint) (uint, uint) {
	if a > b {
		return b, a
	}
	return a, b
}

// FriendInfo is a friend-list entry enriched with the friend's username.
type FriendInfo struct {
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
	Since    string `json:"since"`
}
