package storage

import (
	"context"

	"gorm.io/gorm"
)

// Store bundles all repositories behind one injectable surface so services
// can be exercised against an in-memory fake, and provides transactions
// that yield a Store scoped to the same unit of work.
type Store interface {
	Users() UserRepository
	Recipes() RecipeRepository
	Shares() ShareRepository
	Friendships() FriendshipRepository
	FriendRequests() FriendRequestRepository
	JoinCodes() JoinCodeRepository

	// Transaction runs fn inside a database transaction. The Store handed
	// to fn operates on the transaction; returning an error rolls back.
	Transaction(ctx context.Context, fn func(Store) error) error
}

type gormStore struct {
	db             *gorm.DB
	users          UserRepository
	recipes        RecipeRepository
	shares         ShareRepository
	friendships    FriendshipRepository
	friendRequests FriendRequestRepository
	joinCodes      JoinCodeRepository
}

// NewGormStore creates a Store backed by the given GORM connection.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{
		db:             db,
		users:          NewGormUserRepository(db),
		recipes:        NewGormRecipeRepository(db),
		shares:         NewGormShareRepository(db),
		friendships:    NewGormFriendshipRepository(db),
		friendRequests: NewGormFriendRequestRepository(db),
		joinCodes:      NewGormJoinCodeRepository(db),
	}
}

func (s *gormStore) Users() UserRepository                   { return s.users }
func (s *gormStore) Recipes() RecipeRepository               { return s.recipes }
func (s *gormStore) Shares() ShareRepository                 { return s.shares }
func (s *gormStore) Friendships() FriendshipRepository       { return s.friendships }
func (s *gormStore) FriendRequests() FriendRequestRepository { return s.friendRequests }
func (s *gormStore) JoinCodes() JoinCodeRepository           { return s.joinCodes }

func (s *gormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormStore(tx))
	})
}
