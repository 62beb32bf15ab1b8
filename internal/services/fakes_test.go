package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"lembas/internal/models"
	"lembas/internal/storage"
)

// fakeStore is an in-memory storage.Store for service tests.
type fakeStore struct {
	users       map[uint]*models.User
	recipes     map[uint]*models.Recipe
	shares      map[uint]*models.RecipeShare
	friendships map[[2]uint]*models.Friendship
	requests    map[uint]*models.FriendRequest
	joinCodes   map[string]*models.JoinCode
	nextID      uint
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       make(map[uint]*models.User),
		recipes:     make(map[uint]*models.Recipe),
		shares:      make(map[uint]*models.RecipeShare),
		friendships: make(map[[2]uint]*models.Friendship),
		requests:    make(map[uint]*models.FriendRequest),
		joinCodes:   make(map[string]*models.JoinCode),
	}
}

func (s *fakeStore) id() uint {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) Users() storage.UserRepository                   { return &fakeUserRepo{s} }
func (s *fakeStore) Recipes() storage.RecipeRepository               { return &fakeRecipeRepo{s} }
func (s *fakeStore) Shares() storage.ShareRepository                 { return &fakeShareRepo{s} }
func (s *fakeStore) Friendships() storage.FriendshipRepository       { return &fakeFriendshipRepo{s} }
func (s *fakeStore) FriendRequests() storage.FriendRequestRepository { return &fakeRequestRepo{s} }
func (s *fakeStore) JoinCodes() storage.JoinCodeRepository           { return &fakeJoinCodeRepo{s} }

func (s *fakeStore) Transaction(ctx context.Context, fn func(storage.Store) error) error {
	return fn(s)
}

// test seeding helpers

func (s *fakeStore) addUser(username string, role models.Role) *models.User {
	user := &models.User{Username: username, Role: role}
	user.ID = s.id()
	user.CreatedAt = time.Now()
	s.users[user.ID] = user
	return user
}

func (s *fakeStore) addRecipe(ownerID uint, title string) *models.Recipe {
	recipe := &models.Recipe{Title: title, OwnerID: ownerID}
	recipe.ID = s.id()
	s.recipes[recipe.ID] = recipe
	return recipe
}

func (s *fakeStore) addFriendship(a, b uint) {
	u1, u2 := models.CanonicalPair(a, b)
	f := &models.Friendship{UserID1: u1, UserID2: u2}
	f.ID = s.id()
	f.CreatedAt = time.Now()
	s.friendships[[2]uint{u1, u2}] = f
}

// fakeUserRepo

type fakeUserRepo struct{ s *fakeStore }

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = r.s.id()
	user.CreatedAt = time.Now()
	r.s.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uint) (*models.User, error) {
	user, ok := r.s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, user := range r.s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) List(ctx context.Context) ([]models.UserBasicInfo, error) {
	infos := make([]models.UserBasicInfo, 0, len(r.s.users))
	for _, user := range r.s.users {
		infos = append(infos, models.UserBasicInfo{ID: user.ID, Username: user.Username})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

func (r *fakeUserRepo) UpdateRole(ctx context.Context, id uint, role models.Role) (bool, error) {
	user, ok := r.s.users[id]
	if !ok {
		return false, nil
	}
	user.Role = role
	return true, nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, id uint) (bool, error) {
	if _, ok := r.s.users[id]; !ok {
		return false, nil
	}
	delete(r.s.users, id)
	return true, nil
}

func (r *fakeUserRepo) CountByRole(ctx context.Context, role models.Role) (int64, error) {
	var count int64
	for _, user := range r.s.users {
		if user.Role == role {
			count++
		}
	}
	return count, nil
}

func (r *fakeUserRepo) GetBasicInfoByID(ctx context.Context, id uint) (*models.UserBasicInfo, error) {
	user, ok := r.s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.UserBasicInfo{ID: user.ID, Username: user.Username}, nil
}

func (r *fakeUserRepo) GetMultipleBasicInfoByIDs(ctx context.Context, userIDs []uint) ([]*models.UserBasicInfo, error) {
	var infos []*models.UserBasicInfo
	for _, id := range userIDs {
		if user, ok := r.s.users[id]; ok {
			infos = append(infos, &models.UserBasicInfo{ID: user.ID, Username: user.Username})
		}
	}
	return infos, nil
}

// fakeRecipeRepo

type fakeRecipeRepo struct{ s *fakeStore }

func (r *fakeRecipeRepo) ListByOwner(ctx context.Context, ownerID uint) ([]models.Recipe, error) {
	var recipes []models.Recipe
	for _, recipe := range r.s.recipes {
		if recipe.OwnerID == ownerID {
			recipes = append(recipes, *recipe)
		}
	}
	sort.Slice(recipes, func(i, j int) bool {
		return strings.ToLower(recipes[i].Title) < strings.ToLower(recipes[j].Title)
	})
	return recipes, nil
}

func (r *fakeRecipeRepo) GetByID(ctx context.Context, id uint) (*models.Recipe, error) {
	recipe, ok := r.s.recipes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *recipe
	return &clone, nil
}

func (r *fakeRecipeRepo) GetByIDForOwner(ctx context.Context, id, ownerID uint) (*models.Recipe, error) {
	recipe, ok := r.s.recipes[id]
	if !ok || recipe.OwnerID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *recipe
	return &clone, nil
}

func (r *fakeRecipeRepo) Save(ctx context.Context, recipe *models.Recipe) error {
	if recipe.ID == 0 {
		recipe.ID = r.s.id()
	}
	clone := *recipe
	r.s.recipes[recipe.ID] = &clone
	return nil
}

func (r *fakeRecipeRepo) Delete(ctx context.Context, id, ownerID uint) (bool, error) {
	recipe, ok := r.s.recipes[id]
	if !ok || recipe.OwnerID != ownerID {
		return false, nil
	}
	delete(r.s.recipes, id)
	return true, nil
}

func (r *fakeRecipeRepo) SetPublicFlag(ctx context.Context, id uint, isPublic bool) error {
	if recipe, ok := r.s.recipes[id]; ok {
		recipe.IsPublic = isPublic
	}
	return nil
}

// fakeShareRepo

type fakeShareRepo struct{ s *fakeStore }

func (r *fakeShareRepo) Create(ctx context.Context, share *models.RecipeShare) error {
	share.ID = r.s.id()
	share.CreatedAt = time.Now()
	r.s.shares[share.ID] = share
	return nil
}

func (r *fakeShareRepo) GetByToken(ctx context.Context, token string) (*models.RecipeShare, error) {
	for _, share := range r.s.shares {
		if share.Token == token {
			return share, nil
		}
	}
	return nil, nil
}

func (r *fakeShareRepo) GetPublicShare(ctx context.Context, recipeID uint) (*models.RecipeShare, error) {
	for _, share := range r.s.shares {
		if share.RecipeID == recipeID && share.Type == models.PublicShareType {
			return share, nil
		}
	}
	return nil, nil
}

func (r *fakeShareRepo) GetUserShare(ctx context.Context, recipeID, granteeID uint) (*models.RecipeShare, error) {
	for _, share := range r.s.shares {
		if share.RecipeID == recipeID && share.Type == models.UserShareType &&
			share.GranteeID != nil && *share.GranteeID == granteeID {
			return share, nil
		}
	}
	return nil, nil
}

func (r *fakeShareRepo) UpdateCanEdit(ctx context.Context, shareID uint, canEdit bool) error {
	if share, ok := r.s.shares[shareID]; ok {
		share.CanEdit = canEdit
	}
	return nil
}

func (r *fakeShareRepo) Delete(ctx context.Context, shareID uint) error {
	delete(r.s.shares, shareID)
	return nil
}

func (r *fakeShareRepo) DeletePublicShare(ctx context.Context, recipeID uint) error {
	for id, share := range r.s.shares {
		if share.RecipeID == recipeID && share.Type == models.PublicShareType {
			delete(r.s.shares, id)
		}
	}
	return nil
}

func (r *fakeShareRepo) DeleteUserShare(ctx context.Context, recipeID, granteeID uint) error {
	for id, share := range r.s.shares {
		if share.RecipeID == recipeID && share.Type == models.UserShareType &&
			share.GranteeID != nil && *share.GranteeID == granteeID {
			delete(r.s.shares, id)
		}
	}
	return nil
}

func (r *fakeShareRepo) DeleteBetweenUsers(ctx context.Context, userA, userB uint) error {
	for id, share := range r.s.shares {
		if share.Type != models.UserShareType || share.GranteeID == nil {
			continue
		}
		recipe, ok := r.s.recipes[share.RecipeID]
		if !ok {
			continue
		}
		if (recipe.OwnerID == userA && *share.GranteeID == userB) ||
			(recipe.OwnerID == userB && *share.GranteeID == userA) {
			delete(r.s.shares, id)
		}
	}
	return nil
}

func (r *fakeShareRepo) ListForRecipe(ctx context.Context, recipeID uint) ([]models.RecipeShare, error) {
	var shares []models.RecipeShare
	for _, share := range r.s.shares {
		if share.RecipeID == recipeID {
			shares = append(shares, *share)
		}
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].ID < shares[j].ID })
	return shares, nil
}

func (r *fakeShareRepo) ListForGrantee(ctx context.Context, granteeID uint) ([]models.RecipeShare, error) {
	var shares []models.RecipeShare
	for _, share := range r.s.shares {
		if share.Type == models.UserShareType && share.GranteeID != nil && *share.GranteeID == granteeID {
			shares = append(shares, *share)
		}
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].ID < shares[j].ID })
	return shares, nil
}

// fakeFriendshipRepo

type fakeFriendshipRepo struct{ s *fakeStore }

func (r *fakeFriendshipRepo) Create(ctx context.Context, friendship *models.Friendship) error {
	friendship.EnsureCanonicalOrder()
	key := [2]uint{friendship.UserID1, friendship.UserID2}
	if existing, ok := r.s.friendships[key]; ok {
		*friendship = *existing
		return nil
	}
	friendship.ID = r.s.id()
	friendship.CreatedAt = time.Now()
	r.s.friendships[key] = friendship
	return nil
}

func (r *fakeFriendshipRepo) AreUsersFriends(ctx context.Context, userID1, userID2 uint) (bool, error) {
	u1, u2 := models.CanonicalPair(userID1, userID2)
	_, ok := r.s.friendships[[2]uint{u1, u2}]
	return ok, nil
}

func (r *fakeFriendshipRepo) Delete(ctx context.Context, userID1, userID2 uint) (bool, error) {
	u1, u2 := models.CanonicalPair(userID1, userID2)
	key := [2]uint{u1, u2}
	if _, ok := r.s.friendships[key]; !ok {
		return false, nil
	}
	delete(r.s.friendships, key)
	return true, nil
}

func (r *fakeFriendshipRepo) GetFriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	for key := range r.s.friendships {
		if key[0] == userID {
			ids = append(ids, key[1])
		} else if key[1] == userID {
			ids = append(ids, key[0])
		}
	}
	return ids, nil
}

func (r *fakeFriendshipRepo) ListForUser(ctx context.Context, userID uint) ([]models.Friendship, error) {
	var friendships []models.Friendship
	for _, f := range r.s.friendships {
		if f.UserID1 == userID || f.UserID2 == userID {
			friendships = append(friendships, *f)
		}
	}
	return friendships, nil
}

// fakeRequestRepo

type fakeRequestRepo struct{ s *fakeStore }

func (r *fakeRequestRepo) Create(ctx context.Context, request *models.FriendRequest) error {
	request.ID = r.s.id()
	request.CreatedAt = time.Now()
	r.s.requests[request.ID] = request
	return nil
}

func (r *fakeRequestRepo) GetByID(ctx context.Context, requestID uint) (*models.FriendRequest, error) {
	request, ok := r.s.requests[requestID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return request, nil
}

func (r *fakeRequestRepo) GetByPair(ctx context.Context, requesterID, recipientID uint) (*models.FriendRequest, error) {
	for _, request := range r.s.requests {
		if request.RequesterUserID == requesterID && request.RecipientUserID == recipientID {
			return request, nil
		}
	}
	return nil, nil
}

func (r *fakeRequestRepo) SetStatus(ctx context.Context, requestID uint, status models.FriendRequestStatus) error {
	if request, ok := r.s.requests[requestID]; ok {
		now := time.Now()
		request.Status = status
		request.RespondedAt = &now
	}
	return nil
}

func (r *fakeRequestRepo) Revive(ctx context.Context, requestID uint) error {
	if request, ok := r.s.requests[requestID]; ok {
		request.Status = models.FriendRequestStatusPending
		request.RespondedAt = nil
		request.CreatedAt = time.Now()
	}
	return nil
}

func (r *fakeRequestRepo) ClosePendingBetween(ctx context.Context, userA, userB uint, status models.FriendRequestStatus) error {
	now := time.Now()
	for _, request := range r.s.requests {
		if request.Status != models.FriendRequestStatusPending {
			continue
		}
		if (request.RequesterUserID == userA && request.RecipientUserID == userB) ||
			(request.RequesterUserID == userB && request.RecipientUserID == userA) {
			request.Status = status
			request.RespondedAt = &now
		}
	}
	return nil
}

func (r *fakeRequestRepo) ListPendingForRecipient(ctx context.Context, recipientID uint) ([]models.FriendRequest, error) {
	var requests []models.FriendRequest
	for _, request := range r.s.requests {
		if request.RecipientUserID == recipientID && request.Status == models.FriendRequestStatusPending {
			requests = append(requests, *request)
		}
	}
	return requests, nil
}

func (r *fakeRequestRepo) ListPendingFromRequester(ctx context.Context, requesterID uint) ([]models.FriendRequest, error) {
	var requests []models.FriendRequest
	for _, request := range r.s.requests {
		if request.RequesterUserID == requesterID && request.Status == models.FriendRequestStatusPending {
			requests = append(requests, *request)
		}
	}
	return requests, nil
}

// fakeJoinCodeRepo

type fakeJoinCodeRepo struct{ s *fakeStore }

func (r *fakeJoinCodeRepo) Create(ctx context.Context, code *models.JoinCode) error {
	code.CreatedAt = time.Now()
	r.s.joinCodes[code.Code] = code
	return nil
}

func (r *fakeJoinCodeRepo) GetByCode(ctx context.Context, code string) (*models.JoinCode, error) {
	record, ok := r.s.joinCodes[code]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (r *fakeJoinCodeRepo) IncrementUse(ctx context.Context, code string) error {
	if record, ok := r.s.joinCodes[code]; ok {
		record.UsedCount++
	}
	return nil
}

func (r *fakeJoinCodeRepo) Delete(ctx context.Context, code string) error {
	delete(r.s.joinCodes, code)
	return nil
}

func (r *fakeJoinCodeRepo) DeleteByRole(ctx context.Context, role models.Role) error {
	for code, record := range r.s.joinCodes {
		if record.Role == role {
			delete(r.s.joinCodes, code)
		}
	}
	return nil
}

func (r *fakeJoinCodeRepo) List(ctx context.Context) ([]models.JoinCode, error) {
	var codes []models.JoinCode
	for _, record := range r.s.joinCodes {
		codes = append(codes, *record)
	}
	return codes, nil
}

func (r *fakeJoinCodeRepo) ListByRole(ctx context.Context, role models.Role) ([]models.JoinCode, error) {
	var codes []models.JoinCode
	for _, record := range r.s.joinCodes {
		if record.Role == role {
			codes = append(codes, *record)
		}
	}
	return codes, nil
}

// fakePublisher records the sync events a service emits.
type fakePublisher struct {
	recipeEvents [][]uint
	friendEvents [][]uint
}

func (p *fakePublisher) RecipesChanged(ctx context.Context, ownerID uint) {
	p.recipeEvents = append(p.recipeEvents, []uint{ownerID})
}

func (p *fakePublisher) FriendsChanged(ctx context.Context, userIDs ...uint) {
	p.friendEvents = append(p.friendEvents, userIDs)
}
