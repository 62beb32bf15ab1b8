package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lembas/internal/models"
)

func newShareFixture(t *testing.T) (*fakeStore, *fakePublisher, ShareService) {
	t.Helper()
	store := newFakeStore()
	publisher := &fakePublisher{}
	return store, publisher, NewShareService(store, NewEvaluator(store), publisher)
}

func TestSetPublicShare_EnableIsIdempotent(t *testing.T) {
	store, publisher, svc := newShareFixture(t)
	alice := store.addUser("alice", models.RoleUser)
	recipe := store.addRecipe(alice.ID, "Waybread")

	first, err := svc.SetPublicShare(context.Background(), alice.ID, recipe.ID, true)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, models.PublicShareType, first.Type)
	assert.NotEmpty(t, first.Token)
	assert.True(t, store.recipes[recipe.ID].IsPublic)

	// Enabling again must not rotate the token.
	second, err := svc.SetPublicShare(context.Background(), alice.ID, recipe.ID, true)
	require.NoError(t, err)
	assert.Equal(t, first.Token, second.Token)
	assert.Equal(t, first.ID, second.ID)

	assert.Len(t, publisher.recipeEvents, 2)
}

func TestSetPublicShare_DisableRemovesShare(t *testing.T) {
	store, _, svc := newShareFixture(t)
	alice := store.addUser("alice", models.RoleUser)
	recipe := store.addRecipe(alice.ID, "Waybread")

	enabled, err := svc.SetPublicShare(context.Background(), alice.ID, recipe.ID, true)
	require.NoError(t, err)

	result, err := svc.SetPublicShare(context.Background(), alice.ID, recipe.ID, false)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.False(t, store.recipes[recipe.ID].IsPublic)

	// The old token no longer resolves for anyone.
	_, err = svc.ResolveToken(context.Background(), models.Actor{}, enabled.Token)
	assert.ErrorIs(t, err, ErrShareNotFound)
}

func TestSetPublicShare_OwnerGuards(t *testing.T) {
	store, _, svc := newShareFixture(t)
	alice := store.addUser("alice", models.RoleUser)
	mallory := store.addUser("mallory", models.RoleUser)
	recipe := store.addRecipe(alice.ID, "Waybread")

	_, err := svc.SetPublicShare(context.Background(), alice.ID, 999, true)
	assert.ErrorIs(t, err, ErrRecipeNotFound)

	_, err = svc.SetPublicShare(context.Background(), mallory.ID, recipe.ID, true)
	assert.ErrorIs(t, err, ErrNotRecipeOwner)
}

func TestGrantUserShare_RequiresFriendship(t *testing.T) {
	store, _, svc := newShareFixture(t)
	alice := store.addUser("alice", models.RoleUser)
	bob := store.addUser("bob", models.RoleUser)
	recipe := store.addRecipe(alice.ID, "Waybread")

	_, err := svc.GrantUserShare(context.Background(), alice.ID, recipe.ID, bob.ID, false)
	assert.ErrorIs(t, err, ErrNotFriends)
}

func TestGrantUserShare_UpsertsCanEdit(t *testing.T) {
	store, _, svc := newShareFixture(t)
	alice := store.addUser("alice", models.RoleUser)
	bob := store.addUser("bob", models.RoleUser)
	store.addFriendship(alice.ID, bob.ID)
	recipe := store.addRecipe(alice.ID, "Waybread")

	first, err := svc.GrantUserShare(context.Background(), alice.ID, recipe.ID, bob.ID, false)
	require.NoError(t, err)
	assert.False(t, first.CanEdit)
	require.NotNil(t, first.GranteeID)
	assert.Equal(t, bob.ID, *first.GranteeID)

	// Granting again flips canEdit in place; the token stays stable.
	second, err := svc.GrantUserShare(context.Background(), alice.ID, recipe.ID, bob.ID, true)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Token, second.Token)
	assert.True(t, second.CanEdit)
	assert.Len(t, store.shares, 1)
}

func TestRevokeUserShare(t *testing.T) {
	store, _, svc := newShareFixture(t)
	alice := store.addUser("alice", models.RoleUser)
	bob := store.addUser("bob", models.RoleUser)
	store.addFriendship(alice.ID, bob.ID)
	recipe := store.addRecipe(alice.ID, "Waybread")

	share, err := svc.GrantUserShare(context.Background(), alice.ID, recipe.ID, bob.ID, true)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeUserShare(context.Background(), alice.ID, recipe.ID, bob.ID))
	assert.Empty(t, store.shares)

	_, err = svc.ResolveToken(context.Background(), models.Actor{ID: bob.ID, Role: models.RoleUser}, share.Token)
	assert.ErrorIs(t, err, ErrShareNotFound)

	// Revoking again is a no-op.
	require.NoError(t, svc.RevokeUserShare(context.Background(), alice.ID, recipe.ID, bob.ID))
}

func TestListShares_DropsStaleGrants(t *testing.T) {
	store, _, svc := newShareFixture(t)
	alice := store.addUser("alice", models.RoleUser)
	bob := store.addUser("bob", models.RoleUser)
	carol := store.addUser("carol", models.RoleUser)
	store.addFriendship(alice.ID, bob.ID)
	store.addFriendship(alice.ID, carol.ID)
	recipe := store.addRecipe(alice.ID, "Waybread")

	_, err := svc.SetPublicShare(context.Background(), alice.ID, recipe.ID, true)
	require.NoError(t, err)
	_, err = svc.GrantUserShare(context.Background(), alice.ID, recipe.ID, bob.ID, true)
	require.NoError(t, err)
	staleShare, err := svc.GrantUserShare(context.Background(), alice.ID, recipe.ID, carol.ID, false)
	require.NoError(t, err)

	// Carol unfriends Alice; her grant is now stale.
	_, err = store.Friendships().Delete(context.Background(), alice.ID, carol.ID)
	require.NoError(t, err)

	shares, err := svc.ListShares(context.Background(), alice.ID, recipe.ID)
	require.NoError(t, err)
	require.Len(t, shares, 2)

	types := map[models.ShareType]models.ShareInfo{}
	for _, info := range shares {
		types[info.Type] = info
	}
	assert.Contains(t, types, models.PublicShareType)
	require.Contains(t, types, models.UserShareType)
	assert.Equal(t, "bob", types[models.UserShareType].Username)

	// The stale row was deleted on read.
	_, ok := store.shares[staleShare.ID]
	assert.False(t, ok)
}

func TestResolveToken_PublicShare(t *testing.T) {
	store, _, svc := newShareFixture(t)
	alice := store.addUser("alice", models.RoleUser)
	recipe := store.addRecipe(alice.ID, "Waybread")

	share, err := svc.SetPublicShare(context.Background(), alice.ID, recipe.ID, true)
	require.NoError(t, err)

	// Anonymous viewers may read, never edit.
	resolved, err := svc.ResolveToken(context.Background(), models.Actor{}, share.Token)
	require.NoError(t, err)
	assert.Equal(t, recipe.ID, resolved.Recipe.ID)
	assert.True(t, resolved.Access.CanView)
	assert.False(t, resolved.Access.CanEdit)
	assert.Equal(t, AccessVariantPublic, resolved.Access.Variant)

	// The owner arriving through their own public link keeps full access.
	resolved, err = svc.ResolveToken(context.Background(), models.Actor{ID: alice.ID, Role: models.RoleUser}, share.Token)
	require.NoError(t, err)
	assert.True(t, resolved.Access.CanEdit)
	assert.Equal(t, AccessVariantOwner, resolved.Access.Variant)
}

func TestResolveToken_UnknownToken(t *testing.T) {
	_, _, svc := newShareFixture(t)

	_, err := svc.ResolveToken(context.Background(), models.Actor{}, "nope")
	assert.ErrorIs(t, err, ErrShareNotFound)
}

func TestResolveToken_UserShareDeniedToOthers(t *testing.T) {
	store, _, svc := newShareFixture(t)
	alice := store.addUser("alice", models.RoleUser)
	bob := store.addUser("bob", models.RoleUser)
	mallory := store.addUser("mallory", models.RoleUser)
	store.addFriendship(alice.ID, bob.ID)
	recipe := store.addRecipe(alice.ID, "Waybread")

	share, err := svc.GrantUserShare(context.Background(), alice.ID, recipe.ID, bob.ID, true)
	require.NoError(t, err)

	resolved, err := svc.ResolveToken(context.Background(), models.Actor{ID: bob.ID, Role: models.RoleUser}, share.Token)
	require.NoError(t, err)
	assert.True(t, resolved.Access.CanView)
	assert.True(t, resolved.Access.CanEdit)
	assert.Equal(t, AccessVariantUser, resolved.Access.Variant)

	// Someone else holding the token gets nothing, and the denial reads as
	// not-found rather than forbidden.
	_, err = svc.ResolveToken(context.Background(), models.Actor{ID: mallory.ID, Role: models.RoleUser}, share.Token)
	assert.ErrorIs(t, err, ErrShareNotFound)

	_, err = svc.ResolveToken(context.Background(), models.Actor{}, share.Token)
	assert.ErrorIs(t, err, ErrShareNotFound)
}

// A broken friendship kills the grant entirely, view included, and the
// resolution attempt garbage-collects the stale row.
func TestResolveToken_AfterUnfriendDeniesAndDeletes(t *testing.T) {
	store, publisher, svc := newShareFixture(t)
	alice := store.addUser("alice", models.RoleUser)
	bob := store.addUser("bob", models.RoleUser)
	store.addFriendship(alice.ID, bob.ID)
	recipe := store.addRecipe(alice.ID, "Waybread")

	share, err := svc.GrantUserShare(context.Background(), alice.ID, recipe.ID, bob.ID, true)
	require.NoError(t, err)

	friendSvc := NewFriendService(store, publisher)
	require.NoError(t, friendSvc.RemoveFriend(context.Background(), bob.ID, alice.ID))

	// RemoveFriend already cascaded the share; re-seed a stale row to prove
	// resolution itself also denies and cleans up.
	stale := &models.RecipeShare{
		RecipeID:  recipe.ID,
		Token:     share.Token,
		Type:      models.UserShareType,
		GranteeID: &bob.ID,
		CanEdit:   true,
	}
	require.NoError(t, store.Shares().Create(context.Background(), stale))

	_, err = svc.ResolveToken(context.Background(), models.Actor{ID: bob.ID, Role: models.RoleUser}, share.Token)
	assert.ErrorIs(t, err, ErrShareNotFound)
	assert.Empty(t, store.shares)
}

func TestListSharedWithMe(t *testing.T) {
	store, _, svc := newShareFixture(t)
	me := store.addUser("me", models.RoleUser)
	alice := store.addUser("alice", models.RoleUser)
	bob := store.addUser("bob", models.RoleUser)
	store.addFriendship(me.ID, alice.ID)
	store.addFriendship(me.ID, bob.ID)
	aliceRecipe := store.addRecipe(alice.ID, "Waybread")
	bobRecipe := store.addRecipe(bob.ID, "Stew")

	_, err := svc.GrantUserShare(context.Background(), alice.ID, aliceRecipe.ID, me.ID, true)
	require.NoError(t, err)
	_, err = svc.GrantUserShare(context.Background(), bob.ID, bobRecipe.ID, me.ID, false)
	require.NoError(t, err)

	shared, err := svc.ListSharedWithMe(context.Background(), me.ID)
	require.NoError(t, err)
	require.Len(t, shared, 2)

	byOwner := map[string]models.SharedRecipe{}
	for _, entry := range shared {
		byOwner[entry.OwnerUsername] = entry
		assert.NotEmpty(t, entry.ShareToken)
		assert.NotEmpty(t, entry.SharedAt)
	}
	assert.True(t, byOwner["alice"].CanEdit)
	assert.False(t, byOwner["bob"].CanEdit)

	// Unfriending Bob removes his entry on the next read.
	_, err = store.Friendships().Delete(context.Background(), me.ID, bob.ID)
	require.NoError(t, err)

	shared, err = svc.ListSharedWithMe(context.Background(), me.ID)
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, "alice", shared[0].OwnerUsername)
}
