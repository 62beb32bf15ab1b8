package services

import (
	"context"
	"fmt"

	"lembas/internal/models"
	"lembas/internal/storage"
)

// Access variants, returned for UI context alongside the capability pair.
const (
	AccessVariantOwner  = "owner"
	AccessVariantPublic = "public"
	AccessVariantUser   = "user"
	AccessVariantNone   = "none"
)

// Access is the capability pair for one actor on one recipe.
type Access struct {
	CanView bool   `json:"canView"`
	CanEdit bool   `json:"canEdit"`
	Variant string `json:"variant"`
}

// Evaluator decides what an actor may do with a recipe, optionally through
// a share grant. It never mutates anything; the friendship precondition of
// a user share is re-read from the store on every call, so a concurrently
// broken friendship denies access even while the stale share row still
// exists.
type Evaluator struct {
	store storage.Store
}

// NewEvaluator creates an access Evaluator over the given store.
func NewEvaluator(store storage.Store) *Evaluator {
	return &Evaluator{store: store}
}

// Evaluate returns the actor's capabilities on the recipe. share is the
// grant the actor is acting through and may be nil (owner path). A share
// belonging to a different recipe grants nothing.
func (e *Evaluator) Evaluate(ctx context.Context, actor models.Actor, recipe *models.Recipe, share *models.RecipeShare) (Access, error) {
	if recipe == nil {
		return Access{Variant: AccessVariantNone}, nil
	}

	if !actor.Anonymous() && actor.ID == recipe.OwnerID {
		return Access{CanView: true, CanEdit: true, Variant: AccessVariantOwner}, nil
	}

	if share == nil || share.RecipeID != recipe.ID {
		return Access{Variant: AccessVariantNone}, nil
	}

	switch share.Type {
	case models.PublicShareType:
		// Anyone may view through a public token. Edit stays owner-only.
		return Access{CanView: true, CanEdit: false, Variant: AccessVariantPublic}, nil

	case models.UserShareType:
		if actor.Anonymous() || share.GranteeID == nil || actor.ID != *share.GranteeID {
			return Access{Variant: AccessVariantNone}, nil
		}
		stillFriends, err := e.store.Friendships().AreUsersFriends(ctx, recipe.OwnerID, actor.ID)
		if err != nil {
			return Access{}, fmt.Errorf("failed to re-check friendship for recipe %d: %w", recipe.ID, err)
		}
		if !stillFriends {
			// The grant's precondition is gone; the row is just stale.
			return Access{Variant: AccessVariantNone}, nil
		}
		return Access{CanView: true, CanEdit: share.CanEdit, Variant: AccessVariantUser}, nil
	}

	return Access{Variant: AccessVariantNone}, nil
}
