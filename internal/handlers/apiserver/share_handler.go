package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"lembas/internal/middleware"
	"lembas/internal/services"
)

// ShareHandler handles the share registry surface and the token paths.
type ShareHandler struct {
	shareService  services.ShareService
	recipeService services.RecipeService
}

// NewShareHandler creates a new ShareHandler.
func NewShareHandler(ss services.ShareService, rs services.RecipeService) *ShareHandler {
	return &ShareHandler{shareService: ss, recipeService: rs}
}

// writeOwnerGuardError maps the shared owner-guard failures. Returns false
// when the error is something else and still needs handling.
func (h *ShareHandler) writeOwnerGuardError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, services.ErrRecipeNotFound):
		writeJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrNotRecipeOwner):
		writeJSONError(w, err.Error(), http.StatusForbidden)
	default:
		return false
	}
	return true
}

// ListSharesHandler handles GET /api/recipes/{recipeID}/shares
func (h *ShareHandler) ListSharesHandler(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActorFromContext(r.Context())

	recipeID, ok := uintVar(r, "recipeID")
	if !ok {
		writeJSONError(w, "Invalid recipe ID", http.StatusBadRequest)
		return
	}

	shares, err := h.shareService.ListShares(r.Context(), actor.ID, recipeID)
	if err != nil {
		if !h.writeOwnerGuardError(w, err) {
			log.Printf("Error listing shares of recipe %d for user %d: %v", recipeID, actor.ID, err)
			writeJSONError(w, "Failed to list shares", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"shares":  shares,
	})
}

// PublicSharePayload defines the expected JSON body for toggling the public
// share.
type PublicSharePayload struct {
	Enabled bool `json:"enabled"`
}

// SetPublicShareHandler handles POST /api/recipes/{recipeID}/shares/public
func (h *ShareHandler) SetPublicShareHandler(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActorFromContext(r.Context())

	recipeID, ok := uintVar(r, "recipeID")
	if !ok {
		writeJSONError(w, "Invalid recipe ID", http.StatusBadRequest)
		return
	}

	var payload PublicSharePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	share, err := h.shareService.SetPublicShare(r.Context(), actor.ID, recipeID, payload.Enabled)
	if err != nil {
		if !h.writeOwnerGuardError(w, err) {
			log.Printf("Error setting public share of recipe %d for user %d: %v", recipeID, actor.ID, err)
			writeJSONError(w, "Failed to update public share", http.StatusInternalServerError)
		}
		return
	}

	response := map[string]interface{}{"success": true, "enabled": payload.Enabled}
	if share != nil {
		response["share"] = share
	}
	writeJSONResponse(w, http.StatusOK, response)
}

// UserSharePayload defines the expected JSON body for granting a user share.
type UserSharePayload struct {
	UserID  uint `json:"userId"`
	CanEdit bool `json:"canEdit"`
}

// GrantUserShareHandler handles POST /api/recipes/{recipeID}/shares/user
func (h *ShareHandler) GrantUserShareHandler(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActorFromContext(r.Context())

	recipeID, ok := uintVar(r, "recipeID")
	if !ok {
		writeJSONError(w, "Invalid recipe ID", http.StatusBadRequest)
		return
	}

	var payload UserSharePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if payload.UserID == 0 {
		writeJSONError(w, "Missing userId", http.StatusBadRequest)
		return
	}

	share, err := h.shareService.GrantUserShare(r.Context(), actor.ID, recipeID, payload.UserID, payload.CanEdit)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFriends):
			writeJSONError(w, err.Error(), http.StatusConflict)
		default:
			if !h.writeOwnerGuardError(w, err) {
				log.Printf("Error granting share of recipe %d to user %d: %v", recipeID, payload.UserID, err)
				writeJSONError(w, "Failed to grant share", http.StatusInternalServerError)
			}
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"share":   share,
	})
}

// RevokeUserShareHandler handles DELETE /api/recipes/{recipeID}/shares/user/{userID}
func (h *ShareHandler) RevokeUserShareHandler(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActorFromContext(r.Context())

	recipeID, ok := uintVar(r, "recipeID")
	if !ok {
		writeJSONError(w, "Invalid recipe ID", http.StatusBadRequest)
		return
	}
	granteeID, ok := uintVar(r, "userID")
	if !ok {
		writeJSONError(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	if err := h.shareService.RevokeUserShare(r.Context(), actor.ID, recipeID, granteeID); err != nil {
		if !h.writeOwnerGuardError(w, err) {
			log.Printf("Error revoking share of recipe %d from user %d: %v", recipeID, granteeID, err)
			writeJSONError(w, "Failed to revoke share", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"success": true})
}

// SharedWithMeHandler handles GET /api/shared
func (h *ShareHandler) SharedWithMeHandler(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActorFromContext(r.Context())

	shared, err := h.shareService.ListSharedWithMe(r.Context(), actor.ID)
	if err != nil {
		log.Printf("Error listing shared recipes for user %d: %v", actor.ID, err)
		writeJSONError(w, "Failed to list shared recipes", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"shared":  shared,
	})
}

// ResolveShareHandler handles GET /api/share/{token}. Anonymous access is
// allowed; the share variant decides what the caller sees.
func (h *ShareHandler) ResolveShareHandler(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActorFromContext(r.Context())
	token := mux.Vars(r)["token"]

	resolved, err := h.shareService.ResolveToken(r.Context(), actor, token)
	if err != nil {
		if errors.Is(err, services.ErrShareNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else {
			log.Printf("Error resolving share token: %v", err)
			writeJSONError(w, "Failed to resolve share", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"recipe":  resolved.Recipe,
		"access":  resolved.Access,
	})
}

// EditViaShareHandler handles PUT /api/share/{token}
func (h *ShareHandler) EditViaShareHandler(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActorFromContext(r.Context())
	token := mux.Vars(r)["token"]

	var input services.RecipeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	recipe, err := h.recipeService.EditViaShare(r.Context(), actor, token, &input)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrShareNotFound):
			writeJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrEditForbidden):
			writeJSONError(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, services.ErrTitleRequired) || errors.Is(err, services.ErrTooManyTags):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		default:
			log.Printf("Error editing recipe via share token as user %d: %v", actor.ID, err)
			writeJSONError(w, "Failed to edit shared recipe", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"recipe":  recipe,
	})
}
