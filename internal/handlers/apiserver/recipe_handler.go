package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"lembas/internal/importer"
	"lembas/internal/middleware"
	"lembas/internal/services"
)

// RecipeHandler handles the owner-scoped recipe surface plus text import.
type RecipeHandler struct {
	recipeService services.RecipeService
	importClient  *importer.Client
}

// NewRecipeHandler creates a new RecipeHandler.
func NewRecipeHandler(rs services.RecipeService, ic *importer.Client) *RecipeHandler {
	return &RecipeHandler{recipeService: rs, importClient: ic}
}

// ListRecipesHandler handles GET /api/recipes
func (h *RecipeHandler) ListRecipesHandler(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActorFromContext(r.Context())

	recipes, err := h.recipeService.List(r.Context(), actor.ID)
	if err != nil {
		log.Printf("Error listing recipes for user %d: %v", actor.ID, err)
		writeJSONError(w, "Failed to list recipes", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"recipes": recipes,
	})
}

// SaveRecipeHandler handles POST /api/recipes (create or update by id).
func (h *RecipeHandler) SaveRecipeHandler(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActorFromContext(r.Context())

	var input services.RecipeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	recipe, err := h.recipeService.Save(r.Context(), actor.ID, &input)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTitleRequired) || errors.Is(err, services.ErrTooManyTags):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrRecipeNotFound):
			writeJSONError(w, err.Error(), http.StatusNotFound)
		default:
			log.Printf("Error saving recipe for user %d: %v", actor.ID, err)
			writeJSONError(w, "Failed to save recipe", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"recipe":  recipe,
	})
}

// DeleteRecipeHandler handles DELETE /api/recipes/{recipeID}
func (h *RecipeHandler) DeleteRecipeHandler(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActorFromContext(r.Context())

	recipeID, ok := uintVar(r, "recipeID")
	if !ok {
		writeJSONError(w, "Invalid recipe ID", http.StatusBadRequest)
		return
	}

	if err := h.recipeService.Delete(r.Context(), actor.ID, recipeID); err != nil {
		if errors.Is(err, services.ErrRecipeNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else {
			log.Printf("Error deleting recipe %d for user %d: %v", recipeID, actor.ID, err)
			writeJSONError(w, "Failed to delete recipe", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"success": true})
}

// ImportPayload defines the expected JSON body for text import.
type ImportPayload struct {
	Text string `json:"text"`
}

// ImportRecipeHandler handles POST /api/recipes/import. It returns a draft
// the client can review and then save through the normal save path.
func (h *RecipeHandler) ImportRecipeHandler(w http.ResponseWriter, r *http.Request) {
	var payload ImportPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	draft, err := h.importClient.BuildRecipeFromText(r.Context(), payload.Text)
	if err != nil {
		if errors.Is(err, importer.ErrNoText) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		} else {
			log.Printf("Error importing recipe text: %v", err)
			writeJSONError(w, "Unable to import recipe", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"recipe":  draft,
	})
}
