package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"lembas/internal/middleware"
	"lembas/internal/models"
	"lembas/internal/services"
)

// AdminHandler handles the admin surface: user management and join codes.
// Role checks live in the services; the handlers just map their errors.
type AdminHandler struct {
	userService services.UserService
	authService services.AuthService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(us services.UserService, as services.AuthService) *AdminHandler {
	return &AdminHandler{userService: us, authService: as}
}

// writeAdminError maps the privilege-guard failures shared by the admin
// endpoints. Returns false when the error still needs handling.
func writeAdminError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, services.ErrAdminOnly) || errors.Is(err, services.ErrOwnerOnly):
		writeJSONError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, services.ErrUserNotFound):
		writeJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrCannotEditSelf) || errors.Is(err, services.ErrCannotEditOwner):
		writeJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrInvalidRole):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		return false
	}
	return true
}

// ListUsersHandler handles GET /api/admin/users
func (h *AdminHandler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.Directory(r.Context())
	if err != nil {
		log.Printf("Error listing users for admin: %v", err)
		writeJSONError(w, "Failed to list users", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"users":   users,
	})
}

// ChangeRolePayload defines the expected JSON body for a role change.
type ChangeRolePayload struct {
	Role models.Role `json:"role"`
}

// ChangeRoleHandler handles PUT /api/admin/users/{userID}/role
func (h *AdminHandler) ChangeRoleHandler(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActorFromContext(r.Context())

	userID, ok := uintVar(r, "userID")
	if !ok {
		writeJSONError(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	var payload ChangeRolePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if err := h.userService.ChangeRole(r.Context(), actor, userID, payload.Role); err != nil {
		if !writeAdminError(w, err) {
			log.Printf("Error changing role of user %d: %v", userID, err)
			writeJSONError(w, "Failed to change role", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"success": true})
}

// DeleteUserHandler handles DELETE /api/admin/users/{userID}
func (h *AdminHandler) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActorFromContext(r.Context())

	userID, ok := uintVar(r, "userID")
	if !ok {
		writeJSONError(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	if err := h.userService.DeleteUser(r.Context(), actor, userID); err != nil {
		if !writeAdminError(w, err) {
			log.Printf("Error deleting user %d: %v", userID, err)
			writeJSONError(w, "Failed to delete user", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"success": true})
}

// ListJoinCodesHandler handles GET /api/admin/join-codes
func (h *AdminHandler) ListJoinCodesHandler(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActorFromContext(r.Context())

	codes, err := h.authService.ListJoinCodes(r.Context(), actor)
	if err != nil {
		if !writeAdminError(w, err) {
			log.Printf("Error listing join codes: %v", err)
			writeJSONError(w, "Failed to list join codes", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"joinCodes": codes,
	})
}

// CreateJoinCodePayload defines the expected JSON body for minting a code.
type CreateJoinCodePayload struct {
	Role      models.Role `json:"role"`
	MaxUses   int         `json:"maxUses"`
	ExpiresAt *time.Time  `json:"expiresAt,omitempty"`
}

// CreateJoinCodeHandler handles POST /api/admin/join-codes
func (h *AdminHandler) CreateJoinCodeHandler(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActorFromContext(r.Context())

	var payload CreateJoinCodePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if payload.Role == "" {
		payload.Role = models.RoleUser
	}

	code, err := h.authService.CreateJoinCode(r.Context(), actor, payload.Role, payload.MaxUses, payload.ExpiresAt)
	if err != nil {
		if !writeAdminError(w, err) {
			log.Printf("Error creating join code: %v", err)
			writeJSONError(w, "Failed to create join code", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]interface{}{
		"success":  true,
		"joinCode": code,
	})
}

// DeleteJoinCodeHandler handles DELETE /api/admin/join-codes/{code}
func (h *AdminHandler) DeleteJoinCodeHandler(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActorFromContext(r.Context())
	code := mux.Vars(r)["code"]

	if err := h.authService.DeleteJoinCode(r.Context(), actor, code); err != nil {
		if !writeAdminError(w, err) {
			log.Printf("Error deleting join code: %v", err)
			writeJSONError(w, "Failed to delete join code", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"success": true})
}
