package apiserver

import (
	"log"
	"net/http"

	"lembas/internal/middleware"
	"lembas/internal/services"
)

// UserHandler serves the user directory.
type UserHandler struct {
	userService services.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(us services.UserService) *UserHandler {
	return &UserHandler{userService: us}
}

// DirectoryHandler handles GET /api/users: every account as id+username,
// for friend pickers.
func (h *UserHandler) DirectoryHandler(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActorFromContext(r.Context())

	users, err := h.userService.Directory(r.Context())
	if err != nil {
		log.Printf("Error listing user directory for user %d: %v", actor.ID, err)
		writeJSONError(w, "Failed to list users", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"users":   users,
	})
}
