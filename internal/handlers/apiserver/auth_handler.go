package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"lembas/internal/middleware"
	"lembas/internal/models"
	"lembas/internal/services"
)

// AuthHandler handles signup, login, logout and session introspection.
type AuthHandler struct {
	authService services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(as services.AuthService) *AuthHandler {
	return &AuthHandler{authService: as}
}

// userPayload is the account shape exposed over the API.
type userPayload struct {
	ID       uint        `json:"id"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
}

func actorPayload(actor models.Actor) userPayload {
	return userPayload{ID: actor.ID, Username: actor.Username, Role: actor.Role}
}

// SignupPayload defines the expected JSON body for signup.
type SignupPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
	JoinCode string `json:"joinCode"`
}

// SignupHandler handles POST /api/auth/signup
func (h *AuthHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var payload SignupPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	user, token, err := h.authService.Signup(r.Context(), payload.Username, payload.Password, payload.JoinCode)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUsernameRequired) || errors.Is(err, services.ErrPasswordTooShort) || errors.Is(err, services.ErrInvalidJoinCode):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrUsernameTaken):
			writeJSONError(w, err.Error(), http.StatusConflict)
		default:
			log.Printf("Error signing up user %q: %v", payload.Username, err)
			writeJSONError(w, "Signup failed", http.StatusInternalServerError)
		}
		return
	}

	writeJSONResponse(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"token":   token,
		"user":    userPayload{ID: user.ID, Username: user.Username, Role: user.Role},
	})
}

// LoginPayload defines the expected JSON body for login.
type LoginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginHandler handles POST /api/auth/login
func (h *AuthHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	user, token, err := h.authService.Login(r.Context(), payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeJSONError(w, err.Error(), http.StatusUnauthorized)
		} else {
			log.Printf("Error logging in user %q: %v", payload.Username, err)
			writeJSONError(w, "Login failed", http.StatusInternalServerError)
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"token":   token,
		"user":    userPayload{ID: user.ID, Username: user.Username, Role: user.Role},
	})
}

// LogoutHandler handles POST /api/auth/logout
func (h *AuthHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		writeJSONError(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	if err := h.authService.Logout(r.Context(), claims); err != nil {
		log.Printf("Error logging out user %d: %v", claims.UserID, err)
		writeJSONError(w, "Logout failed", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"success": true})
}

// MeHandler handles GET /api/auth/me
func (h *AuthHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActorFromContext(r.Context())
	if actor.Anonymous() {
		writeJSONError(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    actorPayload(actor),
	})
}
