package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"lembas/internal/middleware"
	"lembas/internal/services"
)

// FriendHandler handles the friendship and friend-request surface.
type FriendHandler struct {
	friendService services.FriendService
}

// NewFriendHandler creates a new FriendHandler.
func NewFriendHandler(fs services.FriendService) *FriendHandler {
	return &FriendHandler{friendService: fs}
}

// OverviewHandler handles GET /api/friends: the friend list plus pending
// requests in both directions, in one reply.
func (h *FriendHandler) OverviewHandler(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActorFromContext(r.Context())

	friends, err := h.friendService.ListFriends(r.Context(), actor.ID)
	if err != nil {
		log.Printf("Error listing friends for user %d: %v", actor.ID, err)
		writeJSONError(w, "Failed to list friends", http.StatusInternalServerError)
		return
	}
	requests, err := h.friendService.ListRequests(r.Context(), actor.ID)
	if err != nil {
		log.Printf("Error listing friend requests for user %d: %v", actor.ID, err)
		writeJSONError(w, "Failed to list friend requests", http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"friends":  friends,
		"requests": requests,
	})
}

// SendFriendRequestPayload defines the expected JSON body for sending a
// friend request.
type SendFriendRequestPayload struct {
	UserID uint `json:"userId"`
}

// SendFriendRequestHandler handles POST /api/friend-requests
func (h *FriendHandler) SendFriendRequestHandler(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActorFromContext(r.Context())

	var payload SendFriendRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if payload.UserID == 0 {
		writeJSONError(w, "Missing userId", http.StatusBadRequest)
		return
	}

	result, err := h.friendService.SendRequest(r.Context(), actor.ID, payload.UserID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSelfFriendRequest):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrRecipientNotFound):
			writeJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrAlreadyFriends):
			writeJSONError(w, err.Error(), http.StatusConflict)
		default:
			log.Printf("Error sending friend request from %d to %d: %v", actor.ID, payload.UserID, err)
			writeJSONError(w, "Failed to send friend request", http.StatusInternalServerError)
		}
		return
	}

	writeJSONResponse(w, http.StatusCreated, map[string]interface{}{
		"success":       true,
		"request":       result.Request,
		"becameFriends": result.BecameFriend,
	})
}

// AcceptFriendRequestHandler handles POST /api/friend-requests/{requestID}/accept
func (h *FriendHandler) AcceptFriendRequestHandler(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActorFromContext(r.Context())

	requestID, ok := uintVar(r, "requestID")
	if !ok {
		writeJSONError(w, "Invalid request ID", http.StatusBadRequest)
		return
	}

	err := h.friendService.AcceptRequest(r.Context(), actor.ID, requestID)
	h.writeRequestOutcome(w, actor.ID, requestID, err)
}

// RejectFriendRequestHandler handles POST /api/friend-requests/{requestID}/reject
func (h *FriendHandler) RejectFriendRequestHandler(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActorFromContext(r.Context())

	requestID, ok := uintVar(r, "requestID")
	if !ok {
		writeJSONError(w, "Invalid request ID", http.StatusBadRequest)
		return
	}

	err := h.friendService.RejectRequest(r.Context(), actor.ID, requestID)
	h.writeRequestOutcome(w, actor.ID, requestID, err)
}

func (h *FriendHandler) writeRequestOutcome(w http.ResponseWriter, actorID, requestID uint, err error) {
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRequestNotFound):
			writeJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrNotRequestRecipient):
			writeJSONError(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, services.ErrRequestNotPending):
			writeJSONError(w, err.Error(), http.StatusConflict)
		default:
			log.Printf("Error responding to friend request %d as user %d: %v", requestID, actorID, err)
			writeJSONError(w, "Failed to respond to friend request", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"success": true})
}

// RemoveFriendHandler handles DELETE /api/friends/{userID}
func (h *FriendHandler) RemoveFriendHandler(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActorFromContext(r.Context())

	friendID, ok := uintVar(r, "userID")
	if !ok {
		writeJSONError(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	if err := h.friendService.RemoveFriend(r.Context(), actor.ID, friendID); err != nil {
		if errors.Is(err, services.ErrFriendshipNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else {
			log.Printf("Error removing friendship between %d and %d: %v", actor.ID, friendID, err)
			writeJSONError(w, "Failed to remove friend", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"success": true})
}
