package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pokewar-server/internal/domain"
)

type respondBody struct {
	Status domain.RequestStatus `json:"status"`
}

// ListFriends returns the signed-in trainer's friends
func (h *Handler) ListFriends(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.game.Social.GetFriendsForUser(r.Context(), currentUser(r).ID))
}

// ListFriendRequests returns requests the signed-in trainer sent or received
func (h *Handler) ListFriendRequests(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.game.Social.GetFriendRequestsForUser(r.Context(), currentUser(r).ID))
}

// SendFriendRequest sends a request from the signed-in trainer
func (h *Handler) SendFriendRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ToEmail string `json:"toEmail"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	req, err := h.game.Social.SendFriendRequest(r.Context(), domain.FriendRequestSubmission{
		FromID:  currentUser(r).ID,
		ToEmail: body.ToEmail,
	})
	if err != nil {
		h.handleServiceError(w, r, "send friend request", err)
		return
	}

	h.writeCreated(w, req)
}

// RespondToFriendRequest answers a request addressed to the signed-in trainer
func (h *Handler) RespondToFriendRequest(w http.ResponseWriter, r *http.Request) {
	var body respondBody
	if !h.decode(w, r, &body) {
		return
	}

	req, err := h.game.Social.RespondToFriendRequest(r.Context(), domain.RespondRequest{
		ID:      chi.URLParam(r, "requestID"),
		Status:  body.Status,
		ActorID: currentUser(r).ID,
	})
	if err != nil {
		h.handleServiceError(w, r, "respond to friend request", err)
		return
	}

	h.writeSuccess(w, req)
}
