package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pokewar-server/internal/domain"
)

const defaultArchiveLimit = 50

// memberServer loads the server in the URL and checks the signed-in
// trainer belongs to it. It writes the error response itself.
func (h *Handler) memberServer(w http.ResponseWriter, r *http.Request) (*domain.Server, bool) {
	server, err := h.game.Rooms.GetServer(r.Context(), chi.URLParam(r, "serverID"))
	if err != nil {
		h.handleServiceError(w, r, "get server", err)
		return nil, false
	}
	if !server.HasMember(currentUser(r).ID) {
		h.writeError(w, http.StatusForbidden, domain.ErrNotMember)
		return nil, false
	}
	return server, true
}

// ListServers returns the servers the signed-in trainer belongs to
func (h *Handler) ListServers(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.game.Rooms.GetServersForUser(r.Context(), currentUser(r).ID))
}

// CreateServer opens a server owned by the signed-in trainer
func (h *Handler) CreateServer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	server, err := h.game.Rooms.CreateServer(r.Context(), domain.CreateServerRequest{
		Name:    body.Name,
		OwnerID: currentUser(r).ID,
	})
	if err != nil {
		h.handleServiceError(w, r, "create server", err)
		return
	}

	h.writeCreated(w, server)
}

// GetServer returns a server the signed-in trainer belongs to
func (h *Handler) GetServer(w http.ResponseWriter, r *http.Request) {
	server, ok := h.memberServer(w, r)
	if !ok {
		return
	}
	h.writeSuccess(w, server)
}

// InviteToServer invites a trainer into the server
func (h *Handler) InviteToServer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ToID string `json:"toId"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	invite, err := h.game.Rooms.InviteToServer(r.Context(), domain.InviteRequest{
		ServerID: chi.URLParam(r, "serverID"),
		FromID:   currentUser(r).ID,
		ToID:     body.ToID,
	})
	if err != nil {
		h.handleServiceError(w, r, "invite to server", err)
		return
	}

	h.writeCreated(w, invite)
}

// ListInvites returns invites addressed to the signed-in trainer
func (h *Handler) ListInvites(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.game.Rooms.GetServerInvitesForUser(r.Context(), currentUser(r).ID))
}

// RespondToInvite accepts or declines an invite
func (h *Handler) RespondToInvite(w http.ResponseWriter, r *http.Request) {
	var body respondBody
	if !h.decode(w, r, &body) {
		return
	}

	invite, err := h.game.Rooms.RespondToServerInvite(r.Context(), domain.RespondRequest{
		ID:      chi.URLParam(r, "inviteID"),
		Status:  body.Status,
		ActorID: currentUser(r).ID,
	})
	if err != nil {
		h.handleServiceError(w, r, "respond to invite", err)
		return
	}

	h.writeSuccess(w, invite)
}

// GetSelections returns the live picks in the server
func (h *Handler) GetSelections(w http.ResponseWriter, r *http.Request) {
	server, ok := h.memberServer(w, r)
	if !ok {
		return
	}
	h.writeSuccess(w, h.game.Matches.GetSelectionsForServer(r.Context(), server.ID))
}

// SetSelection records the signed-in trainer's pick
func (h *Handler) SetSelection(w http.ResponseWriter, r *http.Request) {
	server, ok := h.memberServer(w, r)
	if !ok {
		return
	}

	var body struct {
		PokemonID   string `json:"pokemonId"`
		PokemonName string `json:"pokemonName"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	selection, err := h.game.Matches.SetServerSelection(r.Context(), domain.SelectionRequest{
		ServerID:    server.ID,
		UserID:      currentUser(r).ID,
		PokemonID:   body.PokemonID,
		PokemonName: body.PokemonName,
	})
	if err != nil {
		h.handleServiceError(w, r, "set selection", err)
		return
	}

	h.writeSuccess(w, selection)
}

// ClearSelections drops every pick in the server
func (h *Handler) ClearSelections(w http.ResponseWriter, r *http.Request) {
	server, ok := h.memberServer(w, r)
	if !ok {
		return
	}

	if err := h.game.Matches.ClearSelectionsForServer(r.Context(), server.ID); err != nil {
		h.handleServiceError(w, r, "clear selections", err)
		return
	}

	h.writeSuccess(w, map[string]string{"status": "cleared"})
}

// CreateMatch resolves a match from the server's picks
func (h *Handler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	server, ok := h.memberServer(w, r)
	if !ok {
		return
	}

	match, err := h.game.Matches.CreateMatchFromSelections(r.Context(), server.ID)
	if err != nil {
		h.handleServiceError(w, r, "create match", err)
		return
	}

	h.writeCreated(w, match)
}

// GetServerMatches returns the server's match history
func (h *Handler) GetServerMatches(w http.ResponseWriter, r *http.Request) {
	server, ok := h.memberServer(w, r)
	if !ok {
		return
	}
	h.writeSuccess(w, h.game.Matches.GetMatchHistoryForServer(r.Context(), server.ID))
}

// ListMatches returns every match the signed-in trainer played
func (h *Handler) ListMatches(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.game.Matches.GetMatchesForUser(r.Context(), currentUser(r).ID))
}

// GetMatchStats returns the signed-in trainer's wins and losses
func (h *Handler) GetMatchStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.game.Matches.GetStatsForUser(r.Context(), currentUser(r).ID))
}

// ListArchivedMatches returns the signed-in trainer's archived matches, newest first
func (h *Handler) ListArchivedMatches(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		h.writeError(w, http.StatusNotFound, domain.ErrArchiveDisabled)
		return
	}

	limit := queryInt(r, "limit", defaultArchiveLimit)
	matches, err := h.archive.ListArchivedMatches(r.Context(), currentUser(r).ID, limit)
	if err != nil {
		h.handleServiceError(w, r, "list archived matches", err)
		return
	}

	h.writeSuccess(w, matches)
}
