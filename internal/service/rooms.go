package service

import (
	"context"
	"strings"

	"github.com/pokewar-server/internal/domain"
	"github.com/pokewar-server/internal/store"
)

// Rooms manages private two-member servers and the invites that fill them
type Rooms struct {
	*env
}

func (s *Rooms) servers(ctx context.Context) []domain.Server {
	return store.Read(ctx, s.kv, ServersKey, []domain.Server{})
}

func (s *Rooms) invites(ctx context.Context) []domain.ServerInvite {
	return store.Read(ctx, s.kv, ServerInvitesKey, []domain.ServerInvite{})
}

// CreateServer opens a server with the owner as its only member
func (s *Rooms) CreateServer(ctx context.Context, req domain.CreateServerRequest) (*domain.Server, error) {
	if req.OwnerID == "" {
		return nil, domain.ErrInvalidRequest
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = domain.DefaultServerName
	}

	server := domain.Server{
		ID:        s.newID(),
		Name:      name,
		OwnerID:   req.OwnerID,
		MemberIDs: []string{req.OwnerID},
		CreatedAt: s.timestamp(),
	}

	_, err := store.Update(ctx, s.kv, ServersKey, []domain.Server{}, func(servers []domain.Server) ([]domain.Server, error) {
		return append(servers, server), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("server created", "server_id", server.ID, "owner_id", server.OwnerID)
	return &server, nil
}

// GetServer returns the server with the given id
func (s *Rooms) GetServer(ctx context.Context, serverID string) (*domain.Server, error) {
	for _, srv := range s.servers(ctx) {
		if srv.ID == serverID {
			return &srv, nil
		}
	}
	return nil, domain.ErrServerNotFound
}

// GetServersForUser returns the servers the trainer is a member of
func (s *Rooms) GetServersForUser(ctx context.Context, userID string) []domain.Server {
	result := []domain.Server{}
	for _, srv := range s.servers(ctx) {
		if srv.HasMember(userID) {
			result = append(result, srv)
		}
	}
	return result
}

// InviteToServer lets a server owner invite one more trainer
func (s *Rooms) InviteToServer(ctx context.Context, req domain.InviteRequest) (*domain.ServerInvite, error) {
	if req.ToID == "" {
		return nil, domain.ErrInvalidRequest
	}

	server, err := s.GetServer(ctx, req.ServerID)
	if err != nil {
		return nil, err
	}
	if server.OwnerID != req.FromID {
		return nil, domain.ErrNotServerOwner
	}
	if server.HasMember(req.ToID) {
		return nil, domain.ErrAlreadyMember
	}
	if server.IsFull() {
		return nil, domain.ErrServerFull
	}

	invite := domain.ServerInvite{
		ID:        s.newID(),
		ServerID:  req.ServerID,
		FromID:    req.FromID,
		ToID:      req.ToID,
		Status:    domain.StatusPending,
		CreatedAt: s.timestamp(),
	}

	_, err = store.Update(ctx, s.kv, ServerInvitesKey, []domain.ServerInvite{}, func(invites []domain.ServerInvite) ([]domain.ServerInvite, error) {
		for _, existing := range invites {
			if existing.ServerID == req.ServerID && existing.ToID == req.ToID && existing.Status == domain.StatusPending {
				return nil, domain.ErrInvitePending
			}
		}
		return append(invites, invite), nil
	})
	if err != nil {
		return nil, err
	}

	return &invite, nil
}

// RespondToServerInvite accepts or declines a pending invite. Accepting
// adds the invitee to the server; it fails with ErrServerFull, leaving the
// invite pending, if another invite filled the server first.
func (s *Rooms) RespondToServerInvite(ctx context.Context, req domain.RespondRequest) (*domain.ServerInvite, error) {
	if !req.Status.IsResponse() {
		return nil, domain.ErrInvalidResponseStatus
	}

	invite, err := s.pendingInvite(ctx, req)
	if err != nil {
		return nil, err
	}

	// The server slot is claimed before the invite is marked, so a lost
	// race on the invite can never leave an accepted invite without a seat.
	if req.Status == domain.StatusAccepted {
		_, err := store.Update(ctx, s.kv, ServersKey, []domain.Server{}, func(servers []domain.Server) ([]domain.Server, error) {
			for i, srv := range servers {
				if srv.ID != invite.ServerID {
					continue
				}
				if srv.HasMember(invite.ToID) {
					return servers, nil
				}
				if srv.IsFull() {
					return nil, domain.ErrServerFull
				}
				servers[i].MemberIDs = append(srv.MemberIDs, invite.ToID)
				return servers, nil
			}
			return nil, domain.ErrServerNotFound
		})
		if err != nil {
			return nil, err
		}
	}

	var answered domain.ServerInvite
	_, err = store.Update(ctx, s.kv, ServerInvitesKey, []domain.ServerInvite{}, func(invites []domain.ServerInvite) ([]domain.ServerInvite, error) {
		for i, inv := range invites {
			if inv.ID != req.ID {
				continue
			}
			if inv.Status != domain.StatusPending {
				return nil, domain.ErrAlreadyResolved
			}
			invites[i].Status = req.Status
			answered = invites[i]
			return invites, nil
		}
		return nil, domain.ErrInviteNotFound
	})
	if err != nil {
		if req.Status == domain.StatusAccepted {
			s.logger.Warn("invitee joined server but invite could not be marked",
				"invite_id", req.ID,
				"server_id", invite.ServerID,
				"error", err,
			)
		}
		return nil, err
	}

	s.logger.Debug("server invite answered", "invite_id", answered.ID, "status", answered.Status)
	return &answered, nil
}

func (s *Rooms) pendingInvite(ctx context.Context, req domain.RespondRequest) (domain.ServerInvite, error) {
	for _, inv := range s.invites(ctx) {
		if inv.ID != req.ID {
			continue
		}
		if req.ActorID != "" && req.ActorID != inv.ToID {
			return inv, domain.ErrNotInvitee
		}
		if inv.Status != domain.StatusPending {
			return inv, domain.ErrAlreadyResolved
		}
		return inv, nil
	}
	return domain.ServerInvite{}, domain.ErrInviteNotFound
}

// GetServerInvitesForUser returns the invites addressed to the trainer
func (s *Rooms) GetServerInvitesForUser(ctx context.Context, userID string) []domain.ServerInvite {
	result := []domain.ServerInvite{}
	for _, inv := range s.invites(ctx) {
		if inv.ToID == userID {
			result = append(result, inv)
		}
	}
	return result
}
