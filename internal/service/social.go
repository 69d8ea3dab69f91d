package service

import (
	"context"

	"github.com/pokewar-server/internal/domain"
	"github.com/pokewar-server/internal/store"
)

// Social manages friend requests. Friendship is never stored on its own;
// it is derived from accepted requests.
type Social struct {
	*env
	users *Identity
}

func (s *Social) requests(ctx context.Context) []domain.FriendRequest {
	return store.Read(ctx, s.kv, FriendRequestsKey, []domain.FriendRequest{})
}

// SendFriendRequest offers friendship to the trainer registered under toEmail
func (s *Social) SendFriendRequest(ctx context.Context, sub domain.FriendRequestSubmission) (*domain.FriendRequest, error) {
	if sub.FromID == "" {
		return nil, domain.ErrInvalidRequest
	}

	recipient, err := s.users.FindUserByEmail(ctx, sub.ToEmail)
	if err != nil {
		return nil, err
	}
	if recipient.ID == sub.FromID {
		return nil, domain.ErrSelfRequest
	}

	request := domain.FriendRequest{
		ID:        s.newID(),
		FromID:    sub.FromID,
		ToID:      recipient.ID,
		Status:    domain.StatusPending,
		CreatedAt: s.timestamp(),
	}

	_, err = store.Update(ctx, s.kv, FriendRequestsKey, []domain.FriendRequest{}, func(requests []domain.FriendRequest) ([]domain.FriendRequest, error) {
		for _, existing := range requests {
			if !existing.Between(sub.FromID, recipient.ID) {
				continue
			}
			switch existing.Status {
			case domain.StatusPending:
				return nil, domain.ErrFriendRequestPending
			case domain.StatusAccepted:
				return nil, domain.ErrAlreadyFriends
			}
		}
		return append(requests, request), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("friend request sent", "request_id", request.ID, "from", request.FromID, "to", request.ToID)
	return &request, nil
}

// RespondToFriendRequest accepts or declines a pending request
func (s *Social) RespondToFriendRequest(ctx context.Context, req domain.RespondRequest) (*domain.FriendRequest, error) {
	if !req.Status.IsResponse() {
		return nil, domain.ErrInvalidResponseStatus
	}

	var answered domain.FriendRequest
	_, err := store.Update(ctx, s.kv, FriendRequestsKey, []domain.FriendRequest{}, func(requests []domain.FriendRequest) ([]domain.FriendRequest, error) {
		for i, r := range requests {
			if r.ID != req.ID {
				continue
			}
			if req.ActorID != "" && req.ActorID != r.ToID {
				return nil, domain.ErrNotRecipient
			}
			if r.Status != domain.StatusPending {
				return nil, domain.ErrAlreadyResolved
			}
			requests[i].Status = req.Status
			answered = requests[i]
			return requests, nil
		}
		return nil, domain.ErrFriendRequestNotFound
	})
	if err != nil {
		return nil, err
	}

	return &answered, nil
}

// GetFriendRequestsForUser returns every request the trainer sent or received
func (s *Social) GetFriendRequestsForUser(ctx context.Context, userID string) []domain.FriendRequest {
	result := []domain.FriendRequest{}
	for _, r := range s.requests(ctx) {
		if r.Involves(userID) {
			result = append(result, r)
		}
	}
	return result
}

// GetFriendsForUser returns the counterpart of every accepted request
// involving userID, once each. Counterparts that no longer resolve to a
// trainer are dropped.
func (s *Social) GetFriendsForUser(ctx context.Context, userID string) []domain.User {
	seen := make(map[string]bool)
	var ids []string
	for _, r := range s.requests(ctx) {
		if r.Status != domain.StatusAccepted || !r.Involves(userID) {
			continue
		}
		id := r.Counterpart(userID)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	byID := make(map[string]domain.User)
	for _, u := range s.users.ListUsers(ctx) {
		byID[u.ID] = u
	}

	friends := []domain.User{}
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			friends = append(friends, u)
		}
	}
	return friends
}
