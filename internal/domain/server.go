package domain

import (
	"slices"
	"time"
)

// Server room limits
const (
	MaxServerMembers  = 2
	DefaultServerName = "Private Arena"
)

// Server is a private two-person room for arranging a duel
type Server struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	MemberIDs []string  `json:"memberIds"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasMember reports whether userID belongs to the server
func (s Server) HasMember(userID string) bool {
	return slices.Contains(s.MemberIDs, userID)
}

// IsFull reports whether the server has no room left
func (s Server) IsFull() bool {
	return len(s.MemberIDs) >= MaxServerMembers
}

// Opponent returns the other member of the server, if any
func (s Server) Opponent(userID string) (string, bool) {
	for _, id := range s.MemberIDs {
		if id != userID {
			return id, true
		}
	}
	return "", false
}

// ServerInvite represents an owner's invitation to join a server
type ServerInvite struct {
	ID        string        `json:"id"`
	ServerID  string        `json:"serverId"`
	FromID    string        `json:"fromId"`
	ToID      string        `json:"toId"`
	Status    RequestStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}

// CreateServerRequest represents a request to open a new server
type CreateServerRequest struct {
	Name    string `json:"name"`
	OwnerID string `json:"ownerId"`
}

// InviteRequest represents an owner inviting a user into a server
type InviteRequest struct {
	ServerID string `json:"serverId"`
	FromID   string `json:"fromId"`
	ToID     string `json:"toId"`
}
