package domain

import "time"

// RequestStatus is the lifecycle state shared by friend requests and server invites
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusAccepted RequestStatus = "accepted"
	StatusDeclined RequestStatus = "declined"
)

// IsResponse reports whether s is a legal answer to a pending request
func (s RequestStatus) IsResponse() bool {
	return s == StatusAccepted || s == StatusDeclined
}

// FriendRequest represents a friendship offer between two users
type FriendRequest struct {
	ID        string        `json:"id"`
	FromID    string        `json:"fromId"`
	ToID      string        `json:"toId"`
	Status    RequestStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Involves reports whether the request was sent or received by userID
func (r FriendRequest) Involves(userID string) bool {
	return r.FromID == userID || r.ToID == userID
}

// Between reports whether the request links a and b in either direction
func (r FriendRequest) Between(a, b string) bool {
	return (r.FromID == a && r.ToID == b) || (r.FromID == b && r.ToID == a)
}

// Counterpart returns the other party of the request
func (r FriendRequest) Counterpart(userID string) string {
	if r.FromID == userID {
		return r.ToID
	}
	return r.FromID
}

// FriendRequestSubmission represents a request to befriend a user by email
type FriendRequestSubmission struct {
	FromID  string `json:"fromId"`
	ToEmail string `json:"toEmail"`
}

// RespondRequest answers a pending friend request or server invite
type RespondRequest struct {
	ID     string        `json:"id"`
	Status RequestStatus `json:"status"`

	// ActorID, when set, must be the recipient of the request or invite
	ActorID string `json:"-"`
}
