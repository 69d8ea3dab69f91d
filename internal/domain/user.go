package domain

import (
	"strings"
	"time"
)

// AuthProvider identifies how a user signed up
type AuthProvider string

const (
	ProviderEmail  AuthProvider = "email"
	ProviderGoogle AuthProvider = "google"
)

// DefaultTrainerName is used when no name can be derived for a new user
const DefaultTrainerName = "Trainer"

// User represents a registered trainer
type User struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	Provider  AuthProvider `json:"provider"`
	CreatedAt time.Time    `json:"createdAt"`
}

// StoredUser is the persisted form of a user, including the password proof
type StoredUser struct {
	User
	PasswordHash string `json:"passwordHash,omitempty"`
}

// Public strips the password proof
func (u StoredUser) Public() User {
	return u.User
}

// Session binds an opaque token to a signed-in user
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Expired reports whether the session is older than ttl at now. A zero ttl
// never expires.
func (s Session) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && !now.Before(s.CreatedAt.Add(ttl))
}

// AuthResult is returned by every operation that signs a user in
type AuthResult struct {
	User    User    `json:"user"`
	Session Session `json:"session"`
}

// NormalizeEmail trims and lowercases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUpRequest represents an email signup
type SignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInRequest represents an email login
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// GoogleLoginRequest represents a login via the Google identity provider
type GoogleLoginRequest struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}
