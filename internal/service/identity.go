package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/pokewar-server/internal/domain"
	"github.com/pokewar-server/internal/store"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	handleSeparators = regexp.MustCompile(`[._-]+`)
	errUserExists    = errors.New("user exists")
)

// Identity manages trainers and their sessions
type Identity struct {
	*env
}

func (s *Identity) storedUsers(ctx context.Context) []domain.StoredUser {
	return store.Read(ctx, s.kv, UsersKey, []domain.StoredUser{})
}

func findStoredByEmail(users []domain.StoredUser, email string) (domain.StoredUser, bool) {
	normalized := domain.NormalizeEmail(email)
	for _, u := range users {
		if domain.NormalizeEmail(u.Email) == normalized {
			return u, true
		}
	}
	return domain.StoredUser{}, false
}

// ListUsers returns every trainer without password proofs
func (s *Identity) ListUsers(ctx context.Context) []domain.User {
	stored := s.storedUsers(ctx)
	users := make([]domain.User, 0, len(stored))
	for _, u := range stored {
		users = append(users, u.Public())
	}
	return users
}

// GetUser returns the trainer with the given id
func (s *Identity) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	for _, u := range s.storedUsers(ctx) {
		if u.ID == userID {
			user := u.Public()
			return &user, nil
		}
	}
	return nil, domain.ErrTrainerNotFound
}

// FindUserByEmail looks a trainer up by email, ignoring case and surrounding spaces
func (s *Identity) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, ok := findStoredByEmail(s.storedUsers(ctx), email)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	user := u.Public()
	return &user, nil
}

// CurrentUser resolves a session token to its trainer
func (s *Identity) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}

	sessions := store.Read(ctx, s.kv, SessionsKey, []domain.Session{})
	idx := slices.IndexFunc(sessions, func(sess domain.Session) bool { return sess.Token == token })
	if idx < 0 || sessions[idx].Expired(s.timestamp(), s.sessionTTL) {
		return nil, domain.ErrUnauthenticated
	}

	user, err := s.GetUser(ctx, sessions[idx].UserID)
	if err != nil {
		return nil, domain.ErrUnauthenticated
	}
	return user, nil
}

// SignOut ends a session. Unknown tokens are ignored.
func (s *Identity) SignOut(ctx context.Context, token string) error {
	_, err := store.Update(ctx, s.kv, SessionsKey, []domain.Session{}, func(sessions []domain.Session) ([]domain.Session, error) {
		return slices.DeleteFunc(sessions, func(sess domain.Session) bool { return sess.Token == token }), nil
	})
	return err
}

// CreateUserWithEmail registers a trainer with a password and signs them in
func (s *Identity) CreateUserWithEmail(ctx context.Context, req domain.SignUpRequest) (*domain.AuthResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := domain.StoredUser{
		User: domain.User{
			ID:        s.newID(),
			Name:      strings.TrimSpace(req.Name),
			Email:     domain.NormalizeEmail(req.Email),
			Provider:  domain.ProviderEmail,
			CreatedAt: s.timestamp(),
		},
		PasswordHash: hash,
	}

	_, err = store.Update(ctx, s.kv, UsersKey, []domain.StoredUser{}, func(users []domain.StoredUser) ([]domain.StoredUser, error) {
		if _, exists := findStoredByEmail(users, user.Email); exists {
			return nil, domain.ErrDuplicateEmail
		}
		return append(users, user), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("trainer registered", "user_id", user.ID, "provider", user.Provider)
	return s.openSession(ctx, user.Public())
}

// AuthenticateWithEmail signs in a trainer registered with a password
func (s *Identity) AuthenticateWithEmail(ctx context.Context, req domain.SignInRequest) (*domain.AuthResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, ok := findStoredByEmail(s.storedUsers(ctx), req.Email)
	if !ok || user.Provider != domain.ProviderEmail {
		return nil, domain.ErrAccountNotFound
	}
	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return nil, domain.ErrWrongPassword
	}

	return s.openSession(ctx, user.Public())
}

// LoginWithGoogle signs in the trainer with the given email, creating a
// google-provider account on first use.
func (s *Identity) LoginWithGoogle(ctx context.Context, req domain.GoogleLoginRequest) (*domain.AuthResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	email := domain.NormalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = DeriveNameFromEmail(email)
	}

	candidate := domain.StoredUser{
		User: domain.User{
			ID:        s.newID(),
			Name:      name,
			Email:     email,
			Provider:  domain.ProviderGoogle,
			CreatedAt: s.timestamp(),
		},
	}

	var user domain.StoredUser
	_, err := store.Update(ctx, s.kv, UsersKey, []domain.StoredUser{}, func(users []domain.StoredUser) ([]domain.StoredUser, error) {
		if existing, ok := findStoredByEmail(users, email); ok {
			user = existing
			return nil, errUserExists
		}
		user = candidate
		return append(users, candidate), nil
	})
	switch {
	case errors.Is(err, errUserExists):
	case err != nil:
		return nil, err
	default:
		s.logger.Info("trainer registered", "user_id", user.ID, "provider", user.Provider)
	}

	return s.openSession(ctx, user.Public())
}

func (s *Identity) openSession(ctx context.Context, user domain.User) (*domain.AuthResult, error) {
	now := s.timestamp()
	session := domain.Session{
		Token:     s.newToken(),
		UserID:    user.ID,
		CreatedAt: now,
	}

	// Expired sessions are dropped whenever a new one is written
	_, err := store.Update(ctx, s.kv, SessionsKey, []domain.Session{}, func(sessions []domain.Session) ([]domain.Session, error) {
		live := slices.DeleteFunc(slices.Clone(sessions), func(sess domain.Session) bool {
			return sess.Expired(now, s.sessionTTL)
		})
		return append(live, session), nil
	})
	if err != nil {
		return nil, err
	}

	return &domain.AuthResult{User: user, Session: session}, nil
}

// DeriveNameFromEmail turns the local part of an email into a display name:
// "ash.ketchum@x" becomes "Ash Ketchum". Only the first letter of each word
// is changed, so "ash+pokewar" stays one word as "Ash+pokewar".
func DeriveNameFromEmail(email string) string {
	handle, _, _ := strings.Cut(email, "@")
	words := strings.Fields(handleSeparators.ReplaceAllString(handle, " "))
	if len(words) == 0 {
		return domain.DefaultTrainerName
	}

	// Casers keep state, so each call gets its own.
	upper := cases.Upper(language.Und)
	for i, word := range words {
		_, size := utf8.DecodeRuneInString(word)
		words[i] = upper.String(word[:size]) + word[size:]
	}
	return strings.Join(words, " ")
}
