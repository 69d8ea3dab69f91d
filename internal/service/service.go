// Package service implements the game coordination core: identity,
// friendships, private servers, champion selection and match resolution.
// Every collection lives under a fixed key in a store.KV; relations such as
// friendship or server opponents are derived at read time.
package service

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/pokewar-server/internal/domain"
	"github.com/pokewar-server/internal/store"
)

// Storage keys, one JSON array per collection
const (
	UsersKey          = "pokewar_users_v1"
	SessionsKey       = "pokewar_sessions_v1"
	FriendRequestsKey = "pokewar_friend_requests_v1"
	ServerInvitesKey  = "pokewar_server_invites_v1"
	ServersKey        = "pokewar_servers_v1"
	SelectionsKey     = "pokewar_selections_v1"
	MatchesKey        = "pokewar_matches_v1"
)

// DefaultSessionTTL is how long a sign-in stays valid unless configured
const DefaultSessionTTL = 30 * 24 * time.Hour

// CollectionKeys lists every key the services persist
var CollectionKeys = []string{
	UsersKey,
	SessionsKey,
	FriendRequestsKey,
	ServerInvitesKey,
	ServersKey,
	SelectionsKey,
	MatchesKey,
}

// MatchPublisher is notified after a match has been stored
type MatchPublisher interface {
	PublishMatch(ctx context.Context, match domain.MatchRecord) error
}

type noopPublisher struct{}

func (noopPublisher) PublishMatch(context.Context, domain.MatchRecord) error { return nil }

type env struct {
	kv         *store.KV
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
	newToken   func() string
	random     func() float64
	hasher     PasswordHasher
	publisher  MatchPublisher
	sessionTTL time.Duration
}

// Option customizes the services built by New
type Option func(*env)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(e *env) { e.now = now }
}

// WithIDGenerator replaces store.CreateID for new records
func WithIDGenerator(newID func() string) Option {
	return func(e *env) { e.newID = newID }
}

// WithRandom replaces the uniform [0,1) source used to pick match winners
func WithRandom(random func() float64) Option {
	return func(e *env) { e.random = random }
}

// WithPasswordHasher replaces the default argon2id hasher
func WithPasswordHasher(h PasswordHasher) Option {
	return func(e *env) { e.hasher = h }
}

// WithSessionTTL sets how long sessions stay valid; zero disables expiry
func WithSessionTTL(ttl time.Duration) Option {
	return func(e *env) { e.sessionTTL = ttl }
}

// WithMatchPublisher sets where resolved matches are announced
func WithMatchPublisher(p MatchPublisher) Option {
	return func(e *env) { e.publisher = p }
}

// Game bundles the four coordination services over one store
type Game struct {
	Identity *Identity
	Social   *Social
	Rooms    *Rooms
	Matches  *Matches
}

// New wires the coordination services
func New(kv *store.KV, logger *slog.Logger, opts ...Option) *Game {
	e := &env{
		kv:         kv,
		logger:     logger,
		now:        time.Now,
		newID:      store.CreateID,
		newToken:   uuid.NewString,
		random:     rand.Float64,
		hasher:     NewArgon2Hasher(DefaultArgon2Params),
		publisher:  noopPublisher{},
		sessionTTL: DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(e)
	}

	identity := &Identity{env: e}
	rooms := &Rooms{env: e}
	return &Game{
		Identity: identity,
		Social:   &Social{env: e, users: identity},
		Rooms:    rooms,
		Matches:  &Matches{env: e, rooms: rooms},
	}
}

func (e *env) timestamp() time.Time {
	return e.now().UTC()
}
