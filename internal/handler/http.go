package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pokewar-server/internal/domain"
	"github.com/pokewar-server/internal/service"
)

// RosterSource lists the champions trainers can pick from
type RosterSource interface {
	List(ctx context.Context, limit, offset int) ([]domain.Champion, error)
}

// MatchArchive serves long-term match history
type MatchArchive interface {
	ListArchivedMatches(ctx context.Context, userID string, limit int) ([]domain.MatchRecord, error)
}

// Pinger is a dependency the readiness probe checks
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler provides HTTP handlers for the game API
type Handler struct {
	game    *service.Game
	roster  RosterSource
	archive MatchArchive
	checks  map[string]Pinger
	logger  *slog.Logger
}

// Option customizes a Handler
type Option func(*Handler)

// WithMatchArchive enables the archived match history endpoint
func WithMatchArchive(archive MatchArchive) Option {
	return func(h *Handler) { h.archive = archive }
}

// WithReadinessCheck adds a dependency to the /ready probe
func WithReadinessCheck(name string, p Pinger) Option {
	return func(h *Handler) { h.checks[name] = p }
}

// NewHandler creates a new HTTP handler
func NewHandler(game *service.Game, roster RosterSource, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		game:   game,
		roster: roster,
		checks: make(map[string]Pinger),
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool                `json:"success"`
	Data    interface{}         `json:"data,omitempty"`
	Error   string              `json:"error,omitempty"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/roster", h.ListRoster)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.SignUp)
			r.Post("/login", h.Login)
			r.Post("/google", h.LoginWithGoogle)

			r.With(h.requireSession).Get("/me", h.Me)
			r.With(h.requireSession).Post("/logout", h.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.requireSession)

			r.Get("/users", h.ListUsers)
			r.Get("/users/{userID}", h.GetUser)

			r.Get("/friends", h.ListFriends)
			r.Route("/friend-requests", func(r chi.Router) {
				r.Get("/", h.ListFriendRequests)
				r.Post("/", h.SendFriendRequest)
				r.Post("/{requestID}/respond", h.RespondToFriendRequest)
			})

			r.Route("/servers", func(r chi.Router) {
				r.Get("/", h.ListServers)
				r.Post("/", h.CreateServer)

				r.Route("/{serverID}", func(r chi.Router) {
					r.Get("/", h.GetServer)
					r.Post("/invites", h.InviteToServer)

					r.Get("/selections", h.GetSelections)
					r.Put("/selection", h.SetSelection)
					r.Delete("/selections", h.ClearSelections)

					r.Get("/matches", h.GetServerMatches)
					r.Post("/matches", h.CreateMatch)
				})
			})

			r.Route("/invites", func(r chi.Router) {
				r.Get("/", h.ListInvites)
				r.Post("/{inviteID}/respond", h.RespondToInvite)
			})

			r.Get("/matches", h.ListMatches)
			r.Get("/matches/stats", h.GetMatchStats)
			r.Get("/matches/archive", h.ListArchivedMatches)
		})
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeCreated writes a 201 JSON response
func (h *Handler) writeCreated(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	resp := APIResponse{
		Success: false,
		Error:   err.Error(),
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	h.writeJSON(w, status, resp)
}

// statusFor maps a domain error kind to its HTTP status
func statusFor(err error) int {
	switch {
	case domain.IsValidationError(err):
		return http.StatusBadRequest
	case domain.IsCredentialError(err):
		return http.StatusUnauthorized
	case domain.IsForbiddenError(err):
		return http.StatusForbidden
	case domain.IsNotFoundError(err):
		return http.StatusNotFound
	case domain.IsConflictError(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// handleServiceError writes err with its mapped status. Errors outside the
// domain are logged and hidden behind a generic message.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, action string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("failed to "+action,
			"error", err,
			"request_id", middleware.GetReqID(r.Context()),
		)
		h.writeError(w, status, domain.ErrInternalError)
		return
	}
	h.writeError(w, status, err)
}

// decode reads a JSON request body into dst
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return false
	}
	return true
}

// queryInt returns a non-negative integer query parameter or def
func queryInt(r *http.Request, name string, def int) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			return v
		}
	}
	return def
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck pings every registered dependency
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", "dependency", name, "error", err)
			h.writeJSON(w, http.StatusServiceUnavailable, APIResponse{
				Success: false,
				Error:   name + " unavailable",
			})
			return
		}
	}

	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// ListRoster returns a page of champions
func (h *Handler) ListRoster(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)

	champions, err := h.roster.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list roster", "error", err)
		h.writeError(w, http.StatusBadGateway, errors.New("roster unavailable"))
		return
	}

	h.writeSuccess(w, champions)
}
