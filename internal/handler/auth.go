package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pokewar-server/internal/domain"
)

type contextKey string

const (
	userContextKey  contextKey = "user"
	tokenContextKey contextKey = "token"
)

// bearerToken extracts the session token from the Authorization header
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireSession resolves the bearer token to a trainer or rejects the request
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		user, err := h.game.Identity.CurrentUser(r.Context(), token)
		if err != nil {
			h.handleServiceError(w, r, "resolve session", err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		ctx = context.WithValue(ctx, tokenContextKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentUser returns the trainer attached by requireSession
func currentUser(r *http.Request) *domain.User {
	user, _ := r.Context().Value(userContextKey).(*domain.User)
	return user
}

// SignUp registers a trainer with email and password
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req domain.SignUpRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.game.Identity.CreateUserWithEmail(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, "sign up", err)
		return
	}

	h.writeCreated(w, result)
}

// Login signs a trainer in with email and password
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.SignInRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.game.Identity.AuthenticateWithEmail(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, "log in", err)
		return
	}

	h.writeSuccess(w, result)
}

// LoginWithGoogle signs a trainer in by Google email, registering on first use
func (h *Handler) LoginWithGoogle(w http.ResponseWriter, r *http.Request) {
	var req domain.GoogleLoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.game.Identity.LoginWithGoogle(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, "log in with google", err)
		return
	}

	h.writeSuccess(w, result)
}

// Me returns the signed-in trainer
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, currentUser(r))
}

// Logout ends the current session
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token, _ := r.Context().Value(tokenContextKey).(string)
	if err := h.game.Identity.SignOut(r.Context(), token); err != nil {
		h.handleServiceError(w, r, "log out", err)
		return
	}

	h.writeSuccess(w, map[string]string{"status": "signed_out"})
}

// ListUsers returns every trainer
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.game.Identity.ListUsers(r.Context()))
}

// GetUser returns a trainer by ID
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.game.Identity.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.handleServiceError(w, r, "get user", err)
		return
	}

	h.writeSuccess(w, user)
}
