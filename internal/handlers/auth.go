package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/crucial707/trakset/internal/middleware"
	"github.com/crucial707/trakset/internal/repo"
)

// ==========================
// Auth Handler
// ==========================
type AuthHandler struct {
	UserRepo *repo.UserRepo
	Secret   []byte
	TTL      time.Duration
}

// ==========================
// Login (username and password verified against the bcrypt hash)
// ==========================
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}

	user, err := h.UserRepo.GetByUsername(r.Context(), input.Username)
	if errors.Is(err, repo.ErrNotFound) {
		JSONError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "login lookup failed", "err", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		JSONError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	ttl := h.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	signed, err := middleware.IssueToken(h.Secret, *user, ttl)
	if err != nil {
		JSONError(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": signed,
		"user":  user,
	})
}

// ==========================
// Me (the authenticated user)
// ==========================
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		JSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
