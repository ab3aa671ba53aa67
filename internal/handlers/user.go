package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/crucial707/trakset/internal/models"
	"github.com/crucial707/trakset/internal/repo"
)

// ==========================
// UserHandler
// ==========================
type UserHandler struct {
	Repo      *repo.UserRepo
	AuditRepo *repo.AuditRepo
	// FallbackHolder receives the assets of deleted users.
	FallbackHolder string
}

// ==========================
// Create User (role defaults to user)
// ==========================
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username" validate:"required,min=1,max=150"`
		Email    string `json:"email" validate:"omitempty,email"`
		Password string `json:"password" validate:"required,min=8,max=72"`
		Role     string `json:"role" validate:"omitempty,oneof=user staff admin"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}
	role := input.Role
	if role == "" {
		role = models.RoleUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	user, err := h.Repo.Create(r.Context(), input.Username, input.Email, string(hash), role)
	if err != nil {
		repoError(w, err, "user not found")
		return
	}

	audit(r, h.AuditRepo, "create", "user", strconv.FormatInt(user.ID, 10), user.Username)
	writeJSON(w, http.StatusCreated, user)
}

// ==========================
// List Users
// ==========================
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Repo.List(r.Context())
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// ==========================
// Get User
// ==========================
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "invalid user id")
	if !ok {
		return
	}

	user, err := h.Repo.GetByID(r.Context(), id)
	if err != nil {
		repoError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ==========================
// Delete User (assets move to the fallback holder)
// ==========================
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "invalid user id")
	if !ok {
		return
	}

	reassigned, err := h.Repo.Delete(r.Context(), id, h.FallbackHolder)
	switch {
	case errors.Is(err, repo.ErrFallbackHolder):
		JSONError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		repoError(w, err, "user not found")
		return
	}

	audit(r, h.AuditRepo, "delete", "user", strconv.FormatInt(id, 10), "reassigned "+strconv.FormatInt(reassigned, 10)+" assets")
	writeJSON(w, http.StatusOK, map[string]int64{"reassigned_assets": reassigned})
}
