package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/crucial707/trakset/internal/middleware"
	"github.com/crucial707/trakset/internal/models"
	"github.com/crucial707/trakset/internal/transfer"
)

// Workflow is the part of transfer.Service the HTTP layer drives.
type Workflow interface {
	Initiate(ctx context.Context, uid uuid.UUID, user models.User) (*transfer.Outcome, error)
	PrepareNoteForm(ctx context.Context, uid uuid.UUID, user models.User) (*models.AssetTransferNote, error)
	SubmitNote(ctx context.Context, uid uuid.UUID, user models.User, text string) error
	Cancel(ctx context.Context, id uuid.UUID, user models.User) (*transfer.Cancellation, error)
	Transfer(ctx context.Context, id uuid.UUID) (*models.AssetTransfer, error)
	Search(ctx context.Context, q transfer.SearchQuery) (*transfer.SearchResult, error)
}

// ==========================
// Transfer Handler
// ==========================
type TransferHandler struct {
	Workflow Workflow
}

// scanResponse adds the recency window, in minutes, to the scan outcome.
type scanResponse struct {
	*transfer.Outcome
	CancelWindowMinutes int `json:"cancel_window_minutes"`
}

// ==========================
// Scan (initiate transfer)
// ==========================
func (h *TransferHandler) Scan(w http.ResponseWriter, r *http.Request) {
	uid, ok := uuidParam(w, r, "uuid", "invalid asset id")
	if !ok {
		return
	}
	user, _ := middleware.UserFrom(r.Context())

	out, err := h.Workflow.Initiate(r.Context(), uid, user)
	if err != nil {
		workflowError(w, r, user, err)
		return
	}

	status := http.StatusCreated
	if out.State == transfer.StatePending {
		status = http.StatusOK
	}
	writeJSON(w, status, scanResponse{Outcome: out, CancelWindowMinutes: int(out.CancelWindow.Minutes())})
}

// ==========================
// Note form
// ==========================
func (h *TransferHandler) NoteForm(w http.ResponseWriter, r *http.Request) {
	uid, ok := uuidParam(w, r, "uuid", "invalid asset id")
	if !ok {
		return
	}
	user, _ := middleware.UserFrom(r.Context())

	draft, err := h.Workflow.PrepareNoteForm(r.Context(), uid, user)
	if err != nil {
		workflowError(w, r, user, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// ==========================
// Submit note
// ==========================
func (h *TransferHandler) SubmitNote(w http.ResponseWriter, r *http.Request) {
	uid, ok := uuidParam(w, r, "uuid", "invalid asset id")
	if !ok {
		return
	}
	var input struct {
		Text string `json:"text" validate:"max=10000"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}
	user, _ := middleware.UserFrom(r.Context())

	if err := h.Workflow.SubmitNote(r.Context(), uid, user, input.Text); err != nil {
		workflowError(w, r, user, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ==========================
// Transfer detail
// ==========================
func (h *TransferHandler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id", "invalid transfer id")
	if !ok {
		return
	}
	user, _ := middleware.UserFrom(r.Context())

	t, err := h.Workflow.Transfer(r.Context(), id)
	if err != nil {
		workflowError(w, r, user, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ==========================
// Cancel transfer
// ==========================
func (h *TransferHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id", "invalid transfer id")
	if !ok {
		return
	}
	user, _ := middleware.UserFrom(r.Context())

	c, err := h.Workflow.Cancel(r.Context(), id, user)
	if err != nil {
		workflowError(w, r, user, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ==========================
// Search
// ==========================
func (h *TransferHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user, _ := middleware.UserFrom(r.Context())

	res, err := h.Workflow.Search(r.Context(), transfer.SearchQuery{
		Term:           q.Get("q"),
		Mode:           transfer.Mode(q.Get("mode")),
		IncludeDeleted: q.Get("deleted") == "true",
	})
	if errors.Is(err, transfer.ErrEmptySearch) {
		JSONValidationError(w, err.Error(), map[string]string{"q": "required"}, http.StatusBadRequest)
		return
	}
	if err != nil {
		workflowError(w, r, user, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func uuidParam(w http.ResponseWriter, r *http.Request, name, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		JSONError(w, message, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// redirectFor tells the client where to send a user after a failed lookup.
func redirectFor(user models.User) string {
	if user.IsStaff() {
		return "search"
	}
	return "about"
}

// workflowError maps workflow errors to HTTP responses.
func workflowError(w http.ResponseWriter, r *http.Request, user models.User, err error) {
	var resErr *transfer.ResolutionError
	switch {
	case errors.As(err, &resErr):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error":    "asset not found",
			"reason":   resErr.Reason,
			"redirect": redirectFor(user),
		})
	case errors.Is(err, transfer.ErrTransferNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error":    "transfer not found",
			"redirect": "about",
		})
	case errors.Is(err, transfer.ErrNoActiveTransfer):
		JSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, transfer.ErrSuperseded):
		JSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, transfer.ErrNotRecipient):
		JSONError(w, err.Error(), http.StatusForbidden)
	default:
		slog.ErrorContext(r.Context(), "workflow failed", "path", r.URL.Path, "user", user.Username, "err", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
	}
}
