package handlers

import (
	"log/slog"
	"net/http"

	"github.com/crucial707/trakset/internal/middleware"
	"github.com/crucial707/trakset/internal/models"
	"github.com/crucial707/trakset/internal/repo"
)

// AuditHandler serves audit log endpoints.
type AuditHandler struct {
	Repo *repo.AuditRepo
}

// ListAudit returns recent audit log entries. Query: resource_type, limit (default 50), offset (default 0).
func (h *AuditHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50, 200)

	entries, err := h.Repo.List(r.Context(), r.URL.Query().Get("resource_type"), limit, offset)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

// audit records a registry write by the acting user. A failed write is logged, not surfaced.
func audit(r *http.Request, auditRepo *repo.AuditRepo, action, resourceType, resourceID, details string) {
	if auditRepo == nil {
		return
	}
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		return
	}
	err := auditRepo.Log(r.Context(), models.AuditEntry{
		UserID:       user.ID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
	})
	if err != nil {
		slog.WarnContext(r.Context(), "audit log write failed", "action", action, "resource_type", resourceType, "err", err)
	}
}
