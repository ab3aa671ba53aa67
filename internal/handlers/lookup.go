package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/crucial707/trakset/internal/models"
	"github.com/crucial707/trakset/internal/repo"
)

// LookupHandler serves asset types, locations and statuses.
type LookupHandler struct {
	Repo      *repo.LookupRepo
	AuditRepo *repo.AuditRepo
}

type namedInput struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"max=1000"`
}

// ==========================
// Asset Types
// ==========================

func (h *LookupHandler) CreateAssetType(w http.ResponseWriter, r *http.Request) {
	var input namedInput
	if !decodeJSON(w, r, &input) {
		return
	}
	t, err := h.Repo.CreateAssetType(r.Context(), input.Name, input.Description)
	if err != nil {
		repoError(w, err, "asset type not found")
		return
	}
	audit(r, h.AuditRepo, "create", "asset_type", strconv.FormatInt(t.ID, 10), t.Name)
	writeJSON(w, http.StatusCreated, t)
}

func (h *LookupHandler) ListAssetTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Repo.ListAssetTypes(r.Context(), scopeParam(r))
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if types == nil {
		types = []models.AssetType{}
	}
	writeJSON(w, http.StatusOK, types)
}

func (h *LookupHandler) DeleteAssetType(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "invalid asset type id")
	if !ok {
		return
	}
	if err := h.Repo.SoftDeleteAssetType(r.Context(), id); err != nil {
		repoError(w, err, "asset type not found")
		return
	}
	audit(r, h.AuditRepo, "delete", "asset_type", strconv.FormatInt(id, 10), "")
	w.WriteHeader(http.StatusNoContent)
}

func (h *LookupHandler) RestoreAssetType(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "invalid asset type id")
	if !ok {
		return
	}
	if err := h.Repo.RestoreAssetType(r.Context(), id); err != nil {
		repoError(w, err, "deleted asset type not found")
		return
	}
	audit(r, h.AuditRepo, "restore", "asset_type", strconv.FormatInt(id, 10), "")
	w.WriteHeader(http.StatusNoContent)
}

// ==========================
// Locations
// ==========================

func (h *LookupHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var input namedInput
	if !decodeJSON(w, r, &input) {
		return
	}
	l, err := h.Repo.CreateLocation(r.Context(), input.Name, input.Description)
	if err != nil {
		repoError(w, err, "location not found")
		return
	}
	audit(r, h.AuditRepo, "create", "location", strconv.FormatInt(l.ID, 10), l.Name)
	writeJSON(w, http.StatusCreated, l)
}

func (h *LookupHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.Repo.ListLocations(r.Context(), scopeParam(r))
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if locations == nil {
		locations = []models.Location{}
	}
	writeJSON(w, http.StatusOK, locations)
}

func (h *LookupHandler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "invalid location id")
	if !ok {
		return
	}
	if err := h.Repo.SoftDeleteLocation(r.Context(), id); err != nil {
		repoError(w, err, "location not found")
		return
	}
	audit(r, h.AuditRepo, "delete", "location", strconv.FormatInt(id, 10), "")
	w.WriteHeader(http.StatusNoContent)
}

func (h *LookupHandler) RestoreLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "invalid location id")
	if !ok {
		return
	}
	if err := h.Repo.RestoreLocation(r.Context(), id); err != nil {
		repoError(w, err, "deleted location not found")
		return
	}
	audit(r, h.AuditRepo, "restore", "location", strconv.FormatInt(id, 10), "")
	w.WriteHeader(http.StatusNoContent)
}

// ==========================
// Statuses
// ==========================

func (h *LookupHandler) CreateStatus(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Code string `json:"status_type" validate:"required,min=1,max=64"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}
	s, err := h.Repo.CreateStatus(r.Context(), input.Code)
	if err != nil {
		repoError(w, err, "status not found")
		return
	}
	audit(r, h.AuditRepo, "create", "status", s.Code, "")
	writeJSON(w, http.StatusCreated, s)
}

func (h *LookupHandler) ListStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.Repo.ListStatuses(r.Context(), scopeParam(r))
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if statuses == nil {
		statuses = []models.Status{}
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (h *LookupHandler) DeleteStatus(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := h.Repo.SoftDeleteStatus(r.Context(), code); err != nil {
		repoError(w, err, "status not found")
		return
	}
	audit(r, h.AuditRepo, "delete", "status", code, "")
	w.WriteHeader(http.StatusNoContent)
}

func (h *LookupHandler) RestoreStatus(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := h.Repo.RestoreStatus(r.Context(), code); err != nil {
		repoError(w, err, "deleted status not found")
		return
	}
	audit(r, h.AuditRepo, "restore", "status", code, "")
	w.WriteHeader(http.StatusNoContent)
}
