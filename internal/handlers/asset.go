package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/crucial707/trakset/internal/models"
	"github.com/crucial707/trakset/internal/repo"
)

type AssetHandler struct {
	Repo      *repo.AssetRepo
	AuditRepo *repo.AuditRepo
}

type assetInput struct {
	Name            string  `json:"name" validate:"required,min=1,max=255"`
	Description     string  `json:"description" validate:"max=1000"`
	SerialNumber    string  `json:"serial_number" validate:"max=255"`
	SecurityTag     *int64  `json:"security_tag_number" validate:"omitempty,gt=0"`
	AssetTypeID     *int64  `json:"asset_type_id" validate:"omitempty,gt=0"`
	StatusCode      *string `json:"status" validate:"omitempty,min=1,max=64"`
	LocationID      *int64  `json:"location_id" validate:"omitempty,gt=0"`
	CurrentHolderID *int64  `json:"current_holder_id" validate:"omitempty,gt=0"`
}

func (in assetInput) repoInput() repo.AssetInput {
	return repo.AssetInput{
		Name:            in.Name,
		Description:     in.Description,
		SerialNumber:    in.SerialNumber,
		SecurityTag:     in.SecurityTag,
		AssetTypeID:     in.AssetTypeID,
		StatusCode:      in.StatusCode,
		LocationID:      in.LocationID,
		CurrentHolderID: in.CurrentHolderID,
	}
}

//
// ==========================
// Create Asset
// ==========================
//

func (h *AssetHandler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var input assetInput
	if !decodeJSON(w, r, &input) {
		return
	}

	asset, err := h.Repo.Create(r.Context(), input.repoInput())
	if err != nil {
		repoError(w, err, "asset not found")
		return
	}

	audit(r, h.AuditRepo, "create", "asset", strconv.FormatInt(asset.ID, 10), asset.UniqueID.String())
	writeJSON(w, http.StatusCreated, asset)
}

//
// ==========================
// List Assets
// ==========================
//

func (h *AssetHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50, 500)

	assets, err := h.Repo.List(r.Context(), scopeParam(r), limit, offset)
	if err != nil {
		JSONError(w, "failed to fetch assets", http.StatusInternalServerError)
		return
	}
	if assets == nil {
		assets = []models.Asset{}
	}

	writeJSON(w, http.StatusOK, assets)
}

//
// ==========================
// Get Asset By ID
// ==========================
//

func (h *AssetHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "invalid asset id")
	if !ok {
		return
	}

	asset, err := h.Repo.Get(r.Context(), id, scopeParam(r))
	if err != nil {
		repoError(w, err, "asset not found")
		return
	}

	writeJSON(w, http.StatusOK, asset)
}

//
// ==========================
// Update Asset
// ==========================
//

func (h *AssetHandler) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "invalid asset id")
	if !ok {
		return
	}

	var input assetInput
	if !decodeJSON(w, r, &input) {
		return
	}

	asset, err := h.Repo.Update(r.Context(), id, input.repoInput())
	if err != nil {
		repoError(w, err, "asset not found")
		return
	}

	audit(r, h.AuditRepo, "update", "asset", strconv.FormatInt(id, 10), "")
	writeJSON(w, http.StatusOK, asset)
}

//
// ==========================
// Delete / Restore Asset
// ==========================
//

func (h *AssetHandler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "invalid asset id")
	if !ok {
		return
	}

	if err := h.Repo.SoftDelete(r.Context(), id); err != nil {
		repoError(w, err, "asset not found")
		return
	}

	audit(r, h.AuditRepo, "delete", "asset", strconv.FormatInt(id, 10), "")
	w.WriteHeader(http.StatusNoContent)
}

func (h *AssetHandler) RestoreAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "invalid asset id")
	if !ok {
		return
	}

	if err := h.Repo.Restore(r.Context(), id); err != nil {
		repoError(w, err, "deleted asset not found")
		return
	}

	audit(r, h.AuditRepo, "restore", "asset", strconv.FormatInt(id, 10), "")
	asset, err := h.Repo.Get(r.Context(), id, models.ScopeActive)
	if err != nil {
		repoError(w, err, "asset not found")
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

//
// ==========================
// Subscribers
// ==========================
//

func (h *AssetHandler) SetSubscribers(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "invalid asset id")
	if !ok {
		return
	}

	var input struct {
		UserIDs []int64 `json:"user_ids" validate:"dive,gt=0"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}

	if err := h.Repo.SetSubscribers(r.Context(), id, input.UserIDs); err != nil {
		repoError(w, err, "asset not found")
		return
	}

	audit(r, h.AuditRepo, "update", "asset", strconv.FormatInt(id, 10), "subscribers")
	w.WriteHeader(http.StatusNoContent)
}

func idParam(w http.ResponseWriter, r *http.Request, message string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		JSONError(w, message, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// scopeParam reads ?deleted=true as the view that includes soft-deleted rows.
func scopeParam(r *http.Request) models.Scope {
	if r.URL.Query().Get("deleted") == "true" {
		return models.ScopeAll
	}
	return models.ScopeActive
}

// repoError maps repository sentinels to HTTP responses.
func repoError(w http.ResponseWriter, err error, notFound string) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		JSONError(w, notFound, http.StatusNotFound)
	case errors.Is(err, repo.ErrConflict):
		JSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, repo.ErrReferenced):
		JSONError(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("repository failure", "err", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
	}
}
