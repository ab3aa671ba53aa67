package models

import (
	"time"

	"github.com/google/uuid"
)

// AssetTransfer records one custody change. Rows are never edited apart
// from the soft-delete marker and updated_at.
type AssetTransfer struct {
	ID         uuid.UUID `json:"id"`
	AssetID    *int64    `json:"asset_id,omitempty"`
	FromUserID *int64    `json:"from_user_id,omitempty"`
	ToUserID   *int64    `json:"to_user_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	SoftDelete

	// Joined fields (not always populated).
	AssetName    string              `json:"asset_name,omitempty"`
	AssetUID     *uuid.UUID          `json:"asset_unique_id,omitempty"`
	FromUsername string              `json:"from_user,omitempty"`
	ToUsername   string              `json:"to_user,omitempty"`
	Notes        []AssetTransferNote `json:"notes,omitempty"`
}

// WasTransferredRecently reports whether the transfer happened within
// window of now.
func (t *AssetTransfer) WasTransferredRecently(now time.Time, window time.Duration) bool {
	return !t.CreatedAt.Before(now.Add(-window))
}

// IsTo reports whether the transfer was addressed to userID.
func (t *AssetTransfer) IsTo(userID int64) bool {
	return t.ToUserID != nil && *t.ToUserID == userID
}

// AssetTransferNote is free text attached to a transfer. A nil TransferID
// marks a draft that has not been attached yet.
type AssetTransferNote struct {
	ID         int64      `json:"id"`
	Text       string     `json:"text"`
	TransferID *uuid.UUID `json:"transfer_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
