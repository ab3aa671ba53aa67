package models

import "time"

// AuditEntry represents one audit log row.
type AuditEntry struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Action       string    `json:"action"`        // create, update, delete, restore, transfer, cancel
	ResourceType string    `json:"resource_type"` // asset, asset_type, location, status, transfer, user
	ResourceID   string    `json:"resource_id"`
	Details      string    `json:"details,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
