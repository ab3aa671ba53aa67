package models

import "time"

// SoftDelete marks a record removed without erasing it.
type SoftDelete struct {
	IsDeleted  bool       `json:"is_deleted"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
	RestoredAt *time.Time `json:"restored_at,omitempty"`
}

// Scope selects which view of a soft-deletable table a lookup reads.
type Scope int

const (
	// ScopeActive excludes soft-deleted rows.
	ScopeActive Scope = iota
	// ScopeAll includes soft-deleted rows.
	ScopeAll
)

func (s Scope) String() string {
	if s == ScopeAll {
		return "all"
	}
	return "active"
}
