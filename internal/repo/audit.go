package repo

import (
	"context"
	"database/sql"

	"github.com/crucial707/trakset/internal/models"
)

// AuditRepo persists audit log entries.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo returns a new AuditRepo.
func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Log records an audit entry. See models.AuditEntry for the action and resource vocabularies.
func (r *AuditRepo) Log(ctx context.Context, e models.AuditEntry) error {
	return logAudit(ctx, r.db, e)
}

func logAudit(ctx context.Context, q queryer, e models.AuditEntry) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO audit_log (user_id, action, resource_type, resource_id, details) VALUES ($1, $2, $3, $4, $5)`,
		e.UserID, e.Action, e.ResourceType, e.ResourceID, e.Details,
	)
	return err
}

// List returns recent audit entries, newest first. A non-empty resourceType filters by it.
func (r *AuditRepo) List(ctx context.Context, resourceType string, limit, offset int) ([]models.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, action, resource_type, resource_id, COALESCE(details,''), created_at
		 FROM audit_log
		 WHERE ($1 = '' OR resource_type = $1)
		 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		resourceType, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.ResourceType, &e.ResourceID, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
