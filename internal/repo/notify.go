package repo

import (
	"context"

	"github.com/crucial707/trakset/internal/models"
)

// ========================
// NOTIFICATION LOOKUPS
// ========================

// SubscriberEmails returns the non-empty email addresses of the asset's subscribers.
func (s *Store) SubscriberEmails(ctx context.Context, assetID int64) ([]string, error) {
	return emails(ctx, s.DB,
		`SELECT u.email FROM asset_subscribers s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.asset_id = $1 AND u.email <> ''
		 ORDER BY u.id`,
		assetID,
	)
}

// AdminEmails returns the non-empty addresses of admin users, the recipients of diagnostics.
func (s *Store) AdminEmails(ctx context.Context) ([]string, error) {
	return emails(ctx, s.DB,
		`SELECT email FROM users WHERE role = $1 AND email <> '' ORDER BY id`, models.RoleAdmin)
}

// UserByID returns the user or (nil, nil) when the account is gone.
func (s *Store) UserByID(ctx context.Context, id int64) (*models.User, error) {
	return absent(scanUser(s.DB.QueryRowContext(ctx, userSelect+" WHERE id = $1", id)))
}

func emails(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
