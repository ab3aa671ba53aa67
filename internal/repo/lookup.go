package repo

import (
	"context"
	"database/sql"

	"github.com/crucial707/trakset/internal/models"
)

// ==========================
// LookupRepo
// ==========================

// LookupRepo manages the reference tables assets point at: asset types,
// locations and statuses.
type LookupRepo struct {
	DB *sql.DB
}

func NewLookupRepo(db *sql.DB) *LookupRepo {
	return &LookupRepo{DB: db}
}

// ==========================
// Asset types
// ==========================

func (r *LookupRepo) CreateAssetType(ctx context.Context, name, description string) (*models.AssetType, error) {
	t := models.AssetType{Name: name, Description: description}
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO asset_types (name, description) VALUES ($1, $2) RETURNING id, created_at, updated_at`,
		name, description,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

func (r *LookupRepo) ListAssetTypes(ctx context.Context, scope models.Scope) ([]models.AssetType, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, name, description, created_at, updated_at, is_deleted, deleted_at, restored_at
		 FROM asset_types t WHERE true`+activeOnly("t", scope)+` ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AssetType
	for rows.Next() {
		var t models.AssetType
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt, &t.UpdatedAt,
			&t.IsDeleted, &t.DeletedAt, &t.RestoredAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *LookupRepo) SoftDeleteAssetType(ctx context.Context, id int64) error {
	return softDelete(ctx, r.DB, "asset_types", "id", id)
}

func (r *LookupRepo) RestoreAssetType(ctx context.Context, id int64) error {
	return restore(ctx, r.DB, "asset_types", "id", id)
}

// ==========================
// Locations
// ==========================

func (r *LookupRepo) CreateLocation(ctx context.Context, name, description string) (*models.Location, error) {
	l := models.Location{Name: name, Description: description}
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO locations (name, description) VALUES ($1, $2) RETURNING id, created_at, updated_at`,
		name, description,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &l, nil
}

func (r *LookupRepo) ListLocations(ctx context.Context, scope models.Scope) ([]models.Location, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, name, description, created_at, updated_at, is_deleted, deleted_at, restored_at
		 FROM locations l WHERE true`+activeOnly("l", scope)+` ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Location
	for rows.Next() {
		var l models.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Description, &l.CreatedAt, &l.UpdatedAt,
			&l.IsDeleted, &l.DeletedAt, &l.RestoredAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *LookupRepo) SoftDeleteLocation(ctx context.Context, id int64) error {
	return softDelete(ctx, r.DB, "locations", "id", id)
}

func (r *LookupRepo) RestoreLocation(ctx context.Context, id int64) error {
	return restore(ctx, r.DB, "locations", "id", id)
}

// ==========================
// Statuses
// ==========================

func (r *LookupRepo) CreateStatus(ctx context.Context, code string) (*models.Status, error) {
	if _, err := r.DB.ExecContext(ctx, `INSERT INTO statuses (code) VALUES ($1)`, code); err != nil {
		return nil, mapError(err)
	}
	return &models.Status{Code: code}, nil
}

func (r *LookupRepo) ListStatuses(ctx context.Context, scope models.Scope) ([]models.Status, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT code, is_deleted, deleted_at, restored_at FROM statuses s WHERE true`+activeOnly("s", scope)+` ORDER BY code`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Status
	for rows.Next() {
		var s models.Status
		if err := rows.Scan(&s.Code, &s.IsDeleted, &s.DeletedAt, &s.RestoredAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *LookupRepo) SoftDeleteStatus(ctx context.Context, code string) error {
	return softDelete(ctx, r.DB, "statuses", "code", code)
}

func (r *LookupRepo) RestoreStatus(ctx context.Context, code string) error {
	return restore(ctx, r.DB, "statuses", "code", code)
}

// table and key are package constants, never user input.
func softDelete(ctx context.Context, q queryer, table, key string, id any) error {
	return execOne(ctx, q,
		`UPDATE `+table+` SET is_deleted = true, deleted_at = now() WHERE `+key+` = $1 AND NOT is_deleted`, id)
}

func restore(ctx context.Context, q queryer, table, key string, id any) error {
	return execOne(ctx, q,
		`UPDATE `+table+` SET is_deleted = false, restored_at = now() WHERE `+key+` = $1 AND is_deleted`, id)
}
