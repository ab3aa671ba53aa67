package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/crucial707/trakset/internal/db"
	"github.com/crucial707/trakset/internal/models"
)

// ========================
// REPOSITORY STRUCT
// ========================

type AssetRepo struct {
	DB *sql.DB
	// FallbackHolder is the username that holds new assets created without a holder.
	FallbackHolder string
}

func NewAssetRepo(db *sql.DB, fallbackHolder string) *AssetRepo {
	return &AssetRepo{DB: db, FallbackHolder: fallbackHolder}
}

// AssetInput carries the writable asset fields.
type AssetInput struct {
	Name            string
	Description     string
	SerialNumber    string
	SecurityTag     *int64
	AssetTypeID     *int64
	StatusCode      *string
	LocationID      *int64
	CurrentHolderID *int64
}

// ========================
// CREATE ASSET
// ========================

// Create inserts an asset with a fresh opaque identifier. Without an explicit
// holder the asset is given to the fallback holder.
func (r *AssetRepo) Create(ctx context.Context, in AssetInput) (*models.Asset, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO assets (unique_id, name, description, serial_number, security_tag_number,
		                     asset_type_id, status_code, location_id, current_holder_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8,
		         COALESCE($9, (SELECT id FROM users WHERE username = $10)))
		 RETURNING id`,
		uuid.New(), in.Name, in.Description, in.SerialNumber, in.SecurityTag,
		in.AssetTypeID, in.StatusCode, in.LocationID, in.CurrentHolderID, r.FallbackHolder,
	).Scan(&id)
	if err != nil {
		return nil, mapError(err)
	}
	return r.Get(ctx, id, models.ScopeActive)
}

// ========================
// GET ASSET BY ID
// ========================

func (r *AssetRepo) Get(ctx context.Context, id int64, scope models.Scope) (*models.Asset, error) {
	a, err := assetWhere(ctx, r.DB, "a.id = $1"+activeOnly("a", scope), id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrNotFound
	}
	if a.Subscribers, err = subscribers(ctx, r.DB, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

// GetByUID looks an asset up by its opaque identifier.
func (r *AssetRepo) GetByUID(ctx context.Context, uid uuid.UUID, scope models.Scope) (*models.Asset, error) {
	a, err := assetWhere(ctx, r.DB, "a.unique_id = $1"+activeOnly("a", scope), uid)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrNotFound
	}
	return a, nil
}

// ========================
// LIST ASSETS WITH PAGINATION
// ========================

func (r *AssetRepo) List(ctx context.Context, scope models.Scope, limit, offset int) ([]models.Asset, error) {
	where := "WHERE true" + activeOnly("a", scope)
	rows, err := r.DB.QueryContext(ctx,
		assetSelect+" "+where+" ORDER BY a.id LIMIT $1 OFFSET $2",
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []models.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

// ========================
// UPDATE ASSET BY ID
// ========================

// Update rewrites the active asset's fields. A nil holder keeps the current one.
func (r *AssetRepo) Update(ctx context.Context, id int64, in AssetInput) (*models.Asset, error) {
	err := execOne(ctx, r.DB,
		`UPDATE assets
		 SET name = $1, description = $2, serial_number = $3, security_tag_number = $4,
		     asset_type_id = $5, status_code = $6, location_id = $7,
		     current_holder_id = COALESCE($8, current_holder_id), updated_at = now()
		 WHERE id = $9 AND NOT is_deleted`,
		in.Name, in.Description, in.SerialNumber, in.SecurityTag,
		in.AssetTypeID, in.StatusCode, in.LocationID, in.CurrentHolderID, id,
	)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id, models.ScopeActive)
}

// ========================
// SOFT DELETE / RESTORE
// ========================

func (r *AssetRepo) SoftDelete(ctx context.Context, id int64) error {
	return execOne(ctx, r.DB,
		`UPDATE assets SET is_deleted = true, deleted_at = now(), updated_at = now() WHERE id = $1 AND NOT is_deleted`, id)
}

func (r *AssetRepo) Restore(ctx context.Context, id int64) error {
	return execOne(ctx, r.DB,
		`UPDATE assets SET is_deleted = false, restored_at = now(), updated_at = now() WHERE id = $1 AND is_deleted`, id)
}

// ========================
// SUBSCRIBERS
// ========================

// SetSubscribers replaces the users notified when the asset is transferred.
func (r *AssetRepo) SetSubscribers(ctx context.Context, id int64, userIDs []int64) error {
	return db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM assets WHERE id = $1 AND NOT is_deleted)`, id,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM asset_subscribers WHERE asset_id = $1`, id); err != nil {
			return err
		}
		for _, uid := range userIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO asset_subscribers (asset_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				id, uid,
			); err != nil {
				return fmt.Errorf("subscribe user %d: %w", uid, mapError(err))
			}
		}
		return nil
	})
}
