package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/crucial707/trakset/internal/db"
	"github.com/crucial707/trakset/internal/models"
	"github.com/crucial707/trakset/internal/transfer"
)

var (
	// ErrNotFound is returned when a row does not exist in the requested scope.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned on unique violations (e.g. duplicate security tag).
	ErrConflict = errors.New("already exists")
	// ErrReferenced is returned when a foreign key points at a missing row
	// or a required reference could not be filled.
	ErrReferenced = errors.New("referenced record does not exist")
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// mapError translates driver errors into the package sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrConflict, pqErr.Constraint)
		case "23503", "23502":
			return fmt.Errorf("%w: %s", ErrReferenced, pqErr.Constraint)
		}
	}
	return err
}

// absent turns a missing row into (nil, nil) for the workflow lookups.
func absent[T any](v *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func activeOnly(alias string, scope models.Scope) string {
	if scope == models.ScopeAll {
		return ""
	}
	return " AND NOT " + alias + ".is_deleted"
}

// ========================
// SELECTS
// ========================

const assetSelect = `SELECT a.id, a.unique_id, a.name, a.description, a.serial_number, a.security_tag_number,
	a.asset_type_id, a.status_code, a.location_id, a.current_holder_id, a.created_at, a.updated_at,
	a.is_deleted, a.deleted_at, a.restored_at,
	COALESCE(t.name, ''), COALESCE(l.name, ''), COALESCE(u.username, '')
FROM assets a
LEFT JOIN asset_types t ON t.id = a.asset_type_id
LEFT JOIN locations l ON l.id = a.location_id
LEFT JOIN users u ON u.id = a.current_holder_id`

func scanAsset(row rowScanner, extra ...any) (*models.Asset, error) {
	var a models.Asset
	dest := []any{
		&a.ID, &a.UniqueID, &a.Name, &a.Description, &a.SerialNumber, &a.SecurityTag,
		&a.AssetTypeID, &a.StatusCode, &a.LocationID, &a.CurrentHolderID, &a.CreatedAt, &a.UpdatedAt,
		&a.IsDeleted, &a.DeletedAt, &a.RestoredAt,
		&a.AssetTypeName, &a.LocationName, &a.HolderUsername,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &a, nil
}

const transferSelect = `SELECT tr.id, tr.asset_id, tr.from_user_id, tr.to_user_id, tr.created_at, tr.updated_at,
	tr.is_deleted, tr.deleted_at, tr.restored_at,
	COALESCE(a.name, ''), a.unique_id, COALESCE(fu.username, ''), COALESCE(tu.username, '')
FROM asset_transfers tr
LEFT JOIN assets a ON a.id = tr.asset_id
LEFT JOIN users fu ON fu.id = tr.from_user_id
LEFT JOIN users tu ON tu.id = tr.to_user_id`

func scanTransfer(row rowScanner) (*models.AssetTransfer, error) {
	var t models.AssetTransfer
	if err := row.Scan(
		&t.ID, &t.AssetID, &t.FromUserID, &t.ToUserID, &t.CreatedAt, &t.UpdatedAt,
		&t.IsDeleted, &t.DeletedAt, &t.RestoredAt,
		&t.AssetName, &t.AssetUID, &t.FromUsername, &t.ToUsername,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTransfers(rows *sql.Rows) ([]models.AssetTransfer, error) {
	defer rows.Close()
	var out []models.AssetTransfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

const userSelect = `SELECT id, username, email, password_hash, role FROM users`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role); err != nil {
		return nil, err
	}
	return &u, nil
}

// ========================
// STORE
// ========================

// Store is the postgres implementation of transfer.Store.
type Store struct {
	DB *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

var _ transfer.Store = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(tx transfer.Tx) error) error {
	return db.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		return fn(&txStore{q: tx})
	})
}

func (s *Store) AssetByUID(ctx context.Context, uid uuid.UUID, scope models.Scope) (*models.Asset, error) {
	return assetWhere(ctx, s.DB, "a.unique_id = $1"+activeOnly("a", scope), uid)
}

func (s *Store) AssetByID(ctx context.Context, id int64, scope models.Scope) (*models.Asset, error) {
	a, err := assetWhere(ctx, s.DB, "a.id = $1"+activeOnly("a", scope), id)
	if err != nil || a == nil {
		return a, err
	}
	if a.Subscribers, err = subscribers(ctx, s.DB, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) TransferByID(ctx context.Context, id uuid.UUID, scope models.Scope) (*models.AssetTransfer, error) {
	t, err := absent(scanTransfer(s.DB.QueryRowContext(ctx,
		transferSelect+" WHERE tr.id = $1"+activeOnly("tr", scope), id,
	)))
	if err != nil || t == nil {
		return t, err
	}
	if t.Notes, err = notesFor(ctx, s.DB, t.ID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) TransfersForAsset(ctx context.Context, assetID int64, scope models.Scope) ([]models.AssetTransfer, error) {
	rows, err := s.DB.QueryContext(ctx,
		transferSelect+" WHERE tr.asset_id = $1"+activeOnly("tr", scope)+" ORDER BY tr.created_at DESC",
		assetID,
	)
	if err != nil {
		return nil, err
	}
	return scanTransfers(rows)
}

func (s *Store) LatestNoteForAsset(ctx context.Context, assetID int64) (*models.AssetTransferNote, error) {
	var n models.AssetTransferNote
	err := s.DB.QueryRowContext(ctx,
		`SELECT n.id, n.text, n.transfer_id, n.created_at
		 FROM asset_transfer_notes n
		 JOIN asset_transfers tr ON tr.id = n.transfer_id
		 WHERE tr.asset_id = $1
		 ORDER BY n.created_at DESC, n.id DESC
		 LIMIT 1`,
		assetID,
	).Scan(&n.ID, &n.Text, &n.TransferID, &n.CreatedAt)
	return absent(&n, err)
}

func (s *Store) CreateDraftNote(ctx context.Context, text string) (*models.AssetTransferNote, error) {
	n := models.AssetTransferNote{Text: text}
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO asset_transfer_notes (text) VALUES ($1) RETURNING id, created_at`,
		text,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func assetWhere(ctx context.Context, q queryer, where string, args ...any) (*models.Asset, error) {
	return absent(scanAsset(q.QueryRowContext(ctx, assetSelect+" WHERE "+where, args...)))
}

func subscribers(ctx context.Context, q queryer, assetID int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT user_id FROM asset_subscribers WHERE asset_id = $1 ORDER BY user_id`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func notesFor(ctx context.Context, q queryer, transferID uuid.UUID) ([]models.AssetTransferNote, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, text, transfer_id, created_at FROM asset_transfer_notes WHERE transfer_id = $1 ORDER BY created_at, id`,
		transferID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []models.AssetTransferNote
	for rows.Next() {
		var n models.AssetTransferNote
		if err := rows.Scan(&n.ID, &n.Text, &n.TransferID, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// ========================
// TRANSACTION
// ========================

type txStore struct {
	q queryer
}

var _ transfer.Tx = (*txStore)(nil)

func (t *txStore) LockAssetByUID(ctx context.Context, uid uuid.UUID) (*models.Asset, error) {
	return assetWhere(ctx, t.q, "a.unique_id = $1 AND NOT a.is_deleted FOR UPDATE OF a", uid)
}

func (t *txStore) LockAssetByID(ctx context.Context, id int64) (*models.Asset, error) {
	return assetWhere(ctx, t.q, "a.id = $1 FOR UPDATE OF a", id)
}

func (t *txStore) LatestTransfer(ctx context.Context, assetID int64, scope models.Scope) (*models.AssetTransfer, error) {
	return absent(scanTransfer(t.q.QueryRowContext(ctx,
		transferSelect+" WHERE tr.asset_id = $1"+activeOnly("tr", scope)+" ORDER BY tr.created_at DESC LIMIT 1",
		assetID,
	)))
}

func (t *txStore) LockLatestTransferTo(ctx context.Context, assetID, userID int64) (*models.AssetTransfer, error) {
	return absent(scanTransfer(t.q.QueryRowContext(ctx,
		transferSelect+` WHERE tr.asset_id = $1 AND tr.to_user_id = $2 AND NOT tr.is_deleted
		 ORDER BY tr.created_at DESC LIMIT 1 FOR UPDATE OF tr`,
		assetID, userID,
	)))
}

func (t *txStore) LockTransfer(ctx context.Context, id uuid.UUID) (*models.AssetTransfer, error) {
	return absent(scanTransfer(t.q.QueryRowContext(ctx,
		transferSelect+" WHERE tr.id = $1 AND NOT tr.is_deleted FOR UPDATE OF tr",
		id,
	)))
}

func (t *txStore) InsertTransfer(ctx context.Context, tr *models.AssetTransfer) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO asset_transfers (id, asset_id, from_user_id, to_user_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		tr.ID, tr.AssetID, tr.FromUserID, tr.ToUserID, tr.CreatedAt, tr.UpdatedAt,
	)
	return mapError(err)
}

func (t *txStore) SoftDeleteTransfer(ctx context.Context, id uuid.UUID) error {
	return execOne(ctx, t.q,
		`UPDATE asset_transfers SET is_deleted = true, deleted_at = now(), updated_at = now() WHERE id = $1`, id)
}

func (t *txStore) TouchTransfer(ctx context.Context, id uuid.UUID) error {
	return execOne(ctx, t.q, `UPDATE asset_transfers SET updated_at = now() WHERE id = $1`, id)
}

func (t *txStore) SetHolder(ctx context.Context, assetID, userID int64) error {
	return execOne(ctx, t.q,
		`UPDATE assets SET current_holder_id = $1, updated_at = now() WHERE id = $2`, userID, assetID)
}

func (t *txStore) CountNotes(ctx context.Context, transferID uuid.UUID) (int, error) {
	var n int
	err := t.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM asset_transfer_notes WHERE transfer_id = $1`, transferID,
	).Scan(&n)
	return n, err
}

func (t *txStore) AppendNote(ctx context.Context, transferID uuid.UUID, text string) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO asset_transfer_notes (text, transfer_id) VALUES ($1, $2)`, text, transferID)
	return err
}

func (t *txStore) HasSubscribers(ctx context.Context, assetID int64) (bool, error) {
	var ok bool
	err := t.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM asset_subscribers WHERE asset_id = $1)`, assetID,
	).Scan(&ok)
	return ok, err
}

func (t *txStore) UserByID(ctx context.Context, id int64) (*models.User, error) {
	return absent(scanUser(t.q.QueryRowContext(ctx, userSelect+" WHERE id = $1", id)))
}

func (t *txStore) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	return absent(scanUser(t.q.QueryRowContext(ctx, userSelect+" WHERE username = $1", username)))
}

func (t *txStore) Audit(ctx context.Context, e models.AuditEntry) error {
	return logAudit(ctx, t.q, e)
}

// execOne runs a statement that must touch exactly one row.
func execOne(ctx context.Context, q queryer, query string, args ...any) error {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
