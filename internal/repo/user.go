package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/crucial707/trakset/internal/db"
	"github.com/crucial707/trakset/internal/models"
)

var (
	// ErrFallbackHolder is returned when deleting the fallback holder itself.
	ErrFallbackHolder = errors.New("the fallback holder cannot be deleted")
	// ErrNoFallbackHolder is returned when the configured fallback holder does not exist.
	ErrNoFallbackHolder = errors.New("fallback holder does not exist")
)

// ==========================
// UserRepo
// ==========================
type UserRepo struct {
	DB *sql.DB
}

// ==========================
// Constructor
// ==========================
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db}
}

// ==========================
// Create User
// ==========================
func (r *UserRepo) Create(ctx context.Context, username, email, passwordHash, role string) (*models.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	user := &models.User{Username: username, Email: email, PasswordHash: passwordHash, Role: role}

	if err := r.DB.QueryRowContext(ctx, query, username, email, passwordHash, role).Scan(&user.ID); err != nil {
		return nil, mapError(err)
	}

	return user, nil
}

// ==========================
// Get By ID
// ==========================
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, userSelect+" WHERE id = $1", id))
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

// ==========================
// Get By Username
// ==========================
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, userSelect+" WHERE username = $1", username))
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

// ==========================
// List Users
// ==========================
func (r *UserRepo) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.DB.QueryContext(ctx, userSelect+" ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}

	return users, rows.Err()
}

// ==========================
// Delete User
// ==========================

// Delete removes a user and repairs everything that pointed at them in the
// same transaction: held assets move to the fallback holder, transfer
// references are cleared and subscriptions dropped. It returns how many
// assets were reassigned.
func (r *UserRepo) Delete(ctx context.Context, id int64, fallbackUsername string) (int64, error) {
	var reassigned int64

	err := db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		var fallbackID int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM users WHERE username = $1 FOR UPDATE`, fallbackUsername,
		).Scan(&fallbackID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoFallbackHolder
		}
		if err != nil {
			return err
		}
		if fallbackID == id {
			return ErrFallbackHolder
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE assets SET current_holder_id = $1, updated_at = now() WHERE current_holder_id = $2`,
			fallbackID, id,
		)
		if err != nil {
			return err
		}
		if reassigned, err = res.RowsAffected(); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE asset_transfers SET from_user_id = NULL WHERE from_user_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE asset_transfers SET to_user_id = NULL WHERE to_user_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM asset_subscribers WHERE user_id = $1`, id); err != nil {
			return err
		}

		return execOne(ctx, tx, `DELETE FROM users WHERE id = $1`, id)
	})
	if err != nil {
		return 0, err
	}
	return reassigned, nil
}
