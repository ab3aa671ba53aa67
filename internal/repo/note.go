package repo

import (
	"context"
	"database/sql"
	"time"
)

// NoteRepo maintains transfer notes outside the workflow.
type NoteRepo struct {
	DB *sql.DB
}

func NewNoteRepo(db *sql.DB) *NoteRepo {
	return &NoteRepo{DB: db}
}

// PurgeDrafts deletes draft notes (never attached to a transfer) created
// before cutoff and returns how many were removed.
func (r *NoteRepo) PurgeDrafts(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM asset_transfer_notes WHERE transfer_id IS NULL AND created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
