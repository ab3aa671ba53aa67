package transfer

import (
	"context"

	"github.com/google/uuid"

	"github.com/crucial707/trakset/internal/models"
)

// Store is the persistence the workflow needs. Lookups return (nil, nil)
// when nothing matches.
type Store interface {
	// InTx runs fn in one database transaction. All writes made through the
	// Tx commit together or not at all.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	AssetByUID(ctx context.Context, uid uuid.UUID, scope models.Scope) (*models.Asset, error)
	AssetByID(ctx context.Context, id int64, scope models.Scope) (*models.Asset, error)
	TransferByID(ctx context.Context, id uuid.UUID, scope models.Scope) (*models.AssetTransfer, error)
	TransfersForAsset(ctx context.Context, assetID int64, scope models.Scope) ([]models.AssetTransfer, error)
	// LatestNoteForAsset returns the newest note across every transfer of the asset.
	LatestNoteForAsset(ctx context.Context, assetID int64) (*models.AssetTransferNote, error)
	CreateDraftNote(ctx context.Context, text string) (*models.AssetTransferNote, error)
	SearchAssets(ctx context.Context, term string, threshold float64) ([]models.AssetMatch, error)
}

// Tx is a single open transaction. Lock* reads take row locks that are held
// until the transaction ends.
type Tx interface {
	// LockAssetByUID locks the active asset with the given opaque identifier.
	LockAssetByUID(ctx context.Context, uid uuid.UUID) (*models.Asset, error)
	// LockAssetByID locks the asset whether or not it is soft-deleted.
	LockAssetByID(ctx context.Context, id int64) (*models.Asset, error)
	// LatestTransfer returns the newest transfer of the asset in scope.
	LatestTransfer(ctx context.Context, assetID int64, scope models.Scope) (*models.AssetTransfer, error)
	// LockLatestTransferTo locks the newest active transfer of the asset addressed to userID.
	LockLatestTransferTo(ctx context.Context, assetID, userID int64) (*models.AssetTransfer, error)
	// LockTransfer locks an active transfer.
	LockTransfer(ctx context.Context, id uuid.UUID) (*models.AssetTransfer, error)

	InsertTransfer(ctx context.Context, t *models.AssetTransfer) error
	SoftDeleteTransfer(ctx context.Context, id uuid.UUID) error
	TouchTransfer(ctx context.Context, id uuid.UUID) error
	SetHolder(ctx context.Context, assetID, userID int64) error

	CountNotes(ctx context.Context, transferID uuid.UUID) (int, error)
	AppendNote(ctx context.Context, transferID uuid.UUID, text string) error

	HasSubscribers(ctx context.Context, assetID int64) (bool, error)
	UserByID(ctx context.Context, id int64) (*models.User, error)
	UserByUsername(ctx context.Context, username string) (*models.User, error)

	Audit(ctx context.Context, entry models.AuditEntry) error
}

// Notifier dispatches notifications asynchronously. Calls never block on
// delivery and report nothing back.
type Notifier interface {
	TransferCompleted(transferID uuid.UUID)
	AdminDiagnostic(message string)
}
