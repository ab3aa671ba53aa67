package transfer

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Reasons an asset identifier failed to resolve.
const (
	ReasonSoftDeleted = "soft_deleted"
	ReasonNotFound    = "not_found"
)

var (
	// ErrNoActiveTransfer means the user has no active transfer of the asset to annotate.
	ErrNoActiveTransfer = errors.New("no active transfer for this user")
	// ErrTransferNotFound means the transfer does not exist or was already cancelled.
	ErrTransferNotFound = errors.New("transfer not found")
	// ErrNotRecipient means someone other than the transfer's recipient tried to cancel it.
	ErrNotRecipient = errors.New("only the recipient can cancel a transfer")
	// ErrSuperseded means the asset has moved on since the transfer.
	ErrSuperseded = errors.New("transfer is no longer the latest for this asset")
	// ErrEmptySearch means the search term was blank.
	ErrEmptySearch = errors.New("please enter an asset name to search")
	// ErrFallbackHolderMissing means the configured fallback holder account does not exist.
	ErrFallbackHolderMissing = errors.New("fallback holder not found")
)

// ResolutionError reports an asset identifier that matched no active asset.
type ResolutionError struct {
	UID    uuid.UUID
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("asset %s not resolved: %s", e.UID, e.Reason)
}

// SoftDeleted reports whether the asset exists but awaits restoration.
func (e *ResolutionError) SoftDeleted() bool {
	return e.Reason == ReasonSoftDeleted
}
