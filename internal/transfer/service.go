// Package transfer implements the custody transfer workflow: taking custody
// of a scanned asset, annotating the transfer, cancelling it and searching
// transfer history.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crucial707/trakset/internal/metrics"
	"github.com/crucial707/trakset/internal/models"
)

// Defaults used when no option overrides them.
const (
	DefaultWindow         = time.Hour
	DefaultThreshold      = 0.2
	DefaultFallbackHolder = "admin"
)

// State is the result of scanning an asset.
type State string

const (
	// StateCreated means custody moved to the requesting user.
	StateCreated State = "created"
	// StatePending means the user already received the asset within the
	// recency window and is offered cancellation instead.
	StatePending State = "pending"
)

// Outcome is what the presentation layer needs after a scan.
type Outcome struct {
	State         State                 `json:"state"`
	AssetName     string                `json:"asset_name"`
	AssetLocation string                `json:"asset_location"`
	AssetUID      uuid.UUID             `json:"asset_id"`
	Transfer      *models.AssetTransfer `json:"transfer"`
	CancelWindow  time.Duration         `json:"-"`
}

// Cancellation describes a reverted transfer.
type Cancellation struct {
	Asset        models.Asset `json:"asset"`
	TransferID   uuid.UUID    `json:"transfer_id"`
	FromUsername string       `json:"from_user"`
}

// Service runs the workflow against a Store.
type Service struct {
	store     Store
	notifier  Notifier
	window    time.Duration
	threshold float64
	fallback  string
	now       func() time.Time
	log       *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithWindow sets the recency window during which a recipient is offered
// cancellation instead of a new transfer.
func WithWindow(d time.Duration) Option {
	return func(s *Service) { s.window = d }
}

// WithThreshold sets the minimum trigram similarity for search matches.
func WithThreshold(t float64) Option {
	return func(s *Service) { s.threshold = t }
}

// WithFallbackHolder sets the username that receives assets whose previous
// holder account no longer exists.
func WithFallbackHolder(username string) Option {
	return func(s *Service) { s.fallback = username }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func New(store Store, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		store:     store,
		notifier:  notifier,
		window:    DefaultWindow,
		threshold: DefaultThreshold,
		fallback:  DefaultFallbackHolder,
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Window returns the configured recency window.
func (s *Service) Window() time.Duration {
	return s.window
}

var errUnresolved = errors.New("asset not resolved")

// ========================
// INITIATE
// ========================

// Initiate hands the asset identified by uid to user, or surfaces the
// user's own recent transfer of it as cancelable.
func (s *Service) Initiate(ctx context.Context, uid uuid.UUID, user models.User) (*Outcome, error) {
	var (
		out    *Outcome
		notify bool
	)

	err := s.store.InTx(ctx, func(tx Tx) error {
		asset, err := tx.LockAssetByUID(ctx, uid)
		if err != nil {
			return err
		}
		if asset == nil {
			return errUnresolved
		}

		out = &Outcome{
			AssetName:     asset.Name,
			AssetLocation: asset.LocationDisplay(),
			AssetUID:      asset.UniqueID,
			CancelWindow:  s.window,
		}

		now := s.now()
		latest, err := tx.LatestTransfer(ctx, asset.ID, models.ScopeAll)
		if err != nil {
			return err
		}
		if latest != nil && !latest.IsDeleted && latest.IsTo(user.ID) && latest.WasTransferredRecently(now, s.window) {
			out.State = StatePending
			out.Transfer = latest
			return nil
		}

		holderID := asset.CurrentHolderID
		t := &models.AssetTransfer{
			ID:           uuid.New(),
			AssetID:      &asset.ID,
			FromUserID:   &holderID,
			ToUserID:     &user.ID,
			CreatedAt:    now,
			UpdatedAt:    now,
			AssetName:    asset.Name,
			AssetUID:     &asset.UniqueID,
			FromUsername: asset.HolderUsername,
			ToUsername:   user.Username,
		}
		if err := tx.InsertTransfer(ctx, t); err != nil {
			return err
		}
		if err := tx.SetHolder(ctx, asset.ID, user.ID); err != nil {
			return err
		}
		if err := tx.Audit(ctx, models.AuditEntry{
			UserID:       user.ID,
			Action:       "transfer",
			ResourceType: "asset",
			ResourceID:   asset.UniqueID.String(),
			Details:      fmt.Sprintf("transfer %s from user %d", t.ID, holderID),
		}); err != nil {
			return err
		}

		notify, err = tx.HasSubscribers(ctx, asset.ID)
		if err != nil {
			return err
		}

		out.State = StateCreated
		out.Transfer = t
		return nil
	})
	if errors.Is(err, errUnresolved) {
		return nil, s.unresolved(ctx, uid, user)
	}
	if err != nil {
		return nil, fmt.Errorf("initiate transfer: %w", err)
	}

	metrics.IncTransfers(string(out.State))
	if out.State == StateCreated {
		s.log.Info("transfer created", "transfer_id", out.Transfer.ID, "asset", uid, "to_user", user.Username)
		// Committed; safe to tell subscribers.
		if notify {
			s.notifier.TransferCompleted(out.Transfer.ID)
		}
	} else {
		s.log.Info("transfer pending", "transfer_id", out.Transfer.ID, "asset", uid, "user", user.Username)
	}
	return out, nil
}

// unresolved classifies a failed lookup, reports it to administrators and
// returns the matching *ResolutionError.
func (s *Service) unresolved(ctx context.Context, uid uuid.UUID, user models.User) error {
	reason := ReasonNotFound
	hint := "The asset has probably been hard deleted, and should be re-created."

	asset, err := s.store.AssetByUID(ctx, uid, models.ScopeAll)
	if err != nil {
		s.log.Error("classify unresolved asset", "asset", uid, "error", err)
	} else if asset != nil && asset.IsDeleted {
		reason = ReasonSoftDeleted
		hint = "This probably means that the asset needs to be restored."
	}

	label := "non-existent"
	if reason == ReasonSoftDeleted {
		label = "soft-deleted"
	}
	s.log.Warn("asset not resolved", "asset", uid, "user", user.Username, "reason", reason)
	metrics.IncResolutionFailures(reason)
	s.notifier.AdminDiagnostic(fmt.Sprintf(
		"User %s tried to access a %s asset with id %s. %s", user.Username, label, uid, hint,
	))
	return &ResolutionError{UID: uid, Reason: reason}
}

// ========================
// NOTES
// ========================

// PrepareNoteForm stores a draft note prefilled with the newest note of any
// of the asset's transfers, or empty text when there is none.
func (s *Service) PrepareNoteForm(ctx context.Context, uid uuid.UUID, user models.User) (*models.AssetTransferNote, error) {
	asset, err := s.store.AssetByUID(ctx, uid, models.ScopeActive)
	if err != nil {
		return nil, fmt.Errorf("prepare note form: %w", err)
	}
	if asset == nil {
		return nil, s.unresolved(ctx, uid, user)
	}

	text := ""
	latest, err := s.store.LatestNoteForAsset(ctx, asset.ID)
	if err != nil {
		return nil, fmt.Errorf("prepare note form: %w", err)
	}
	if latest != nil {
		text = latest.Text
	}

	draft, err := s.store.CreateDraftNote(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("prepare note form: %w", err)
	}
	return draft, nil
}

// SubmitNote appends text to the user's most recent active transfer of the
// asset. An empty submission is dropped while the transfer has no notes.
func (s *Service) SubmitNote(ctx context.Context, uid uuid.UUID, user models.User, text string) error {
	asset, err := s.store.AssetByUID(ctx, uid, models.ScopeActive)
	if err != nil {
		return fmt.Errorf("submit note: %w", err)
	}
	if asset == nil {
		return s.unresolved(ctx, uid, user)
	}

	err = s.store.InTx(ctx, func(tx Tx) error {
		t, err := tx.LockLatestTransferTo(ctx, asset.ID, user.ID)
		if err != nil {
			return err
		}
		if t == nil {
			return ErrNoActiveTransfer
		}

		n, err := tx.CountNotes(ctx, t.ID)
		if err != nil {
			return err
		}
		if n > 0 || text != "" {
			if err := tx.AppendNote(ctx, t.ID, text); err != nil {
				return err
			}
		}
		return tx.TouchTransfer(ctx, t.ID)
	})
	if errors.Is(err, ErrNoActiveTransfer) {
		return err
	}
	if err != nil {
		return fmt.Errorf("submit note: %w", err)
	}
	return nil
}

// ========================
// CANCEL
// ========================

// Cancel reverts a transfer: the asset goes back to the previous holder and
// the transfer is soft-deleted. Only the recipient may cancel, and only while
// the transfer is still the asset's latest.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, user models.User) (*Cancellation, error) {
	var out *Cancellation

	err := s.store.InTx(ctx, func(tx Tx) error {
		t, err := tx.LockTransfer(ctx, id)
		if err != nil {
			return err
		}
		if t == nil || t.AssetID == nil {
			return ErrTransferNotFound
		}
		if !t.IsTo(user.ID) {
			return ErrNotRecipient
		}

		asset, err := tx.LockAssetByID(ctx, *t.AssetID)
		if err != nil {
			return err
		}
		if asset == nil {
			return ErrTransferNotFound
		}
		latest, err := tx.LatestTransfer(ctx, asset.ID, models.ScopeActive)
		if err != nil {
			return err
		}
		if latest == nil || latest.ID != t.ID {
			return ErrSuperseded
		}

		var holder *models.User
		if t.FromUserID != nil {
			if holder, err = tx.UserByID(ctx, *t.FromUserID); err != nil {
				return err
			}
		}
		if holder == nil {
			if holder, err = tx.UserByUsername(ctx, s.fallback); err != nil {
				return err
			}
			if holder == nil {
				return ErrFallbackHolderMissing
			}
		}

		if err := tx.SetHolder(ctx, asset.ID, holder.ID); err != nil {
			return err
		}
		if err := tx.SoftDeleteTransfer(ctx, t.ID); err != nil {
			return err
		}
		if err := tx.Audit(ctx, models.AuditEntry{
			UserID:       user.ID,
			Action:       "cancel",
			ResourceType: "transfer",
			ResourceID:   t.ID.String(),
			Details:      fmt.Sprintf("holder reverted to %s", holder.Username),
		}); err != nil {
			return err
		}

		asset.CurrentHolderID = holder.ID
		asset.HolderUsername = holder.Username
		out = &Cancellation{Asset: *asset, TransferID: t.ID, FromUsername: holder.Username}
		return nil
	})
	switch {
	case errors.Is(err, ErrTransferNotFound), errors.Is(err, ErrNotRecipient), errors.Is(err, ErrSuperseded):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("cancel transfer: %w", err)
	}

	metrics.IncTransfers("cancelled")
	s.log.Info("transfer cancelled", "transfer_id", id, "user", user.Username, "holder", out.FromUsername)
	return out, nil
}

// ========================
// DETAIL
// ========================

// Transfer returns a transfer with its notes, including cancelled transfers.
func (s *Service) Transfer(ctx context.Context, id uuid.UUID) (*models.AssetTransfer, error) {
	t, err := s.store.TransferByID(ctx, id, models.ScopeAll)
	if err != nil {
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	if t == nil {
		return nil, ErrTransferNotFound
	}
	return t, nil
}

// ========================
// SEARCH
// ========================

// Mode selects what Search returns for the best match.
type Mode string

const (
	ModeTransfers Mode = "transfers"
	ModeAssets    Mode = "assets"
)

type SearchQuery struct {
	Term           string
	Mode           Mode
	IncludeDeleted bool
}

type SearchResult struct {
	Matches   []models.AssetMatch    `json:"matches"`
	Best      *models.Asset          `json:"best,omitempty"`
	Transfers []models.AssetTransfer `json:"transfers,omitempty"`
}

// Search ranks active assets by trigram similarity to the term, best first.
// Depending on the mode, the best match's detail or transfer history is
// loaded as well.
func (s *Service) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	term := strings.TrimSpace(q.Term)
	if term == "" {
		return nil, ErrEmptySearch
	}

	matches, err := s.store.SearchAssets(ctx, term, s.threshold)
	if err != nil {
		return nil, fmt.Errorf("search assets: %w", err)
	}
	res := &SearchResult{Matches: matches}
	if len(matches) == 0 {
		return res, nil
	}
	best := matches[0].ID

	switch q.Mode {
	case ModeTransfers:
		scope := models.ScopeActive
		if q.IncludeDeleted {
			scope = models.ScopeAll
		}
		res.Transfers, err = s.store.TransfersForAsset(ctx, best, scope)
		if err != nil {
			return nil, fmt.Errorf("search transfers: %w", err)
		}
	case ModeAssets:
		res.Best, err = s.store.AssetByID(ctx, best, models.ScopeActive)
		if err != nil {
			return nil, fmt.Errorf("search asset detail: %w", err)
		}
	}
	return res, nil
}
