package transfer

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crucial707/trakset/internal/models"
)

// memState is everything the fake store holds; InTx works on a copy and
// only swaps it in when fn succeeds.
type memState struct {
	users     map[int64]models.User
	assets    map[int64]models.Asset
	subs      map[int64][]int64
	transfers []models.AssetTransfer
	notes     []models.AssetTransferNote
	audit     []models.AuditEntry
	nextNote  int64
}

func (s *memState) clone() *memState {
	c := &memState{
		users:     make(map[int64]models.User, len(s.users)),
		assets:    make(map[int64]models.Asset, len(s.assets)),
		subs:      make(map[int64][]int64, len(s.subs)),
		transfers: append([]models.AssetTransfer(nil), s.transfers...),
		notes:     append([]models.AssetTransferNote(nil), s.notes...),
		audit:     append([]models.AuditEntry(nil), s.audit...),
		nextNote:  s.nextNote,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.assets {
		c.assets[k] = v
	}
	for k, v := range s.subs {
		c.subs[k] = append([]int64(nil), v...)
	}
	return c
}

type memStore struct {
	mu    sync.Mutex
	state *memState
	now   func() time.Time

	// failOn makes the named Tx method return errStore.
	failOn string
}

var errStore = errors.New("store unavailable")

func newMemStore(now func() time.Time) *memStore {
	return &memStore{
		state: &memState{
			users:  map[int64]models.User{},
			assets: map[int64]models.Asset{},
			subs:   map[int64][]int64{},
		},
		now: now,
	}
}

func (m *memStore) addUser(id int64, username, role string) models.User {
	u := models.User{ID: id, Username: username, Email: username + "@example.com", Role: role}
	m.state.users[id] = u
	return u
}

func (m *memStore) addAsset(id int64, name string, holder int64, location string) models.Asset {
	a := models.Asset{
		ID:              id,
		UniqueID:        uuid.New(),
		Name:            name,
		CurrentHolderID: holder,
	}
	if location != "" {
		lid := id
		a.LocationID = &lid
		a.LocationName = location
	}
	m.state.assets[id] = a
	return a
}

func (m *memStore) asset(id int64) models.Asset {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.assets[id]
}

func (m *memStore) transfers() []models.AssetTransfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AssetTransfer(nil), m.state.transfers...)
}

func (m *memStore) notesFor(id uuid.UUID) []models.AssetTransferNote {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AssetTransferNote
	for _, n := range m.state.notes {
		if n.TransferID != nil && *n.TransferID == id {
			out = append(out, n)
		}
	}
	return out
}

func (m *memStore) drafts() []models.AssetTransferNote {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AssetTransferNote
	for _, n := range m.state.notes {
		if n.TransferID == nil {
			out = append(out, n)
		}
	}
	return out
}

func inScope(d models.SoftDelete, scope models.Scope) bool {
	return scope == models.ScopeAll || !d.IsDeleted
}

func (s *memState) decorate(a models.Asset) *models.Asset {
	if u, ok := s.users[a.CurrentHolderID]; ok {
		a.HolderUsername = u.Username
	}
	a.Subscribers = append([]int64(nil), s.subs[a.ID]...)
	return &a
}

func (s *memState) decorateTransfer(t models.AssetTransfer) *models.AssetTransfer {
	if t.FromUserID != nil {
		t.FromUsername = s.users[*t.FromUserID].Username
	}
	if t.ToUserID != nil {
		t.ToUsername = s.users[*t.ToUserID].Username
	}
	if t.AssetID != nil {
		a := s.assets[*t.AssetID]
		t.AssetName = a.Name
		t.AssetUID = &a.UniqueID
	}
	t.Notes = nil
	for _, n := range s.notes {
		if n.TransferID != nil && *n.TransferID == t.ID {
			t.Notes = append(t.Notes, n)
		}
	}
	return &t
}

// latest returns the newest transfer of assetID matching keep. Later
// inserts win ties on created_at.
func (s *memState) latest(assetID int64, keep func(models.AssetTransfer) bool) *models.AssetTransfer {
	var best *models.AssetTransfer
	for i := range s.transfers {
		t := s.transfers[i]
		if t.AssetID == nil || *t.AssetID != assetID || !keep(t) {
			continue
		}
		if best == nil || !t.CreatedAt.Before(best.CreatedAt) {
			best = &s.transfers[i]
		}
	}
	if best == nil {
		return nil
	}
	return s.decorateTransfer(*best)
}

// ===== Store =====

func (m *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.state.clone()
	if err := fn(&memTx{m: m, s: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *memStore) AssetByUID(ctx context.Context, uid uuid.UUID, scope models.Scope) (*models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.state.assets {
		if a.UniqueID == uid && inScope(a.SoftDelete, scope) {
			return m.state.decorate(a), nil
		}
	}
	return nil, nil
}

func (m *memStore) AssetByID(ctx context.Context, id int64, scope models.Scope) (*models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.state.assets[id]
	if !ok || !inScope(a.SoftDelete, scope) {
		return nil, nil
	}
	return m.state.decorate(a), nil
}

func (m *memStore) TransferByID(ctx context.Context, id uuid.UUID, scope models.Scope) (*models.AssetTransfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.state.transfers {
		if t.ID == id && inScope(t.SoftDelete, scope) {
			return m.state.decorateTransfer(t), nil
		}
	}
	return nil, nil
}

func (m *memStore) TransfersForAsset(ctx context.Context, assetID int64, scope models.Scope) ([]models.AssetTransfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AssetTransfer
	for _, t := range m.state.transfers {
		if t.AssetID != nil && *t.AssetID == assetID && inScope(t.SoftDelete, scope) {
			out = append(out, *m.state.decorateTransfer(t))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) LatestNoteForAsset(ctx context.Context, assetID int64) (*models.AssetTransferNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owned := map[uuid.UUID]bool{}
	for _, t := range m.state.transfers {
		if t.AssetID != nil && *t.AssetID == assetID {
			owned[t.ID] = true
		}
	}
	var best *models.AssetTransferNote
	for i, n := range m.state.notes {
		if n.TransferID == nil || !owned[*n.TransferID] {
			continue
		}
		if best == nil || n.ID > best.ID {
			best = &m.state.notes[i]
		}
	}
	if best == nil {
		return nil, nil
	}
	n := *best
	return &n, nil
}

func (m *memStore) CreateDraftNote(ctx context.Context, text string) (*models.AssetTransferNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.nextNote++
	n := models.AssetTransferNote{ID: m.state.nextNote, Text: text, CreatedAt: m.now()}
	m.state.notes = append(m.state.notes, n)
	return &n, nil
}

func (m *memStore) SearchAssets(ctx context.Context, term string, threshold float64) ([]models.AssetMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AssetMatch
	for _, a := range m.state.assets {
		if a.IsDeleted {
			continue
		}
		// Crude stand-in for similarity(): exact name beats substring.
		var score float64
		switch {
		case strings.EqualFold(a.Name, term):
			score = 1
		case strings.Contains(strings.ToLower(a.Name), strings.ToLower(term)):
			score = 0.5
		}
		if score > threshold {
			out = append(out, models.AssetMatch{Asset: *m.state.decorate(a), Similarity: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ===== Tx =====

type memTx struct {
	m *memStore
	s *memState
}

func (t *memTx) fail(op string) error {
	if t.m.failOn == op {
		return errStore
	}
	return nil
}

func (t *memTx) LockAssetByUID(ctx context.Context, uid uuid.UUID) (*models.Asset, error) {
	if err := t.fail("LockAssetByUID"); err != nil {
		return nil, err
	}
	for _, a := range t.s.assets {
		if a.UniqueID == uid && !a.IsDeleted {
			return t.s.decorate(a), nil
		}
	}
	return nil, nil
}

func (t *memTx) LockAssetByID(ctx context.Context, id int64) (*models.Asset, error) {
	a, ok := t.s.assets[id]
	if !ok {
		return nil, nil
	}
	return t.s.decorate(a), nil
}

func (t *memTx) LatestTransfer(ctx context.Context, assetID int64, scope models.Scope) (*models.AssetTransfer, error) {
	return t.s.latest(assetID, func(tr models.AssetTransfer) bool { return inScope(tr.SoftDelete, scope) }), nil
}

func (t *memTx) LockLatestTransferTo(ctx context.Context, assetID, userID int64) (*models.AssetTransfer, error) {
	return t.s.latest(assetID, func(tr models.AssetTransfer) bool { return !tr.IsDeleted && tr.IsTo(userID) }), nil
}

func (t *memTx) LockTransfer(ctx context.Context, id uuid.UUID) (*models.AssetTransfer, error) {
	for _, tr := range t.s.transfers {
		if tr.ID == id && !tr.IsDeleted {
			return t.s.decorateTransfer(tr), nil
		}
	}
	return nil, nil
}

func (t *memTx) InsertTransfer(ctx context.Context, tr *models.AssetTransfer) error {
	if err := t.fail("InsertTransfer"); err != nil {
		return err
	}
	row := *tr
	row.Notes = nil
	t.s.transfers = append(t.s.transfers, row)
	return nil
}

func (t *memTx) SoftDeleteTransfer(ctx context.Context, id uuid.UUID) error {
	if err := t.fail("SoftDeleteTransfer"); err != nil {
		return err
	}
	for i := range t.s.transfers {
		if t.s.transfers[i].ID == id {
			now := t.m.now()
			t.s.transfers[i].IsDeleted = true
			t.s.transfers[i].DeletedAt = &now
		}
	}
	return nil
}

func (t *memTx) TouchTransfer(ctx context.Context, id uuid.UUID) error {
	for i := range t.s.transfers {
		if t.s.transfers[i].ID == id {
			t.s.transfers[i].UpdatedAt = t.m.now()
		}
	}
	return nil
}

func (t *memTx) SetHolder(ctx context.Context, assetID, userID int64) error {
	if err := t.fail("SetHolder"); err != nil {
		return err
	}
	a := t.s.assets[assetID]
	a.CurrentHolderID = userID
	t.s.assets[assetID] = a
	return nil
}

func (t *memTx) CountNotes(ctx context.Context, transferID uuid.UUID) (int, error) {
	n := 0
	for _, note := range t.s.notes {
		if note.TransferID != nil && *note.TransferID == transferID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) AppendNote(ctx context.Context, transferID uuid.UUID, text string) error {
	t.s.nextNote++
	id := transferID
	t.s.notes = append(t.s.notes, models.AssetTransferNote{ID: t.s.nextNote, Text: text, TransferID: &id, CreatedAt: t.m.now()})
	return nil
}

func (t *memTx) HasSubscribers(ctx context.Context, assetID int64) (bool, error) {
	return len(t.s.subs[assetID]) > 0, nil
}

func (t *memTx) UserByID(ctx context.Context, id int64) (*models.User, error) {
	u, ok := t.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (t *memTx) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range t.s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

func (t *memTx) Audit(ctx context.Context, entry models.AuditEntry) error {
	t.s.audit = append(t.s.audit, entry)
	return nil
}

// ===== Notifier =====

type recordingNotifier struct {
	mu          sync.Mutex
	transfers   []uuid.UUID
	diagnostics []string
}

func (n *recordingNotifier) TransferCompleted(id uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transfers = append(n.transfers, id)
}

func (n *recordingNotifier) AdminDiagnostic(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.diagnostics = append(n.diagnostics, msg)
}
