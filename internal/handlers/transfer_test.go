package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/crucial707/trakset/internal/models"
	"github.com/crucial707/trakset/internal/transfer"
)

// stubWorkflow returns canned results and records the last call's arguments.
type stubWorkflow struct {
	outcome      *transfer.Outcome
	draft        *models.AssetTransferNote
	cancellation *transfer.Cancellation
	detail       *models.AssetTransfer
	result       *transfer.SearchResult
	err          error

	gotUID   uuid.UUID
	gotUser  models.User
	gotText  string
	gotQuery transfer.SearchQuery
}

func (s *stubWorkflow) Initiate(_ context.Context, uid uuid.UUID, user models.User) (*transfer.Outcome, error) {
	s.gotUID, s.gotUser = uid, user
	return s.outcome, s.err
}

func (s *stubWorkflow) PrepareNoteForm(_ context.Context, uid uuid.UUID, user models.User) (*models.AssetTransferNote, error) {
	s.gotUID, s.gotUser = uid, user
	return s.draft, s.err
}

func (s *stubWorkflow) SubmitNote(_ context.Context, uid uuid.UUID, user models.User, text string) error {
	s.gotUID, s.gotUser, s.gotText = uid, user, text
	return s.err
}

func (s *stubWorkflow) Cancel(_ context.Context, id uuid.UUID, user models.User) (*transfer.Cancellation, error) {
	s.gotUID, s.gotUser = id, user
	return s.cancellation, s.err
}

func (s *stubWorkflow) Transfer(_ context.Context, id uuid.UUID) (*models.AssetTransfer, error) {
	s.gotUID = id
	return s.detail, s.err
}

func (s *stubWorkflow) Search(_ context.Context, q transfer.SearchQuery) (*transfer.SearchResult, error) {
	s.gotQuery = q
	return s.result, s.err
}

var alice = models.User{ID: 2, Username: "alice", Role: models.RoleUser}

func scanRequest(method, suffix string, uid uuid.UUID, body []byte, user models.User) *http.Request {
	path := "/transfers/scan/" + uid.String() + suffix
	return asUser(requestWithChiURLParams(method, path, body, map[string]string{"uuid": uid.String()}), user)
}

func TestTransferHandler_Scan_Created(t *testing.T) {
	uid := uuid.New()
	tid := uuid.New()
	wf := &stubWorkflow{outcome: &transfer.Outcome{
		State:         transfer.StateCreated,
		AssetName:     "Laptop-7",
		AssetLocation: "Head office",
		AssetUID:      uid,
		Transfer:      &models.AssetTransfer{ID: tid},
		CancelWindow:  time.Hour,
	}}
	h := &TransferHandler{Workflow: wf}

	rr := httptest.NewRecorder()
	h.Scan(rr, scanRequest("POST", "", uid, nil, alice))

	if rr.Code != http.StatusCreated {
		t.Fatalf("Scan status: got %d, want 201", rr.Code)
	}
	if wf.gotUID != uid || wf.gotUser.ID != alice.ID {
		t.Errorf("workflow called with %v %+v", wf.gotUID, wf.gotUser)
	}
	var out struct {
		State     string `json:"state"`
		AssetName string `json:"asset_name"`
		Window    int    `json:"cancel_window_minutes"`
		Transfer  struct {
			ID uuid.UUID `json:"id"`
		} `json:"transfer"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.State != "created" || out.AssetName != "Laptop-7" || out.Window != 60 || out.Transfer.ID != tid {
		t.Errorf("unexpected outcome: %+v", out)
	}
}

func TestTransferHandler_Scan_Pending(t *testing.T) {
	uid := uuid.New()
	wf := &stubWorkflow{outcome: &transfer.Outcome{State: transfer.StatePending, AssetUID: uid, CancelWindow: 2 * time.Hour}}
	h := &TransferHandler{Workflow: wf}

	rr := httptest.NewRecorder()
	h.Scan(rr, scanRequest("POST", "", uid, nil, alice))

	if rr.Code != http.StatusOK {
		t.Errorf("Scan status: got %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"state":"pending"`) {
		t.Errorf("body: %s", rr.Body.String())
	}
}

func TestTransferHandler_Scan_InvalidUUID(t *testing.T) {
	h := &TransferHandler{Workflow: &stubWorkflow{}}

	req := asUser(requestWithChiURLParams("POST", "/transfers/scan/nope", nil, map[string]string{"uuid": "nope"}), alice)
	rr := httptest.NewRecorder()
	h.Scan(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Scan status: got %d, want 400", rr.Code)
	}
}

func TestTransferHandler_Scan_ResolutionFailure(t *testing.T) {
	tests := []struct {
		name     string
		user     models.User
		reason   string
		redirect string
	}{
		{"user, missing asset", alice, transfer.ReasonNotFound, "about"},
		{"staff, deleted asset", staff, transfer.ReasonSoftDeleted, "search"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uid := uuid.New()
			h := &TransferHandler{Workflow: &stubWorkflow{err: &transfer.ResolutionError{UID: uid, Reason: tt.reason}}}

			rr := httptest.NewRecorder()
			h.Scan(rr, scanRequest("POST", "", uid, nil, tt.user))

			if rr.Code != http.StatusNotFound {
				t.Fatalf("status: got %d, want 404", rr.Code)
			}
			var out map[string]string
			if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if out["reason"] != tt.reason || out["redirect"] != tt.redirect {
				t.Errorf("unexpected body: %+v", out)
			}
		})
	}
}

func TestTransferHandler_StoreFailureIsGeneric(t *testing.T) {
	uid := uuid.New()
	h := &TransferHandler{Workflow: &stubWorkflow{err: errors.New("connection reset by peer")}}

	rr := httptest.NewRecorder()
	h.Scan(rr, scanRequest("POST", "", uid, nil, alice))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "connection reset") {
		t.Errorf("internal detail leaked: %s", rr.Body.String())
	}
}

func TestTransferHandler_NoteForm(t *testing.T) {
	uid := uuid.New()
	wf := &stubWorkflow{draft: &models.AssetTransferNote{ID: 11, Text: "charger in the bag"}}
	h := &TransferHandler{Workflow: wf}

	rr := httptest.NewRecorder()
	h.NoteForm(rr, scanRequest("GET", "/note", uid, nil, alice))

	if rr.Code != http.StatusOK {
		t.Fatalf("NoteForm status: got %d, want 200", rr.Code)
	}
	var note models.AssetTransferNote
	if err := json.NewDecoder(rr.Body).Decode(&note); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if note.Text != "charger in the bag" || note.TransferID != nil {
		t.Errorf("unexpected draft: %+v", note)
	}
}

func TestTransferHandler_SubmitNote(t *testing.T) {
	uid := uuid.New()
	wf := &stubWorkflow{}
	h := &TransferHandler{Workflow: wf}

	body, _ := json.Marshal(map[string]string{"text": "screen cracked"})
	rr := httptest.NewRecorder()
	h.SubmitNote(rr, scanRequest("POST", "/note", uid, body, alice))

	if rr.Code != http.StatusNoContent {
		t.Errorf("SubmitNote status: got %d, want 204", rr.Code)
	}
	if wf.gotText != "screen cracked" || wf.gotUID != uid {
		t.Errorf("workflow called with %v %q", wf.gotUID, wf.gotText)
	}
}

func TestTransferHandler_SubmitNote_TooLong(t *testing.T) {
	wf := &stubWorkflow{}
	h := &TransferHandler{Workflow: wf}

	body, _ := json.Marshal(map[string]string{"text": strings.Repeat("é", 10001)})
	rr := httptest.NewRecorder()
	h.SubmitNote(rr, scanRequest("POST", "/note", uuid.New(), body, alice))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("SubmitNote status: got %d, want 400", rr.Code)
	}
	if wf.gotText != "" {
		t.Error("workflow must not be called for oversized notes")
	}
}

func TestTransferHandler_SubmitNote_AtLimit(t *testing.T) {
	wf := &stubWorkflow{}
	h := &TransferHandler{Workflow: wf}

	body, _ := json.Marshal(map[string]string{"text": strings.Repeat("é", 10000)})
	rr := httptest.NewRecorder()
	h.SubmitNote(rr, scanRequest("POST", "/note", uuid.New(), body, alice))

	if rr.Code != http.StatusNoContent {
		t.Errorf("SubmitNote status: got %d, want 204", rr.Code)
	}
}

func TestTransferHandler_SubmitNote_NoActiveTransfer(t *testing.T) {
	h := &TransferHandler{Workflow: &stubWorkflow{err: transfer.ErrNoActiveTransfer}}

	body, _ := json.Marshal(map[string]string{"text": "hello"})
	rr := httptest.NewRecorder()
	h.SubmitNote(rr, scanRequest("POST", "/note", uuid.New(), body, alice))

	if rr.Code != http.StatusConflict {
		t.Errorf("SubmitNote status: got %d, want 409", rr.Code)
	}
}

func transferRequest(method, suffix string, id uuid.UUID, user models.User) *http.Request {
	path := "/transfers/" + id.String() + suffix
	return asUser(requestWithChiURLParams(method, path, nil, map[string]string{"id": id.String()}), user)
}

func TestTransferHandler_Cancel(t *testing.T) {
	id := uuid.New()
	wf := &stubWorkflow{cancellation: &transfer.Cancellation{
		Asset:        models.Asset{ID: 10, Name: "Laptop-7"},
		TransferID:   id,
		FromUsername: "bob",
	}}
	h := &TransferHandler{Workflow: wf}

	rr := httptest.NewRecorder()
	h.Cancel(rr, transferRequest("POST", "/cancel", id, alice))

	if rr.Code != http.StatusOK {
		t.Fatalf("Cancel status: got %d, want 200", rr.Code)
	}
	var out struct {
		TransferID uuid.UUID `json:"transfer_id"`
		From       string    `json:"from_user"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.TransferID != id || out.From != "bob" {
		t.Errorf("unexpected cancellation: %+v", out)
	}
}

func TestTransferHandler_Cancel_Errors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{transfer.ErrTransferNotFound, http.StatusNotFound},
		{transfer.ErrNotRecipient, http.StatusForbidden},
		{transfer.ErrSuperseded, http.StatusConflict},
	}
	for _, tt := range tests {
		h := &TransferHandler{Workflow: &stubWorkflow{err: tt.err}}
		rr := httptest.NewRecorder()
		h.Cancel(rr, transferRequest("POST", "/cancel", uuid.New(), alice))
		if rr.Code != tt.want {
			t.Errorf("%v: got %d, want %d", tt.err, rr.Code, tt.want)
		}
	}
}

func TestTransferHandler_GetTransfer_NotFoundRedirectsToAbout(t *testing.T) {
	h := &TransferHandler{Workflow: &stubWorkflow{err: transfer.ErrTransferNotFound}}

	rr := httptest.NewRecorder()
	h.GetTransfer(rr, transferRequest("GET", "", uuid.New(), staff))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("GetTransfer status: got %d, want 404", rr.Code)
	}
	var out map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out["redirect"] != "about" {
		t.Errorf("redirect: got %q", out["redirect"])
	}
}

func TestTransferHandler_Search(t *testing.T) {
	wf := &stubWorkflow{result: &transfer.SearchResult{
		Matches: []models.AssetMatch{{Asset: models.Asset{ID: 10, Name: "Laptop-7"}, Similarity: 0.8}},
	}}
	h := &TransferHandler{Workflow: wf}

	req := asUser(httptest.NewRequest("GET", "/search?q=laptop&mode=transfers&deleted=true", nil), staff)
	rr := httptest.NewRecorder()
	h.Search(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Search status: got %d, want 200", rr.Code)
	}
	want := transfer.SearchQuery{Term: "laptop", Mode: transfer.ModeTransfers, IncludeDeleted: true}
	if wf.gotQuery != want {
		t.Errorf("query: got %+v, want %+v", wf.gotQuery, want)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte(`"similarity":0.8`)) {
		t.Errorf("body: %s", rr.Body.String())
	}
}

func TestTransferHandler_Search_Empty(t *testing.T) {
	h := &TransferHandler{Workflow: &stubWorkflow{err: transfer.ErrEmptySearch}}

	req := asUser(httptest.NewRequest("GET", "/search?q=", nil), staff)
	rr := httptest.NewRecorder()
	h.Search(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Search status: got %d, want 400", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "please enter an asset name to search") {
		t.Errorf("body: %s", rr.Body.String())
	}
}
