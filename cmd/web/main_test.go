package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/crucial707/trakset/internal/models"
	"github.com/crucial707/trakset/internal/transfer"
)

var (
	assetUID   = uuid.MustParse("6f1c2b8e-8d3a-4b7e-9a51-0c8f3d2e1a47")
	transferID = uuid.MustParse("a3d9e0f2-1b4c-4e8a-b7d6-5c2f9e8a1b03")
)

// fakeAPI answers the handful of API routes the pages call.
type fakeAPI struct {
	scanStatus int
	scanBody   any
	noteStatus int
	gotNote    string
	cancelled  bool
	searchURL  string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	if r.URL.Path == "/auth/login" {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["password"] != "secret123" {
			writeJSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		writeJSON(http.StatusOK, map[string]string{"token": "user-token"})
		return
	}

	var user models.User
	switch r.Header.Get("Authorization") {
	case "Bearer user-token":
		user = models.User{ID: 2, Username: "alice", Role: models.RoleUser}
	case "Bearer staff-token":
		user = models.User{ID: 5, Username: "sam", Role: models.RoleStaff}
	default:
		writeJSON(http.StatusUnauthorized, map[string]string{"error": "missing token"})
		return
	}

	scanPath := "/transfers/scan/" + assetUID.String()
	switch {
	case r.URL.Path == "/auth/me":
		writeJSON(http.StatusOK, user)
	case r.URL.Path == scanPath && r.Method == http.MethodPost:
		writeJSON(f.scanStatus, f.scanBody)
	case r.URL.Path == scanPath+"/note" && r.Method == http.MethodGet:
		writeJSON(http.StatusOK, models.AssetTransferNote{Text: "draft text"})
	case r.URL.Path == scanPath+"/note" && r.Method == http.MethodPost:
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.gotNote = in["text"]
		w.WriteHeader(f.noteStatus)
	case r.URL.Path == "/transfers/"+transferID.String():
		to := int64(2)
		writeJSON(http.StatusOK, models.AssetTransfer{
			ID: transferID, ToUserID: &to, AssetName: "Laptop-7", FromUsername: "bob", ToUsername: "alice",
			Notes: []models.AssetTransferNote{{ID: 1, Text: "scratched lid"}},
		})
	case r.URL.Path == "/transfers/"+transferID.String()+"/cancel":
		f.cancelled = true
		writeJSON(http.StatusOK, transfer.Cancellation{
			Asset:        models.Asset{Name: "Laptop-7", HolderUsername: "bob"},
			TransferID:   transferID,
			FromUsername: "bob",
		})
	case r.URL.Path == "/search":
		f.searchURL = r.URL.RawQuery
		writeJSON(http.StatusOK, transfer.SearchResult{
			Matches:   []models.AssetMatch{{Asset: models.Asset{Name: "Laptop-7", HolderUsername: "alice"}, Similarity: 0.8}},
			Transfers: []models.AssetTransfer{{ID: transferID, FromUsername: "bob", ToUsername: "alice"}},
		})
	default:
		http.NotFound(w, r)
	}
}

// newWeb starts the web router against api and returns a client that does
// not follow redirects.
func newWeb(t *testing.T, api http.Handler) (*httptest.Server, *http.Client) {
	t.Helper()
	apiSrv := httptest.NewServer(api)
	t.Cleanup(apiSrv.Close)
	web := httptest.NewServer(newRouter(apiSrv.URL))
	t.Cleanup(web.Close)

	client := &http.Client{
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return web, client
}

func get(t *testing.T, client *http.Client, rawURL, token string) (*http.Response, string) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, rawURL, nil)
	return do(t, client, req, token)
}

func postForm(t *testing.T, client *http.Client, rawURL, token string, form url.Values) (*http.Response, string) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(t, client, req, token)
}

func do(t *testing.T, client *http.Client, req *http.Request, token string) (*http.Response, string) {
	t.Helper()
	if token != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s: %v", req.URL, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestProtectedPageRedirectsToLogin(t *testing.T) {
	web, client := newWeb(t, &fakeAPI{})

	resp, _ := get(t, client, web.URL+"/assets/transfer/"+assetUID.String(), "")
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	want := "/login?next=" + url.QueryEscape("/assets/transfer/"+assetUID.String())
	if loc := resp.Header.Get("Location"); loc != want {
		t.Errorf("location: got %q want %q", loc, want)
	}
}

func TestExpiredTokenClearsCookie(t *testing.T) {
	web, client := newWeb(t, &fakeAPI{})

	resp, _ := get(t, client, web.URL+"/search", "stale-token")
	if resp.StatusCode != http.StatusFound || !strings.HasPrefix(resp.Header.Get("Location"), "/login") {
		t.Fatalf("expected redirect to login, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	var cleared bool
	for _, c := range resp.Cookies() {
		if c.Name == cookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("token cookie should be cleared")
	}
}

func TestLoginSetsCookie(t *testing.T) {
	web, client := newWeb(t, &fakeAPI{})

	resp, _ := postForm(t, client, web.URL+"/login", "", url.Values{
		"username": {"alice"}, "password": {"secret123"}, "next": {"/assets/transfer/" + assetUID.String()},
	})
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/assets/transfer/"+assetUID.String() {
		t.Errorf("location: got %q", loc)
	}
	var token string
	for _, c := range resp.Cookies() {
		if c.Name == cookieName {
			token = c.Value
			if !c.HttpOnly {
				t.Error("cookie should be HttpOnly")
			}
		}
	}
	if token != "user-token" {
		t.Errorf("cookie: got %q", token)
	}
}

func TestLoginFailureShowsError(t *testing.T) {
	web, client := newWeb(t, &fakeAPI{})

	resp, body := postForm(t, client, web.URL+"/login", "", url.Values{"username": {"alice"}, "password": {"nope"}})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "invalid credentials") {
		t.Errorf("expected API error in page, got: %s", body)
	}
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"":                    "/",
		"/search?q=laptop":    "/search?q=laptop",
		"https://evil.test/":  "/",
		"//evil.test/":        "/",
		"/\\evil.test":        "/",
		"assets/transfer/abc": "/",
	}
	for in, want := range tests {
		if got := safeNext(in); got != want {
			t.Errorf("safeNext(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestScanLanding_Created(t *testing.T) {
	from, to := int64(3), int64(2)
	api := &fakeAPI{
		scanStatus: http.StatusCreated,
		scanBody: map[string]any{
			"state":                 "created",
			"asset_name":            "Laptop-7",
			"asset_location":        "Head office",
			"asset_id":              assetUID,
			"cancel_window_minutes": 60,
			"transfer": models.AssetTransfer{
				ID: transferID, FromUserID: &from, ToUserID: &to, FromUsername: "bob", CreatedAt: time.Now(),
			},
		},
	}
	web, client := newWeb(t, api)

	resp, body := get(t, client, web.URL+"/assets/transfer/"+assetUID.String(), "user-token")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d body %s", resp.StatusCode, body)
	}
	for _, want := range []string{
		"You now hold <strong>Laptop-7</strong>",
		"Head office",
		"draft text",
		`action="/assets/transfer/` + assetUID.String() + `/notes"`,
		"/transfers/" + transferID.String() + "/cancel",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if csp := resp.Header.Get("Content-Security-Policy"); !strings.Contains(csp, "form-action 'self'") {
		t.Errorf("unexpected CSP: %q", csp)
	}
}

func TestScanLanding_Pending(t *testing.T) {
	api := &fakeAPI{
		scanStatus: http.StatusOK,
		scanBody: map[string]any{
			"state":                 "pending",
			"asset_name":            "Laptop-7",
			"asset_id":              assetUID,
			"cancel_window_minutes": 60,
			"transfer":              models.AssetTransfer{ID: transferID, FromUsername: "bob"},
		},
	}
	web, client := newWeb(t, api)

	_, body := get(t, client, web.URL+"/assets/transfer/"+assetUID.String(), "user-token")
	if !strings.Contains(body, "You already received") || !strings.Contains(body, "within 60 minutes") {
		t.Errorf("expected pending warning, got: %s", body)
	}
	if !strings.Contains(body, `<form method="post" action="/transfers/`+transferID.String()+`/cancel">`) {
		t.Errorf("expected cancel button, got: %s", body)
	}
	if strings.Contains(body, "<textarea") {
		t.Error("pending page must not offer the note form")
	}
}

func TestScanLanding_NotFoundRedirects(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		hint     map[string]string
		location string
	}{
		{"user goes to about", "user-token", map[string]string{"reason": "not_found", "redirect": "about"}, "/about?notice=not_found"},
		{"staff goes to search", "staff-token", map[string]string{"reason": "soft_deleted", "redirect": "search"}, "/search?notice=soft_deleted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			web, client := newWeb(t, &fakeAPI{scanStatus: http.StatusNotFound, scanBody: tt.hint})

			resp, _ := get(t, client, web.URL+"/assets/transfer/"+assetUID.String(), tt.token)
			if resp.StatusCode != http.StatusFound {
				t.Fatalf("status: got %d", resp.StatusCode)
			}
			if loc := resp.Header.Get("Location"); loc != tt.location {
				t.Errorf("location: got %q want %q", loc, tt.location)
			}
		})
	}
}

func TestScanLanding_BadUUID(t *testing.T) {
	web, client := newWeb(t, &fakeAPI{})

	resp, _ := get(t, client, web.URL+"/assets/transfer/not-a-uuid", "user-token")
	if loc := resp.Header.Get("Location"); loc != "/about?notice=not_found" {
		t.Errorf("location: got %q", loc)
	}
}

func TestSubmitNotes(t *testing.T) {
	api := &fakeAPI{noteStatus: http.StatusNoContent}
	web, client := newWeb(t, api)

	resp, body := postForm(t, client, web.URL+"/assets/transfer/"+assetUID.String()+"/notes", "user-token",
		url.Values{"text": {"battery is weak"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	if api.gotNote != "battery is weak" {
		t.Errorf("note sent: got %q", api.gotNote)
	}
	if !strings.Contains(body, "Your notes have been added") {
		t.Errorf("expected notes added page, got: %s", body)
	}
}

func TestSubmitNotes_TooLong(t *testing.T) {
	web, client := newWeb(t, &fakeAPI{noteStatus: http.StatusBadRequest})

	resp, body := postForm(t, client, web.URL+"/assets/transfer/"+assetUID.String()+"/notes", "user-token",
		url.Values{"text": {"kept text"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "at most 10000 characters") || !strings.Contains(body, "kept text") {
		t.Errorf("expected form with error and text, got: %s", body)
	}
}

func TestCancelConfirmAndSubmit(t *testing.T) {
	api := &fakeAPI{}
	web, client := newWeb(t, api)

	resp, body := get(t, client, web.URL+"/transfers/"+transferID.String()+"/cancel", "user-token")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Cancel transfer?") {
		t.Fatalf("confirm page: %d %s", resp.StatusCode, body)
	}
	if api.cancelled {
		t.Fatal("viewing the confirm page must not cancel")
	}

	resp, body = postForm(t, client, web.URL+"/transfers/"+transferID.String()+"/cancel", "user-token", url.Values{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	if !api.cancelled {
		t.Error("expected the API cancel to be called")
	}
	if !strings.Contains(body, "is back with bob") {
		t.Errorf("expected success page, got: %s", body)
	}
}

func TestCancelConfirm_NotRecipient(t *testing.T) {
	web, client := newWeb(t, &fakeAPI{})

	resp, _ := get(t, client, web.URL+"/transfers/"+transferID.String()+"/cancel", "staff-token")
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status: got %d", resp.StatusCode)
	}
}

func TestTransferDetail(t *testing.T) {
	web, client := newWeb(t, &fakeAPI{})

	_, body := get(t, client, web.URL+"/transfers/"+transferID.String(), "user-token")
	if !strings.Contains(body, "Transfer of Laptop-7") || !strings.Contains(body, "scratched lid") {
		t.Errorf("unexpected detail page: %s", body)
	}
}

func TestSearchPage(t *testing.T) {
	api := &fakeAPI{}
	web, client := newWeb(t, api)

	resp, _ := get(t, client, web.URL+"/search?q=laptop", "user-token")
	if loc := resp.Header.Get("Location"); loc != "/about?notice=not_staff" {
		t.Errorf("non-staff should be redirected, got %d %q", resp.StatusCode, loc)
	}

	resp, body := get(t, client, web.URL+"/search?q=laptop&deleted=true", "staff-token")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	vals, _ := url.ParseQuery(api.searchURL)
	if vals.Get("q") != "laptop" || vals.Get("mode") != "transfers" || vals.Get("deleted") != "true" {
		t.Errorf("API query: got %q", api.searchURL)
	}
	if !strings.Contains(body, "Laptop-7") || !strings.Contains(body, "0.80") || !strings.Contains(body, "/transfers/"+transferID.String()) {
		t.Errorf("unexpected search page: %s", body)
	}
}

func TestAboutNotice(t *testing.T) {
	web, client := newWeb(t, &fakeAPI{})

	_, body := get(t, client, web.URL+"/about?notice=soft_deleted", "")
	if !strings.Contains(body, "waiting to be restored") {
		t.Errorf("expected notice, got: %s", body)
	}
}
