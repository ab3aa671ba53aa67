package main

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/crucial707/trakset/internal/middleware"
	"github.com/crucial707/trakset/internal/models"
	"github.com/crucial707/trakset/internal/transfer"
)

// notices shown on the about and search pages after a redirect.
var notices = map[string]string{
	transfer.ReasonNotFound:    "We could not find that asset. Check the QR code or ask a member of staff.",
	transfer.ReasonSoftDeleted: "That asset has been removed and is waiting to be restored.",
	"transfer_not_found":       "That transfer does not exist or has already been cancelled.",
	"not_staff":                "Search is only available to staff.",
}

type scanOutcome struct {
	transfer.Outcome
	CancelWindowMinutes int `json:"cancel_window_minutes"`
}

// notFoundRedirect sends the user where the API hint says after a failed lookup.
func notFoundRedirect(w http.ResponseWriter, r *http.Request, data []byte) {
	var hint struct {
		Reason   string `json:"reason"`
		Redirect string `json:"redirect"`
	}
	_ = json.Unmarshal(data, &hint)
	notice := hint.Reason
	if notice == "" {
		notice = "transfer_not_found"
	}
	target := "/about"
	if hint.Redirect == "search" {
		target = "/search"
	}
	http.Redirect(w, r, target+"?notice="+url.QueryEscape(notice), http.StatusFound)
}

func aboutPage(w http.ResponseWriter, r *http.Request) {
	renderTemplate(w, r, http.StatusOK, "about.html", map[string]any{
		"Notice": notices[r.URL.Query().Get("notice")],
	})
}

// ====== Scan landing ======

// scanLanding is the page a QR code points at. Visiting it takes custody
// of the asset, or offers cancellation when the visitor just received it.
func scanLanding(apiBase string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := uuid.Parse(chi.URLParam(r, "uuid"))
		if err != nil {
			http.Redirect(w, r, "/about?notice="+transfer.ReasonNotFound, http.StatusFound)
			return
		}
		tok := tokenFrom(r)

		data, status, err := apiPost(apiBase, "/transfers/scan/"+uid.String(), tok, nil)
		if err != nil {
			renderError(w, r, http.StatusBadGateway, "Cannot reach API: "+err.Error())
			return
		}
		switch status {
		case http.StatusOK, http.StatusCreated:
		case http.StatusUnauthorized:
			clearAuthAndRedirectToLogin(w, r)
			return
		case http.StatusNotFound:
			notFoundRedirect(w, r, data)
			return
		default:
			renderError(w, r, status, apiErrorMessage(data))
			return
		}

		var out scanOutcome
		if err := json.Unmarshal(data, &out); err != nil || out.Transfer == nil {
			renderError(w, r, http.StatusBadGateway, "Invalid scan response")
			return
		}

		if out.State == transfer.StatePending {
			renderTemplate(w, r, http.StatusOK, "pending.html", map[string]any{
				"Outcome": out,
				"Window":  out.CancelWindowMinutes,
			})
			return
		}

		// Prefill the note box with any draft left from an earlier visit.
		var draft models.AssetTransferNote
		if data, status, err := apiGet(apiBase, "/transfers/scan/"+uid.String()+"/note", tok); err == nil && status == http.StatusOK {
			_ = json.Unmarshal(data, &draft)
		}

		renderTemplate(w, r, http.StatusOK, "transfer.html", map[string]any{
			"Outcome": out,
			"UID":     uid.String(),
			"Text":    draft.Text,
			"Window":  out.CancelWindowMinutes,
		})
	}
}

func submitNotes(apiBase string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := uuid.Parse(chi.URLParam(r, "uuid"))
		if err != nil {
			http.Redirect(w, r, "/about?notice="+transfer.ReasonNotFound, http.StatusFound)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		text := r.FormValue("text")

		body, _ := json.Marshal(map[string]string{"text": text})
		data, status, err := apiPost(apiBase, "/transfers/scan/"+uid.String()+"/note", tokenFrom(r), body)
		if err != nil {
			renderError(w, r, http.StatusBadGateway, "Cannot reach API: "+err.Error())
			return
		}
		switch status {
		case http.StatusNoContent, http.StatusOK:
			renderTemplate(w, r, http.StatusOK, "notes_added.html", map[string]any{"UID": uid.String()})
		case http.StatusUnauthorized:
			clearAuthAndRedirectToLogin(w, r)
		case http.StatusNotFound:
			notFoundRedirect(w, r, data)
		case http.StatusBadRequest:
			renderTemplate(w, r, http.StatusBadRequest, "transfer.html", map[string]any{
				"UID":   uid.String(),
				"Text":  text,
				"Error": "Notes must be at most 10000 characters.",
			})
		default:
			renderError(w, r, status, apiErrorMessage(data))
		}
	}
}

// ====== Transfer detail and cancel ======

// fetchTransfer loads a transfer for the page handlers. It writes the
// response itself and returns nil when the page cannot be shown.
func fetchTransfer(w http.ResponseWriter, r *http.Request, apiBase string) *models.AssetTransfer {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Redirect(w, r, "/about?notice=transfer_not_found", http.StatusFound)
		return nil
	}
	data, status, err := apiGet(apiBase, "/transfers/"+id.String(), tokenFrom(r))
	if err != nil {
		renderError(w, r, http.StatusBadGateway, "Cannot reach API: "+err.Error())
		return nil
	}
	switch status {
	case http.StatusOK:
	case http.StatusUnauthorized:
		clearAuthAndRedirectToLogin(w, r)
		return nil
	case http.StatusNotFound:
		notFoundRedirect(w, r, data)
		return nil
	default:
		renderError(w, r, status, apiErrorMessage(data))
		return nil
	}
	var t models.AssetTransfer
	if err := json.Unmarshal(data, &t); err != nil {
		renderError(w, r, http.StatusBadGateway, "Invalid transfer response")
		return nil
	}
	return &t
}

func transferDetail(apiBase string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t := fetchTransfer(w, r, apiBase)
		if t == nil {
			return
		}
		renderTemplate(w, r, http.StatusOK, "transfer_detail.html", map[string]any{"Transfer": t})
	}
}

func cancelConfirm(apiBase string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t := fetchTransfer(w, r, apiBase)
		if t == nil {
			return
		}
		user, _ := middleware.UserFrom(r.Context())
		if !t.IsTo(user.ID) {
			renderError(w, r, http.StatusForbidden, transfer.ErrNotRecipient.Error())
			return
		}
		renderTemplate(w, r, http.StatusOK, "cancel_confirm.html", map[string]any{"Transfer": t})
	}
}

func cancelSubmit(apiBase string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			http.Redirect(w, r, "/about?notice=transfer_not_found", http.StatusFound)
			return
		}
		data, status, err := apiPost(apiBase, "/transfers/"+id.String()+"/cancel", tokenFrom(r), nil)
		if err != nil {
			renderError(w, r, http.StatusBadGateway, "Cannot reach API: "+err.Error())
			return
		}
		switch status {
		case http.StatusOK:
		case http.StatusUnauthorized:
			clearAuthAndRedirectToLogin(w, r)
			return
		case http.StatusNotFound:
			notFoundRedirect(w, r, data)
			return
		default:
			renderError(w, r, status, apiErrorMessage(data))
			return
		}

		var c transfer.Cancellation
		if err := json.Unmarshal(data, &c); err != nil {
			renderError(w, r, http.StatusBadGateway, "Invalid cancel response")
			return
		}
		renderTemplate(w, r, http.StatusOK, "cancel_done.html", map[string]any{"Cancellation": c})
	}
}

// ====== Search ======

func searchPage(apiBase string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if user, _ := middleware.UserFrom(r.Context()); !user.IsStaff() {
			http.Redirect(w, r, "/about?notice=not_staff", http.StatusFound)
			return
		}
		q := r.URL.Query()
		mode := q.Get("mode")
		if mode != string(transfer.ModeAssets) {
			mode = string(transfer.ModeTransfers)
		}
		payload := map[string]any{
			"Notice":  notices[q.Get("notice")],
			"Query":   q.Get("q"),
			"Mode":    mode,
			"Deleted": q.Get("deleted") == "true",
		}
		if !q.Has("q") {
			renderTemplate(w, r, http.StatusOK, "search.html", payload)
			return
		}

		params := url.Values{"q": {q.Get("q")}, "mode": {mode}}
		if q.Get("deleted") == "true" {
			params.Set("deleted", "true")
		}
		data, status, err := apiGet(apiBase, "/search?"+params.Encode(), tokenFrom(r))
		if err != nil {
			payload["Error"] = "Cannot reach API: " + err.Error()
			renderTemplate(w, r, http.StatusBadGateway, "search.html", payload)
			return
		}
		switch status {
		case http.StatusOK:
		case http.StatusUnauthorized:
			clearAuthAndRedirectToLogin(w, r)
			return
		default:
			payload["Error"] = apiErrorMessage(data)
			renderTemplate(w, r, status, "search.html", payload)
			return
		}

		var res transfer.SearchResult
		if err := json.Unmarshal(data, &res); err != nil {
			payload["Error"] = "Invalid search response"
			renderTemplate(w, r, http.StatusBadGateway, "search.html", payload)
			return
		}
		payload["Result"] = res
		payload["Searched"] = true
		renderTemplate(w, r, http.StatusOK, "search.html", payload)
	}
}
