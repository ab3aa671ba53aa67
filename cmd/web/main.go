package main

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/crucial707/trakset/internal/middleware"
	"github.com/crucial707/trakset/internal/models"
)

//go:embed templates
var templatesFS embed.FS

const (
	cookieName  = "trakset_token"
	defaultPort = "3000"
	defaultAPI  = "http://localhost:8080"
	envWebPort  = "TRAKSET_WEB_PORT"
	envAPIURL   = "TRAKSET_API_URL"
)

var apiClient = &http.Client{Timeout: 15 * time.Second}

func main() {
	_ = godotenv.Load()
	port := getEnv(envWebPort, defaultPort)
	apiBase := strings.TrimRight(getEnv(envAPIURL, defaultAPI), "/")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           newRouter(apiBase),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("web UI running", "addr", "http://localhost:"+port, "api", apiBase)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("web server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "err", err)
	}
}

func newRouter(apiBase string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer(slog.Default()))
	r.Use(middleware.RequestLog(slog.Default()))
	r.Use(middleware.SecurityHeaders(middleware.CSPPages, false))

	// Health (no auth, no templates)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	// Public
	r.Get("/login", loginForm)
	r.Post("/login", loginSubmit(apiBase))
	r.Get("/logout", logout)
	r.Get("/about", aboutPage)

	// Protected
	r.Group(func(r chi.Router) {
		r.Use(requireAuth(apiBase))
		r.Get("/", home)
		r.Get("/assets/transfer/{uuid}", scanLanding(apiBase))
		r.Post("/assets/transfer/{uuid}/notes", submitNotes(apiBase))
		r.Get("/transfers/{id}", transferDetail(apiBase))
		r.Get("/transfers/{id}/cancel", cancelConfirm(apiBase))
		r.Post("/transfers/{id}/cancel", cancelSubmit(apiBase))
		r.Get("/search", searchPage(apiBase))
	})

	return r
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ====== Auth ======

// requireAuth redirects to /login if the cookie is missing or the API rejects the token,
// and puts the signed-in user on the request context.
func requireAuth(apiBase string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := tokenFrom(r)
			if tok == "" {
				http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
				return
			}
			data, status, err := apiGet(apiBase, "/auth/me", tok)
			if err != nil {
				renderError(w, r, http.StatusBadGateway, "Cannot reach API: "+err.Error())
				return
			}
			if status != http.StatusOK {
				clearAuthAndRedirectToLogin(w, r)
				return
			}
			var user models.User
			if err := json.Unmarshal(data, &user); err != nil {
				renderError(w, r, http.StatusBadGateway, "Invalid API response")
				return
			}
			next.ServeHTTP(w, r.WithContext(middleware.WithUser(r.Context(), user)))
		})
	}
}

func home(w http.ResponseWriter, r *http.Request) {
	if user, _ := middleware.UserFrom(r.Context()); user.IsStaff() {
		http.Redirect(w, r, "/search", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/about", http.StatusFound)
}

func loginForm(w http.ResponseWriter, r *http.Request) {
	renderTemplate(w, r, http.StatusOK, "login.html", map[string]any{"Next": safeNext(r.URL.Query().Get("next"))})
}

func loginSubmit(apiBase string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		next := safeNext(r.FormValue("next"))
		username := strings.TrimSpace(r.FormValue("username"))
		password := r.FormValue("password")
		if username == "" || password == "" {
			renderTemplate(w, r, http.StatusBadRequest, "login.html", map[string]any{
				"Error": "Username and password are required", "Username": username, "Next": next,
			})
			return
		}

		body, _ := json.Marshal(map[string]string{"username": username, "password": password})
		data, status, err := apiPost(apiBase, "/auth/login", "", body)
		if err != nil {
			renderTemplate(w, r, http.StatusBadGateway, "login.html", map[string]any{
				"Error": "Cannot reach API: " + err.Error(), "Username": username, "Next": next,
			})
			return
		}
		if status != http.StatusOK {
			renderTemplate(w, r, http.StatusUnauthorized, "login.html", map[string]any{
				"Error": apiErrorMessage(data), "Username": username, "Next": next,
			})
			return
		}

		var out struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(data, &out); err != nil || out.Token == "" {
			renderTemplate(w, r, http.StatusBadGateway, "login.html", map[string]any{"Error": "Invalid login response", "Next": next})
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     cookieName,
			Value:    out.Token,
			Path:     "/",
			MaxAge:   24 * 3600,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, next, http.StatusFound)
	}
}

func logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: cookieName, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/login", http.StatusFound)
}

// clearAuthAndRedirectToLogin clears the token cookie and redirects to login with next=current path.
// Call when the API returns 401 (expired or invalid token) so the user can sign in again.
func clearAuthAndRedirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: cookieName, Value: "", Path: "/", MaxAge: -1})
	next := r.URL.Path
	if r.Method == http.MethodGet && r.URL.RawQuery != "" {
		next += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, "/login?next="+url.QueryEscape(next), http.StatusFound)
}

// safeNext only allows local redirect targets.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

func tokenFrom(r *http.Request) string {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// ====== API calls ======

// apiDo sends a request to the API with the bearer token and returns the body and status.
func apiDo(method, apiBase, path, token string, body []byte) ([]byte, int, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, apiBase+path, rdr)
	if err != nil {
		return nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := apiClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return data, resp.StatusCode, nil
}

func apiGet(apiBase, path, token string) ([]byte, int, error) {
	return apiDo(http.MethodGet, apiBase, path, token, nil)
}

func apiPost(apiBase, path, token string, body []byte) ([]byte, int, error) {
	if body == nil {
		body = []byte("{}")
	}
	return apiDo(http.MethodPost, apiBase, path, token, body)
}

// apiErrorMessage pulls the "error" field out of an API error body.
func apiErrorMessage(data []byte) string {
	var errResp struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(data, &errResp)
	if errResp.Error != "" {
		return errResp.Error
	}
	if msg := strings.TrimSpace(string(data)); msg != "" {
		return msg
	}
	return "unexpected API response"
}

// ====== Templates ======

var templateFuncs = template.FuncMap{
	"fmtTime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Local().Format("2006-01-02 15:04")
	},
	"dash": func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	},
}

var pages = parsePages()

func parsePages() map[string]*template.Template {
	entries, err := templatesFS.ReadDir("templates")
	if err != nil {
		panic(err)
	}
	out := make(map[string]*template.Template, len(entries))
	for _, e := range entries {
		name := e.Name()
		if name == "layout.html" {
			continue
		}
		out[name] = template.Must(template.New(name).Funcs(templateFuncs).
			ParseFS(templatesFS, "templates/layout.html", "templates/"+name))
	}
	return out
}

// renderTemplate executes the page inside the layout. The signed-in user,
// when any, is exposed to every page as .User.
func renderTemplate(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	t, ok := pages[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	if user, ok := middleware.UserFrom(r.Context()); ok {
		data["User"] = user
		data["IsStaff"] = user.IsStaff()
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.ErrorContext(r.Context(), "template execute", "template", name, "err", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	renderTemplate(w, r, status, "error.html", map[string]any{"Error": message})
}
