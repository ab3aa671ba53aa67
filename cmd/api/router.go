package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crucial707/trakset/internal/config"
	"github.com/crucial707/trakset/internal/handlers"
	"github.com/crucial707/trakset/internal/middleware"
	"github.com/crucial707/trakset/internal/models"
	"github.com/crucial707/trakset/internal/repo"
	"github.com/crucial707/trakset/internal/transfer"
)

// newRouter wires repositories, the transfer workflow and handlers onto a chi router.
func newRouter(database *sql.DB, cfg config.Config, notifier transfer.Notifier) http.Handler {
	secret := []byte(cfg.JWTSecret)

	store := repo.NewStore(database)
	auditRepo := repo.NewAuditRepo(database)
	userRepo := repo.NewUserRepo(database)

	workflow := transfer.New(store, notifier,
		transfer.WithWindow(cfg.TransferTimeout),
		transfer.WithThreshold(cfg.SearchThreshold),
		transfer.WithFallbackHolder(cfg.FallbackHolder),
		transfer.WithLogger(slog.Default()),
	)

	authHandler := &handlers.AuthHandler{
		UserRepo: userRepo,
		Secret:   secret,
		TTL:      time.Duration(cfg.JWTExpireHours) * time.Hour,
	}
	transferHandler := &handlers.TransferHandler{Workflow: workflow}
	assetHandler := &handlers.AssetHandler{
		Repo:      repo.NewAssetRepo(database, cfg.FallbackHolder),
		AuditRepo: auditRepo,
	}
	lookupHandler := &handlers.LookupHandler{Repo: repo.NewLookupRepo(database), AuditRepo: auditRepo}
	userHandler := &handlers.UserHandler{Repo: userRepo, AuditRepo: auditRepo, FallbackHolder: cfg.FallbackHolder}
	auditHandler := &handlers.AuditHandler{Repo: auditRepo}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recoverer(slog.Default()))
	r.Use(middleware.RequestLog(slog.Default()))
	r.Use(middleware.SecurityHeaders(middleware.CSPAPI, cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""))

	// ==========================
	// Public
	// ==========================
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := database.PingContext(ctx); err != nil {
			handlers.JSONError(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ready"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.With(middleware.LoginRateLimiter().Middleware).Post("/auth/login", authHandler.Login)

	// ==========================
	// Authenticated
	// ==========================
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(secret))

		r.Get("/auth/me", authHandler.Me)

		r.Route("/transfers", func(r chi.Router) {
			r.With(middleware.ScanRateLimiter().Middleware).Post("/scan/{uuid}", transferHandler.Scan)
			r.Get("/scan/{uuid}/note", transferHandler.NoteForm)
			r.Post("/scan/{uuid}/note", transferHandler.SubmitNote)
			r.Get("/{id}", transferHandler.GetTransfer)
			r.Post("/{id}/cancel", transferHandler.Cancel)
		})

		// Staff
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(models.RoleStaff))

			r.Get("/search", transferHandler.Search)

			r.Route("/assets", func(r chi.Router) {
				r.Get("/", assetHandler.ListAssets)
				r.Post("/", assetHandler.CreateAsset)
				r.Get("/{id}", assetHandler.GetAsset)
				r.Put("/{id}", assetHandler.UpdateAsset)
				r.Delete("/{id}", assetHandler.DeleteAsset)
				r.Post("/{id}/restore", assetHandler.RestoreAsset)
				r.Put("/{id}/subscribers", assetHandler.SetSubscribers)
			})
			r.Route("/asset-types", func(r chi.Router) {
				r.Get("/", lookupHandler.ListAssetTypes)
				r.Post("/", lookupHandler.CreateAssetType)
				r.Delete("/{id}", lookupHandler.DeleteAssetType)
				r.Post("/{id}/restore", lookupHandler.RestoreAssetType)
			})
			r.Route("/locations", func(r chi.Router) {
				r.Get("/", lookupHandler.ListLocations)
				r.Post("/", lookupHandler.CreateLocation)
				r.Delete("/{id}", lookupHandler.DeleteLocation)
				r.Post("/{id}/restore", lookupHandler.RestoreLocation)
			})
			r.Route("/statuses", func(r chi.Router) {
				r.Get("/", lookupHandler.ListStatuses)
				r.Post("/", lookupHandler.CreateStatus)
				r.Delete("/{code}", lookupHandler.DeleteStatus)
				r.Post("/{code}/restore", lookupHandler.RestoreStatus)
			})
			r.Get("/audit", auditHandler.ListAudit)
		})

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(models.RoleAdmin))

			r.Route("/users", func(r chi.Router) {
				r.Get("/", userHandler.ListUsers)
				r.Post("/", userHandler.CreateUser)
				r.Get("/{id}", userHandler.GetUser)
				r.Delete("/{id}", userHandler.DeleteUser)
			})
		})
	})

	return r
}
