// Package server is the composition root: it opens storage, builds the
// services and handlers, mounts the routes and runs the HTTP server with
// graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/skyhub/internal/auth"
	"github.com/sakif/skyhub/internal/blob"
	"github.com/sakif/skyhub/internal/config"
	"github.com/sakif/skyhub/internal/handler"
	"github.com/sakif/skyhub/internal/middleware"
	sqliteRepo "github.com/sakif/skyhub/internal/repository/sqlite"
	"github.com/sakif/skyhub/internal/service"
)

// Server owns the database connection; Start closes it on shutdown.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	store  blob.Store
	sso    handler.ExternalSignIn
}

// Option adjusts a Server before its routes are built.
type Option func(*Server)

// WithBlobStore replaces the store chosen by BLOB_BACKEND.
func WithBlobStore(store blob.Store) Option {
	return func(s *Server) { s.store = store }
}

// WithExternalSignIn replaces the OIDC provider discovered from OIDC_ISSUER.
func WithExternalSignIn(sso handler.ExternalSignIn) Option {
	return func(s *Server) { s.sso = sso }
}

// New wires the application:
//
//	sqlite.DB ─┬─ IdentityService ──── AuthHandler, MemberHandler
//	           ├─ ContentService ───── PostHandler
//	           ├─ InteractionService ─ PostHandler
//	           └─ DiscoveryService ─── MemberHandler, PostHandler
//
// Services get repository interfaces; handlers get services.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.setupRoutes(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) openBlobStore(ctx context.Context) error {
	if s.store != nil {
		return nil
	}

	switch s.config.BlobBackend {
	case "minio":
		m := s.config.MinIO
		store, err := blob.NewMinIOStore(ctx, blob.MinIOConfig{
			Endpoint:  m.Endpoint,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			Bucket:    m.Bucket,
			UseSSL:    m.UseSSL,
			Region:    m.Region,
			URLExpiry: m.URLExpiry,
		})
		if err != nil {
			return err
		}
		s.store = store
	default:
		store, err := blob.NewDiskStore(s.config.UploadDir, s.config.PublicUploadURL)
		if err != nil {
			return err
		}
		s.store = store
	}
	return nil
}

// openExternalSignIn discovers the identity provider. It is optional: if it
// is not configured or cannot be reached, the SSO routes answer 404 and
// password login keeps working.
func (s *Server) openExternalSignIn(ctx context.Context) {
	if s.sso != nil {
		return
	}
	o := s.config.OIDC
	if !o.Enabled() {
		s.logger.Info("external sign-in disabled (OIDC_CLIENT_ID/OIDC_CLIENT_SECRET not set)")
		return
	}

	provider, err := auth.NewOIDCProvider(ctx, o.Issuer, o.ClientID, o.ClientSecret, o.CallbackURL)
	if err != nil {
		s.logger.Warn("external sign-in unavailable", slog.String("issuer", o.Issuer), slog.String("error", err.Error()))
		return
	}
	s.sso = provider
}

// setupRoutes mounts:
//
//	POST /auth/register | /auth/login | /auth/logout
//	GET  /auth/oidc/login | /auth/oidc/callback
//	GET|PUT|DELETE /api/me
//	GET  /api/members/{id} | /api/network | /api/feed | /api/posts/{id}
//	POST /api/posts | /api/posts/{id}/like | /api/posts/{id}/comments
//	PUT|DELETE /api/posts/{id} | /api/comments/{id}
//	GET  /uploads/* (disk backend) | /health
func (s *Server) setupRoutes(ctx context.Context) error {
	cfg := s.config

	if err := s.openBlobStore(ctx); err != nil {
		return fmt.Errorf("opening blob store: %w", err)
	}
	s.openExternalSignIn(ctx)

	tokens, err := auth.NewTokenService(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordServiceWithCost(cfg.BcryptCost)
	avatars := blob.NewFetcher(s.store, cfg.AvatarFetchTimeout, s.logger)

	identity := service.NewIdentityService(s.db, s.db, passwords, tokens, avatars, s.store, cfg.MaxUploadSize, s.logger)
	content := service.NewContentService(s.db, s.db, s.store, cfg.MaxUploadSize, s.logger)
	interaction := service.NewInteractionService(s.db, s.logger)
	discovery := service.NewDiscoveryService(s.db, s.db, s.db, s.db, s.logger)

	authHandler := handler.NewAuthHandler(identity, s.sso, tokens.TTL(), cfg.MaxUploadSize, cfg.CookieSecure, s.logger)
	memberHandler := handler.NewMemberHandler(identity, discovery, s.store, cfg.MaxUploadSize, s.logger)
	postHandler := handler.NewPostHandler(content, interaction, discovery, s.store, cfg.MaxUploadSize, s.logger)

	// RequestID must come before Logger so every log line carries the id.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/health", s.handleHealth)

	if disk, ok := s.store.(*blob.DiskStore); ok && strings.HasPrefix(cfg.PublicUploadURL, "/") {
		prefix := strings.TrimSuffix(cfg.PublicUploadURL, "/") + "/"
		s.router.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(http.Dir(disk.Dir()))))
	}

	requireAuth := auth.RequireAuth(tokens)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		r.Get("/oidc/login", authHandler.HandleOIDCLogin)
		r.Get("/oidc/callback", authHandler.HandleOIDCCallback)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.OptionalAuth(tokens))

		r.Get("/feed", postHandler.HandleFeed)
		r.Get("/network", memberHandler.HandleNetwork)
		r.Get("/members/{id}", memberHandler.HandleProfile)
		r.Get("/posts/{id}", postHandler.HandleGet)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/me", memberHandler.HandleMe)
			r.Put("/me", memberHandler.HandleUpdateMe)
			r.Delete("/me", memberHandler.HandleDeleteMe)

			r.Post("/posts", postHandler.HandleCreate)
			r.Put("/posts/{id}", postHandler.HandleUpdate)
			r.Delete("/posts/{id}", postHandler.HandleDelete)
			r.Post("/posts/{id}/like", postHandler.HandleLike)
			r.Post("/posts/{id}/comments", postHandler.HandleAddComment)

			r.Put("/comments/{id}", postHandler.HandleEditComment)
			r.Delete("/comments/{id}", postHandler.HandleDeleteComment)
		})
	})

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, body := http.StatusOK, "ok"
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		status, body = http.StatusServiceUnavailable, "database unavailable"
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

// Close releases the database. Start calls it on the way out.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start serves until SIGINT/SIGTERM or ctx is cancelled, then gives in-flight
// requests 30 seconds to finish and closes the database.
func (s *Server) Start(ctx context.Context) error {
	defer s.Close()

	// Uploads can be large, so the write timeout is generous.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.String("blobBackend", s.config.BlobBackend),
			slog.Bool("externalSignIn", s.sso != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}
