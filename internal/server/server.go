// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects the database, services,
// handlers and middleware, and decides
// - Which URL patterns map to which handler functions
// - What middleware (auth, rate limits) runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → sqlite.DB → services → handlers → chi routes
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes) rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/snipshare/internal/auth"
	"github.com/sakif/snipshare/internal/backup"
	"github.com/sakif/snipshare/internal/config"
	"github.com/sakif/snipshare/internal/executor"
	"github.com/sakif/snipshare/internal/handler"
	"github.com/sakif/snipshare/internal/middleware"
	sqliteRepo "github.com/sakif/snipshare/internal/repository/sqlite"
	"github.com/sakif/snipshare/internal/service"
)

// ShutdownTimeout is how long in-flight requests get to finish after
// SIGINT/SIGTERM.
const ShutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the database connection and closes it on shutdown.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	exec    executor.Executor
	limiter *middleware.RateLimiter
}

// New opens the database and wires every route. exec may be nil, in which
// case snippet runs answer 503.
//
// IMPORT ALIAS:
// repository/sqlite is imported as sqliteRepo so it is not confused with
// the modernc.org/sqlite driver.
func New(cfg *config.Config, logger *slog.Logger, exec executor.Executor) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		exec:    exec,
		limiter: middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, logger),
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler returns the router, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz
//	POST   /auth/register | /auth/login | /auth/logout
//	GET    /auth/github/login | /auth/github/callback
//	GET    /api/snippets             GET /api/snippets/{id}
//	POST   /api/snippets             (auth)
//	PUT    /api/snippets/{id}        (auth, owner/admin)
//	DELETE /api/snippets/{id}        (auth, owner/admin)
//	POST   /api/snippets/{id}/vote   (anonymous ok, rate limited)
//	DELETE /api/snippets/{id}/vote   (anonymous ok, rate limited)
//	GET    /api/snippets/{id}/comments
//	POST   /api/snippets/{id}/comments (anonymous ok, rate limited)
//	DELETE /api/comments/{id}        (auth)
//	POST   /api/snippets/{id}/run    (auth)
//	GET    /api/categories
//	GET    /api/leaderboard/snippets | /api/leaderboard/authors
//	GET    /api/authors/{login}
//	GET    /api/me                   (auth)
//	PUT    /api/me/profile           (auth)
//	/api/admin/backups...            (admin)
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns a unique ID to each request (for tracing)
// 2. RealIP: replaces RemoteAddr with the client IP a trusted proxy
// reports; the rate limiter and anonymous votes key on it
// 3. Logger: logs each request with timing info
// 4. Recoverer: catches panics and returns 500 instead of crashing
func (s *Server) setupRoutes() error {
	proxies, err := middleware.ParseTrustedProxies(s.config.TrustedProxies)
	if err != nil {
		return fmt.Errorf("parsing trusted proxies: %w", err)
	}

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(middleware.RealIP(proxies))
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	// === Auth ===
	var tokens *auth.TokenService
	if s.config.Auth.Enabled() {
		tokens, err = auth.NewTokenService(s.config.Auth.JWTSecret, s.config.Auth.TokenTTL)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
	} else {
		s.logger.Warn("JWT_SECRET not set: sign-in is disabled")
	}

	// === Services ===
	// s.db implements SnippetRepository and LeaderboardRepository itself;
	// users, votes and comments are views over the same connection pool.
	users, votes, comments := s.db.Users(), s.db.Votes(), s.db.Comments()

	snippetSvc := service.NewSnippetService(s.db, votes, s.logger)
	voteSvc := service.NewVoteService(s.db, votes, s.logger)
	commentSvc := service.NewCommentService(s.db, comments, users, s.logger)
	leaderboardSvc := service.NewLeaderboardService(s.db)
	authorSvc := service.NewAuthorService(users, s.db, s.logger)
	runSvc := service.NewRunService(s.db, s.exec, s.logger)

	backups, err := backup.NewManager(s.config.BackupDir, s.db, s.logger)
	if err != nil {
		return fmt.Errorf("creating backup manager: %w", err)
	}

	// === Handlers ===
	snippetHandler := handler.NewSnippetHandler(snippetSvc, s.logger)
	voteHandler := handler.NewVoteHandler(voteSvc, s.logger)
	commentHandler := handler.NewCommentHandler(commentSvc, s.logger)
	leaderboardHandler := handler.NewLeaderboardHandler(leaderboardSvc)
	authorHandler := handler.NewAuthorHandler(authorSvc)
	runHandler := handler.NewRunHandler(runSvc, s.logger)
	backupHandler := handler.NewBackupHandler(backups, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)

	limited := s.limiter.Middleware

	var authHandler *handler.AuthHandler
	if tokens != nil {
		var github auth.OAuthProvider
		if s.config.Auth.GitHubEnabled() {
			github = auth.NewGitHubProvider(
				s.config.Auth.GitHubClientID,
				s.config.Auth.GitHubClientSecret,
				s.config.Auth.GitHubCallbackURL,
			)
		}
		authSvc := service.NewAuthService(users, tokens, auth.NewPasswordService(), s.config.Auth.AdminLogins, s.logger)
		authHandler = handler.NewAuthHandler(authSvc, github, tokens.TTL(), s.logger)
	}

	s.router.Route("/auth", func(r chi.Router) {
		if authHandler == nil {
			r.HandleFunc("/*", handler.Unavailable("sign-in is not configured on this server"))
			return
		}
		r.With(limited).Post("/register", authHandler.HandleRegister)
		r.With(limited).Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
	})

	s.router.Route("/api", func(r chi.Router) {
		// Public: identity is attached when present so viewers see their
		// own vote state and logged-in commenters get their login.
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))

			r.Get("/snippets", snippetHandler.HandleList)
			r.Get("/snippets/{id}", snippetHandler.HandleGet)
			r.Get("/snippets/{id}/comments", commentHandler.HandleList)
			r.Get("/categories", snippetHandler.HandleCategories)
			r.Get("/leaderboard/snippets", leaderboardHandler.HandleSnippets)
			r.Get("/leaderboard/authors", leaderboardHandler.HandleAuthors)
			r.Get("/authors/{login}", authorHandler.HandleProfile)

			r.With(limited).Post("/snippets/{id}/vote", voteHandler.HandleVote)
			r.With(limited).Delete("/snippets/{id}/vote", voteHandler.HandleRetract)
			r.With(limited).Post("/snippets/{id}/comments", commentHandler.HandleCreate)
		})

		// Authenticated.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Post("/snippets", snippetHandler.HandleCreate)
			r.Put("/snippets/{id}", snippetHandler.HandleUpdate)
			r.Delete("/snippets/{id}", snippetHandler.HandleDelete)
			r.Post("/snippets/{id}/run", runHandler.HandleRun)
			r.Delete("/comments/{id}", commentHandler.HandleDelete)
			r.Put("/me/profile", authorHandler.HandleUpdateProfile)
			if authHandler != nil {
				r.Get("/me", authHandler.HandleMe)
			}

			r.Route("/admin/backups", func(r chi.Router) {
				r.Use(auth.RequireAdmin)

				r.Get("/", backupHandler.HandleList)
				r.Post("/", backupHandler.HandleCreate)
				r.Get("/{name}", backupHandler.HandleDownload)
				r.Post("/{name}/restore", backupHandler.HandleRestore)
				r.Delete("/{name}", backupHandler.HandleDelete)
			})
		})
	})

	return nil
}

// Start serves HTTP until SIGINT/SIGTERM, then shuts down gracefully:
// 1. Stop accepting new connections
// 2. Wait up to ShutdownTimeout for in-flight requests
// 3. Close the database (flushes WAL, releases the file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	done := make(chan struct{})
	defer close(done)
	go s.limiter.Run(time.Minute, done)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.Bool("auth", s.config.Auth.Enabled()),
			slog.Bool("sandbox", s.exec != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
