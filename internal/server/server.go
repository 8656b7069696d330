package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tsbernar/proxy-auth/config"
	"github.com/tsbernar/proxy-auth/internal/db"
	"github.com/tsbernar/proxy-auth/internal/handlers"
	"github.com/tsbernar/proxy-auth/internal/logging"
	"github.com/tsbernar/proxy-auth/internal/mq"
	"github.com/tsbernar/proxy-auth/internal/services"
	"github.com/tsbernar/proxy-auth/internal/session"
	"github.com/tsbernar/proxy-auth/internal/store"
)

const requestTimeout = 30 * time.Second

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	events     *mq.MQ
	logger     *slog.Logger
}

// New opens the user database and event backend and assembles the router.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	events, err := mq.Open(ctx, cfg.Events)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	opts := []services.Option{services.WithLogger(logger)}
	if events != nil {
		opts = append(opts, services.WithEvents(events, cfg.Events.Channel))
	}
	userService := services.NewUserService(NewUserRepository(dbConn, cfg), opts...)

	sessions := session.NewCodec(cfg.SecretKey, session.Options{
		CookieName: cfg.Session.CookieName,
		MaxAge:     cfg.Session.MaxAge,
		Secure:     cfg.Session.Secure,
	})

	router := NewRouter(userService, sessions, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		events:     events,
		logger:     logger,
	}, nil
}

// NewUserRepository picks the SQL dialect matching the configured database.
func NewUserRepository(conn *sql.DB, cfg config.Config) *store.UserRepository {
	dialect := store.SQLite
	if cfg.UsesPostgres() {
		dialect = store.Postgres
	}
	return store.NewUserRepository(conn, dialect)
}

// NewRouter builds the full route table on top of the given collaborators.
func NewRouter(userService *services.UserService, sessions *session.Codec, logger *slog.Logger) *chi.Mux {
	requireLogin := handlers.RequireLogin(sessions, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.RequestLogger(logger),
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
		sessions.Middleware,
	)
	router.Get("/healthz", handlers.Healthz)
	handlers.AuthRouter(router, userService, sessions, logger)
	router.With(requireLogin).Get("/", handlers.Home)
	router.Route("/admin", func(r chi.Router) {
		handlers.AdminRouter(r, userService, sessions, logger, requireLogin)
	})
	return router
}

// Router exposes the chi router.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases the database and broker.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.events != nil {
		_ = s.events.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
