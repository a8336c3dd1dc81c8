// Package server is the demo backend consumed by the session manager: it
// issues the access tokens and serves the task resources behind them.
package server

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	session "github.com/goliatone/go-session"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Config holds server construction options.
type Config struct {
	// DSN is the sqlite data source, e.g. "file::memory:?cache=shared".
	DSN string
	// SigningKey signs issued access tokens.
	SigningKey string
	// TokenTTL is the issued token lifetime. Defaults to 24h.
	TokenTTL time.Duration
	// Logger defaults to the session package fallback logger.
	Logger session.Logger
}

// Server wires the fiber app, the repositories and the token service.
type Server struct {
	app    *fiber.App
	db     *bun.DB
	users  Users
	tasks  Tasks
	tokens *TokenService
	logger session.Logger
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// New opens the database, ensures the schema, and builds the route table.
func New(cfg Config) (*Server, error) {
	if cfg.SigningKey == "" {
		return nil, goerrors.New("signing key is required", goerrors.CategoryValidation)
	}

	if cfg.DSN == "" {
		cfg.DSN = "file::memory:?cache=shared"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open database")
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	s := &Server{
		app:    fiber.New(fiber.Config{DisableStartupMessage: true}),
		db:     db,
		users:  NewUsersRepository(db),
		tasks:  NewTasksRepository(db),
		tokens: NewTokenService([]byte(cfg.SigningKey), cfg.TokenTTL, logger),
		logger: logger,
	}

	if err := s.createSchema(context.Background()); err != nil {
		return nil, err
	}

	s.routes()

	return s, nil
}

func (s *Server) createSchema(ctx context.Context) error {
	models := []any{
		(*User)(nil),
		(*Task)(nil),
	}

	for _, model := range models {
		if _, err := s.db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create schema")
		}
	}

	return nil
}

func (s *Server) routes() {
	auth := s.app.Group("/auth")
	auth.Post("/register", s.handleRegister)
	auth.Post("/login", s.handleLogin)

	tasks := s.app.Group("/tasks", RequireAuth(s.tokens))
	tasks.Get("/", s.handleListTasks)
	tasks.Post("/", s.handleCreateTask)
	tasks.Get("/:id", s.handleGetTask)
	tasks.Put("/:id", s.handleUpdateTask)
	tasks.Delete("/:id", s.handleDeleteTask)
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Tokens exposes the token service.
func (s *Server) Tokens() *TokenService {
	return s.tokens
}

// Listen serves the API on addr until the app is shut down.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Close shuts down the app and the database.
func (s *Server) Close() error {
	if err := s.app.Shutdown(); err != nil {
		return err
	}
	return s.db.Close()
}
