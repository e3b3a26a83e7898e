package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/affinityhq/affinity/internal/api"
	"github.com/affinityhq/affinity/internal/apply"
	"github.com/affinityhq/affinity/internal/config"
	"github.com/affinityhq/affinity/internal/session"
	"github.com/affinityhq/affinity/internal/storage/sqlite"
)

// app bundles the wired services every command needs.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	manager *session.Manager
	client  *api.Client
	db      *sqlite.DB
	drafts  *sqlite.DraftStore
}

// newApp wires config, logging, session manager and API client. The
// manager doubles as the client's token source, so it is created first and
// the API attached afterwards.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	dir, err := config.EnsureDir()
	if err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}

	logger := newLogger(cfg.Log.Level)

	store, err := session.NewFileStore(dir)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}

	manager := session.NewManager(store, nil, logger)

	transport := api.NewResilientTransport(nil, api.ResilientConfig{
		EnableCircuitBreaker: true,
		EnableRateLimit:      true,
		RatePerSecond:        cfg.API.RatePerSecond,
		Logger:               logger,
	})
	client := api.NewClient(api.Config{
		BaseURL:    cfg.API.BaseURL,
		Tokens:     manager,
		Timeout:    time.Duration(cfg.API.TimeoutSeconds) * time.Second,
		HTTPClient: api.NewHTTPClient(transport),
	})
	manager.SetAuthAPI(client)

	db, err := sqlite.Open(filepath.Join(dir, "affinity.db"))
	if err != nil {
		return nil, fmt.Errorf("open local database: %w", err)
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		manager: manager,
		client:  client,
		db:      db,
		drafts:  sqlite.NewDraftStore(db),
	}, nil
}

// Close releases local resources.
func (a *app) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// workflow creates an application workflow over the wired services.
func (a *app) workflow() *apply.Workflow {
	return apply.NewWorkflow(a.client, a.drafts, a.logger)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
