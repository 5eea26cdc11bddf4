// Package cli implements the interactive driftsync client: a small REPL
// over the session object.
package cli

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	gosync "sync"

	"golang.org/x/time/rate"

	"github.com/driftsync/driftsync/internal/client/api"
	"github.com/driftsync/driftsync/internal/client/config"
	"github.com/driftsync/driftsync/internal/client/notify"
	"github.com/driftsync/driftsync/internal/client/session"
	"github.com/driftsync/driftsync/internal/client/store"
	"github.com/driftsync/driftsync/internal/logging"
)

type App struct {
	config  *config.Config
	log     logging.Logger
	store   *store.Store
	session *session.Session
	reader  *bufio.Reader
	out     io.Writer

	mu     gosync.Mutex
	status notify.Status
}

func NewApp(cfg *config.Config) (*App, error) {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	log := logging.NewSlogLogger(slog.New(handler))

	st, err := store.Open(context.Background(), cfg.Database)
	if err != nil {
		return nil, err
	}

	opts := session.Options{Insecure: cfg.Insecure}
	opts.APIOptions = append(opts.APIOptions, api.WithTimeout(cfg.RequestTimeout))
	if cfg.Insecure {
		opts.APIOptions = append(opts.APIOptions, api.WithInsecure())
	}
	if cfg.RequestRate > 0 {
		opts.APIOptions = append(opts.APIOptions, api.WithRateLimit(rate.Limit(cfg.RequestRate), 4))
	}

	app := &App{
		config:  cfg,
		log:     log,
		store:   st,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
		status:  notify.StatusDisconnected,
		session: session.New(st, log, opts),
	}
	app.session.SetOnStatus(func(status notify.Status) {
		app.mu.Lock()
		app.status = status
		app.mu.Unlock()
	})
	return app, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.store.Close()
	a.Root(ctx)
}

func (a *App) bridgeStatus() notify.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *App) isLoggedIn() bool {
	return a.session.Active()
}
