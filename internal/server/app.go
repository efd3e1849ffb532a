// Package server initializes and runs the sync server: it validates the
// configuration, opens the database, runs migrations, and serves the REST
// and real-time endpoints until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Aphrodine-wq/clipsync/internal/cryptox"
	"github.com/Aphrodine-wq/clipsync/internal/logging"
	"github.com/Aphrodine-wq/clipsync/internal/server/config"
	"github.com/Aphrodine-wq/clipsync/internal/server/httpapi"
	"github.com/Aphrodine-wq/clipsync/internal/server/hub"
	"github.com/Aphrodine-wq/clipsync/internal/server/repositories/repomanager"
	"github.com/Aphrodine-wq/clipsync/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpapi.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	// Fail fast on key material problems: a production deployment without a
	// real master key must not come up at all.
	if _, err := cryptox.ResolveMasterKey(cfg.MasterKey, cfg.Production); err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	us := services.NewUserService(db, m, cfg)
	cs := services.NewClipService(m.Clips(db), m.Teams(db), cfg)
	h := hub.New(m.Teams(db), logger)

	srv := httpapi.NewServer(cfg, logger, us, cs, h)

	return &App{config: cfg, logger: logger, db: db, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
