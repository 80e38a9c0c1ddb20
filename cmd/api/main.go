package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-prolink/internal/config"
	"backend-prolink/internal/db"
	"backend-prolink/internal/logging"
	"backend-prolink/internal/server"
	"backend-prolink/internal/store"
	"backend-prolink/internal/supervisor"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	var pg *pgxpool.Pool
	if cfg.PostgresURL != "" {
		var err error
		pg, err = deps.connectPostgres(cfg)
		if err != nil {
			logging.Warn().Err(err).Msg("postgres unavailable, using in-memory store")
		}
	}

	rdb := deps.connectRedis(cfg)

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, pg, rdb, signals, nil); err != nil {
		logging.Error().Err(err).Msg("server exited with error")
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

var ensureSchemaFn = func(ctx context.Context, pg *pgxpool.Pool) error {
	return store.EnsureSchema(ctx, pg)
}

// openStore returns the Postgres store after migrating it, or the in-memory
// store when no pool is available.
func openStore(ctx context.Context, pg *pgxpool.Pool) (store.Store, error) {
	if pg == nil {
		return store.NewMemory(), nil
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := ensureSchemaFn(ctx, pg); err != nil {
		return nil, err
	}
	return store.NewPostgres(pg), nil
}

// Run starts the background services and the HTTP server and waits for
// termination signals.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, signals <-chan os.Signal, listen ListenFunc) error {
	st, err := openStore(ctx, pg)
	if err != nil {
		return err
	}
	srv := server.NewServer(cfg, st, rdb)

	treeCtx, stopTree := context.WithCancel(ctx)
	defer stopTree()
	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())
	srv.Supervise(tree)
	treeDone := tree.ServeBackground(treeCtx)

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()
	logging.Info().Str("addr", cfg.ServerPort).Bool("postgres", pg != nil).Bool("redis", rdb != nil).Msg("server starting")

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	stopTree()
	select {
	case <-treeDone:
	case <-shutdownCtx.Done():
		logging.Warn().Msg("background services did not stop in time")
	}
	if pg != nil {
		pg.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	return nil
}
