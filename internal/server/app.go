// Package server wires the PaperClip services together and runs the HTTP API
// and the gRPC health endpoint until the process is told to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/paperclip/paperclip/internal/logging"
	"github.com/paperclip/paperclip/internal/server/auth"
	"github.com/paperclip/paperclip/internal/server/config"
	"github.com/paperclip/paperclip/internal/server/dispatch"
	"github.com/paperclip/paperclip/internal/server/metrics"
	"github.com/paperclip/paperclip/internal/server/repositories/repomanager"
	"github.com/paperclip/paperclip/internal/server/services"

	gs "github.com/paperclip/paperclip/internal/server/grpc"
	hs "github.com/paperclip/paperclip/internal/server/http"
)

var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}
	newRepositoryManager = repomanager.NewPostgresRepositoryManager
)

type runner interface {
	Run(ctx context.Context) error
}

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	httpServer runner
	grpcServer runner
}

func NewApp(c *config.Config) (*App, error) {
	return newApp(context.Background(), c, logging.New(os.Stdout, c.LogLevel, c.LogFormat))
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := newRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	codec, err := auth.NewCodec([]byte(c.SecretKey))
	if err != nil {
		db.Close()
		return nil, err
	}

	us, err := services.NewUserService(db, rm, auth.NewHasher(), codec, c.TokenTTL)
	if err != nil {
		db.Close()
		return nil, err
	}
	cs := services.NewConversationService(db, rm, c)
	resolver := auth.NewResolver(codec, us)
	m := metrics.NewRegistry()

	router := hs.NewRouter(&hs.RouterConfig{
		Users:              us,
		Conversations:      cs,
		Resolver:           resolver,
		Dispatcher:         dispatch.New(c.HistoryLimit, c.MaxContextChars),
		Metrics:            m,
		DB:                 db,
		Logger:             logger,
		LoginRatePerMinute: c.LoginRatePerMinute,
		LoginBurst:         c.LoginBurst,
		HistoryLimit:       c.HistoryLimit,
	})

	return &App{
		config:     c,
		logger:     logger,
		db:         db,
		httpServer: hs.NewServer(c.HTTPAddr, router, logger),
		grpcServer: gs.NewGRPCServer(c.GRPCAddr, logger, resolver, db, m),
	}, nil
}

func (app *App) start(ctx context.Context, cancelFunc context.CancelFunc, name string, r runner) {
	if err := r.Run(ctx); err != nil {
		app.logger.Error(ctx, "server failed", "server", name, "error", err)
		cancelFunc()
	}
}

// Run blocks until ctx is cancelled, SIGINT/SIGTERM/SIGQUIT arrives or one of
// the servers fails, then waits for both servers to stop.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.start(ctx, cancelFunc, "http", app.httpServer)
	}()
	go func() {
		defer wg.Done()
		app.start(ctx, cancelFunc, "grpc", app.grpcServer)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing database", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
