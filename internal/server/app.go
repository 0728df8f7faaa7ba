// Package server initializes and runs the tree registry server. It opens
// the database, applies migrations, builds the object store client and the
// services, and serves the HTTP API until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/arbolado/treeregistry/internal/logging"
	"github.com/arbolado/treeregistry/internal/server/blob"
	"github.com/arbolado/treeregistry/internal/server/config"
	"github.com/arbolado/treeregistry/internal/server/httpapi"
	"github.com/arbolado/treeregistry/internal/server/repositories/repomanager"
	"github.com/arbolado/treeregistry/internal/server/services"
	"github.com/arbolado/treeregistry/internal/server/watch"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	httpServer *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	blobs, err := blob.NewS3Store(ctx, blob.S3Config{
		User:          cfg.S3RootUser,
		Password:      cfg.S3RootPassword,
		Bucket:        cfg.S3Bucket,
		Region:        cfg.S3Region,
		BaseEndpoint:  cfg.S3BaseEndpoint,
		PublicBaseURL: cfg.S3PublicBaseURL,
		PresignTTL:    cfg.PresignTTL,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("object store init error: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hub := watch.NewHub(registry)
	treeService := services.NewTreeService(db, repos, blobs, hub, logger)
	moderationService := services.NewModerationService(db, repos, blobs, hub, cfg.AdminUID, logger)

	httpServer := httpapi.NewServer(httpapi.Options{
		Addr:         cfg.EndpointAddrHTTP,
		SecretKey:    []byte(cfg.SecretKey),
		Trees:        treeService,
		Moderation:   moderationService,
		Blobs:        blobs,
		Hub:          hub,
		Logger:       logger,
		SSEHeartbeat: cfg.SSEHeartbeat,
		Registry:     registry,
	})

	return &App{config: cfg, logger: logger, db: db, httpServer: httpServer}, nil
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

	app.logger.Info(ctx, "starting app")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, err.Error())
	}

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(shutdownCtx, err.Error())
	}
	app.logger.Info(shutdownCtx, "app stopped")
}
