package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/haldane/pkgd/internal/api"
	"github.com/haldane/pkgd/internal/config"
	"github.com/haldane/pkgd/internal/keystore"
	"github.com/haldane/pkgd/internal/session"
	"github.com/haldane/pkgd/internal/store"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	if err := config.Load(); err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	if config.LocalToken() == "" {
		logger.Warn("PKGD_LOCAL_TOKEN is not set; all /v1 requests will be rejected")
	}

	dataDir := config.DataDir()

	secureStorage, err := keystore.NewFileStorage(filepath.Join(dataDir, "keys"))
	if err != nil {
		logger.Fatal("failed to open key storage", zap.Error(err))
	}
	keys := keystore.NewManager(secureStorage, logger)

	blobs, err := store.NewBlobStore(dataDir)
	if err != nil {
		logger.Fatal("failed to open blob store", zap.Error(err))
	}
	defer func() { _ = blobs.Close() }()

	ctx := context.Background()
	if err := blobs.Ping(ctx); err != nil {
		logger.Fatal("failed to ping blob store", zap.Error(err))
	}
	logger.Info("blob store ready", zap.String("data_dir", dataDir))

	app := api.NewApp(blobs, keys, logger)

	// Background delta sync
	app.Scheduler.Start()

	// Live assistant session, if configured
	sessionCtx, stopSession := context.WithCancel(ctx)
	defer stopSession()
	if url := config.SessionURL(); url != "" {
		client := session.NewClient(url, config.BackendToken(), logger)
		resolveHandler := session.NewResolveHandler(config.DeviceUserID(), app.Graph, client, logger)
		resolveHandler.Register(client)
		go client.Run(sessionCtx)
		logger.Info("session channel enabled", zap.String("url", url))
	}

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:    addr,
		Handler: app.Router,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down")

	app.Scheduler.Stop()
	stopSession()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
