package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloudkv/internal/blobstore"
	"cloudkv/internal/catalog"
	"cloudkv/internal/config"
	"cloudkv/internal/database"
	"cloudkv/internal/handlers"
	"cloudkv/internal/logger"
	"cloudkv/internal/service"
)

// shutdownTimeout bounds the in-flight request drain on SIGINT/SIGTERM.
const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Log)
	log := logger.Get()

	// Initialize the catalog database
	db, err := database.NewDB(cfg.Database)
	if err != nil {
		log.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	cat, err := catalog.NewPostgres(ctx, db.Pool)
	if err != nil {
		cancel()
		log.Error("failed to initialize catalog", "error", err)
		os.Exit(1)
	}

	blobs, err := blobstore.NewMinio(ctx, cfg.Blob, cfg.Limits.MaxTTL)
	cancel()
	if err != nil {
		log.Error("failed to initialize blob store", "error", err)
		os.Exit(1)
	}

	svc := service.New(cat, blobs, cfg.Limits, cfg.Server.PublicBaseURL)
	router := handlers.NewRouter(svc, cfg.Limits, cfg.Server.CORSOrigin)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("cloudkv server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal, then drain in-flight requests.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown did not complete cleanly", "error", err)
	}
	log.Info("server stopped")
}
