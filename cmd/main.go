/*
Package main is the entry point for the WA Relay server.

It is responsible for loading configuration, initializing the global logging
system, opening the credential database and snapshot store, wiring the session
manager to the WhatsApp protocol adapter, setting up the HTTP server, and
gracefully handling operating system interrupt signals (SIGINT, SIGTERM) so
every live session is stopped and every chat store flushed before exit.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"warelay/internal/app/db"
	"warelay/internal/app/session"
	"warelay/internal/app/storage"
	"warelay/internal/app/store"
	"warelay/internal/app/wa"
	"warelay/internal/configs"
	"warelay/internal/handler"
	"warelay/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("snapshot_backend", cfg.SnapshotBackend).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Credential database: whatsmeow device tables plus the relay's bindings.
	pool, err := db.NewPool(cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to initialize database")
	}
	defer pool.Close()

	sqlDB := db.OpenSQL(pool)
	defer sqlDB.Close()

	waStore, err := wa.NewStore(ctx, sqlDB, db.NewBindings(pool))
	if err != nil {
		logx.Fatal(err, "Failed to initialize WhatsApp credential store")
	}

	// Snapshot blob store for the per-user chat caches.
	blobs, err := storage.NewBlobStore(storage.ServiceConfig{
		Backend:           cfg.SnapshotBackend,
		Dir:               cfg.SnapshotDir,
		S3BucketName:      cfg.S3BucketName,
		S3Endpoint:        cfg.S3Endpoint,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		logx.Fatal(err, "Failed to initialize snapshot store")
	}

	stores := store.NewManager(blobs, cfg.FlushInterval)

	sessions := session.NewManager(
		wa.NewFactory(waStore, cfg.PairingTimeout),
		waStore,
		stores,
		session.Config{
			Retry: session.RetryPolicy{
				Backoff:     cfg.ReconnectBackoff,
				BackoffMax:  cfg.ReconnectBackoffMax,
				MaxAttempts: cfg.ReconnectMaxAttempts,
			},
			ConnectTimeout: cfg.ConnectTimeout,
		},
	)

	// Setup HTTP server and routes
	router := handler.Router(&handler.AppDeps{
		Sessions: sessions,
		Config:   cfg,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("WA Relay Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	sessions.Shutdown()
	stores.Shutdown(shutdownCtx)

	logx.Info("Server gracefully stopped.")
}
