/*
Package main is the entry point for the direct-message delivery server.

It is responsible for loading configuration, initializing the global logging system,
opening the store, setting up the HTTP server and the chat Manager,
and gracefully handling operating system interrupt signals (SIGINT, SIGTERM)
to ensure a smooth server shutdown.
*/
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

	"github.com/joho/godotenv"

	"dmchat/internal/app/chat"
	"dmchat/internal/app/db"
	"dmchat/internal/app/storage"
	"dmchat/internal/configs"
	"dmchat/internal/handler"
	"dmchat/internal/pkg/auth/jwt"
	"dmchat/internal/pkg/logx"
)

func main() {
	// A missing .env file is normal outside development
	_ = godotenv.Load()

	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment(), cfg.LogLevel)
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("store_driver", cfg.StoreDriver).
		Bool("presence_events", cfg.PresenceEvents).
		Bool("storage_enabled", cfg.StorageEnabled()).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		logx.Fatal(err, "Failed to open store")
	}
	defer store.Close()

	var storageService storage.StorageService
	if cfg.StorageEnabled() {
		storageService, err = storage.NewStorageService(ctx, storage.ServiceConfig{
			S3BucketName:      cfg.S3BucketName,
			S3Endpoint:        cfg.S3Endpoint,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
			PublicBaseURL:     cfg.S3PublicBaseURL,
		})
		if err != nil {
			logx.Fatal(err, "Failed to initialize storage")
		}
	}

	resolver := chat.NewResolver(jwt.NewVerifier(cfg.JWTSecret), store)
	manager := chat.NewManager(resolver, store, chat.Options{
		PresenceEvents: cfg.PresenceEvents,
		PongWait:       cfg.PongWait,
	})

	router := handler.Router(&handler.AppDeps{
		Manager:  manager,
		Resolver: resolver,
		Config:   cfg,
		Store:    store,
		Storage:  storageService,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	// Hijacked websocket connections are not tracked by http.Server, the Manager closes them
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Manager shutdown incomplete")
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	logx.Info("Server gracefully stopped.")
}

func openStore(cfg *configs.AppConfig) (db.Store, error) {
	if cfg.StoreDriver == configs.StoreDriverMemory {
		logx.Warn("Using in-memory store, data is lost on restart")
		return db.NewMemoryStore(), nil
	}
	return db.Open(cfg.DatabaseDSN)
}
