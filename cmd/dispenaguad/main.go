package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dispen-agua-admin/config"
	"dispen-agua-admin/internal/api"
	"dispen-agua-admin/internal/archive"
	"dispen-agua-admin/internal/backend"
	"dispen-agua-admin/internal/db"
	"dispen-agua-admin/internal/notification"
	"dispen-agua-admin/internal/session"

	"github.com/SherClockHolmes/webpush-go"
)

func main() {
	logger := log.New(os.Stdout, "dispen-admin ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if cfg.Backend.BaseURL == "" {
		logger.Fatalf("backend.base_url must be configured")
	}

	if cfg.Push.Enabled && (cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "") {
		logger.Fatalf("push is enabled but VAPID keys are missing. Generate them and add them to your config file.")
	}

	webpushOptions := &webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := archive.NewGormStore(gormDB)
	logger.Println("payment archive initialized")

	workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
	workerPool.Start(ctx)

	sessions := session.NewManager(cfg.Backend.BaseURL, cfg.Backend.Timeout, cfg.Poller.PaymentsLimit, cfg.Poller.Interval)
	sessions.OnPayments = func(ctx context.Context, payments []backend.Payment) {
		notifyIDs, err := store.RecordPayments(ctx, payments)
		if err != nil {
			logger.Printf("failed to archive polled payments: %v", err)
			return
		}
		if !cfg.Push.Enabled {
			return
		}
		for _, id := range notifyIDs {
			workerPool.Dispatch(id)
		}
	}
	defer sessions.Shutdown()

	// Headless autologin when the secret is provided up front; the
	// dashboard login endpoint still works either way.
	if cfg.Backend.AdminSecret != "" {
		if token, err := sessions.Login(ctx, cfg.Backend.AdminSecret); err != nil {
			logger.Printf("autologin failed: %v", err)
		} else {
			logger.Printf("autologin ok, session %s", token)
		}
	}

	router := api.NewRouter(sessions, store, webpushOptions, &cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
