package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/celgate/celgate/internal/authz"
	"github.com/celgate/celgate/internal/config"
	"github.com/celgate/celgate/internal/keys"
	logger "github.com/celgate/celgate/internal/logging"
	"github.com/celgate/celgate/internal/policy"
	"github.com/celgate/celgate/internal/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// 1. Load config
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error("Error loading config: %v", err)
		os.Exit(1)
	}

	logger.SetDebug(*debugMode || cfg.Debug)

	// 2. Set up the key store and fetch the signing keys once up
	// front. A failure here is not fatal: the refresher keeps
	// retrying and requests fail closed until keys arrive.
	client := &http.Client{Timeout: cfg.HTTPTimeout()}
	store := keys.NewStore(cfg.JWKSURL, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := store.Refresh(ctx); err != nil {
		logger.Warn("Initial JWKS fetch failed, refresher will retry: %v", err)
	}

	// 3. Background refresh attempts
	go keys.NewRefresher(store, cfg.RefreshInterval()).Run(ctx)

	// 4. Policy program cache
	policies, err := policy.NewCache()
	if err != nil {
		logger.Error("Failed to set up policy engine: %v", err)
		os.Exit(1)
	}

	pipeline := &authz.Pipeline{Keys: store, Policies: policies}

	// 5. Start the server
	srv := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: server.NewRouter(pipeline),
	}

	go func() {
		logger.Info("Server listening on %s", cfg.ListenAddress)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error: %v", err)
			os.Exit(1)
		}
	}()

	// 6. Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("Shutting down...")
	cancel()

	shutdownCtx, cancelShutdown := server.NewShutdownContext(5 * time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error: %v", err)
	}
	logger.Info("Stopped.")
}
