package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"vigila/src/config"
	"vigila/src/logger"
	"vigila/src/server"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional dotenv file with secrets")
	flag.Parse()

	if err := config.LoadDotEnv(*envPath); err != nil {
		fmt.Printf("Error loading %s: %v\n", *envPath, err)
		os.Exit(1)
	}

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	if err := logger.Setup(cfg.LogLevel, cfg.LogFile); err != nil {
		fmt.Printf("Error setting up logger: %v\n", err)
		os.Exit(1)
	}
	appLogger := logger.NewLogger(cfg.Name)

	// 1. Storage
	store, err := setupStore(cfg, appLogger)
	if err != nil {
		appLogger.Critical("Failed to init store: %v", err)
	}

	// 2. Sessions and alerts
	registry := setupRegistry(cfg, store, appLogger)
	job, err := setupAlerts(cfg, store, appLogger)
	if err != nil {
		appLogger.Critical("Failed to init alerts: %v", err)
	}

	// 3. API server with push
	srv := server.NewAPIServer(cfg.MConfig, registry, job, appLogger.Named("Server"))
	registry.SetPush(srv.Broadcast)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, fail := context.WithCancelCause(sigCtx)
	defer fail(nil)

	grpcServer := startServers(ctx, fail, srv, job, store, cfg, appLogger)
	go registry.Run(ctx)

	<-ctx.Done()
	exitCode := 0
	if cause := context.Cause(ctx); !errors.Is(cause, context.Canceled) {
		appLogger.Error("Startup failed: %v", cause)
		exitCode = 1
	}
	appLogger.Info("Shutting down...")

	registry.CloseAll()
	if err := srv.Stop(); err != nil {
		appLogger.Warning("Server shutdown: %v", err)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if err := store.Close(); err != nil {
		appLogger.Warning("Store close: %v", err)
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
