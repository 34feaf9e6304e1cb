package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vigila/src/alerts"
	"vigila/src/config"
	"vigila/src/logger"
	"vigila/src/network"
	"vigila/src/storage"
)

// One-shot volume alert run, for cron or manual use.
func main() {
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional dotenv file with secrets")
	force := flag.Bool("force", false, "run even when the exchange is closed today")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall run timeout")
	flag.Parse()

	if err := config.LoadDotEnv(*envPath); err != nil {
		fmt.Printf("Error loading %s: %v\n", *envPath, err)
		os.Exit(1)
	}
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Setup(cfg.LogLevel, cfg.LogFile); err != nil {
		fmt.Printf("Error setting up logger: %v\n", err)
		os.Exit(1)
	}
	appLogger := logger.NewLogger("Alerts")

	store, err := storage.NewStore(cfg.MConfig, appLogger.Named("Storage"))
	if err != nil {
		appLogger.Critical("Failed to init store: %v", err)
	}
	if err := store.Initialize(); err != nil {
		appLogger.Critical("Failed to open store: %v", err)
	}
	defer store.Close()

	netMgr := network.NewAsyncNetworkManager(cfg.MConfig, appLogger.Named("Network"))
	job, err := alerts.NewJobFromConfig(cfg.MConfig, store, netMgr, appLogger)
	if err != nil {
		appLogger.Critical("Failed to init alerts: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, stop := context.WithTimeout(ctx, *timeout)
	defer stop()

	report, err := job.Run(ctx, *force)
	if err != nil {
		appLogger.Error("Alert run failed: %v", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
}
