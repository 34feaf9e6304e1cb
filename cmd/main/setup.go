package main

import (
	"vigila/src/alerts"
	"vigila/src/config"
	"vigila/src/interfaces"
	"vigila/src/logger"
	"vigila/src/lookup"
	"vigila/src/network"
	"vigila/src/session"
	"vigila/src/storage"
	"vigila/src/widget"
)

// -----------------------------------------------------------------------------

// setupStore opens and migrates the configured watchlist store
func setupStore(cfg *config.Config, appLogger *logger.Logger) (interfaces.IWatchlistStore, error) {
	store, err := storage.NewStore(cfg.MConfig, appLogger.Named("Storage"))
	if err != nil {
		return nil, err
	}
	if err := store.Initialize(); err != nil {
		return nil, err
	}
	appLogger.Info("Watchlist store ready (%s)", cfg.Storage.DBType)
	return store, nil
}

// -----------------------------------------------------------------------------

// setupRegistry wires the symbol lookup and the widget options into a session registry
func setupRegistry(cfg *config.Config, store interfaces.IWatchlistStore, appLogger *logger.Logger) *session.Registry {
	if cfg.Lookup.APIKey == "" {
		appLogger.Warning("No %s set, symbol search will fail", config.EnvLookupAPIKey)
	}
	symbolLookup := lookup.NewFMPClient(cfg.Lookup, appLogger.Named("Lookup"))
	opts := widget.OptionsFromConfig(cfg.Widget)

	appLogger.Info("Widgets: debounce=%v min_query=%d top=%d duplicates=%s withdraw=%v idle=%v",
		opts.DebounceWindow, opts.MinQueryLength, opts.MaxSuggestions, cfg.Widget.DuplicateScope, opts.AllowWithdraw, cfg.WidgetIdleTimeout())
	registry := session.NewRegistry(store, symbolLookup, opts, appLogger.Named("Session"))
	registry.IdleTimeout = cfg.WidgetIdleTimeout()
	return registry
}

// -----------------------------------------------------------------------------

// setupAlerts builds the volume alert job, or returns nil when alerts are disabled
func setupAlerts(cfg *config.Config, store interfaces.IWatchlistStore, appLogger *logger.Logger) (*alerts.Job, error) {
	if !cfg.Alerts.Enabled {
		appLogger.Info("Volume alerts disabled")
		return nil, nil
	}
	netMgr := network.NewAsyncNetworkManager(cfg.MConfig, appLogger.Named("Network"))
	return alerts.NewJobFromConfig(cfg.MConfig, store, netMgr, appLogger.Named("Alerts"))
}
