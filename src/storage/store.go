package storage

import (
	"fmt"

	"vigila/src/interfaces"
	"vigila/src/logger"
	"vigila/src/models"
)

// NewStore builds the watchlist store selected by storage.db_type.
// The returned store is not yet initialized.
func NewStore(cfg *models.MConfig, log *logger.Logger) (interfaces.IWatchlistStore, error) {
	switch cfg.Storage.DBType {
	case "sqlite":
		return NewAsyncSQLiteDB(cfg, log)
	case "postgres":
		return NewPostgresDB(cfg, log)
	case "memory":
		return NewMemoryStore(log), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Storage.DBType)
	}
}
