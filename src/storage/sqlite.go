package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"vigila/src/helpers"
	"vigila/src/logger"
	"vigila/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger

	// serializes read-modify-write cycles on a document
	writeMu sync.Mutex
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath
	if dir := filepath.Dir(dsn); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return helpers.NewDatabaseError("failed to create database directory", err)
		}
	}

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return helpers.NewDatabaseError("failed to open sqlite database", err)
	}

	if err := db.Ping(); err != nil {
		return helpers.NewDatabaseError("failed to ping sqlite database", err)
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		d.Logger.Warning("Failed to set busy timeout: %v", err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("SQLite store initialized (%s)", dsn)
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) createTables() error {
	// SQLite types: TEXT for JSON documents, INTEGER for unix timestamps
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			user_id TEXT PRIMARY KEY,
			email TEXT NOT NULL DEFAULT '',
			indicators TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`, watchlistTable)
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("failed to create %s", watchlistTable), err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// mutate runs fn against the user's indicators inside one transaction. A
// missing document is created when create is set and left absent otherwise.
func (d *AsyncSQLiteDB) mutate(ctx context.Context, userID string, create bool, fn func(*models.MIndicators)) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return helpers.NewDatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	var raw []byte
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT indicators FROM %s WHERE user_id = ?`, watchlistTable), userID).Scan(&raw)
	if err == sql.ErrNoRows && !create {
		return nil
	}
	if err != nil && err != sql.ErrNoRows {
		return helpers.NewDatabaseError("failed to load watchlist", err)
	}

	ind, err := decodeIndicators(raw)
	if err != nil {
		return helpers.NewDatabaseError("corrupt watchlist document", err)
	}
	fn(&ind)

	encoded, err := encodeIndicators(ind)
	if err != nil {
		return helpers.NewDatabaseError("failed to encode watchlist", err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (user_id, indicators, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			indicators = excluded.indicators,
			updated_at = excluded.updated_at
	`, watchlistTable))
	if err != nil {
		return helpers.NewDatabaseError("failed to prepare upsert", err)
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx, userID, encoded, time.Now().Unix()); err != nil {
		return helpers.NewDatabaseError("failed to save watchlist", err)
	}

	if err := tx.Commit(); err != nil {
		return helpers.NewDatabaseError("failed to commit watchlist", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) EnsureExists(ctx context.Context, userID string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, indicators, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`, watchlistTable)
	empty, _ := encodeIndicators(models.MIndicators{})
	if _, err := d.DB.ExecContext(ctx, query, userID, empty, time.Now().Unix()); err != nil {
		return helpers.NewDatabaseError("failed to create watchlist", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) AddToSet(ctx context.Context, userID string, records []models.MSymbolRecord) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	return d.mutate(ctx, userID, true, func(ind *models.MIndicators) {
		ind.Volume = unionRecords(ind.Volume, records)
	})
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) RemoveFromSet(ctx context.Context, userID string, record models.MSymbolRecord) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	return d.mutate(ctx, userID, false, func(ind *models.MIndicators) {
		ind.Volume = removeRecord(ind.Volume, record)
	})
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Fetch(ctx context.Context, userID string) ([]models.MSymbolRecord, error) {
	if userID == "" {
		return []models.MSymbolRecord{}, nil
	}

	var raw []byte
	err := d.DB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT indicators FROM %s WHERE user_id = ?`, watchlistTable), userID).Scan(&raw)
	if err == sql.ErrNoRows {
		return []models.MSymbolRecord{}, nil
	}
	if err != nil {
		return nil, helpers.NewDatabaseError("failed to fetch watchlist", err)
	}

	ind, err := decodeIndicators(raw)
	if err != nil {
		return nil, helpers.NewDatabaseError("corrupt watchlist document", err)
	}
	return ind.Volume, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SetContact(ctx context.Context, userID, email string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	empty, _ := encodeIndicators(models.MIndicators{})
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, email, indicators, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET email = excluded.email
	`, watchlistTable)
	if _, err := d.DB.ExecContext(ctx, query, userID, email, empty, time.Now().Unix()); err != nil {
		return helpers.NewDatabaseError("failed to save contact", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) ListDocuments(ctx context.Context) ([]models.MWatchlistDocument, error) {
	rows, err := d.DB.QueryContext(ctx,
		fmt.Sprintf(`SELECT user_id, email, indicators, updated_at FROM %s ORDER BY user_id`, watchlistTable))
	if err != nil {
		return nil, helpers.NewDatabaseError("failed to list watchlists", err)
	}
	defer rows.Close()

	var docs []models.MWatchlistDocument
	for rows.Next() {
		var (
			doc     models.MWatchlistDocument
			raw     []byte
			updated int64
		)
		if err := rows.Scan(&doc.UserID, &doc.Email, &raw, &updated); err != nil {
			return nil, helpers.NewDatabaseError("failed to scan watchlist", err)
		}
		ind, err := decodeIndicators(raw)
		if err != nil {
			d.Logger.Warning("Skipping corrupt document for %s: %v", doc.UserID, err)
			continue
		}
		doc.Indicators = ind
		doc.UpdatedAt = time.Unix(updated, 0).UTC()
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, helpers.NewDatabaseError("failed to iterate watchlists", err)
	}
	return docs, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
