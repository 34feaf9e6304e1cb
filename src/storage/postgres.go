package storage

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"vigila/src/helpers"
	"vigila/src/logger"
	"vigila/src/models"

	_ "github.com/lib/pq"
)

var schemaNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	schema := cfg.Storage.Schema
	if !schemaNamePattern.MatchString(schema) {
		return nil, helpers.NewValidationError(fmt.Sprintf("invalid postgres schema name: %q", schema))
	}

	return &PostgresDB{
		Config: cfg,
		Schema: schema,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return helpers.NewDatabaseError("failed to open postgres connection", err)
	}

	if err := db.Ping(); err != nil {
		return helpers.NewDatabaseError("failed to ping postgres", err)
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("failed to create schema %s", d.Schema), err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) table() string {
	return fmt.Sprintf(`"%s"."%s"`, d.Schema, watchlistTable)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			user_id TEXT PRIMARY KEY,
			email TEXT NOT NULL DEFAULT '',
			indicators JSONB NOT NULL DEFAULT '{"Volume": []}'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`, d.table())
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("failed to create %s", d.table()), err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// mutate locks the user's row for the duration of the read-modify-write. A
// missing document is created when create is set and left absent otherwise.
func (d *PostgresDB) mutate(ctx context.Context, userID string, create bool, fn func(*models.MIndicators)) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return helpers.NewDatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	// Lazily create the document so the row lock below always has a target
	if create {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, d.table()), userID); err != nil {
			return helpers.NewDatabaseError("failed to create watchlist", err)
		}
	}

	var raw []byte
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT indicators FROM %s WHERE user_id = $1 FOR UPDATE`, d.table()), userID).Scan(&raw)
	if err == sql.ErrNoRows && !create {
		return nil
	}
	if err != nil {
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

	stmt, err := tx.PrepareContext(ctx,
		fmt.Sprintf(`UPDATE %s SET indicators = $2::jsonb, updated_at = $3 WHERE user_id = $1`, d.table()))
	if err != nil {
		return helpers.NewDatabaseError("failed to prepare update", err)
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx, userID, encoded, time.Now().UTC()); err != nil {
		return helpers.NewDatabaseError("failed to save watchlist", err)
	}

	if err := tx.Commit(); err != nil {
		return helpers.NewDatabaseError("failed to commit watchlist", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) EnsureExists(ctx context.Context, userID string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if _, err := d.DB.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, d.table()), userID); err != nil {
		return helpers.NewDatabaseError("failed to create watchlist", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) AddToSet(ctx context.Context, userID string, records []models.MSymbolRecord) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	return d.mutate(ctx, userID, true, func(ind *models.MIndicators) {
		ind.Volume = unionRecords(ind.Volume, records)
	})
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) RemoveFromSet(ctx context.Context, userID string, record models.MSymbolRecord) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	return d.mutate(ctx, userID, false, func(ind *models.MIndicators) {
		ind.Volume = removeRecord(ind.Volume, record)
	})
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Fetch(ctx context.Context, userID string) ([]models.MSymbolRecord, error) {
	if userID == "" {
		return []models.MSymbolRecord{}, nil
	}

	var raw []byte
	err := d.DB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT indicators FROM %s WHERE user_id = $1`, d.table()), userID).Scan(&raw)
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

func (d *PostgresDB) SetContact(ctx context.Context, userID, email string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, email) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET email = EXCLUDED.email
	`, d.table())
	if _, err := d.DB.ExecContext(ctx, query, userID, email); err != nil {
		return helpers.NewDatabaseError("failed to save contact", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) ListDocuments(ctx context.Context) ([]models.MWatchlistDocument, error) {
	rows, err := d.DB.QueryContext(ctx,
		fmt.Sprintf(`SELECT user_id, email, indicators, updated_at FROM %s ORDER BY user_id`, d.table()))
	if err != nil {
		return nil, helpers.NewDatabaseError("failed to list watchlists", err)
	}
	defer rows.Close()

	var docs []models.MWatchlistDocument
	for rows.Next() {
		var (
			doc models.MWatchlistDocument
			raw []byte
		)
		if err := rows.Scan(&doc.UserID, &doc.Email, &raw, &doc.UpdatedAt); err != nil {
			return nil, helpers.NewDatabaseError("failed to scan watchlist", err)
		}
		ind, err := decodeIndicators(raw)
		if err != nil {
			d.Logger.Warning("Skipping corrupt document for %s: %v", doc.UserID, err)
			continue
		}
		doc.Indicators = ind
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, helpers.NewDatabaseError("failed to iterate watchlists", err)
	}
	return docs, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
