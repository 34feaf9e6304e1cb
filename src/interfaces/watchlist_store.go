package interfaces

import (
	"context"

	"vigila/src/models"
)

// -----------------------------------------------------------------------------
// IWatchlistStore defines the keyed-document contract for user watchlists.
// Set operations compare whole records, not just the symbol.
// -----------------------------------------------------------------------------

type IWatchlistStore interface {

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// EnsureExists creates the user's document with an empty Volume sequence. Idempotent.
	EnsureExists(ctx context.Context, userID string) error

	// -----------------------------------------------------------------------------

	// AddToSet merges records into indicators.Volume as a set union.
	AddToSet(ctx context.Context, userID string, records []models.MSymbolRecord) error

	// -----------------------------------------------------------------------------

	// RemoveFromSet removes every entry equal to record from indicators.Volume.
	RemoveFromSet(ctx context.Context, userID string, record models.MSymbolRecord) error

	// -----------------------------------------------------------------------------

	// Fetch returns the current sequence, or an empty one if the document is absent.
	Fetch(ctx context.Context, userID string) ([]models.MSymbolRecord, error)

	// -----------------------------------------------------------------------------

	// SetContact records the e-mail address used for alerts.
	SetContact(ctx context.Context, userID, email string) error

	// -----------------------------------------------------------------------------

	// ListDocuments returns every stored document (alert job input).
	ListDocuments(ctx context.Context) ([]models.MWatchlistDocument, error)

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
