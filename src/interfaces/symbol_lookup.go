package interfaces

import (
	"context"

	"vigila/src/models"
)

// -----------------------------------------------------------------------------
// ISymbolLookup is the remote symbol search provider.
// -----------------------------------------------------------------------------

type ISymbolLookup interface {

	// Search returns candidates for a partial query, in provider relevance order.
	Search(ctx context.Context, query string) ([]models.MSymbolRecord, error)
}
