package interfaces

import (
	"context"

	"vigila/src/models"
)

// -----------------------------------------------------------------------------
// IVolumeSource fetches session volumes for a batch of symbols.
// -----------------------------------------------------------------------------

type IVolumeSource interface {

	// Name returns the unique identifier of the source
	Name() string

	// -----------------------------------------------------------------------------

	// FetchVolumes returns the last two sessions per symbol. Symbols that fail
	// individually are omitted rather than failing the batch.
	FetchVolumes(ctx context.Context, symbols []string) (map[string]models.MVolumeSnapshot, error)
}
