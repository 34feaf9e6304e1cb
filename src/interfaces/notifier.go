package interfaces

import (
	"context"

	"vigila/src/models"
)

// -----------------------------------------------------------------------------
// IAlertNotifier delivers a volume alert to one user.
// -----------------------------------------------------------------------------

type IAlertNotifier interface {

	// Notify sends the alert for the given snapshots (already filtered).
	Notify(ctx context.Context, recipient string, alerts []models.MVolumeSnapshot) error
}
