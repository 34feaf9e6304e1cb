package interfaces

import "vigila/src/models"

// -----------------------------------------------------------------------------
// IDataExchanger pushes state changes to connected clients.
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	// -----------------------------------------------------------------------------
	// Broadcast pushes a message to the clients of message.UserID.
	Broadcast(message *models.MPushMessage)

	// -----------------------------------------------------------------------------
	// Start the server
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop() error
}
