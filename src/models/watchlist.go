package models

import "time"

// VolumeIndicator is the indicator key used in the watchlist document.
const VolumeIndicator = "Volume"

// MIndicators holds the per-indicator symbol sequences of a document.
type MIndicators struct {
	Volume []MSymbolRecord `json:"Volume"`
}

// -----------------------------------------------------------------------------

// MWatchlistDocument is the per-user keyed document.
type MWatchlistDocument struct {
	UserID     string      `json:"user_id"`
	Email      string      `json:"email,omitempty"`
	Indicators MIndicators `json:"indicators"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
