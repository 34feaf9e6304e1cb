package models

import "github.com/shopspring/decimal"

// MVolumeSnapshot compares the last two trading sessions of a symbol.
type MVolumeSnapshot struct {
	Symbol         string          `json:"symbol"`
	CurrentVolume  int64           `json:"current_volume"`
	PreviousVolume int64           `json:"previous_volume"`
	Ratio          decimal.Decimal `json:"ratio"` // current / previous * 100
	Timestamp      int64           `json:"timestamp"`
}

// -----------------------------------------------------------------------------

// MAlertReport summarises one run of the volume alert job.
type MAlertReport struct {
	UsersProcessed int      `json:"users_processed"`
	SymbolsFetched int      `json:"symbols_fetched"`
	AlertsSent     int      `json:"alerts_sent"`
	Failures       []string `json:"failures,omitempty"`
	Skipped        bool     `json:"skipped"`
	Message        string   `json:"message"`
}
