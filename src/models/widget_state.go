package models

// Widget lifecycle states.
const (
	WidgetClosed      = "closed"
	WidgetOpenEmpty   = "open_empty"
	WidgetOpenPending = "open_pending"
	WidgetCommitting  = "committing"
)

// MWidgetState is a point-in-time view of a selection widget, ready to render.
type MWidgetState struct {
	ID            string          `json:"id"`
	State         string          `json:"state"`
	Query         string          `json:"query"`
	Loading       bool            `json:"loading"`
	Suggestions   []MSuggestion   `json:"suggestions"`
	SearchError   string          `json:"search_error,omitempty"`
	Pending       []MSymbolRecord `json:"pending"`
	CanCommit     bool            `json:"can_commit"`
	CommitError   string          `json:"commit_error,omitempty"`
	CommitSuccess bool            `json:"commit_success"`
}

// -----------------------------------------------------------------------------

// MWatchlistState is the rendered mirror of the persisted watchlist.
type MWatchlistState struct {
	Records []MSymbolRecord `json:"records"`
	Error   string          `json:"error,omitempty"`
}
