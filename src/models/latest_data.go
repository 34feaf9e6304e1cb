package models

// Push message types sent over the websocket.
const (
	PushWatchlist = "WATCHLIST"
	PushWidget    = "WIDGET"
)

// -----------------------------------------------------------------------------
// MPushMessage is the envelope pushed to a user's websocket clients.
// -----------------------------------------------------------------------------

type MPushMessage struct {
	Type      string           `json:"type"`
	UserID    string           `json:"-"`
	Watchlist *MWatchlistState `json:"watchlist,omitempty"`
	Widget    *MWidgetState    `json:"widget,omitempty"`
	Timestamp int64            `json:"timestamp"`
}

// -----------------------------------------------------------------------------

// Commands accepted from websocket clients.
const (
	CommandInput   = "input"
	CommandRefresh = "refresh"
)

// MClientCommand is a message sent by a websocket client. Input feeds the
// debouncer of WidgetID; refresh reloads the watchlist.
type MClientCommand struct {
	Command  string `json:"command"`
	WidgetID string `json:"widget_id,omitempty"`
	Query    string `json:"query,omitempty"`
}
