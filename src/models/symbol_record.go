package models

// MSymbolRecord is the symbol metadata returned by the lookup provider and
// stored verbatim in a user's watchlist document.
type MSymbolRecord struct {
	Symbol           string `json:"symbol"`
	Name             string `json:"name"`
	Currency         string `json:"currency"`
	Exchange         string `json:"exchange"`
	ExchangeFullName string `json:"exchangeFullName"`
}

// -----------------------------------------------------------------------------

// SameSymbol reports whether both records designate the same ticker.
func (r MSymbolRecord) SameSymbol(other MSymbolRecord) bool {
	return r.Symbol == other.Symbol
}

// -----------------------------------------------------------------------------

// MSuggestion is a lookup candidate decorated for display.
// AlreadyAdded is computed at render time from the widget sets.
type MSuggestion struct {
	Record       MSymbolRecord `json:"record"`
	AlreadyAdded bool          `json:"already_added"`
	CanAdd       bool          `json:"can_add"`
}
