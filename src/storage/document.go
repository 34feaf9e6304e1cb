package storage

import (
	"encoding/json"
	"fmt"

	"vigila/src/helpers"
	"vigila/src/models"
)

// Table holding one keyed document per user.
const watchlistTable = "watchlists"

// -----------------------------------------------------------------------------

// unionRecords appends every record of add that has no whole-record equal in
// current. Existing order is preserved.
func unionRecords(current, add []models.MSymbolRecord) []models.MSymbolRecord {
	out := make([]models.MSymbolRecord, 0, len(current)+len(add))
	out = append(out, current...)
	for _, r := range add {
		if !containsRecord(out, r) {
			out = append(out, r)
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// removeRecord drops every entry equal to record.
func removeRecord(current []models.MSymbolRecord, record models.MSymbolRecord) []models.MSymbolRecord {
	out := make([]models.MSymbolRecord, 0, len(current))
	for _, r := range current {
		if r != record {
			out = append(out, r)
		}
	}
	return out
}

// -----------------------------------------------------------------------------

func containsRecord(records []models.MSymbolRecord, record models.MSymbolRecord) bool {
	for _, r := range records {
		if r == record {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------

func encodeIndicators(ind models.MIndicators) (string, error) {
	if ind.Volume == nil {
		ind.Volume = []models.MSymbolRecord{}
	}
	b, err := json.Marshal(ind)
	if err != nil {
		return "", fmt.Errorf("failed to encode indicators: %w", err)
	}
	return string(b), nil
}

// -----------------------------------------------------------------------------

func decodeIndicators(raw []byte) (models.MIndicators, error) {
	var ind models.MIndicators
	if len(raw) == 0 {
		ind.Volume = []models.MSymbolRecord{}
		return ind, nil
	}
	if err := json.Unmarshal(raw, &ind); err != nil {
		return ind, fmt.Errorf("failed to decode indicators: %w", err)
	}
	if ind.Volume == nil {
		ind.Volume = []models.MSymbolRecord{}
	}
	return ind, nil
}

// -----------------------------------------------------------------------------

func cloneRecords(records []models.MSymbolRecord) []models.MSymbolRecord {
	out := make([]models.MSymbolRecord, len(records))
	copy(out, records)
	return out
}

// -----------------------------------------------------------------------------

// requireUser rejects writes without an identity.
func requireUser(userID string) error {
	if userID == "" {
		return helpers.NewNotAuthenticatedError()
	}
	return nil
}
