// Package types provides type definitions for structured data used throughout the triage bot.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"fmt"
)

// RankedFile is a single entry of the ranking produced by the localization backend.
type RankedFile struct {
	Path  string
	Score float64
}

// UnmarshalJSON decodes the backend's [path, score] pair encoding.
func (r *RankedFile) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("ranked file must be a [path, score] pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("ranked file must be a [path, score] pair, got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &r.Path); err != nil {
		return fmt.Errorf("ranked file path: %w", err)
	}
	if err := json.Unmarshal(pair[1], &r.Score); err != nil {
		return fmt.Errorf("ranked file score: %w", err)
	}
	return nil
}

// MarshalJSON encodes the entry as a [path, score] pair.
func (r RankedFile) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{r.Path, r.Score})
}

// Ranking is the payload returned by the localization backend's report endpoint.
type Ranking struct {
	Message     string       `json:"message,omitempty"`
	RankedFiles []RankedFile `json:"ranked_files"`
}
