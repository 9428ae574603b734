// Package models holds the client-side domain types.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PainEntry is one logged pain observation. Its JSON form is the plaintext
// that gets encrypted before it ever reaches durable storage.
type PainEntry struct {
	Level      int       `json:"level"`
	Location   string    `json:"location,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	Triggers   []string  `json:"triggers,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Validate checks the entry is storable. Levels follow the usual 0-10
// numeric rating scale.
func (e *PainEntry) Validate() error {
	if e.Level < 0 || e.Level > 10 {
		return fmt.Errorf("pain level %d out of range 0-10", e.Level)
	}
	if e.RecordedAt.IsZero() {
		return fmt.Errorf("recordedAt is not set")
	}
	return nil
}

// Severe reports whether the entry should sync ahead of routine ones.
func (e *PainEntry) Severe() bool {
	return e.Level >= 8
}

func (e *PainEntry) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func UnmarshalPainEntry(data []byte) (*PainEntry, error) {
	var e PainEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to parse pain entry: %w", err)
	}
	return &e, nil
}

func (e *PainEntry) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  level %d/10", e.RecordedAt.Local().Format("2006-01-02 15:04"), e.Level)
	if e.Location != "" {
		fmt.Fprintf(&b, "  %s", e.Location)
	}
	if e.Notes != "" {
		fmt.Fprintf(&b, "  (%s)", e.Notes)
	}
	return b.String()
}
