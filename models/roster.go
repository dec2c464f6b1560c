package models

import (
	"encoding/json"
	"fmt"
	"os"
)

// RosterEntry is one real candidate in the static roster file.
type RosterEntry struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Tagline string `json:"tagline,omitempty"`
	Photo   string `json:"photo,omitempty"`
}

// Roster maps position ids to their declared candidates. Seeding adds a
// synthetic NOTA entry per position on top of these.
type Roster map[string][]RosterEntry

// LoadRoster reads a roster JSON file.
func LoadRoster(path string) (Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster file: %v", err)
	}
	var roster Roster
	if err := json.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("failed to parse roster file: %v", err)
	}
	return roster, nil
}

// Validate checks that every roster position exists and candidate ids
// are unique across the whole roster.
func (r Roster) Validate() error {
	seen := make(map[string]bool)
	for positionID, entries := range r {
		if _, ok := PositionByID(positionID); !ok {
			return fmt.Errorf("roster references unknown position %q", positionID)
		}
		for _, entry := range entries {
			if entry.ID == "" || entry.Name == "" {
				return fmt.Errorf("roster entry in %q missing id or name", positionID)
			}
			if seen[entry.ID] {
				return fmt.Errorf("duplicate candidate id %q", entry.ID)
			}
			seen[entry.ID] = true
		}
	}
	return nil
}

// Candidates expands the roster into seedable candidate records with
// zeroed counters, appending one NOTA candidate per position that has
// any entries plus every position without entries.
func (r Roster) Candidates() []Candidate {
	var out []Candidate
	for _, pos := range Positions {
		for _, entry := range r[pos.ID] {
			out = append(out, Candidate{
				ID:         entry.ID,
				Name:       entry.Name,
				PositionID: pos.ID,
				House:      pos.House,
				Tagline:    entry.Tagline,
				Photo:      entry.Photo,
			})
		}
		out = append(out, Candidate{
			ID:         "nota_" + pos.ID,
			Name:       "NOTA",
			PositionID: pos.ID,
			House:      pos.House,
			IsNota:     true,
		})
	}
	return out
}
