package models

// Candidate is one roster entry with its running counters. Counters are
// only ever changed through atomic storage increments or a full reset.
type Candidate struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PositionID string `json:"position_id"`
	House      string `json:"house,omitempty"`
	Tagline    string `json:"tagline,omitempty"`
	Photo      string `json:"photo,omitempty"`
	IsNota     bool   `json:"is_nota"`

	Pref1Count  int `json:"pref1_count"`
	Pref2Count  int `json:"pref2_count"`
	TotalPoints int `json:"total_points"`
}
