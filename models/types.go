// File: models/types.go
package models

// House identifiers for the four college houses. A vote that arrives
// without a house is recorded as HouseUnknown.
const (
	HouseLeo     = "leo"
	HousePhoenix = "phoenix"
	HouseTusker  = "tusker"
	HouseKong    = "kong"
	HouseUnknown = "unknown"
)

// Houses lists the four real houses, in display order.
var Houses = []string{HouseLeo, HousePhoenix, HouseTusker, HouseKong}

// ValidHouse reports whether h names one of the four houses.
func ValidHouse(h string) bool {
	switch h {
	case HouseLeo, HousePhoenix, HouseTusker, HouseKong:
		return true
	}
	return false
}

// PositionKind distinguishes how a position is scored.
type PositionKind int

const (
	// PreferencePosition is scored 2 points for the first preference
	// and 1 point for the optional second preference.
	PreferencePosition PositionKind = iota
	// SingleChoicePosition is scored 1 point for the sole selection.
	SingleChoicePosition
)

// Position describes one elected post on the ballot.
type Position struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Kind  PositionKind `json:"kind"`
	House string       `json:"house,omitempty"` // set only for captain positions
}

// GenericCaptainPosition is the position id the voting page uses for "my
// house's captain". It resolves to <house>Captain using the vote's house.
const GenericCaptainPosition = "houseCaptain"

// Positions is the fixed set of posts in the election.
var Positions = []Position{
	{ID: "malePresident", Name: "President (Male)", Kind: PreferencePosition},
	{ID: "femalePresident", Name: "President (Female)", Kind: PreferencePosition},
	{ID: "academicSecretary", Name: "Academic Secretary", Kind: PreferencePosition},
	{ID: "sportsSecretary", Name: "Sports Secretary", Kind: PreferencePosition},
	{ID: "culturalSecretary", Name: "Cultural Secretary", Kind: PreferencePosition},
	{ID: "campusAffairsSecretary", Name: "Campus Affairs Secretary", Kind: SingleChoicePosition},
	{ID: "leoCaptain", Name: "Leo House Captain", Kind: PreferencePosition, House: HouseLeo},
	{ID: "phoenixCaptain", Name: "Phoenix House Captain", Kind: PreferencePosition, House: HousePhoenix},
	{ID: "tuskerCaptain", Name: "Tusker House Captain", Kind: PreferencePosition, House: HouseTusker},
	{ID: "kongCaptain", Name: "Kong House Captain", Kind: PreferencePosition, House: HouseKong},
}

// PositionByID looks up a position definition. The generic captain id is
// not itself a position; callers resolve it against a house first.
func PositionByID(id string) (Position, bool) {
	for _, p := range Positions {
		if p.ID == id {
			return p, true
		}
	}
	return Position{}, false
}

// CaptainPositionFor maps a house to its captain position id.
func CaptainPositionFor(house string) (string, bool) {
	if !ValidHouse(house) {
		return "", false
	}
	return house + "Captain", true
}

// Selection is one position's entry on a ballot. Exactly one shape is
// meaningful at a time: {Choice} for the single-choice position,
// {Pref1, optional Pref2} for preference positions. An all-empty
// selection is an abstention.
type Selection struct {
	Pref1  string `json:"pref1,omitempty"`
	Pref2  string `json:"pref2,omitempty"`
	Choice string `json:"choice,omitempty"`
}

// Empty reports whether the selection carries no choice at all.
func (s Selection) Empty() bool {
	return s.Pref1 == "" && s.Pref2 == "" && s.Choice == ""
}

// Ballot maps position ids to the voter's selections. Positions absent
// from the map are deliberate abstentions.
type Ballot map[string]Selection
