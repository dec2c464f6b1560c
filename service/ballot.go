package service

import (
	"fmt"

	"election-backend/models"
)

// Increment is one candidate's score delta derived from a ballot.
type Increment struct {
	CandidateID string
	Pref1       int
	Pref2       int
	Points      int
}

// Scoring policy: first preference 2 points, second preference 1 point,
// single-choice 1 point.
const (
	pref1Points        = 2
	pref2Points        = 1
	singleChoicePoints = 1
)

// ValidateBallot checks every position that carries a selection and
// normalizes single-choice selections in place (pref1 accepted as an
// alias for choice). Positions absent or empty are abstentions, never
// an error: a voter may skip any subset of positions.
func ValidateBallot(ballot models.Ballot) error {
	for positionID, selection := range ballot {
		if selection.Empty() {
			continue
		}
		pos, ok := models.PositionByID(positionID)
		if !ok && positionID != models.GenericCaptainPosition {
			return &BallotError{PositionID: positionID, Reason: "unknown position"}
		}
		if ok && pos.Kind == models.SingleChoicePosition {
			if selection.Choice == "" && selection.Pref1 == "" {
				return &BallotError{PositionID: positionID, Reason: "choice required"}
			}
			if selection.Choice == "" {
				selection.Choice = selection.Pref1
				selection.Pref1 = ""
				ballot[positionID] = selection
			}
			continue
		}
		// Preference position (the generic captain id always is one).
		if selection.Pref1 == "" {
			return &BallotError{PositionID: positionID, Reason: "preference 1 required"}
		}
		if selection.Pref2 != "" && selection.Pref2 == selection.Pref1 {
			return &BallotError{PositionID: positionID, Reason: "cannot select same candidate for both preferences"}
		}
	}
	return nil
}

// selectionIDs lists the candidate ids a selection names.
func selectionIDs(sel models.Selection) []string {
	var ids []string
	if sel.Choice != "" {
		ids = append(ids, sel.Choice)
	}
	if sel.Pref1 != "" {
		ids = append(ids, sel.Pref1)
	}
	if sel.Pref2 != "" {
		ids = append(ids, sel.Pref2)
	}
	return ids
}

// ValidateCandidates checks every selected candidate id against the
// seeded roster. The roster is closed: a candidate that was never
// seeded, or one standing for a different position, rejects the ballot
// before anything is stored. The generic captain id resolves through
// the vote's house; when the house is unrecorded any captaincy
// candidate is accepted.
func ValidateCandidates(ballot models.Ballot, house string, byID map[string]models.Candidate) error {
	for positionID, sel := range ballot {
		if sel.Empty() {
			continue
		}
		expected := positionID
		anyCaptain := false
		if positionID == models.GenericCaptainPosition {
			if mapped, ok := models.CaptainPositionFor(house); ok {
				expected = mapped
			} else {
				anyCaptain = true
			}
		}
		for _, id := range selectionIDs(sel) {
			c, ok := byID[id]
			if !ok {
				return &BallotError{PositionID: positionID, Reason: fmt.Sprintf("unknown candidate %q", id)}
			}
			if anyCaptain {
				pos, ok := models.PositionByID(c.PositionID)
				if !ok || pos.House == "" {
					return &BallotError{PositionID: positionID, Reason: fmt.Sprintf("candidate %q is not standing for a captaincy", id)}
				}
				continue
			}
			if c.PositionID != expected {
				return &BallotError{PositionID: positionID, Reason: fmt.Sprintf("candidate %q is not standing for this position", id)}
			}
		}
	}
	return nil
}

// ScoreIncrements converts a validated ballot into per-candidate score
// deltas. Single-choice selections yield one +1 point increment;
// preference selections yield +2 points for pref1 and +1 for pref2.
func ScoreIncrements(ballot models.Ballot) []Increment {
	var out []Increment
	for positionID, selection := range ballot {
		if selection.Empty() {
			continue
		}
		pos, ok := models.PositionByID(positionID)
		if ok && pos.Kind == models.SingleChoicePosition {
			id := selection.Choice
			if id == "" {
				id = selection.Pref1
			}
			if id != "" {
				out = append(out, Increment{CandidateID: id, Pref1: 1, Points: singleChoicePoints})
			}
			continue
		}
		if selection.Pref1 != "" {
			out = append(out, Increment{CandidateID: selection.Pref1, Pref1: 1, Points: pref1Points})
		}
		if selection.Pref2 != "" {
			out = append(out, Increment{CandidateID: selection.Pref2, Pref2: 1, Points: pref2Points})
		}
	}
	return out
}
