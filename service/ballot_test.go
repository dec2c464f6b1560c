package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"election-backend/models"
)

func TestValidateBallotPreferences(t *testing.T) {
	require.NoError(t, ValidateBallot(models.Ballot{
		"malePresident": {Pref1: "cand_a", Pref2: "cand_b"},
	}))

	// Second preference is optional.
	require.NoError(t, ValidateBallot(models.Ballot{
		"malePresident": {Pref1: "cand_a"},
	}))

	err := ValidateBallot(models.Ballot{
		"malePresident": {Pref2: "cand_b"},
	})
	var ballotErr *BallotError
	require.ErrorAs(t, err, &ballotErr)
	require.Equal(t, "malePresident", ballotErr.PositionID)

	err = ValidateBallot(models.Ballot{
		"malePresident": {Pref1: "cand_a", Pref2: "cand_a"},
	})
	require.ErrorAs(t, err, &ballotErr)
}

func TestValidateBallotSingleChoice(t *testing.T) {
	require.NoError(t, ValidateBallot(models.Ballot{
		"campusAffairsSecretary": {Choice: "cand_c"},
	}))

	// pref1 is accepted as an alias and normalized to choice.
	ballot := models.Ballot{
		"campusAffairsSecretary": {Pref1: "cand_c"},
	}
	require.NoError(t, ValidateBallot(ballot))
	require.Equal(t, "cand_c", ballot["campusAffairsSecretary"].Choice)
	require.Empty(t, ballot["campusAffairsSecretary"].Pref1)
}

func TestValidateBallotAbstentions(t *testing.T) {
	// Absent and empty positions are deliberate abstentions; an
	// entirely empty ballot is fine too.
	require.NoError(t, ValidateBallot(models.Ballot{}))
	require.NoError(t, ValidateBallot(models.Ballot{
		"malePresident":   {},
		"femalePresident": {Pref1: "cand_f"},
	}))
}

func TestValidateBallotUnknownPosition(t *testing.T) {
	err := ValidateBallot(models.Ballot{
		"studentBodyTreasurer": {Pref1: "cand_x"},
	})
	var ballotErr *BallotError
	require.ErrorAs(t, err, &ballotErr)
	require.Equal(t, "unknown position", ballotErr.Reason)
}

func TestValidateBallotGenericCaptain(t *testing.T) {
	require.NoError(t, ValidateBallot(models.Ballot{
		models.GenericCaptainPosition: {Pref1: "cap_a", Pref2: "cap_b"},
	}))
}

func TestScoreIncrementsPreference(t *testing.T) {
	incs := ScoreIncrements(models.Ballot{
		"malePresident": {Pref1: "A", Pref2: "B"},
	})
	require.Len(t, incs, 2)
	require.Contains(t, incs, Increment{CandidateID: "A", Pref1: 1, Points: 2})
	require.Contains(t, incs, Increment{CandidateID: "B", Pref2: 1, Points: 1})
}

func TestScoreIncrementsSingleChoice(t *testing.T) {
	incs := ScoreIncrements(models.Ballot{
		"campusAffairsSecretary": {Choice: "C"},
	})
	require.Equal(t, []Increment{{CandidateID: "C", Pref1: 1, Points: 1}}, incs)
}

func TestScoreIncrementsSkipsAbstentions(t *testing.T) {
	incs := ScoreIncrements(models.Ballot{
		"malePresident":   {},
		"femalePresident": {Pref1: "F"},
	})
	require.Equal(t, []Increment{{CandidateID: "F", Pref1: 1, Points: 2}}, incs)
}
