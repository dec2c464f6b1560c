package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"election-backend/encryption"
	"election-backend/models"
	"election-backend/storage"
)

func TestSubmitRecordsEncryptedVoteAndCounts(t *testing.T) {
	svc, store := newTestService(t)
	pin, _, err := svc.PinGate().Generate()
	require.NoError(t, err)

	err = svc.Submit(context.Background(), pin, models.Ballot{
		"malePresident":          {Pref1: "mp_a", Pref2: "mp_b"},
		"campusAffairsSecretary": {Choice: "cas_a"},
	}, models.HouseLeo)
	require.NoError(t, err)

	votes, err := store.Votes()
	require.NoError(t, err)
	require.Len(t, votes, 1)
	require.Equal(t, models.HouseLeo, votes[0].House)
	require.NotNil(t, votes[0].Ballot)
	require.NotEmpty(t, votes[0].ID)

	// The stored envelope decrypts only with the Dean's password.
	var ballot models.Ballot
	require.NoError(t, encryption.Decrypt(votes[0].Ballot, testDeanPassword, &ballot))
	require.Equal(t, "mp_a", ballot["malePresident"].Pref1)
	require.ErrorIs(t,
		encryption.Decrypt(votes[0].Ballot, "some-other-password", &ballot),
		encryption.ErrAuthentication)

	// Counters: pref1 +1/+2 points, pref2 +1/+1 point, choice +1/+1.
	candidates, err := store.Candidates(storage.CandidateFilter{})
	require.NoError(t, err)
	byID := make(map[string]models.Candidate)
	for _, c := range candidates {
		byID[c.ID] = c
	}
	require.Equal(t, 1, byID["mp_a"].Pref1Count)
	require.Equal(t, 2, byID["mp_a"].TotalPoints)
	require.Equal(t, 1, byID["mp_b"].Pref2Count)
	require.Equal(t, 1, byID["mp_b"].TotalPoints)
	require.Equal(t, 1, byID["cas_a"].Pref1Count)
	require.Equal(t, 1, byID["cas_a"].TotalPoints)

	// The PIN rotated: the old one is spent, a fresh one is active.
	require.ErrorIs(t, svc.PinGate().Validate(pin), ErrPinUsed)
	cfg, err := svc.CurrentPin()
	require.NoError(t, err)
	require.False(t, cfg.PinUsed)
	require.NotEqual(t, pin, cfg.CurrentPin)
}

func TestSubmitRejectsMalformedPin(t *testing.T) {
	svc, store := newTestService(t)

	for _, pin := range []string{"", "12", "abcd", "12345", "12 4"} {
		err := svc.Submit(context.Background(), pin, models.Ballot{}, models.HouseLeo)
		require.ErrorIs(t, err, ErrMalformedPin, pin)
	}
	count, err := store.CountVotes()
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestSubmitRejectsInvalidBallot(t *testing.T) {
	svc, store := newTestService(t)
	pin, _, err := svc.PinGate().Generate()
	require.NoError(t, err)

	err = svc.Submit(context.Background(), pin, models.Ballot{
		"malePresident": {Pref1: "mp_a", Pref2: "mp_a"},
	}, models.HouseLeo)
	var ballotErr *BallotError
	require.ErrorAs(t, err, &ballotErr)

	// Rejection leaves no side effects: vote not stored, PIN unspent.
	count, err := store.CountVotes()
	require.NoError(t, err)
	require.Zero(t, count)
	require.NoError(t, svc.PinGate().Validate(pin))
}

func TestSubmitRejectsUnknownCandidate(t *testing.T) {
	svc, store := newTestService(t)
	pin, _, err := svc.PinGate().Generate()
	require.NoError(t, err)

	// Repeated attempts with a ghost candidate must not store anything
	// and must not spend the PIN.
	for i := 0; i < 2; i++ {
		err = svc.Submit(context.Background(), pin, models.Ballot{
			"malePresident": {Pref1: "ghost_candidate"},
		}, models.HouseLeo)
		var ballotErr *BallotError
		require.ErrorAs(t, err, &ballotErr)
	}
	count, err := store.CountVotes()
	require.NoError(t, err)
	require.Zero(t, count)
	require.NoError(t, svc.PinGate().Validate(pin))

	// The same PIN then carries one real ballot.
	require.NoError(t, svc.Submit(context.Background(), pin, models.Ballot{
		"malePresident": {Pref1: "mp_a"},
	}, models.HouseLeo))
	count, err = store.CountVotes()
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestSubmitRejectsCandidateForWrongPosition(t *testing.T) {
	svc, store := newTestService(t)
	pin, _, err := svc.PinGate().Generate()
	require.NoError(t, err)

	err = svc.Submit(context.Background(), pin, models.Ballot{
		"femalePresident": {Pref1: "mp_a"},
	}, models.HouseLeo)
	var ballotErr *BallotError
	require.ErrorAs(t, err, &ballotErr)
	require.Equal(t, "femalePresident", ballotErr.PositionID)

	// The generic captain id resolves through the vote's house; a
	// candidate from another house's captaincy is rejected.
	err = svc.Submit(context.Background(), pin, models.Ballot{
		models.GenericCaptainPosition: {Pref1: "leo_a"},
	}, models.HousePhoenix)
	require.ErrorAs(t, err, &ballotErr)

	count, err := store.CountVotes()
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestSubmitConcurrentSamePin(t *testing.T) {
	svc, store := newTestService(t)
	pin, _, err := svc.PinGate().Generate()
	require.NoError(t, err)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.Submit(context.Background(), pin, models.Ballot{
				"malePresident": {Pref1: "mp_a"},
			}, models.HouseLeo)
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrPinUsed):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, won, "exactly one concurrent submission may win the PIN")
	require.Equal(t, attempts-1, lost)

	// One PIN, one counted ballot: losers leave no stored vote and no
	// counter residue.
	count, err := store.CountVotes()
	require.NoError(t, err)
	require.Equal(t, 1, count)

	candidates, err := store.Candidates(storage.CandidateFilter{PositionID: "malePresident"})
	require.NoError(t, err)
	for _, c := range candidates {
		if c.ID == "mp_a" {
			require.Equal(t, 1, c.Pref1Count)
			require.Equal(t, 2, c.TotalPoints)
		}
	}
}

func TestSubmitRejectsWhenVotingClosed(t *testing.T) {
	svc, _ := newTestService(t)
	pin, _, err := svc.PinGate().Generate()
	require.NoError(t, err)
	require.NoError(t, svc.SetVotingOpen(false))

	err = svc.Submit(context.Background(), pin, models.Ballot{
		"malePresident": {Pref1: "mp_a"},
	}, models.HouseLeo)
	require.ErrorIs(t, err, ErrVotingClosed)
}

func TestSubmitRequiresEncryption(t *testing.T) {
	// Build a service whose config has voting open but no encryption;
	// the workflow itself must still refuse the ballot.
	store := storage.NewMemoryStore()
	escrow, err := encryption.NewPasswordEscrow(testSystemKey)
	require.NoError(t, err)
	svc := NewVotingService(store, escrow)
	_, err = svc.SeedFromRoster(testRoster())
	require.NoError(t, err)
	require.NoError(t, store.SetVotingOpen(true))
	pin, _, err := svc.PinGate().Generate()
	require.NoError(t, err)

	err = svc.Submit(context.Background(), pin, models.Ballot{
		"malePresident": {Pref1: "mp_a"},
	}, models.HouseLeo)
	require.ErrorIs(t, err, ErrEncryptionDisabled)

	count, err := store.CountVotes()
	require.NoError(t, err)
	require.Zero(t, count, "no ballot may be stored unencrypted")
	require.NoError(t, svc.PinGate().Validate(pin), "PIN must not be consumed")
}

func TestSubmitUnknownHouseRecordedAsUnknown(t *testing.T) {
	svc, store := newTestService(t)
	pin, _, err := svc.PinGate().Generate()
	require.NoError(t, err)

	require.NoError(t, svc.Submit(context.Background(), pin, models.Ballot{
		"malePresident": {Pref1: "mp_a"},
	}, "atlantis"))

	votes, err := store.Votes()
	require.NoError(t, err)
	require.Equal(t, models.HouseUnknown, votes[0].House)
}

func TestEnableEncryptionPreconditions(t *testing.T) {
	store := storage.NewMemoryStore()
	escrow, err := encryption.NewPasswordEscrow(testSystemKey)
	require.NoError(t, err)
	svc := NewVotingService(store, escrow)
	_, err = svc.SeedFromRoster(testRoster())
	require.NoError(t, err)

	_, err = svc.EnableEncryption("short", "short")
	require.ErrorIs(t, err, ErrWeakPassword)

	_, err = svc.EnableEncryption("long-enough-pw", "different-pw")
	require.ErrorIs(t, err, ErrPasswordMismatch)

	_, err = svc.EnableEncryption(testDeanPassword, testDeanPassword)
	require.NoError(t, err)

	// Enabling twice is refused; the envelope is immutable.
	_, err = svc.EnableEncryption("another-password", "another-password")
	require.ErrorIs(t, err, ErrEncryptionEnabled)
}

func TestEnableEncryptionRejectedAfterVotes(t *testing.T) {
	svc, store := newTestService(t)
	submitBallot(t, svc, models.Ballot{"malePresident": {Pref1: "mp_a"}}, models.HouseLeo)

	// Wipe the config but keep the vote around: even a fresh config
	// cannot enable encryption while votes exist.
	_, err := store.DeleteVotesAndConfig()
	require.NoError(t, err)
	require.NoError(t, store.SaveVote(&models.Vote{ID: "v1", House: models.HouseLeo}))

	_, err = svc.EnableEncryption(testDeanPassword, testDeanPassword)
	require.ErrorIs(t, err, ErrVotesExist)
}

func TestSetVotingOpenRequiresEncryption(t *testing.T) {
	store := storage.NewMemoryStore()
	escrow, err := encryption.NewPasswordEscrow(testSystemKey)
	require.NoError(t, err)
	svc := NewVotingService(store, escrow)

	require.ErrorIs(t, svc.SetVotingOpen(true), ErrEncryptionDisabled)

	// Closing is always allowed.
	require.NoError(t, svc.SetVotingOpen(false))

	_, err = svc.EnableEncryption(testDeanPassword, testDeanPassword)
	require.NoError(t, err)
	require.NoError(t, svc.SetVotingOpen(true))
}

func TestResetAllRequiresExactConfirmCode(t *testing.T) {
	svc, store := newTestService(t)
	submitBallot(t, svc, models.Ballot{"malePresident": {Pref1: "mp_a"}}, models.HouseLeo)

	for _, code := range []string{"", "reset", "RESET ", "DELETE"} {
		_, err := svc.ResetAll(code)
		require.ErrorIs(t, err, ErrBadConfirmCode, code)
	}
	count, err := store.CountVotes()
	require.NoError(t, err)
	require.Equal(t, 1, count, "nothing may be deleted on a bad code")

	deleted, err := svc.ResetAll(ResetConfirmCode)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	count, err = store.CountVotes()
	require.NoError(t, err)
	require.Zero(t, count)
	_, err = store.GetConfig()
	require.ErrorIs(t, err, storage.ErrNotInitialized)

	candidates, err := store.Candidates(storage.CandidateFilter{})
	require.NoError(t, err)
	for _, c := range candidates {
		require.Zero(t, c.Pref1Count)
		require.Zero(t, c.Pref2Count)
		require.Zero(t, c.TotalPoints)
	}
}

func TestConfigStatusDefaultsOpenWhenUninitialized(t *testing.T) {
	store := storage.NewMemoryStore()
	escrow, err := encryption.NewPasswordEscrow(testSystemKey)
	require.NoError(t, err)
	svc := NewVotingService(store, escrow)

	votingOpen, totalVotes, err := svc.ConfigStatus()
	require.NoError(t, err)
	require.True(t, votingOpen)
	require.Zero(t, totalVotes)
}

func TestStats(t *testing.T) {
	svc, _ := newTestService(t)
	submitBallot(t, svc, models.Ballot{"malePresident": {Pref1: "mp_a"}}, models.HouseLeo)
	submitBallot(t, svc, models.Ballot{"malePresident": {Pref1: "mp_b"}}, models.HouseLeo)
	submitBallot(t, svc, models.Ballot{"femalePresident": {Pref1: "fp_a"}}, models.HouseKong)

	stats, err := svc.Stats()
	require.NoError(t, err)
	require.Equal(t, 3, stats.TotalVotes)
	require.Equal(t, []HouseCount{
		{House: models.HouseLeo, Count: 2},
		{House: models.HouseKong, Count: 1},
	}, stats.VotesByHouse)
	require.Len(t, stats.RecentVotes, 3)
	// Newest first.
	require.Equal(t, models.HouseKong, stats.RecentVotes[0].House)
}

func TestSeedFromRosterAddsNota(t *testing.T) {
	svc, store := newTestService(t)
	_ = svc

	candidates, err := store.Candidates(storage.CandidateFilter{PositionID: "malePresident"})
	require.NoError(t, err)
	require.Len(t, candidates, 4)

	notas, err := store.Candidates(storage.CandidateFilter{})
	require.NoError(t, err)
	notaCount := 0
	for _, c := range notas {
		if c.IsNota {
			notaCount++
			require.Equal(t, "NOTA", c.Name)
		}
	}
	// One NOTA per position, including positions with no roster entries.
	require.Equal(t, len(models.Positions), notaCount)
}

func TestSeedFromRosterRejectsUnknownPosition(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.SeedFromRoster(models.Roster{
		"chancellor": {{ID: "x", Name: "X"}},
	})
	require.Error(t, err)
}
