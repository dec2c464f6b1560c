package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"election-backend/encryption"
	"election-backend/models"
	"election-backend/storage"
)

// TallyEngine aggregates score increments into the live candidate
// counters and produces ranked results. It also runs the decrypt-to-view
// flow, which re-tallies from the encrypted votes themselves as an
// independent cross-check of the live counters.
type TallyEngine struct {
	store  storage.Store
	escrow *encryption.PasswordEscrow
}

func NewTallyEngine(store storage.Store, escrow *encryption.PasswordEscrow) *TallyEngine {
	return &TallyEngine{store: store, escrow: escrow}
}

// ApplyIncrements applies each delta as an atomic per-candidate update.
// Increments within one ballot are independent; there is no
// cross-candidate transaction.
func (te *TallyEngine) ApplyIncrements(increments []Increment) error {
	for _, inc := range increments {
		err := te.store.IncrementCandidate(inc.CandidateID, inc.Pref1, inc.Pref2, inc.Points)
		if err == storage.ErrCandidateNotFound {
			// A reseed can retire a candidate between ballot validation
			// and this update; drop the delta rather than fail the vote.
			log.Printf("[TALLY] Skipping increment for unknown candidate %s", inc.CandidateID)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to update candidate %s: %v", inc.CandidateID, err)
		}
	}
	return nil
}

// rankCandidates orders by total points, then pref1 count, then pref2
// count, all descending, with candidate id ascending as the final
// tie-break so equal score tuples still rank deterministically.
func rankCandidates(candidates []models.Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if a.Pref1Count != b.Pref1Count {
			return a.Pref1Count > b.Pref1Count
		}
		if a.Pref2Count != b.Pref2Count {
			return a.Pref2Count > b.Pref2Count
		}
		return a.ID < b.ID
	})
}

// RankedResults returns the live standings, optionally filtered by
// position and house.
func (te *TallyEngine) RankedResults(positionID, house string) ([]models.Candidate, error) {
	candidates, err := te.store.Candidates(storage.CandidateFilter{
		PositionID: positionID,
		House:      house,
	})
	if err != nil {
		return nil, err
	}
	rankCandidates(candidates)
	return candidates, nil
}

// DecryptedResult is one candidate's totals recomputed from decrypted
// ballots.
type DecryptedResult struct {
	CandidateID string `json:"candidate_id"`
	Name        string `json:"name"`
	House       string `json:"house,omitempty"`
	PositionID  string `json:"position_id"`
	Pref1Count  int    `json:"pref1_count"`
	Pref2Count  int    `json:"pref2_count"`
	TotalPoints int    `json:"total_points"`
}

// DecryptedTally is the outcome of a decrypt-to-view run.
type DecryptedTally struct {
	Results        []DecryptedResult `json:"results"`
	TotalVotes     int               `json:"total_votes"`
	DecryptedVotes int               `json:"decrypted_votes"`
	ErrorCount     int               `json:"error_count"`
	DecryptedAt    time.Time         `json:"decrypted_at"`
}

// DecryptAndTally verifies the Dean's password, decrypts every stored
// vote and re-derives the per-candidate scores exactly as submission
// did. A vote that fails to decrypt or authenticate is counted in
// ErrorCount and skipped; one corrupted record never aborts the run.
// The loop observes ctx so a slow run can be cancelled, and takes no
// lock shared with the live voting path.
func (te *TallyEngine) DecryptAndTally(ctx context.Context, password string) (*DecryptedTally, error) {
	cfg, err := te.store.GetConfig()
	if err == storage.ErrNotInitialized {
		return nil, ErrNotInitialized
	} else if err != nil {
		return nil, err
	}
	if !cfg.EncryptionEnabled || cfg.EncryptedDeanPassword == nil {
		return nil, ErrEncryptionDisabled
	}
	if !te.escrow.Verify(password, cfg.EncryptedDeanPassword) {
		log.Printf("[ENCRYPTION] Invalid decryption password attempt")
		return nil, ErrInvalidPassword
	}

	votes, err := te.store.Votes()
	if err != nil {
		return nil, err
	}
	candidates, err := te.store.Candidates(storage.CandidateFilter{})
	if err != nil {
		return nil, err
	}
	lookup := make(map[string]models.Candidate, len(candidates))
	for _, c := range candidates {
		lookup[c.ID] = c
	}

	type key struct{ position, candidate string }
	totals := make(map[key]*DecryptedResult)
	tally := &DecryptedTally{TotalVotes: len(votes)}

	for _, vote := range votes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var ballot models.Ballot
		if err := encryption.Decrypt(vote.Ballot, password, &ballot); err != nil {
			log.Printf("[ENCRYPTION] Failed to decrypt vote %s: %v", vote.ID, err)
			tally.ErrorCount++
			continue
		}
		tally.DecryptedVotes++

		for positionID, selection := range ballot {
			actual := positionID
			if positionID == models.GenericCaptainPosition {
				if mapped, ok := models.CaptainPositionFor(vote.House); ok {
					actual = mapped
				}
			}
			for _, inc := range ScoreIncrements(models.Ballot{actual: selection}) {
				c, known := lookup[inc.CandidateID]
				if !known {
					// Ballot references a candidate no longer seeded; the
					// live counters skipped it too.
					continue
				}
				k := key{position: actual, candidate: inc.CandidateID}
				r, ok := totals[k]
				if !ok {
					r = &DecryptedResult{
						CandidateID: inc.CandidateID,
						PositionID:  actual,
						Name:        c.Name,
						House:       c.House,
					}
					totals[k] = r
				}
				r.Pref1Count += inc.Pref1
				r.Pref2Count += inc.Pref2
				r.TotalPoints += inc.Points
			}
		}
	}

	tally.Results = make([]DecryptedResult, 0, len(totals))
	for _, r := range totals {
		tally.Results = append(tally.Results, *r)
	}
	sort.Slice(tally.Results, func(i, j int) bool {
		a, b := tally.Results[i], tally.Results[j]
		if a.PositionID != b.PositionID {
			return a.PositionID < b.PositionID
		}
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if a.Pref1Count != b.Pref1Count {
			return a.Pref1Count > b.Pref1Count
		}
		if a.Pref2Count != b.Pref2Count {
			return a.Pref2Count > b.Pref2Count
		}
		return a.CandidateID < b.CandidateID
	})
	tally.DecryptedAt = time.Now()

	log.Printf("[ENCRYPTION] Results decrypted. %d votes decrypted, %d errors.",
		tally.DecryptedVotes, tally.ErrorCount)
	return tally, nil
}
