package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"election-backend/encryption"
	"election-backend/models"
	"election-backend/storage"
)

// ResetConfirmCode must be sent verbatim to authorize a full reset.
const ResetConfirmCode = "RESET"

// VotingService orchestrates the election: the end-to-end ballot
// submission path plus the administrative operations around it. It is
// state-free; all state lives in the store.
type VotingService struct {
	store   storage.Store
	escrow  *encryption.PasswordEscrow
	pinGate *PinGate
	tally   *TallyEngine
	metrics *MetricsCollector
}

func NewVotingService(store storage.Store, escrow *encryption.PasswordEscrow) *VotingService {
	return &VotingService{
		store:   store,
		escrow:  escrow,
		pinGate: NewPinGate(store),
		tally:   NewTallyEngine(store, escrow),
		metrics: NewMetricsCollector(),
	}
}

// PinGate exposes the PIN lifecycle for admin endpoints.
func (vs *VotingService) PinGate() *PinGate { return vs.pinGate }

// Tally exposes ranked results and decrypt-to-view.
func (vs *VotingService) Tally() *TallyEngine { return vs.tally }

// Metrics exposes operation timing counters.
func (vs *VotingService) Metrics() *MetricsCollector { return vs.metrics }

// Submit runs the whole voting workflow for one ballot. Failures before
// persistence leave no side effect; persistence happens before the
// tally update, which happens before PIN rotation, so a crash
// mid-sequence leaves a recoverable state (vote recorded, counters or
// PIN possibly stale) rather than a lost ballot.
func (vs *VotingService) Submit(ctx context.Context, pin string, ballot models.Ballot, house string) error {
	start := time.Now()

	// 1-2. PIN format and gate checks (read-only).
	if err := vs.pinGate.Validate(pin); err != nil {
		return err
	}

	// 3. Ballot shape, then membership: every selected candidate must be
	// in the seeded roster, standing for the position voted on.
	if ballot == nil {
		return &BallotError{PositionID: "", Reason: "ballot is required"}
	}
	if err := ValidateBallot(ballot); err != nil {
		return err
	}
	if !models.ValidHouse(house) {
		house = models.HouseUnknown
	}
	candidates, err := vs.store.Candidates(storage.CandidateFilter{})
	if err != nil {
		return fmt.Errorf("failed to load candidates: %v", err)
	}
	byID := make(map[string]models.Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}
	if err := ValidateCandidates(ballot, house, byID); err != nil {
		return err
	}

	// 4. Encryption is mandatory. The open-voting toggle already
	// guarantees this, and the check is repeated here so a ballot can
	// never be stored unencrypted.
	cfg, err := vs.store.GetConfig()
	if err != nil {
		if err == storage.ErrNotInitialized {
			return ErrNotInitialized
		}
		return err
	}
	if !cfg.EncryptionEnabled || cfg.EncryptedDeanPassword == nil {
		log.Printf("[VOTE] Voting attempted without encryption enabled")
		return ErrEncryptionDisabled
	}

	// 5. Encrypt the ballot under the escrowed Dean password.
	deanPassword, err := vs.escrow.Resolve(cfg.EncryptedDeanPassword)
	if err != nil {
		log.Printf("[VOTE] Failed to resolve encryption key: %v", err)
		return ErrEncryptionFailed
	}
	envelope, err := encryption.Encrypt(ballot, deanPassword)
	if err != nil {
		log.Printf("[VOTE] Encryption failed: %v", err)
		return ErrEncryptionFailed
	}

	// 6. Persist the encrypted vote.
	vote := &models.Vote{
		ID:        uuid.New().String(),
		House:     house,
		Ballot:    envelope,
		Timestamp: time.Now(),
	}
	if err := vs.store.SaveVote(vote); err != nil {
		return fmt.Errorf("failed to save vote: %v", err)
	}
	log.Printf("[VOTE] Encrypted vote recorded for house: %s", house)

	// 7. Update the live counters.
	increments := ScoreIncrements(ballot)
	if err := vs.tally.ApplyIncrements(increments); err != nil {
		return err
	}

	// 8. Consume the PIN and rotate a fresh one.
	if err := vs.pinGate.Consume(pin); err != nil {
		// Lost a same-PIN race after persisting. Withdraw this ballot so
		// the spent PIN still maps to exactly one stored vote.
		vs.withdraw(vote, increments)
		return err
	}

	vs.metrics.RecordSubmission(time.Since(start))
	return nil
}

// withdraw removes a persisted vote and reverses its counter deltas.
// Best-effort: failures are logged, not surfaced, since the caller is
// already reporting the submission error.
func (vs *VotingService) withdraw(vote *models.Vote, increments []Increment) {
	if err := vs.store.DeleteVote(vote); err != nil {
		log.Printf("[VOTE] Failed to withdraw vote %s: %v", vote.ID, err)
	}
	reversed := make([]Increment, len(increments))
	for i, inc := range increments {
		reversed[i] = Increment{
			CandidateID: inc.CandidateID,
			Pref1:       -inc.Pref1,
			Pref2:       -inc.Pref2,
			Points:      -inc.Points,
		}
	}
	if err := vs.tally.ApplyIncrements(reversed); err != nil {
		log.Printf("[VOTE] Failed to revert counters for vote %s: %v", vote.ID, err)
	}
}

// EnableEncryption escrows the Dean's chosen password. Allowed only
// once, only before any vote exists; there is no password rotation.
func (vs *VotingService) EnableEncryption(password, confirmPassword string) (time.Time, error) {
	cfg, err := vs.store.GetConfig()
	if err != nil && err != storage.ErrNotInitialized {
		return time.Time{}, err
	}
	if cfg != nil && cfg.EncryptionEnabled {
		return time.Time{}, ErrEncryptionEnabled
	}
	voteCount, err := vs.store.CountVotes()
	if err != nil {
		return time.Time{}, err
	}
	if voteCount > 0 {
		return time.Time{}, ErrVotesExist
	}
	if len(password) < 8 {
		return time.Time{}, ErrWeakPassword
	}
	if password != confirmPassword {
		return time.Time{}, ErrPasswordMismatch
	}

	envelope, err := vs.escrow.Seal(password)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to escrow password: %v", err)
	}
	enabledAt := time.Now()
	if err := vs.store.EnableEncryption(envelope, enabledAt); err != nil {
		return time.Time{}, fmt.Errorf("failed to store encryption config: %v", err)
	}
	log.Printf("[ENCRYPTION] Vote encryption ENABLED")
	return enabledAt, nil
}

// EncryptionStatus reports whether encryption is enabled and since when.
func (vs *VotingService) EncryptionStatus() (bool, *time.Time, error) {
	cfg, err := vs.store.GetConfig()
	if err == storage.ErrNotInitialized {
		return false, nil, nil
	} else if err != nil {
		return false, nil, err
	}
	return cfg.EncryptionEnabled, cfg.EncryptionEnabledAt, nil
}

// SetVotingOpen toggles the voting window. Opening requires encryption
// to be enabled first; closing is always allowed.
func (vs *VotingService) SetVotingOpen(open bool) error {
	if open {
		cfg, err := vs.store.GetConfig()
		if err != nil && err != storage.ErrNotInitialized {
			return err
		}
		if cfg == nil || !cfg.EncryptionEnabled {
			return ErrEncryptionDisabled
		}
	}
	if err := vs.store.SetVotingOpen(open); err != nil {
		return err
	}
	if open {
		vs.metrics.StartVotingPhase()
		log.Printf("[ADMIN] Voting OPENED")
	} else {
		vs.metrics.EndVotingPhase()
		log.Printf("[ADMIN] Voting CLOSED")
	}
	return nil
}

// ResetAll wipes every vote and the config document and zeroes all
// candidate counters. confirmCode must equal ResetConfirmCode exactly;
// anything else rejects with no data deleted.
func (vs *VotingService) ResetAll(confirmCode string) (int, error) {
	if confirmCode != ResetConfirmCode {
		return 0, ErrBadConfirmCode
	}
	deleted, err := vs.store.DeleteVotesAndConfig()
	if err != nil {
		return 0, fmt.Errorf("failed to delete votes and config: %v", err)
	}
	if err := vs.store.ResetCandidateCounts(); err != nil {
		return deleted, fmt.Errorf("failed to reset candidate counts: %v", err)
	}
	log.Printf("[ADMIN] FULL ELECTION RESET. Deleted %d votes.", deleted)
	return deleted, nil
}

// ConfigStatus is the lightweight dashboard view. Voting defaults to
// open when the config document does not exist yet, matching the lazy
// upsert-on-demand lifecycle.
func (vs *VotingService) ConfigStatus() (votingOpen bool, totalVotes int, err error) {
	votingOpen = true
	cfg, err := vs.store.GetConfig()
	if err == nil {
		votingOpen = cfg.VotingOpen
	} else if err != storage.ErrNotInitialized {
		return false, 0, err
	}
	totalVotes, err = vs.store.CountVotes()
	if err != nil {
		return false, 0, err
	}
	return votingOpen, totalVotes, nil
}

// CurrentPin returns the active PIN for the admin dashboard. A missing
// config means no PIN has ever been generated.
func (vs *VotingService) CurrentPin() (*models.ElectionConfig, error) {
	cfg, err := vs.store.GetConfig()
	if err == storage.ErrNotInitialized {
		return nil, ErrNotInitialized
	} else if err != nil {
		return nil, err
	}
	return cfg, nil
}

// HouseCount is a per-house vote total.
type HouseCount struct {
	House string `json:"house"`
	Count int    `json:"count"`
}

// RecentVote is a vote's public metadata; ballot content stays sealed.
type RecentVote struct {
	House     string    `json:"house"`
	Timestamp time.Time `json:"timestamp"`
}

// VoteStats summarizes turnout without touching ballot content.
type VoteStats struct {
	TotalVotes   int          `json:"total_votes"`
	VotesByHouse []HouseCount `json:"votes_by_house"`
	RecentVotes  []RecentVote `json:"recent_votes"`
}

func sortHouseCounts(counts []HouseCount) {
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].House < counts[j].House
	})
}

// Stats reports turnout totals, per-house counts sorted descending, and
// the ten most recent submissions.
func (vs *VotingService) Stats() (*VoteStats, error) {
	votes, err := vs.store.Votes()
	if err != nil {
		return nil, err
	}

	byHouse := make(map[string]int)
	for _, v := range votes {
		byHouse[v.House]++
	}
	stats := &VoteStats{TotalVotes: len(votes)}
	for house, count := range byHouse {
		stats.VotesByHouse = append(stats.VotesByHouse, HouseCount{House: house, Count: count})
	}
	sortHouseCounts(stats.VotesByHouse)

	// Votes come back in submission order; take the newest ten.
	start := len(votes) - 10
	if start < 0 {
		start = 0
	}
	for i := len(votes) - 1; i >= start; i-- {
		stats.RecentVotes = append(stats.RecentVotes, RecentVote{
			House:     votes[i].House,
			Timestamp: votes[i].Timestamp,
		})
	}
	return stats, nil
}

// PublicCandidate is a roster entry as shown to voters. Counters never
// leave through this shape.
type PublicCandidate struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	House   string `json:"house,omitempty"`
	Tagline string `json:"tagline,omitempty"`
	Photo   string `json:"photo,omitempty"`
	IsNota  bool   `json:"is_nota"`
}

// CandidateDirectory lists the seeded roster grouped by position for
// the voting page: real candidates alphabetically, NOTA last.
func (vs *VotingService) CandidateDirectory() (map[string][]PublicCandidate, error) {
	candidates, err := vs.store.Candidates(storage.CandidateFilter{})
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]PublicCandidate)
	for _, c := range candidates {
		grouped[c.PositionID] = append(grouped[c.PositionID], PublicCandidate{
			ID:      c.ID,
			Name:    c.Name,
			House:   c.House,
			Tagline: c.Tagline,
			Photo:   c.Photo,
			IsNota:  c.IsNota,
		})
	}
	for _, list := range grouped {
		sort.Slice(list, func(i, j int) bool {
			if list[i].IsNota != list[j].IsNota {
				return !list[i].IsNota
			}
			return list[i].Name < list[j].Name
		})
	}
	return grouped, nil
}

// SeedFromRoster replaces the candidate set from a roster, adding one
// NOTA candidate per position and zeroing all counters.
func (vs *VotingService) SeedFromRoster(roster models.Roster) (int, error) {
	if err := roster.Validate(); err != nil {
		return 0, err
	}
	candidates := roster.Candidates()
	if err := vs.store.SeedCandidates(candidates); err != nil {
		return 0, fmt.Errorf("failed to seed candidates: %v", err)
	}
	log.Printf("[ADMIN] Seeded %d candidates", len(candidates))
	return len(candidates), nil
}
