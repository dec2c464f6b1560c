// File: storage/storage.go
package storage

import (
	"errors"
	"time"

	"election-backend/encryption"
	"election-backend/models"
)

// Store errors surfaced to the service layer. ErrPinMismatch and
// ErrPinUsed are the two losing outcomes of the conditional consume.
var (
	ErrNotInitialized    = errors.New("election config not initialized")
	ErrPinMismatch       = errors.New("pin does not match current pin")
	ErrPinUsed           = errors.New("pin already used")
	ErrCandidateNotFound = errors.New("candidate not found")
)

// CandidateFilter narrows candidate listings.
type CandidateFilter struct {
	PositionID  string
	House       string
	ExcludeNota bool
}

// Store is the persistence contract for the election. Implementations
// must make ConsumePin a single atomic conditional update and
// IncrementCandidate an atomic per-candidate increment; those two
// guarantees carry the whole concurrency model. The workflow is written
// against this interface and is agnostic to whether it is backed by the
// durable bolt store or the volatile in-memory one.
type Store interface {
	// GetConfig returns ErrNotInitialized when no config document
	// exists yet. Mutating config operations upsert on demand.
	GetConfig() (*models.ElectionConfig, error)
	SetVotingOpen(open bool) error
	// RotatePin installs a fresh unused PIN, invalidating any prior one.
	RotatePin(pin string, at time.Time) error
	// ConsumePin marks the current PIN used only if it matches pin and
	// is currently unused, and installs next as the fresh unused PIN in
	// the same atomic step. Losers get ErrPinMismatch or ErrPinUsed.
	ConsumePin(pin, next string, at time.Time) error
	EnableEncryption(env *encryption.Envelope, at time.Time) error

	// SeedCandidates replaces the whole candidate set.
	SeedCandidates(candidates []models.Candidate) error
	Candidates(filter CandidateFilter) ([]models.Candidate, error)
	IncrementCandidate(id string, dPref1, dPref2, dPoints int) error
	ResetCandidateCounts() error

	SaveVote(vote *models.Vote) error
	// DeleteVote removes one stored vote. Deleting a vote that does not
	// exist is not an error.
	DeleteVote(vote *models.Vote) error
	// Votes returns all stored votes in submission order.
	Votes() ([]models.Vote, error)
	CountVotes() (int, error)

	// DeleteVotesAndConfig implements the full reset: all votes and the
	// config document removed. Candidate counters are reset separately.
	DeleteVotesAndConfig() (deletedVotes int, err error)

	Close() error
}
