package storage

import (
	"sort"
	"sync"
	"time"

	"election-backend/encryption"
	"election-backend/models"
)

// MemoryStore is the volatile Store used when the durable database
// cannot be opened (degraded mode) and in tests. It honors the same
// atomicity contract as BoltStore: every operation runs under one
// mutex, so ConsumePin is a single conditional update.
type MemoryStore struct {
	mu         sync.RWMutex
	config     *models.ElectionConfig
	candidates map[string]*models.Candidate
	votes      []models.Vote
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		candidates: make(map[string]*models.Candidate),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) GetConfig() (*models.ElectionConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.config == nil {
		return nil, ErrNotInitialized
	}
	cfg := *s.config
	return &cfg, nil
}

func (s *MemoryStore) upsertConfig(mutate func(cfg *models.ElectionConfig)) {
	if s.config == nil {
		s.config = &models.ElectionConfig{}
	}
	mutate(s.config)
}

func (s *MemoryStore) SetVotingOpen(open bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertConfig(func(cfg *models.ElectionConfig) {
		cfg.VotingOpen = open
	})
	return nil
}

func (s *MemoryStore) RotatePin(pin string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertConfig(func(cfg *models.ElectionConfig) {
		cfg.CurrentPin = pin
		cfg.PinUsed = false
		cfg.PinGeneratedAt = &at
	})
	return nil
}

func (s *MemoryStore) ConsumePin(pin, next string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return ErrNotInitialized
	}
	if s.config.CurrentPin == "" || s.config.CurrentPin != pin {
		if pin != "" && pin == s.config.LastUsedPin {
			return ErrPinUsed
		}
		return ErrPinMismatch
	}
	if s.config.PinUsed {
		return ErrPinUsed
	}
	s.config.LastUsedPin = pin
	s.config.CurrentPin = next
	s.config.PinUsed = false
	s.config.PinGeneratedAt = &at
	return nil
}

func (s *MemoryStore) EnableEncryption(env *encryption.Envelope, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertConfig(func(cfg *models.ElectionConfig) {
		cfg.EncryptionEnabled = true
		cfg.EncryptedDeanPassword = env
		cfg.EncryptionEnabledAt = &at
	})
	return nil
}

func (s *MemoryStore) SeedCandidates(candidates []models.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates = make(map[string]*models.Candidate, len(candidates))
	for i := range candidates {
		c := candidates[i]
		s.candidates[c.ID] = &c
	}
	return nil
}

func (s *MemoryStore) Candidates(filter CandidateFilter) ([]models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Candidate
	for _, c := range s.candidates {
		if matchesFilter(c, filter) {
			out = append(out, *c)
		}
	}
	// Map iteration order is random; return a stable listing.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) IncrementCandidate(id string, dPref1, dPref2, dPoints int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[id]
	if !ok {
		return ErrCandidateNotFound
	}
	c.Pref1Count += dPref1
	c.Pref2Count += dPref2
	c.TotalPoints += dPoints
	return nil
}

func (s *MemoryStore) ResetCandidateCounts() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.candidates {
		c.Pref1Count = 0
		c.Pref2Count = 0
		c.TotalPoints = 0
	}
	return nil
}

func (s *MemoryStore) SaveVote(vote *models.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes = append(s.votes, *vote)
	return nil
}

func (s *MemoryStore) DeleteVote(vote *models.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.votes {
		if s.votes[i].ID == vote.ID {
			s.votes = append(s.votes[:i], s.votes[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) Votes() ([]models.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Vote, len(s.votes))
	copy(out, s.votes)
	return out, nil
}

func (s *MemoryStore) CountVotes() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.votes), nil
}

func (s *MemoryStore) DeleteVotesAndConfig() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := len(s.votes)
	s.votes = nil
	s.config = nil
	return deleted, nil
}
