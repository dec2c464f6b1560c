package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"election-backend/encryption"
	"election-backend/models"
)

var (
	configBucket     = []byte("config")
	candidatesBucket = []byte("candidates")
	votesBucket      = []byte("votes")

	configKey = []byte("election")
)

// BoltStore is the durable Store backed by a single bbolt file. bbolt
// serializes update transactions, which makes ConsumePin and
// IncrementCandidate atomic without any application-level locking.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if needed) the election database under
// dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	absPath, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %v", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	db, err := bolt.Open(filepath.Join(absPath, "election.db"), 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open election database: %v", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{configBucket, candidatesBucket, votesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %v", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func getConfigTx(tx *bolt.Tx) (*models.ElectionConfig, error) {
	data := tx.Bucket(configBucket).Get(configKey)
	if data == nil {
		return nil, ErrNotInitialized
	}
	var cfg models.ElectionConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %v", err)
	}
	return &cfg, nil
}

func putConfigTx(tx *bolt.Tx, cfg *models.ElectionConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %v", err)
	}
	return tx.Bucket(configBucket).Put(configKey, data)
}

// upsertConfig applies mutate to the existing config document, creating
// a zero-valued one first if none exists.
func (s *BoltStore) upsertConfig(mutate func(cfg *models.ElectionConfig)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		cfg, err := getConfigTx(tx)
		if err == ErrNotInitialized {
			cfg = &models.ElectionConfig{}
		} else if err != nil {
			return err
		}
		mutate(cfg)
		return putConfigTx(tx, cfg)
	})
}

func (s *BoltStore) GetConfig() (*models.ElectionConfig, error) {
	var cfg *models.ElectionConfig
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		cfg, err = getConfigTx(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *BoltStore) SetVotingOpen(open bool) error {
	return s.upsertConfig(func(cfg *models.ElectionConfig) {
		cfg.VotingOpen = open
	})
}

func (s *BoltStore) RotatePin(pin string, at time.Time) error {
	return s.upsertConfig(func(cfg *models.ElectionConfig) {
		cfg.CurrentPin = pin
		cfg.PinUsed = false
		cfg.PinGeneratedAt = &at
	})
}

func (s *BoltStore) ConsumePin(pin, next string, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		cfg, err := getConfigTx(tx)
		if err != nil {
			return err
		}
		if cfg.CurrentPin == "" || cfg.CurrentPin != pin {
			if pin != "" && pin == cfg.LastUsedPin {
				return ErrPinUsed
			}
			return ErrPinMismatch
		}
		if cfg.PinUsed {
			return ErrPinUsed
		}
		// Mark used and rotate in one transaction; the next voter's PIN
		// is live the instant this ballot is accepted.
		cfg.LastUsedPin = pin
		cfg.CurrentPin = next
		cfg.PinUsed = false
		cfg.PinGeneratedAt = &at
		return putConfigTx(tx, cfg)
	})
}

func (s *BoltStore) EnableEncryption(env *encryption.Envelope, at time.Time) error {
	return s.upsertConfig(func(cfg *models.ElectionConfig) {
		cfg.EncryptionEnabled = true
		cfg.EncryptedDeanPassword = env
		cfg.EncryptionEnabledAt = &at
	})
}

func (s *BoltStore) SeedCandidates(candidates []models.Candidate) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(candidatesBucket); err != nil {
			return err
		}
		b, err := tx.CreateBucket(candidatesBucket)
		if err != nil {
			return err
		}
		for i := range candidates {
			data, err := json.Marshal(&candidates[i])
			if err != nil {
				return fmt.Errorf("failed to encode candidate %s: %v", candidates[i].ID, err)
			}
			if err := b.Put([]byte(candidates[i].ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) Candidates(filter CandidateFilter) ([]models.Candidate, error) {
	var out []models.Candidate
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(candidatesBucket).ForEach(func(_, data []byte) error {
			var c models.Candidate
			if err := json.Unmarshal(data, &c); err != nil {
				return fmt.Errorf("failed to decode candidate: %v", err)
			}
			if matchesFilter(&c, filter) {
				out = append(out, c)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func matchesFilter(c *models.Candidate, filter CandidateFilter) bool {
	if filter.PositionID != "" && c.PositionID != filter.PositionID {
		return false
	}
	if filter.House != "" && c.House != filter.House {
		return false
	}
	if filter.ExcludeNota && c.IsNota {
		return false
	}
	return true
}

func (s *BoltStore) IncrementCandidate(id string, dPref1, dPref2, dPoints int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(candidatesBucket)
		data := b.Get([]byte(id))
		if data == nil {
			return ErrCandidateNotFound
		}
		var c models.Candidate
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("failed to decode candidate %s: %v", id, err)
		}
		c.Pref1Count += dPref1
		c.Pref2Count += dPref2
		c.TotalPoints += dPoints
		updated, err := json.Marshal(&c)
		if err != nil {
			return fmt.Errorf("failed to encode candidate %s: %v", id, err)
		}
		return b.Put([]byte(id), updated)
	})
}

func (s *BoltStore) ResetCandidateCounts() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(candidatesBucket)

		// Collect first; writing while the cursor iterates invalidates it.
		updates := make(map[string][]byte)
		err := b.ForEach(func(k, data []byte) error {
			var cand models.Candidate
			if err := json.Unmarshal(data, &cand); err != nil {
				return fmt.Errorf("failed to decode candidate: %v", err)
			}
			cand.Pref1Count = 0
			cand.Pref2Count = 0
			cand.TotalPoints = 0
			updated, err := json.Marshal(&cand)
			if err != nil {
				return err
			}
			updates[string(k)] = updated
			return nil
		})
		if err != nil {
			return err
		}
		for k, data := range updates {
			if err := b.Put([]byte(k), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) SaveVote(vote *models.Vote) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		key := voteKey(vote)
		data, err := json.Marshal(vote)
		if err != nil {
			return fmt.Errorf("failed to encode vote: %v", err)
		}
		return tx.Bucket(votesBucket).Put(key, data)
	})
}

func (s *BoltStore) DeleteVote(vote *models.Vote) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(votesBucket).Delete(voteKey(vote))
	})
}

// voteKey orders votes by submission time; the record id breaks ties.
func voteKey(vote *models.Vote) []byte {
	return []byte(fmt.Sprintf("%020d-%s", vote.Timestamp.UnixNano(), vote.ID))
}

func (s *BoltStore) Votes() ([]models.Vote, error) {
	var out []models.Vote
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(votesBucket).ForEach(func(_, data []byte) error {
			var v models.Vote
			if err := json.Unmarshal(data, &v); err != nil {
				return fmt.Errorf("failed to decode vote: %v", err)
			}
			out = append(out, v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) CountVotes() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(votesBucket).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *BoltStore) DeleteVotesAndConfig() (int, error) {
	var deleted int
	err := s.db.Update(func(tx *bolt.Tx) error {
		deleted = tx.Bucket(votesBucket).Stats().KeyN
		if err := tx.DeleteBucket(votesBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucket(votesBucket); err != nil {
			return err
		}
		return tx.Bucket(configBucket).Delete(configKey)
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
