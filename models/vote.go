package models

import (
	"time"

	"election-backend/encryption"
)

// Vote is one stored ballot. The ballot content exists only inside the
// envelope; no plaintext selection is ever persisted.
type Vote struct {
	ID        string               `json:"id"`
	House     string               `json:"house"`
	Ballot    *encryption.Envelope `json:"ballot"`
	Timestamp time.Time            `json:"timestamp"`
}
