package models

import (
	"time"

	"election-backend/encryption"
)

// ElectionConfig is the single mutable configuration document for a
// deployment. It is created lazily on first write and deleted only by a
// full reset. VotingOpen implies EncryptionEnabled; the toggle boundary
// enforces that, not the data layer.
type ElectionConfig struct {
	VotingOpen     bool       `json:"voting_open"`
	CurrentPin     string     `json:"current_pin,omitempty"`
	PinUsed        bool       `json:"pin_used"`
	PinGeneratedAt *time.Time `json:"pin_generated_at,omitempty"`
	// LastUsedPin remembers the most recently consumed PIN so a voter
	// resubmitting it is told the PIN was used, not that it never
	// existed. Consumption rotates CurrentPin in the same atomic step.
	LastUsedPin string `json:"last_used_pin,omitempty"`

	EncryptionEnabled     bool                 `json:"encryption_enabled"`
	EncryptedDeanPassword *encryption.Envelope `json:"encrypted_dean_password,omitempty"`
	EncryptionEnabledAt   *time.Time           `json:"encryption_enabled_at,omitempty"`
}
