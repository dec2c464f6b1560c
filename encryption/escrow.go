package encryption

import (
	"errors"
	"time"
)

// The Dean's ballot-encryption password is itself stored encrypted under
// a server-wide system key so the server can encrypt each incoming vote
// without prompting the Dean. The system key is configured out-of-band
// and is never derivable from any user password.

const minSystemKeyLength = 32

// ErrSystemKeyMissing means the server-wide key is absent or too short.
// This is fatal misconfiguration; the server must refuse to operate
// rather than fall back to storing ballots unencrypted.
var ErrSystemKeyMissing = errors.New("system encryption key missing or shorter than 32 characters")

// PasswordEscrow seals and resolves the Dean's password under the
// system key. It holds no mutable state; the sealed envelope lives in
// the election config.
type PasswordEscrow struct {
	systemKey string
}

type escrowedPassword struct {
	Password string `json:"password"`
	// Timestamp varies the plaintext so two escrows of the same
	// password share no structure.
	Timestamp int64 `json:"timestamp"`
}

// NewPasswordEscrow validates the system key up front.
func NewPasswordEscrow(systemKey string) (*PasswordEscrow, error) {
	if len(systemKey) < minSystemKeyLength {
		return nil, ErrSystemKeyMissing
	}
	return &PasswordEscrow{systemKey: systemKey}, nil
}

// Seal encrypts the Dean's password under the system key.
func (pe *PasswordEscrow) Seal(deanPassword string) (*Envelope, error) {
	return Encrypt(escrowedPassword{
		Password:  deanPassword,
		Timestamp: time.Now().UnixMilli(),
	}, pe.systemKey)
}

// Resolve decrypts the stored envelope back into the Dean's password.
func (pe *PasswordEscrow) Resolve(env *Envelope) (string, error) {
	var stored escrowedPassword
	if err := Decrypt(env, pe.systemKey, &stored); err != nil {
		return "", err
	}
	return stored.Password, nil
}

// Verify reports whether candidate matches the escrowed password. Any
// internal failure counts as a mismatch; Verify never errors.
func (pe *PasswordEscrow) Verify(candidate string, env *Envelope) bool {
	if env == nil {
		return false
	}
	stored, err := pe.Resolve(env)
	if err != nil {
		return false
	}
	return stored == candidate
}
