package service

import (
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"regexp"
	"time"

	"election-backend/storage"
)

var pinFormat = regexp.MustCompile(`^\d{4}$`)

// PinGate runs the single-use PIN lifecycle that gates ballot
// submission: generate an unused PIN, validate it read-only, and
// consume-and-rotate atomically when a ballot is accepted. The gate
// cycles for the life of the election; there is no terminal state.
type PinGate struct {
	store storage.Store
}

func NewPinGate(store storage.Store) *PinGate {
	return &PinGate{store: store}
}

// newPin draws a uniformly random 4-digit PIN, "0000" through "9999".
func newPin() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("failed to generate PIN: %v", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}

// MaskPin keeps only the last two digits for log output. Full PINs are
// never logged.
func MaskPin(pin string) string {
	if len(pin) < 2 {
		return "**"
	}
	return "**" + pin[len(pin)-2:]
}

// Generate installs a fresh unused PIN, invalidating any prior PIN.
func (g *PinGate) Generate() (pin string, generatedAt time.Time, err error) {
	pin, err = newPin()
	if err != nil {
		return "", time.Time{}, err
	}
	generatedAt = time.Now()
	if err := g.store.RotatePin(pin, generatedAt); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store PIN: %v", err)
	}
	return pin, generatedAt, nil
}

// Validate checks a submitted PIN without consuming it; repeated calls
// before consumption are idempotent. votingOpen is read from config.
func (g *PinGate) Validate(pin string) error {
	if !pinFormat.MatchString(pin) {
		return ErrMalformedPin
	}
	cfg, err := g.store.GetConfig()
	if err == storage.ErrNotInitialized {
		return ErrNotInitialized
	} else if err != nil {
		return err
	}
	if !cfg.VotingOpen {
		return ErrVotingClosed
	}
	if cfg.CurrentPin == "" || pin != cfg.CurrentPin {
		if pin == cfg.LastUsedPin && pin != "" {
			return ErrPinUsed
		}
		log.Printf("[PIN] Invalid attempt: %s", MaskPin(pin))
		return ErrInvalidPin
	}
	if cfg.PinUsed {
		return ErrPinUsed
	}
	return nil
}

// Consume marks pin used and rotates in a fresh PIN for the next voter
// in one atomic storage update. When two submissions race on the same
// PIN only the first writer wins; the loser gets ErrPinUsed.
func (g *PinGate) Consume(pin string) error {
	next, err := newPin()
	if err != nil {
		return err
	}
	switch err := g.store.ConsumePin(pin, next, time.Now()); err {
	case nil:
		log.Printf("[PIN] New PIN generated: %s (auto-generated after vote)", MaskPin(next))
		return nil
	case storage.ErrNotInitialized:
		return ErrNotInitialized
	case storage.ErrPinMismatch:
		return ErrInvalidPin
	case storage.ErrPinUsed:
		return ErrPinUsed
	default:
		return err
	}
}
