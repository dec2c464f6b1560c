package service

import (
	"errors"
	"fmt"
)

// Submission and administration failures. The API layer maps these onto
// HTTP statuses; nothing below the API layer knows about HTTP.
var (
	// Malformed input: rejected before any state is touched.
	ErrMalformedPin = errors.New("PIN must be exactly 4 digits")

	// Authorization failures on the voting path.
	ErrNotInitialized = errors.New("system not initialized")
	ErrVotingClosed   = errors.New("voting is currently closed")
	ErrInvalidPin     = errors.New("invalid PIN")
	ErrPinUsed        = errors.New("this PIN has already been used")

	// Misconfiguration: the system refuses ballots rather than storing
	// them unencrypted.
	ErrEncryptionDisabled = errors.New("voting requires encryption to be enabled")
	ErrEncryptionFailed   = errors.New("vote encryption failed")

	// Encryption setup preconditions.
	ErrEncryptionEnabled = errors.New("encryption is already enabled")
	ErrVotesExist        = errors.New("cannot enable encryption after votes have been cast")
	ErrWeakPassword      = errors.New("password must be at least 8 characters")
	ErrPasswordMismatch  = errors.New("passwords do not match")

	// Decrypt-to-view and destructive operations.
	ErrInvalidPassword = errors.New("invalid password")
	ErrBadConfirmCode  = errors.New("invalid confirmation code")
)

// BallotError reports which position made a ballot invalid.
type BallotError struct {
	PositionID string
	Reason     string
}

func (e *BallotError) Error() string {
	if e.PositionID == "" {
		return fmt.Sprintf("invalid ballot: %s", e.Reason)
	}
	return fmt.Sprintf("invalid ballot: %s for %s", e.Reason, e.PositionID)
}
