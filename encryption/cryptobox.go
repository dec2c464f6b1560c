package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// AES-256-GCM with a PBKDF2-derived key. The iteration count is
// deliberately high; deriving a key is meant to be slow.
const (
	keyLength  = 32
	ivLength   = 16
	saltLength = 16
	tagLength  = 16
	iterations = 100000
)

// ErrAuthentication is returned when an envelope fails to authenticate:
// wrong password or tampered ciphertext. Decryption never returns
// garbage data silently.
var ErrAuthentication = errors.New("envelope authentication failed")

// Envelope is a self-contained encrypted container. Any holder of the
// correct password can decrypt it without external state.
type Envelope struct {
	Ciphertext []byte `json:"ciphertext"`
	Salt       []byte `json:"salt"`
	IV         []byte `json:"iv"`
	AuthTag    []byte `json:"auth_tag"`
}

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, keyLength, sha256.New)
}

// Encrypt serializes data and encrypts it under a key derived from
// password. Every call draws a fresh salt and IV, so identical inputs
// produce distinct envelopes; ciphertexts cannot be compared to
// fingerprint duplicate ballots.
func Encrypt(data any, password string) (*Envelope, error) {
	plaintext, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize data: %v", err)
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %v", err)
	}
	iv := make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate iv: %v", err)
	}

	gcm, err := newGCM(deriveKey(password, salt))
	if err != nil {
		return nil, err
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)

	// Seal appends the tag; keep it as a separate envelope field.
	split := len(sealed) - tagLength
	return &Envelope{
		Ciphertext: sealed[:split],
		Salt:       salt,
		IV:         iv,
		AuthTag:    sealed[split:],
	}, nil
}

// Decrypt re-derives the key from the envelope's salt, verifies the
// authentication tag and unmarshals the plaintext into v. A tag failure
// is reported as ErrAuthentication.
func Decrypt(env *Envelope, password string, v any) error {
	plaintext, err := DecryptBytes(env, password)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("failed to decode decrypted data: %v", err)
	}
	return nil
}

// DecryptBytes is Decrypt without the JSON decoding step.
func DecryptBytes(env *Envelope, password string) ([]byte, error) {
	if env == nil {
		return nil, errors.New("nil envelope")
	}
	if len(env.Salt) != saltLength || len(env.IV) != ivLength || len(env.AuthTag) != tagLength {
		return nil, ErrAuthentication
	}

	gcm, err := newGCM(deriveKey(password, env.Salt))
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+tagLength)
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.AuthTag...)

	plaintext, err := gcm.Open(nil, env.IV, sealed, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %v", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivLength)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %v", err)
	}
	return gcm, nil
}
