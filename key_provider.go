package pandecrypt

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is the PBKDF2 iteration count used by the sync client
	DefaultIterations = 100000

	// KeySize is the derived key length (AES-256)
	KeySize = 32
)

// DeriveKey derives the container key from a password and per-file salt
// with PBKDF2-HMAC-SHA256. Any password, including the empty one, yields a
// key; a wrong password only shows up later as a padding failure.
func DeriveKey(password, salt []byte, iterations int) []byte {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return pbkdf2.Key(password, salt, iterations, KeySize, sha256.New)
}

// KeyProvider is an interface for providing decryption keys
type KeyProvider interface {
	// DeriveKey derives a key from the given salt
	DeriveKey(salt []byte) ([]byte, error)

	// GenerateSalt generates a new random salt
	GenerateSalt() ([]byte, error)
}

// PBKDF2Params contains parameters for PBKDF2 key derivation
type PBKDF2Params struct {
	Iterations int // Number of iterations (default 100000)
	SaltSize   int // Salt size in bytes (default 16)
	KeySize    int // Derived key size in bytes (default 32)
}

// Validate checks if the parameters are usable
func (p PBKDF2Params) Validate() error {
	if p.Iterations < 1 {
		return NewValidationError("iterations", p.Iterations, "pbkdf2 iterations must be at least 1")
	}
	if p.SaltSize != SaltSize {
		return NewValidationError("salt_size", p.SaltSize, fmt.Sprintf("salt size must be %d bytes", SaltSize))
	}
	switch p.KeySize {
	case 16, 24, 32:
	default:
		return NewValidationError("key_size", p.KeySize, "key size must be 16, 24 or 32 bytes")
	}
	return nil
}

// PasswordKeyProvider implements KeyProvider using PBKDF2-HMAC-SHA256
type PasswordKeyProvider struct {
	password []byte
	params   PBKDF2Params
}

// NewPasswordKeyProvider creates a new password-based key provider
func NewPasswordKeyProvider(password []byte, params PBKDF2Params) *PasswordKeyProvider {
	// Set defaults
	if params.Iterations == 0 {
		params.Iterations = DefaultIterations
	}
	if params.SaltSize == 0 {
		params.SaltSize = SaltSize
	}
	if params.KeySize == 0 {
		params.KeySize = KeySize
	}

	return &PasswordKeyProvider{
		password: password,
		params:   params,
	}
}

// DeriveKey derives a key from the password and salt
func (p *PasswordKeyProvider) DeriveKey(salt []byte) ([]byte, error) {
	if err := p.params.Validate(); err != nil {
		return nil, err
	}
	if len(salt) != p.params.SaltSize {
		return nil, NewValidationError("salt", len(salt), fmt.Sprintf("salt must be %d bytes", p.params.SaltSize))
	}
	return pbkdf2.Key(p.password, salt, p.params.Iterations, p.params.KeySize, sha256.New), nil
}

// GenerateSalt generates a new random salt
func (p *PasswordKeyProvider) GenerateSalt() ([]byte, error) {
	salt := make([]byte, p.params.SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}
