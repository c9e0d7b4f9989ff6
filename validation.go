package pandecrypt

import (
	"fmt"
)

// ValidateKey checks that a key selects one of the AES variants
func ValidateKey(key []byte) error {
	switch len(key) {
	case 16, 24, 32:
		return nil
	}
	return &ValidationError{
		Field:   "key",
		Value:   len(key),
		Message: fmt.Sprintf("invalid key size: got %d bytes, expected 16, 24 or 32 bytes", len(key)),
		Err:     ErrInvalidKey,
	}
}

// ValidateIV checks that an IV is exactly one block long
func ValidateIV(iv []byte) error {
	if len(iv) != BlockSize {
		return &ValidationError{
			Field:   "iv",
			Value:   len(iv),
			Message: fmt.Sprintf("invalid iv size: got %d bytes, expected %d bytes", len(iv), BlockSize),
			Err:     ErrInvalidIV,
		}
	}
	return nil
}

// ValidateCiphertext checks that ciphertext is a nonzero multiple of the
// block size
func ValidateCiphertext(ciphertext []byte) error {
	if len(ciphertext) == 0 || len(ciphertext)%BlockSize != 0 {
		return NewFormatError("", fmt.Errorf("ciphertext length %d is not a nonzero multiple of %d: %w",
			len(ciphertext), BlockSize, ErrInvalidCiphertext))
	}
	return nil
}

// ValidateFilePath checks if a file path is valid (not empty)
func ValidateFilePath(path string) error {
	if path == "" {
		return &ValidationError{
			Field:   "path",
			Message: "file path cannot be empty",
		}
	}
	return nil
}
