package pandecrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// BlockSize is the AES block size in bytes
const BlockSize = aes.BlockSize

// CipherEngine provides block-mode encryption/decryption
type CipherEngine interface {
	// Encrypt pads and encrypts plaintext with the given IV
	Encrypt(iv, plaintext []byte) ([]byte, error)

	// Decrypt decrypts ciphertext with the given IV and removes the padding
	Decrypt(iv, ciphertext []byte) ([]byte, error)

	// IVSize returns the size of IVs in bytes
	IVSize() int
}

// CBCEngine implements CipherEngine using AES in CBC mode with PKCS#7 padding
type CBCEngine struct {
	block cipher.Block
}

// newEngine returns the engine of the container format
func newEngine(key []byte) (CipherEngine, error) {
	e, err := NewCBCEngine(key)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// NewCBCEngine creates a new AES-CBC engine. The key selects AES-128, -192
// or -256 by its length.
func NewCBCEngine(key []byte) (*CBCEngine, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	return &CBCEngine{block: block}, nil
}

// Encrypt pads plaintext to the block size and encrypts it
func (e *CBCEngine) Encrypt(iv, plaintext []byte) ([]byte, error) {
	if err := ValidateIV(iv); err != nil {
		return nil, err
	}

	padded := Pad(plaintext, BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(e.block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext, nil
}

// Decrypt decrypts ciphertext and strips the PKCS#7 padding. Malformed
// ciphertext yields a FormatError, bad padding an AuthenticationError.
func (e *CBCEngine) Decrypt(iv, ciphertext []byte) ([]byte, error) {
	if err := ValidateIV(iv); err != nil {
		return nil, err
	}
	if err := ValidateCiphertext(ciphertext); err != nil {
		return nil, err
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(e.block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := Unpad(plaintext, BlockSize)
	if err != nil {
		return nil, NewAuthenticationError("", err)
	}
	return unpadded, nil
}

// IVSize returns the IV size for CBC (one block)
func (e *CBCEngine) IVSize() int {
	return BlockSize
}

// Pad applies PKCS#7 padding. A full block of padding is added when data is
// already aligned.
func Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data), len(data)+n)
	copy(padded, data)
	return append(padded, bytes.Repeat([]byte{byte(n)}, n)...)
}

// Unpad removes PKCS#7 padding. The last byte n must satisfy
// 1 <= n <= blockSize and the last n bytes must all equal n.
func Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrInvalidPadding
	}

	n := int(data[len(data)-1])
	if n < 1 || n > blockSize {
		return nil, ErrInvalidPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrInvalidPadding
		}
	}
	return data[:len(data)-n], nil
}

// GenerateIV generates a random IV
func GenerateIV() ([]byte, error) {
	iv := make([]byte, BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}
	return iv, nil
}
