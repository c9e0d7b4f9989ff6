package pandecrypt

import (
	"fmt"
	"io"

	"github.com/absfs/absfs"
)

const (
	// SaltSize is the size of the per-file PBKDF2 salt
	SaltSize = 16

	// IVSize is the size of the CBC initialisation vector
	IVSize = BlockSize

	// HeaderSize is salt + IV
	HeaderSize = SaltSize + IVSize

	// MinContainerSize is the smallest file classified as a container:
	// header plus one cipher block
	MinContainerSize = HeaderSize + BlockSize
)

// Container is the on-disk layout of one encrypted file:
// salt(16) || iv(16) || ciphertext
type Container struct {
	Salt       []byte
	IV         []byte
	Ciphertext []byte
}

// Split slices raw container bytes into salt, IV and ciphertext. The
// returned slices alias data.
func Split(data []byte) (*Container, error) {
	if len(data) < HeaderSize {
		return nil, NewFormatError("", fmt.Errorf("need at least %d header bytes, got %d: %w",
			HeaderSize, len(data), ErrShortHeader))
	}

	return &Container{
		Salt:       data[:SaltSize],
		IV:         data[SaltSize:HeaderSize],
		Ciphertext: data[HeaderSize:],
	}, nil
}

// Size returns the total size of the container in bytes
func (c *Container) Size() int {
	return len(c.Salt) + len(c.IV) + len(c.Ciphertext)
}

// Bytes returns the serialized container
func (c *Container) Bytes() []byte {
	out := make([]byte, 0, c.Size())
	out = append(out, c.Salt...)
	out = append(out, c.IV...)
	return append(out, c.Ciphertext...)
}

// WriteTo writes the container to the given writer
func (c *Container) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(c.Bytes())
	return int64(n), err
}

// Validate checks that the container is structurally sound
func (c *Container) Validate() error {
	if len(c.Salt) != SaltSize {
		return NewValidationError("salt", len(c.Salt), fmt.Sprintf("salt must be %d bytes", SaltSize))
	}
	if err := ValidateIV(c.IV); err != nil {
		return err
	}
	return ValidateCiphertext(c.Ciphertext)
}

// Open derives the key for password and returns the plaintext. A
// non-positive iteration count selects DefaultIterations.
func (c *Container) Open(password []byte, iterations int) ([]byte, error) {
	return c.OpenWith(passwordProvider(password, iterations))
}

// OpenWith decrypts the container with the key kp derives from its salt
func (c *Container) OpenWith(kp KeyProvider) ([]byte, error) {
	key, err := kp.DeriveKey(c.Salt)
	if err != nil {
		return nil, err
	}
	engine, err := newEngine(key)
	if err != nil {
		return nil, err
	}
	return engine.Decrypt(c.IV, c.Ciphertext)
}

// Seal builds a container for plaintext under password with a fresh random
// salt and IV
func Seal(plaintext, password []byte, iterations int) ([]byte, error) {
	c, err := SealContainer(plaintext, password, iterations)
	if err != nil {
		return nil, err
	}
	return c.Bytes(), nil
}

// SealContainer is Seal without the serialization step
func SealContainer(plaintext, password []byte, iterations int) (*Container, error) {
	kp := passwordProvider(password, iterations)
	salt, err := kp.GenerateSalt()
	if err != nil {
		return nil, err
	}
	iv, err := GenerateIV()
	if err != nil {
		return nil, err
	}
	return sealWith(plaintext, kp, salt, iv)
}

// SealWith builds a container with a caller-chosen salt and IV
func SealWith(plaintext, password, salt, iv []byte, iterations int) ([]byte, error) {
	c, err := sealWith(plaintext, passwordProvider(password, iterations), salt, iv)
	if err != nil {
		return nil, err
	}
	return c.Bytes(), nil
}

func sealWith(plaintext []byte, kp KeyProvider, salt, iv []byte) (*Container, error) {
	if len(salt) != SaltSize {
		return nil, NewValidationError("salt", len(salt), fmt.Sprintf("salt must be %d bytes", SaltSize))
	}

	key, err := kp.DeriveKey(salt)
	if err != nil {
		return nil, err
	}
	engine, err := newEngine(key)
	if err != nil {
		return nil, err
	}
	ciphertext, err := engine.Encrypt(iv, plaintext)
	if err != nil {
		return nil, err
	}
	return &Container{Salt: salt, IV: iv, Ciphertext: ciphertext}, nil
}

func passwordProvider(password []byte, iterations int) KeyProvider {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return NewPasswordKeyProvider(password, PBKDF2Params{Iterations: iterations})
}

// Classify reports whether data is long enough to be a container. It is a
// heuristic: the format has no magic bytes.
func Classify(data []byte) bool {
	return len(data) >= MinContainerSize
}

// ClassifyFile reports whether the file at name looks like a container: it
// is a regular file of at least MinContainerSize bytes whose header can be
// read. Any error counts as "not a container".
func ClassifyFile(fs absfs.FileSystem, name string) bool {
	info, err := fs.Stat(name)
	if err != nil || info.IsDir() || info.Size() < MinContainerSize {
		return false
	}

	f, err := fs.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()

	header := make([]byte, HeaderSize)
	_, err = io.ReadFull(f, header)
	return err == nil
}
