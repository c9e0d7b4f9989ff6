package pandecrypt

import (
	"fmt"

	"github.com/absfs/absfs"
)

// Decryptor decrypts containers stored on an absfs.FileSystem
type Decryptor struct {
	fs     absfs.FileSystem
	config Config
}

// New creates a new decryptor over the given filesystem
func New(fs absfs.FileSystem, config *Config) (*Decryptor, error) {
	if fs == nil {
		return nil, ErrNilFileSystem
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Decryptor{
		fs:     fs,
		config: config.withDefaults(),
	}, nil
}

// FileSystem returns the filesystem the decryptor operates on
func (d *Decryptor) FileSystem() absfs.FileSystem {
	return d.fs
}

// Config returns the effective configuration, defaults applied
func (d *Decryptor) Config() Config {
	return d.config
}

// LooksLikeContainer reports whether the file at path passes the container
// heuristic
func (d *Decryptor) LooksLikeContainer(path string) bool {
	return ClassifyFile(d.fs, path)
}
