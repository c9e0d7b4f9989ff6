package pandecrypt

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/absfs/absfs"
	"github.com/google/uuid"
)

// FileRequest describes a single-file decryption
type FileRequest struct {
	// Input is the container to decrypt
	Input string

	// Output is the explicit output path. When empty the path is derived,
	// see ResolveOutputPath.
	Output string

	// OutputDir places the output at OutputDir/basename(Input) when Output
	// is empty
	OutputDir string

	Password string

	// KeepOriginal keeps the input after a successful decryption
	KeepOriginal bool
}

// ResolveOutputPath returns where the plaintext for req is written. An
// explicit Output wins, then OutputDir/basename(Input). Otherwise a
// case-insensitive ".enc" suffix is stripped, or ".dec" is appended.
func ResolveOutputPath(req FileRequest) string {
	switch {
	case req.Output != "":
		return req.Output
	case req.OutputDir != "":
		return filepath.Join(req.OutputDir, filepath.Base(req.Input))
	case len(req.Input) > len(".enc") && strings.EqualFold(filepath.Ext(req.Input), ".enc"):
		return req.Input[:len(req.Input)-len(".enc")]
	default:
		return req.Input + ".dec"
	}
}

// DecryptFile decrypts one container. The returned Outcome always carries
// ActionDecrypt; failures are reported through Reason and Err, never
// panics or printed output.
func (d *Decryptor) DecryptFile(ctx context.Context, req FileRequest) Outcome {
	if err := ctx.Err(); err != nil {
		return Outcome{Path: req.Input, Action: ActionDecrypt, Reason: ReasonIO, Err: err}
	}
	return d.decryptFile(req)
}

func (d *Decryptor) decryptFile(req FileRequest) Outcome {
	out := Outcome{Path: req.Input, Action: ActionDecrypt}
	fail := func(err error) Outcome {
		out.Err = err
		out.Reason = ReasonOf(err)
		return out
	}

	if err := ValidateFilePath(req.Input); err != nil {
		// an empty path names no file
		return fail(fmt.Errorf("%w: %w", ErrNotFound, err))
	}

	if _, err := d.fs.Stat(req.Input); err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return fail(fmt.Errorf("%s: %w", req.Input, ErrNotFound))
		}
		return fail(NewIOError("stat", req.Input, err))
	}

	out.Output = ResolveOutputPath(req)
	if err := ensureDir(d.fs, filepath.Dir(out.Output)); err != nil {
		return fail(err)
	}

	data, err := readFile(d.fs, req.Input)
	if err != nil {
		return fail(err)
	}

	if !Classify(data) {
		return fail(fmt.Errorf("%s: %w", req.Input, ErrNotAContainer))
	}

	c, err := Split(data)
	if err == nil {
		err = c.Validate()
	}
	if err != nil {
		return fail(fmt.Errorf("%s: %w", req.Input, err))
	}
	plaintext, err := c.Open([]byte(req.Password), d.config.Iterations)
	if err != nil {
		return fail(fmt.Errorf("%s: %w", req.Input, err))
	}

	if err := d.writeOutput(out.Output, plaintext, 0644); err != nil {
		return fail(err)
	}
	out.BytesWritten = int64(len(plaintext))

	if !req.KeepOriginal && !samePath(req.Input, out.Output) {
		if err := d.fs.Remove(req.Input); err != nil {
			return fail(NewIOError("remove", req.Input, err))
		}
	}

	return out
}

// writeOutput writes data to name, through a temporary sibling and rename
// when AtomicWrite is set. Without it a failed write may leave a truncated
// file behind.
func (d *Decryptor) writeOutput(name string, data []byte, perm os.FileMode) error {
	if !d.config.AtomicWrite {
		return writeFile(d.fs, name, data, perm)
	}

	dir, base := filepath.Split(name)
	tmp := filepath.Join(dir, "."+base+"."+uuid.NewString()+".tmp")
	if err := writeFile(d.fs, tmp, data, perm); err != nil {
		d.fs.Remove(tmp)
		return err
	}
	if err := d.fs.Rename(tmp, name); err != nil {
		d.fs.Remove(tmp)
		return NewIOError("rename", name, err)
	}
	return nil
}

func readFile(fs absfs.FileSystem, name string) ([]byte, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, NewIOError("open", name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, NewIOError("read", name, err)
	}
	return data, nil
}

func writeFile(fs absfs.FileSystem, name string, data []byte, perm os.FileMode) error {
	f, err := fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return NewIOError("create", name, err)
	}

	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return NewIOError("write", name, err)
	}
	return nil
}

// ensureDir creates dir and its parents. Losing a creation race to another
// worker is not an error.
func ensureDir(fs absfs.FileSystem, dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		if info, serr := fs.Stat(dir); serr == nil && info.IsDir() {
			return nil
		}
		return NewIOError("mkdir", dir, err)
	}
	return nil
}

// samePath guards against deleting the only copy when output and input
// resolve to the same file
func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}
