package pandecrypt

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/absfs/absfs"
	"github.com/absfs/memfs"
)

// Low iteration count keeps fixture generation fast; the format does not
// record it, so decryptor and fixtures must agree.
const testIterations = 1000

func setupTestFS(t testing.TB) absfs.FileSystem {
	t.Helper()

	fs, err := memfs.NewFS()
	if err != nil {
		t.Fatalf("failed to create memfs: %v", err)
	}
	return fs
}

func newTestDecryptor(t testing.TB, fs absfs.FileSystem, workers int) *Decryptor {
	t.Helper()

	d, err := New(fs, &Config{Iterations: testIterations, Workers: workers})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return d
}

func writeTestFile(t testing.TB, fs absfs.FileSystem, name string, data []byte) {
	t.Helper()

	if err := fs.MkdirAll(filepath.Dir(name), 0755); err != nil {
		t.Fatalf("MkdirAll(%q) failed: %v", filepath.Dir(name), err)
	}
	f, err := fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		t.Fatalf("OpenFile(%q) failed: %v", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		t.Fatalf("Write(%q) failed: %v", name, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close(%q) failed: %v", name, err)
	}
}

func readTestFile(t testing.TB, fs absfs.FileSystem, name string) []byte {
	t.Helper()

	f, err := fs.Open(name)
	if err != nil {
		t.Fatalf("Open(%q) failed: %v", name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll(%q) failed: %v", name, err)
	}
	return data
}

func exists(fs absfs.FileSystem, name string) bool {
	_, err := fs.Stat(name)
	return err == nil
}

// sealTestData builds a container with the reference encryptor
func sealTestData(t testing.TB, plaintext []byte, password string) []byte {
	t.Helper()

	data, err := Seal(plaintext, []byte(password), testIterations)
	if err != nil {
		t.Fatalf("Seal() failed: %v", err)
	}
	return data
}

func TestNew(t *testing.T) {
	fs := setupTestFS(t)

	t.Run("nil filesystem", func(t *testing.T) {
		if _, err := New(nil, &Config{}); !errors.Is(err, ErrNilFileSystem) {
			t.Errorf("New(nil) error = %v, want ErrNilFileSystem", err)
		}
	})

	t.Run("nil config", func(t *testing.T) {
		if _, err := New(fs, nil); !errors.Is(err, ErrNilConfig) {
			t.Errorf("New(fs, nil) error = %v, want ErrNilConfig", err)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := New(fs, &Config{Workers: -1})
		if !IsValidationError(err) {
			t.Errorf("New() error = %v, want ValidationError", err)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		d, err := New(fs, &Config{})
		if err != nil {
			t.Fatalf("New() failed: %v", err)
		}
		cfg := d.Config()
		if cfg.Iterations != DefaultIterations {
			t.Errorf("Iterations = %d, want %d", cfg.Iterations, DefaultIterations)
		}
		if cfg.Workers != 1 {
			t.Errorf("Workers = %d, want 1", cfg.Workers)
		}
		if d.FileSystem() != fs {
			t.Error("FileSystem() did not return the wrapped filesystem")
		}
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "zero value", config: Config{}},
		{name: "parallel", config: DefaultParallelConfig()},
		{name: "atomic", config: Config{AtomicWrite: true}},
		{name: "negative iterations", config: Config{Iterations: -1}, wantErr: true},
		{name: "negative workers", config: Config{Workers: -2}, wantErr: true},
		{name: "too many workers", config: Config{Workers: MaxWorkers + 1}, wantErr: true},
		{name: "max workers", config: Config{Workers: MaxWorkers}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsValidationError(err) {
				t.Errorf("Validate() error = %T, want *ValidationError", err)
			}
		})
	}
}

func TestResolveOutputPath(t *testing.T) {
	tests := []struct {
		name string
		req  FileRequest
		want string
	}{
		{
			name: "explicit output wins",
			req:  FileRequest{Input: "/a/b.enc", Output: "/x/y", OutputDir: "/out"},
			want: "/x/y",
		},
		{
			name: "output dir keeps basename",
			req:  FileRequest{Input: "/a/b.enc", OutputDir: "/out"},
			want: "/out/b.enc",
		},
		{
			name: "strip enc suffix",
			req:  FileRequest{Input: "/a/report.pdf.enc"},
			want: "/a/report.pdf",
		},
		{
			name: "strip upper case suffix",
			req:  FileRequest{Input: "/a/photo.ENC"},
			want: "/a/photo",
		},
		{
			name: "append dec",
			req:  FileRequest{Input: "/a/data.bin"},
			want: "/a/data.bin.dec",
		},
		{
			name: "bare suffix is not stripped",
			req:  FileRequest{Input: ".enc"},
			want: ".enc.dec",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveOutputPath(tt.req); got != tt.want {
				t.Errorf("ResolveOutputPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecryptFile(t *testing.T) {
	plaintext := []byte("the quick brown fox jumps over the lazy dog")

	t.Run("success removes source", func(t *testing.T) {
		fs := setupTestFS(t)
		d := newTestDecryptor(t, fs, 1)
		writeTestFile(t, fs, "/sync/notes.txt.enc", sealTestData(t, plaintext, "123456"))

		o := d.DecryptFile(context.Background(), FileRequest{Input: "/sync/notes.txt.enc", Password: "123456"})
		if !o.OK() {
			t.Fatalf("DecryptFile() failed: %s (%s)", o.Message(), o.Detail())
		}
		if o.Output != "/sync/notes.txt" {
			t.Errorf("Output = %q, want /sync/notes.txt", o.Output)
		}
		if o.BytesWritten != int64(len(plaintext)) {
			t.Errorf("BytesWritten = %d, want %d", o.BytesWritten, len(plaintext))
		}
		if got := readTestFile(t, fs, "/sync/notes.txt"); !bytes.Equal(got, plaintext) {
			t.Errorf("plaintext = %q, want %q", got, plaintext)
		}
		if exists(fs, "/sync/notes.txt.enc") {
			t.Error("source should have been removed")
		}
	})

	t.Run("keep original", func(t *testing.T) {
		fs := setupTestFS(t)
		d := newTestDecryptor(t, fs, 1)
		writeTestFile(t, fs, "/sync/a.bin", sealTestData(t, plaintext, "pw"))

		o := d.DecryptFile(context.Background(), FileRequest{Input: "/sync/a.bin", Password: "pw", KeepOriginal: true})
		if !o.OK() {
			t.Fatalf("DecryptFile() failed: %s", o.Detail())
		}
		if o.Output != "/sync/a.bin.dec" {
			t.Errorf("Output = %q, want /sync/a.bin.dec", o.Output)
		}
		if !exists(fs, "/sync/a.bin") {
			t.Error("source should have been kept")
		}
	})

	t.Run("output dir is created", func(t *testing.T) {
		fs := setupTestFS(t)
		d := newTestDecryptor(t, fs, 1)
		writeTestFile(t, fs, "/sync/a.enc", sealTestData(t, plaintext, "pw"))

		o := d.DecryptFile(context.Background(), FileRequest{Input: "/sync/a.enc", Password: "pw", OutputDir: "/restored/deep"})
		if !o.OK() {
			t.Fatalf("DecryptFile() failed: %s", o.Detail())
		}
		if got := readTestFile(t, fs, "/restored/deep/a.enc"); !bytes.Equal(got, plaintext) {
			t.Errorf("plaintext = %q, want %q", got, plaintext)
		}
	})

	t.Run("not found", func(t *testing.T) {
		fs := setupTestFS(t)
		d := newTestDecryptor(t, fs, 1)

		o := d.DecryptFile(context.Background(), FileRequest{Input: "/missing.enc", Password: "pw"})
		if o.Reason != ReasonNotFound {
			t.Errorf("Reason = %v, want %v", o.Reason, ReasonNotFound)
		}
		if !errors.Is(o.Err, ErrNotFound) {
			t.Errorf("Err = %v, want ErrNotFound", o.Err)
		}
	})

	t.Run("short file is not a container", func(t *testing.T) {
		fs := setupTestFS(t)
		d := newTestDecryptor(t, fs, 1)
		writeTestFile(t, fs, "/short.enc", make([]byte, MinContainerSize-1))

		o := d.DecryptFile(context.Background(), FileRequest{Input: "/short.enc", Password: "pw"})
		if o.Reason != ReasonNotAContainer {
			t.Errorf("Reason = %v, want %v", o.Reason, ReasonNotAContainer)
		}
		if !exists(fs, "/short.enc") {
			t.Error("source must never be removed on failure")
		}
		if exists(fs, "/short") {
			t.Error("no output should be written for a non-container")
		}
	})

	t.Run("wrong password keeps source", func(t *testing.T) {
		fs := setupTestFS(t)
		d := newTestDecryptor(t, fs, 1)
		writeTestFile(t, fs, "/x.enc", sealTestData(t, bytes.Repeat([]byte("k"), 32), "right"))

		o := d.DecryptFile(context.Background(), FileRequest{Input: "/x.enc", Password: "wrong"})
		if o.OK() {
			t.Skip("wrong key produced valid padding by chance")
		}
		if o.Reason != ReasonAuthOrFormatMismatch {
			t.Errorf("Reason = %v, want %v", o.Reason, ReasonAuthOrFormatMismatch)
		}
		if !exists(fs, "/x.enc") {
			t.Error("source must never be removed on failure")
		}
		msg := o.Message()
		if !strings.Contains(msg, "password may be wrong") || !strings.Contains(msg, "corrupted") {
			t.Errorf("Message() = %q, want both causes mentioned", msg)
		}
	})

	t.Run("misaligned ciphertext", func(t *testing.T) {
		fs := setupTestFS(t)
		d := newTestDecryptor(t, fs, 1)
		data := sealTestData(t, plaintext, "pw")
		writeTestFile(t, fs, "/trunc.enc", data[:len(data)-3])

		o := d.DecryptFile(context.Background(), FileRequest{Input: "/trunc.enc", Password: "pw"})
		if o.Reason != ReasonAuthOrFormatMismatch {
			t.Errorf("Reason = %v, want %v", o.Reason, ReasonAuthOrFormatMismatch)
		}
		if !IsFormatError(o.Err) || !errors.Is(o.Err, ErrInvalidCiphertext) {
			t.Errorf("Err = %v, want FormatError wrapping ErrInvalidCiphertext", o.Err)
		}
		if exists(fs, "/trunc") {
			t.Error("no output should be written for a malformed container")
		}
	})

	t.Run("empty input is not found", func(t *testing.T) {
		fs := setupTestFS(t)
		d := newTestDecryptor(t, fs, 1)

		o := d.DecryptFile(context.Background(), FileRequest{Input: "", Password: "pw"})
		if o.Reason != ReasonNotFound {
			t.Errorf("Reason = %v, want %v", o.Reason, ReasonNotFound)
		}
		if !IsValidationError(o.Err) {
			t.Errorf("Err = %v, want the path validation error kept in the chain", o.Err)
		}
	})

	t.Run("same input and output is not deleted", func(t *testing.T) {
		fs := setupTestFS(t)
		d := newTestDecryptor(t, fs, 1)
		writeTestFile(t, fs, "/self.enc", sealTestData(t, plaintext, "pw"))

		o := d.DecryptFile(context.Background(), FileRequest{Input: "/self.enc", Output: "/self.enc", Password: "pw"})
		if !o.OK() {
			t.Fatalf("DecryptFile() failed: %s", o.Detail())
		}
		if got := readTestFile(t, fs, "/self.enc"); !bytes.Equal(got, plaintext) {
			t.Errorf("content = %q, want %q", got, plaintext)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		fs := setupTestFS(t)
		d := newTestDecryptor(t, fs, 1)
		writeTestFile(t, fs, "/c.enc", sealTestData(t, plaintext, "pw"))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		o := d.DecryptFile(ctx, FileRequest{Input: "/c.enc", Password: "pw"})
		if !errors.Is(o.Err, context.Canceled) {
			t.Errorf("Err = %v, want context.Canceled", o.Err)
		}
		if !exists(fs, "/c.enc") {
			t.Error("cancelled request must not touch the source")
		}
	})
}

func TestLooksLikeContainer(t *testing.T) {
	fs := setupTestFS(t)
	d := newTestDecryptor(t, fs, 1)

	writeTestFile(t, fs, "/c.enc", sealTestData(t, []byte("x"), "pw"))
	writeTestFile(t, fs, "/small", []byte("tiny"))
	if err := fs.MkdirAll("/dir", 0755); err != nil {
		t.Fatal(err)
	}

	if !d.LooksLikeContainer("/c.enc") {
		t.Error("container not recognised")
	}
	for _, name := range []string{"/small", "/dir", "/missing"} {
		if d.LooksLikeContainer(name) {
			t.Errorf("LooksLikeContainer(%q) = true, want false", name)
		}
	}
}
