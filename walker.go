package pandecrypt

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
)

// DirRequest describes a directory run
type DirRequest struct {
	Root     string
	Password string

	// Recursive descends into subdirectories; otherwise only the immediate
	// children of Root are processed
	Recursive bool

	// KeepOriginal keeps sources after a successful decryption or copy
	KeepOriginal bool

	// OutputDir mirrors the tree under this directory. Containers are
	// decrypted into it and every other file is copied through. When empty
	// containers are decrypted in place and other files are skipped.
	OutputDir string

	// Progress, when set, is called with (index, total) before each file.
	// Calls are serialized and index increases monotonically.
	Progress ProgressFunc
}

// ProcessDirectory decrypts every container under req.Root.
//
// A missing or non-directory root, an output directory that cannot be
// created, or a root that cannot be listed is fatal and returns a nil
// report. Per-file failures never abort the run; they are tallied in the
// report. A subdirectory that cannot be listed is skipped and reported
// after the file outcomes. When ctx is cancelled the files already started are finished and
// the partial report is returned together with ctx.Err().
func (d *Decryptor) ProcessDirectory(ctx context.Context, req DirRequest) (*BatchReport, error) {
	info, err := d.fs.Stat(req.Root)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, fmt.Errorf("directory %s: %w", req.Root, ErrNotFound)
		}
		return nil, NewIOError("stat", req.Root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", req.Root, ErrNotDirectory)
	}

	if req.OutputDir != "" {
		if err := ensureDir(d.fs, req.OutputDir); err != nil {
			return nil, err
		}
	}

	files, unlisted, err := d.listFiles(req)
	if err != nil {
		return nil, err
	}

	report, err := d.runFiles(ctx, req, files)
	for _, o := range unlisted {
		report.record(o)
		report.Outcomes = append(report.Outcomes, o)
	}
	return report, err
}

// listFiles returns the paths of all files to process, relative to the
// root and sorted, plus a skip outcome for every subdirectory that could
// not be listed. Only a failure to list the root is returned as an error.
// An output directory nested inside the root is not descended into, and
// neither is a symlink to a directory.
func (d *Decryptor) listFiles(req DirRequest) ([]string, []Outcome, error) {
	var outDir string
	if req.OutputDir != "" {
		outDir = filepath.Clean(req.OutputDir)
	}

	var (
		files    []string
		unlisted []Outcome
	)
	var walk func(rel string) error
	walk = func(rel string) error {
		dir := filepath.Join(req.Root, rel)

		f, err := d.fs.Open(dir)
		if err != nil {
			return NewIOError("open", dir, err)
		}
		infos, err := f.Readdir(-1)
		f.Close()
		if err != nil {
			return NewIOError("readdir", dir, err)
		}

		for _, fi := range infos {
			name := filepath.Join(rel, fi.Name())
			full := filepath.Join(req.Root, name)

			if fi.Mode()&os.ModeSymlink != 0 {
				target, err := d.fs.Stat(full)
				if err != nil || !target.Mode().IsRegular() {
					continue
				}
				files = append(files, name)
				continue
			}

			switch {
			case fi.IsDir():
				if !req.Recursive || filepath.Clean(full) == outDir {
					continue
				}
				if err := walk(name); err != nil {
					unlisted = append(unlisted, Outcome{
						Path:   full,
						Action: ActionSkip,
						Reason: ReasonOf(err),
						Err:    err,
					})
				}
			case fi.Mode().IsRegular():
				files = append(files, name)
			}
		}
		return nil
	}

	if err := walk(""); err != nil {
		return nil, nil, err
	}

	sort.Strings(files)
	return files, unlisted, nil
}

// ProcessEntry applies the directory rules to the single file rel below
// req.Root, as if it had been enumerated by ProcessDirectory. The output
// directory is created when missing. req.Progress is not called.
func (d *Decryptor) ProcessEntry(ctx context.Context, req DirRequest, rel string) Outcome {
	src := filepath.Join(req.Root, rel)
	if err := ctx.Err(); err != nil {
		return Outcome{Path: src, Action: ActionSkip, Reason: ReasonIO, Err: err}
	}
	if req.OutputDir != "" {
		if err := ensureDir(d.fs, req.OutputDir); err != nil {
			return Outcome{Path: src, Action: ActionCopy, Reason: ReasonOf(err), Err: err}
		}
	}
	return d.processEntry(req, rel)
}

// processEntry classifies one file and decrypts, copies or skips it
func (d *Decryptor) processEntry(req DirRequest, rel string) (out Outcome) {
	src := filepath.Join(req.Root, rel)
	action := ActionSkip

	defer func() {
		if r := recover(); r != nil {
			out = Outcome{
				Path:   src,
				Action: action,
				Reason: ReasonIO,
				Err:    fmt.Errorf("panic while processing %s: %v", src, r),
			}
		}
	}()

	container := ClassifyFile(d.fs, src)
	switch {
	case container:
		action = ActionDecrypt
	case req.OutputDir != "":
		action = ActionCopy
	default:
		return Outcome{Path: src, Action: ActionSkip}
	}

	if req.OutputDir == "" {
		return d.decryptFile(FileRequest{
			Input:        src,
			Password:     req.Password,
			KeepOriginal: req.KeepOriginal,
		})
	}

	target := filepath.Join(req.OutputDir, rel)
	if err := ensureDir(d.fs, filepath.Dir(target)); err != nil {
		return Outcome{Path: src, Output: target, Action: action, Reason: ReasonOf(err), Err: err}
	}

	if container {
		return d.decryptFile(FileRequest{
			Input:        src,
			Output:       target,
			Password:     req.Password,
			KeepOriginal: req.KeepOriginal,
		})
	}
	return d.copyThrough(src, target, req.KeepOriginal)
}

// copyThrough copies a non-container verbatim, preserving mode and
// modification time where the filesystem allows
func (d *Decryptor) copyThrough(src, target string, keepOriginal bool) Outcome {
	out := Outcome{Path: src, Output: target, Action: ActionCopy}
	fail := func(err error) Outcome {
		out.Err = err
		out.Reason = ReasonOf(err)
		return out
	}

	info, err := d.fs.Stat(src)
	if err != nil {
		return fail(NewIOError("stat", src, err))
	}
	data, err := readFile(d.fs, src)
	if err != nil {
		return fail(err)
	}

	perm := info.Mode().Perm()
	if err := d.writeOutput(target, data, perm); err != nil {
		return fail(err)
	}
	out.BytesWritten = int64(len(data))

	// best effort
	d.fs.Chmod(target, perm)
	d.fs.Chtimes(target, info.ModTime(), info.ModTime())

	if !keepOriginal && !samePath(src, target) {
		if err := d.fs.Remove(src); err != nil {
			return fail(NewIOError("remove", src, err))
		}
	}
	return out
}
