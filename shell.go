package pandecrypt

import (
	"context"
	"errors"
	"fmt"
)

// Convenience wrappers over the host filesystem for presentation layers
// that only need a success flag and a message.

// DefaultPassword is the stock password of the sync client
const DefaultPassword = "123456"

// DecryptFile decrypts a single file on the host filesystem. Output and
// outputDir may be empty; see ResolveOutputPath.
func DecryptFile(input, output, password string, keepOriginal bool, outputDir string) (bool, string) {
	d, err := New(NewOSFS(), &Config{})
	if err != nil {
		return false, err.Error()
	}

	o := d.DecryptFile(context.Background(), FileRequest{
		Input:        input,
		Output:       output,
		OutputDir:    outputDir,
		Password:     password,
		KeepOriginal: keepOriginal,
	})
	return o.OK(), o.Message()
}

// ProcessDirectory runs a directory batch on the host filesystem and
// returns the summary line
func ProcessDirectory(root, password string, recursive, keepOriginal bool, outputDir string, progress ProgressFunc) (bool, string) {
	d, err := New(NewOSFS(), &Config{})
	if err != nil {
		return false, err.Error()
	}

	report, err := d.ProcessDirectory(context.Background(), DirRequest{
		Root:         root,
		Password:     password,
		Recursive:    recursive,
		KeepOriginal: keepOriginal,
		OutputDir:    outputDir,
		Progress:     progress,
	})
	if err != nil {
		return false, FatalMessage(root, err)
	}
	return true, report.Summary()
}

// LooksLikeContainer reports whether the host file at path passes the
// container heuristic
func LooksLikeContainer(path string) bool {
	return ClassifyFile(NewOSFS(), path)
}

// FatalMessage renders a fatal ProcessDirectory error for display
func FatalMessage(root string, err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return fmt.Sprintf("error: directory does not exist: %s", root)
	case errors.Is(err, ErrNotDirectory):
		return fmt.Sprintf("error: not a directory: %s", root)
	case IsIOError(err):
		var ie *IOError
		errors.As(err, &ie)
		return fmt.Sprintf("error: cannot %s %s", ie.Operation, ie.Path)
	default:
		return fmt.Sprintf("error processing directory: %v", err)
	}
}
