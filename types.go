package pandecrypt

import (
	"fmt"
	"runtime"
)

// Reason classifies why a single file could not be decrypted
type Reason uint8

const (
	// ReasonNone means the file was handled successfully
	ReasonNone Reason = iota
	// ReasonNotFound means the input path does not exist
	ReasonNotFound
	// ReasonNotAContainer means the file failed the container heuristic
	ReasonNotAContainer
	// ReasonAuthOrFormatMismatch covers wrong passwords, corrupted data,
	// bad padding and malformed ciphertext; the format cannot tell them apart
	ReasonAuthOrFormatMismatch
	// ReasonIO means a filesystem operation failed
	ReasonIO
)

// String returns the string representation of the reason
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "ok"
	case ReasonNotFound:
		return "not-found"
	case ReasonNotAContainer:
		return "not-a-container"
	case ReasonAuthOrFormatMismatch:
		return "auth-or-format-mismatch"
	case ReasonIO:
		return "io-error"
	default:
		return "unknown"
	}
}

// Action records what the engine did with a file
type Action uint8

const (
	// ActionDecrypt routes the file through the decryptor
	ActionDecrypt Action = iota
	// ActionCopy copies a non-container verbatim into the output tree
	ActionCopy
	// ActionSkip leaves a non-container untouched (in-place mode)
	ActionSkip
)

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case ActionDecrypt:
		return "decrypt"
	case ActionCopy:
		return "copy"
	case ActionSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// Outcome is the result of handling one file
type Outcome struct {
	Path         string // Input path
	Output       string // Resolved output path, empty for skipped files
	Action       Action
	Reason       Reason
	BytesWritten int64
	Err          error // Underlying error for failed outcomes
}

// OK reports whether the file was handled successfully
func (o Outcome) OK() bool {
	return o.Reason == ReasonNone
}

// Message returns a human-readable message for the outcome. It never
// includes the raw underlying error; see Detail for that.
func (o Outcome) Message() string {
	switch o.Reason {
	case ReasonNone:
		switch o.Action {
		case ActionCopy:
			return fmt.Sprintf("copied: %s", o.Output)
		case ActionSkip:
			return fmt.Sprintf("skipped: %s", o.Path)
		}
		return fmt.Sprintf("decrypted: %s", o.Output)
	case ReasonNotFound:
		return fmt.Sprintf("file not found: %s", o.Path)
	case ReasonNotAContainer:
		return fmt.Sprintf("not an encrypted file: %s", o.Path)
	case ReasonAuthOrFormatMismatch:
		return fmt.Sprintf("decryption failed for %s: the password may be wrong or the file is corrupted", o.Path)
	case ReasonIO:
		return fmt.Sprintf("file system error while processing %s", o.Path)
	default:
		return fmt.Sprintf("unknown failure for %s", o.Path)
	}
}

// Detail returns the underlying diagnostic, suitable for bug reports
func (o Outcome) Detail() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// BatchReport aggregates the outcomes of a directory run
type BatchReport struct {
	DecryptedOK     int
	DecryptedFailed int
	Copied          int
	CopyFailed      int
	Skipped         int

	// Outcomes holds one entry per enumerated file, in enumeration order
	Outcomes []Outcome
}

// Total returns the number of files accounted for in the report
func (r *BatchReport) Total() int {
	return r.DecryptedOK + r.DecryptedFailed + r.Copied + r.CopyFailed + r.Skipped
}

// Failed returns the number of per-file failures
func (r *BatchReport) Failed() int {
	return r.DecryptedFailed + r.CopyFailed
}

// BytesWritten sums the bytes written by successful decryptions and copies
func (r *BatchReport) BytesWritten() int64 {
	var n int64
	for _, o := range r.Outcomes {
		n += o.BytesWritten
	}
	return n
}

// Summary returns the one-line completion message
func (r *BatchReport) Summary() string {
	s := fmt.Sprintf("done: ok %d, failed %d, copied %d, skipped %d",
		r.DecryptedOK, r.DecryptedFailed, r.Copied, r.Skipped)
	if r.CopyFailed > 0 {
		s += fmt.Sprintf(", copy failed %d", r.CopyFailed)
	}
	return s
}

// record tallies an outcome. Callers serialize access.
func (r *BatchReport) record(o Outcome) {
	switch o.Action {
	case ActionDecrypt:
		if o.OK() {
			r.DecryptedOK++
		} else {
			r.DecryptedFailed++
		}
	case ActionCopy:
		if o.OK() {
			r.Copied++
		} else {
			r.CopyFailed++
		}
	case ActionSkip:
		r.Skipped++
	}
}

// ProgressFunc receives the 1-based index of the file about to be processed
// and the total number of files
type ProgressFunc func(index, total int)

// Config contains configuration for the decryptor
type Config struct {
	// Iterations is the PBKDF2 iteration count (default 100000)
	Iterations int

	// Workers bounds file-level parallelism in ProcessDirectory.
	// 0 or 1 processes files strictly sequentially.
	Workers int

	// AtomicWrite writes outputs to a temporary sibling and renames it into
	// place once the write succeeded
	AtomicWrite bool
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.Iterations < 0 {
		return NewValidationError("iterations", c.Iterations, "iterations cannot be negative")
	}
	if c.Workers < 0 {
		return NewValidationError("workers", c.Workers, "workers cannot be negative")
	}
	if c.Workers > MaxWorkers {
		return NewValidationError("workers", c.Workers, fmt.Sprintf("workers must not exceed %d", MaxWorkers))
	}
	return nil
}

// withDefaults returns a copy of the config with zero values filled in
func (c Config) withDefaults() Config {
	if c.Iterations == 0 {
		c.Iterations = DefaultIterations
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
	return c
}

// DefaultParallelConfig returns a config that uses one worker per CPU
func DefaultParallelConfig() Config {
	return Config{
		Iterations: DefaultIterations,
		Workers:    runtime.NumCPU(),
	}
}
