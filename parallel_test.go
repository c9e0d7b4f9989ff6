package pandecrypt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/absfs/absfs"
)

// panicFS panics when a file whose name contains trigger is opened for
// writing
type panicFS struct {
	absfs.FileSystem
	trigger string
}

func (p *panicFS) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR) != 0 && strings.Contains(name, p.trigger) {
		panic("simulated write failure for " + name)
	}
	return p.FileSystem.OpenFile(name, flag, perm)
}

func populateMixed(t *testing.T, fs absfs.FileSystem, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			writeTestFile(t, fs, fmt.Sprintf("/in/file%02d.enc", i), sealTestData(t, []byte(fmt.Sprintf("payload %d", i)), "pw"))
		} else {
			writeTestFile(t, fs, fmt.Sprintf("/in/file%02d.txt", i), []byte("plain"))
		}
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	const n = 24

	var reports []*BatchReport
	for _, workers := range []int{1, 4} {
		fs := setupTestFS(t)
		populateMixed(t, fs, n)
		d := newTestDecryptor(t, fs, workers)

		var mu sync.Mutex
		last := 0
		monotonic := true
		report, err := d.ProcessDirectory(context.Background(), DirRequest{
			Root:      "/in",
			Password:  "pw",
			OutputDir: "/out",
			Progress: func(index, total int) {
				mu.Lock()
				defer mu.Unlock()
				if index != last+1 || total != n {
					monotonic = false
				}
				last = index
			},
		})
		if err != nil {
			t.Fatalf("workers=%d: ProcessDirectory() failed: %v", workers, err)
		}
		if !monotonic || last != n {
			t.Errorf("workers=%d: progress not monotonic (last %d)", workers, last)
		}
		if report.DecryptedOK != n/2 || report.Copied != n/2 {
			t.Errorf("workers=%d: report = %s", workers, report.Summary())
		}
		for i := 0; i < n; i += 2 {
			name := fmt.Sprintf("/out/file%02d.enc", i)
			if got := readTestFile(t, fs, name); string(got) != fmt.Sprintf("payload %d", i) {
				t.Errorf("workers=%d: %s = %q", workers, name, got)
			}
		}
		reports = append(reports, report)
	}

	seq, par := reports[0], reports[1]
	if len(seq.Outcomes) != len(par.Outcomes) {
		t.Fatalf("outcome counts differ: %d vs %d", len(seq.Outcomes), len(par.Outcomes))
	}
	for i := range seq.Outcomes {
		if seq.Outcomes[i].Path != par.Outcomes[i].Path || seq.Outcomes[i].Action != par.Outcomes[i].Action {
			t.Errorf("Outcomes[%d] = %s/%v, want %s/%v", i,
				par.Outcomes[i].Path, par.Outcomes[i].Action, seq.Outcomes[i].Path, seq.Outcomes[i].Action)
		}
	}
}

func TestProcessDirectoryCancellation(t *testing.T) {
	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			fs := setupTestFS(t)
			populateMixed(t, fs, 10)
			d := newTestDecryptor(t, fs, workers)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			report, err := d.ProcessDirectory(ctx, DirRequest{
				Root:         "/in",
				Password:     "pw",
				OutputDir:    "/out",
				KeepOriginal: true,
				Progress: func(index, total int) {
					if index == 3 {
						cancel()
					}
				},
			})
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("error = %v, want context.Canceled", err)
			}
			if report == nil {
				t.Fatal("cancellation must return the partial report")
			}
			if n := len(report.Outcomes); n < 2 || n > 3 {
				t.Errorf("len(Outcomes) = %d, want 2 or 3", n)
			}
			if report.Total() != len(report.Outcomes) {
				t.Errorf("Total() = %d, len(Outcomes) = %d", report.Total(), len(report.Outcomes))
			}
			for _, o := range report.Outcomes {
				if !o.OK() {
					t.Errorf("in-flight file %s did not complete: %s", o.Path, o.Detail())
				}
			}
		})
	}
}

func TestProcessDirectoryPreCancelled(t *testing.T) {
	fs := setupTestFS(t)
	populateMixed(t, fs, 4)
	d := newTestDecryptor(t, fs, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := d.ProcessDirectory(ctx, DirRequest{Root: "/in", Password: "pw"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if report == nil || report.Total() != 0 {
		t.Errorf("report = %+v, want empty", report)
	}
	if !exists(fs, "/in/file00.enc") {
		t.Error("no file should be touched")
	}
}

// TestWorkerPanicRecovery checks that a panic while handling one file is
// recorded as that file's failure and the batch continues
func TestWorkerPanicRecovery(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			base := setupTestFS(t)
			populateMixed(t, base, 6)
			writeTestFile(t, base, "/in/boom.txt", []byte("explodes"))

			fs := &panicFS{FileSystem: base, trigger: "boom"}
			d := newTestDecryptor(t, fs, workers)

			report, err := d.ProcessDirectory(context.Background(), DirRequest{
				Root:      "/in",
				Password:  "pw",
				OutputDir: "/out",
			})
			if err != nil {
				t.Fatalf("ProcessDirectory() failed: %v", err)
			}

			if report.CopyFailed != 1 {
				t.Errorf("CopyFailed = %d, want 1", report.CopyFailed)
			}
			if report.DecryptedOK != 3 || report.Copied != 3 {
				t.Errorf("report = %s", report.Summary())
			}

			var found bool
			for _, o := range report.Outcomes {
				if o.Path != "/in/boom.txt" {
					continue
				}
				found = true
				if o.Reason != ReasonIO || !strings.Contains(o.Detail(), "panic") {
					t.Errorf("boom.txt outcome = %v %q", o.Reason, o.Detail())
				}
			}
			if !found {
				t.Error("boom.txt missing from outcomes")
			}
			if !exists(base, "/in/boom.txt") {
				t.Error("source of a failed copy must be kept")
			}
		})
	}
}
