package pandecrypt

import (
	"context"
	"sync"
)

// MaxWorkers is the upper bound for Config.Workers
const MaxWorkers = 1024

// runFiles processes files in enumeration order, on a bounded pool when
// more than one worker is configured. Files are the unit of parallelism;
// a single container is always decrypted by one goroutine.
func (d *Decryptor) runFiles(ctx context.Context, req DirRequest, files []string) (*BatchReport, error) {
	report := &BatchReport{}
	total := len(files)

	numWorkers := d.config.Workers
	if numWorkers > total {
		numWorkers = total
	}

	// Sequential processing
	if numWorkers <= 1 {
		for i, rel := range files {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			if req.Progress != nil {
				req.Progress(i+1, total)
			}
			o := d.processEntry(req, rel)
			report.record(o)
			report.Outcomes = append(report.Outcomes, o)
		}
		return report, nil
	}

	// Parallel processing
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = make([]Outcome, total)
		done     = make([]bool, total)
	)
	jobChan := make(chan int)

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobChan {
				o := d.processEntry(req, files[idx])

				mu.Lock()
				outcomes[idx] = o
				done[idx] = true
				report.record(o)
				mu.Unlock()
			}
		}()
	}

	// Dispatch from a single goroutine so progress stays ordered
	var cancelErr error
	for i := range files {
		if err := ctx.Err(); err != nil {
			cancelErr = err
			break
		}
		if req.Progress != nil {
			req.Progress(i+1, total)
		}
		select {
		case jobChan <- i:
		case <-ctx.Done():
			cancelErr = ctx.Err()
		}
		if cancelErr != nil {
			break
		}
	}
	close(jobChan)

	wg.Wait()

	for i, ok := range done {
		if ok {
			report.Outcomes = append(report.Outcomes, outcomes[i])
		}
	}
	return report, cancelErr
}
