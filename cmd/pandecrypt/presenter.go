package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/docker/go-units"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/absfs/pandecrypt"
)

// Presenter renders engine results. Implementations are only called from
// the goroutine that owns them.
type Presenter interface {
	Start(title string)
	Progress(index, total int)
	Outcome(o pandecrypt.Outcome)
	Finish(report *pandecrypt.BatchReport)
	Fatal(msg string)
}

// NewPresenter picks the live terminal presenter when w is a terminal and
// the line based one otherwise
func NewPresenter(w io.Writer) Presenter {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return &ttyPresenter{w: w}
	}
	return &plainPresenter{w: w}
}

type plainPresenter struct {
	w io.Writer
}

func (p *plainPresenter) Start(title string) {
	fmt.Fprintln(p.w, title)
}

// Progress is silent; a line per file would drown the outcomes
func (p *plainPresenter) Progress(index, total int) {
	log.Debugf("processing %d/%d", index, total)
}

func (p *plainPresenter) Outcome(o pandecrypt.Outcome) {
	if o.OK() {
		fmt.Fprintln(p.w, o.Message())
		return
	}
	fmt.Fprintf(p.w, "error: %s\n", o.Message())
	if d := o.Detail(); d != "" {
		log.Debugf("%s: %s", o.Path, d)
	}
}

func (p *plainPresenter) Finish(report *pandecrypt.BatchReport) {
	fmt.Fprintln(p.w, summaryLine(report))
}

func (p *plainPresenter) Fatal(msg string) {
	fmt.Fprintln(p.w, msg)
}

// ttyPresenter redraws a single progress line and colors outcomes
type ttyPresenter struct {
	w       io.Writer
	drawn   bool
	lastLen int
}

var (
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed)
	dimColor  = color.New(color.FgYellow)
)

func (p *ttyPresenter) Start(title string) {
	color.New(color.Bold).Fprintln(p.w, title)
}

func (p *ttyPresenter) Progress(index, total int) {
	pct := 100
	if total > 0 {
		pct = index * 100 / total
	}
	const width = 30
	filled := pct * width / 100
	line := fmt.Sprintf("[%s%s] %3d%% %d/%d", strings.Repeat("#", filled), strings.Repeat(".", width-filled), pct, index, total)

	fmt.Fprintf(p.w, "\r%s", line)
	if pad := p.lastLen - len(line); pad > 0 {
		fmt.Fprint(p.w, strings.Repeat(" ", pad))
	}
	p.lastLen = len(line)
	p.drawn = true
}

func (p *ttyPresenter) clearLine() {
	if p.drawn {
		fmt.Fprintf(p.w, "\r%s\r", strings.Repeat(" ", p.lastLen))
		p.drawn = false
	}
}

func (p *ttyPresenter) Outcome(o pandecrypt.Outcome) {
	p.clearLine()
	switch {
	case !o.OK():
		failColor.Fprintf(p.w, "✗ %s\n", o.Message())
	case o.Action == pandecrypt.ActionDecrypt:
		okColor.Fprintf(p.w, "✓ %s\n", o.Message())
	default:
		dimColor.Fprintf(p.w, "• %s\n", o.Message())
	}
}

func (p *ttyPresenter) Finish(report *pandecrypt.BatchReport) {
	p.clearLine()
	c := okColor
	if report.Failed() > 0 {
		c = failColor
	}
	c.Fprintln(p.w, summaryLine(report))
}

func (p *ttyPresenter) Fatal(msg string) {
	p.clearLine()
	failColor.Fprintln(p.w, msg)
}

func summaryLine(report *pandecrypt.BatchReport) string {
	return fmt.Sprintf("%s (%s written)", report.Summary(), units.HumanSize(float64(report.BytesWritten())))
}

type progressEvent struct {
	index, total int
}

type batchResult struct {
	report *pandecrypt.BatchReport
	err    error
}

// runBatch runs the directory engine on its own goroutine and feeds
// progress to the presenter from the calling goroutine. Progress events
// are dropped rather than blocking the engine when the presenter lags.
func runBatch(ctx context.Context, d *pandecrypt.Decryptor, req pandecrypt.DirRequest, p Presenter) (*pandecrypt.BatchReport, error) {
	events := make(chan progressEvent, 64)
	done := make(chan batchResult, 1)

	req.Progress = func(index, total int) {
		select {
		case events <- progressEvent{index, total}:
		default:
		}
	}

	go func() {
		report, err := d.ProcessDirectory(ctx, req)
		done <- batchResult{report, err}
		close(events)
	}()

	for ev := range events {
		p.Progress(ev.index, ev.total)
	}
	res := <-done

	if res.report != nil {
		for _, o := range res.report.Outcomes {
			if !o.OK() || o.Action == pandecrypt.ActionDecrypt {
				p.Outcome(o)
			}
		}
	}
	return res.report, res.err
}
