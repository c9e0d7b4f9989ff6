package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/absfs/pandecrypt"
)

var watchCmd = &cli.Command{
	Name:      "watch",
	Usage:     "Decrypt containers as they appear in a directory",
	ArgsUsage: "<directory>",
	Flags: withPasswordFlags(
		&cli.StringFlag{
			Name:    FlagOutput,
			Aliases: []string{"o"},
			EnvVars: []string{"PANDECRYPT_OUTPUT"},
			Usage:   "write outputs into this directory; other files are copied through",
		},
		&cli.BoolFlag{
			Name:    FlagKeep,
			Aliases: []string{"k"},
			Usage:   "keep originals after a successful decryption or copy",
		},
		&cli.BoolFlag{
			Name:  FlagAtomic,
			Value: true,
			Usage: "write to a temporary file and rename it into place",
		},
		&cli.DurationFlag{
			Name:  FlagSettle,
			Value: 500 * time.Millisecond,
			Usage: "wait this long after the last write before handling a file",
		},
	),
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return xerrors.New("expected exactly one directory")
		}
		opts, err := resolveOptions(cctx)
		if err != nil {
			return err
		}
		d, err := opts.decryptor()
		if err != nil {
			return err
		}

		root := cctx.Args().First()
		p := NewPresenter(cctx.App.Writer)
		p.Start("watching " + root)

		err = watchDir(cctx.Context, d, pandecrypt.DirRequest{
			Root:         root,
			Password:     opts.Password,
			KeepOriginal: opts.KeepOriginal,
			OutputDir:    opts.Output,
		}, cctx.Duration(FlagSettle), p.Outcome)
		if xerrors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

// watchDir handles every file created or rewritten in req.Root until ctx
// is done. A file is handled once no event for it arrived for settle.
// Outputs written by the watcher itself are ignored.
func watchDir(ctx context.Context, d *pandecrypt.Decryptor, req pandecrypt.DirRequest, settle time.Duration, onOutcome func(pandecrypt.Outcome)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return xerrors.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(req.Root); err != nil {
		return xerrors.Errorf("watching %s: %w", req.Root, err)
	}
	log.Infof("watching %s", req.Root)

	timers := make(map[string]*time.Timer)
	ready := make(chan string)
	produced := make(map[string]struct{})

	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Clean(event.Name)
			if _, ok := produced[name]; ok || isTempName(name) {
				continue
			}

			if t, ok := timers[name]; ok {
				t.Reset(settle)
				continue
			}
			timers[name] = time.AfterFunc(settle, func() {
				select {
				case ready <- name:
				case <-ctx.Done():
				}
			})

		case name := <-ready:
			delete(timers, name)

			// gone, or a directory
			if info, err := os.Stat(name); err != nil || !info.Mode().IsRegular() {
				continue
			}

			rel, err := filepath.Rel(req.Root, name)
			if err != nil {
				log.Warnf("skipping %s: %s", name, err)
				continue
			}
			if !d.LooksLikeContainer(name) && req.OutputDir == "" {
				log.Debugf("ignoring %s", name)
				continue
			}

			o := d.ProcessEntry(ctx, req, rel)
			if o.OK() && o.Output != "" {
				produced[filepath.Clean(o.Output)] = struct{}{}
			}
			onOutcome(o)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Errorf("watcher error: %s", err)
		}
	}
}

// isTempName matches the temporary files of atomic writes
func isTempName(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, ".") && strings.HasSuffix(base, ".tmp")
}
