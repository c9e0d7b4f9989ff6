package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/absfs/pandecrypt"
)

var decryptCmd = &cli.Command{
	Name:      "decrypt",
	Usage:     "Decrypt one or more files",
	ArgsUsage: "<file>...",
	Flags: withPasswordFlags(
		&cli.StringFlag{
			Name:    FlagOutput,
			Aliases: []string{"o"},
			Usage:   "output file (single input only)",
		},
		&cli.StringFlag{
			Name:    FlagOutputDir,
			Aliases: []string{"d"},
			EnvVars: []string{"PANDECRYPT_OUTPUT"},
			Usage:   "write outputs into this directory",
		},
		&cli.BoolFlag{
			Name:    FlagKeep,
			Aliases: []string{"k"},
			Usage:   "keep the encrypted originals",
		},
		&cli.BoolFlag{
			Name:  FlagAtomic,
			Value: true,
			Usage: "write to a temporary file and rename it into place",
		},
	),
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() == 0 {
			return xerrors.New("expected at least one file")
		}
		opts, err := resolveOptions(cctx)
		if err != nil {
			return err
		}
		if !cctx.IsSet(FlagOutput) {
			// the configured output is a directory
			if opts.OutputDir == "" {
				opts.OutputDir = opts.Output
			}
			opts.Output = ""
		}
		if opts.Output != "" && cctx.NArg() > 1 {
			return xerrors.New("--output only works with a single input file")
		}

		d, err := opts.decryptor()
		if err != nil {
			return err
		}

		p := NewPresenter(cctx.App.Writer)
		failed := 0
		for _, in := range cctx.Args().Slice() {
			o := d.DecryptFile(cctx.Context, pandecrypt.FileRequest{
				Input:        in,
				Output:       opts.Output,
				OutputDir:    opts.OutputDir,
				Password:     opts.Password,
				KeepOriginal: opts.KeepOriginal,
			})
			p.Outcome(o)
			if !o.OK() {
				failed++
			}
		}

		if failed > 0 {
			return xerrors.Errorf("%d of %d files failed", failed, cctx.NArg())
		}
		return nil
	},
}

var batchCmd = &cli.Command{
	Name:      "batch",
	Usage:     "Decrypt every container in a directory",
	ArgsUsage: "<directory>",
	Flags: withPasswordFlags(
		&cli.StringFlag{
			Name:    FlagOutput,
			Aliases: []string{"o"},
			EnvVars: []string{"PANDECRYPT_OUTPUT"},
			Usage:   "mirror the tree into this directory; other files are copied through",
		},
		&cli.BoolFlag{
			Name:    FlagRecursive,
			Aliases: []string{"r"},
			Usage:   "descend into subdirectories",
		},
		&cli.BoolFlag{
			Name:    FlagKeep,
			Aliases: []string{"k"},
			Usage:   "keep originals after a successful decryption or copy",
		},
		&cli.IntFlag{
			Name:    FlagWorkers,
			Aliases: []string{"j"},
			EnvVars: []string{"PANDECRYPT_WORKERS"},
			Value:   1,
			Usage:   "number of files processed concurrently",
		},
		&cli.BoolFlag{
			Name:  FlagAtomic,
			Value: true,
			Usage: "write to a temporary file and rename it into place",
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

		title := fmt.Sprintf("decrypting %s", root)
		if opts.Recursive {
			title += " (recursive)"
		}
		if opts.Output != "" {
			title += fmt.Sprintf(" into %s", opts.Output)
		}
		p.Start(title)

		report, err := runBatch(cctx.Context, d, pandecrypt.DirRequest{
			Root:         root,
			Password:     opts.Password,
			Recursive:    opts.Recursive,
			KeepOriginal: opts.KeepOriginal,
			OutputDir:    opts.Output,
		}, p)
		if report == nil {
			p.Fatal(pandecrypt.FatalMessage(root, err))
			return xerrors.Errorf("batch %s: %w", root, err)
		}

		p.Finish(report)
		log.Infof("%s: %d files, %d failed", root, report.Total(), report.Failed())

		if err != nil {
			return xerrors.Errorf("batch interrupted: %w", err)
		}
		if report.Failed() > 0 {
			return xerrors.Errorf("%d files failed", report.Failed())
		}
		return nil
	},
}

var checkCmd = &cli.Command{
	Name:      "check",
	Usage:     "Report which files look like encrypted containers",
	ArgsUsage: "<path>...",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() == 0 {
			return xerrors.New("expected at least one path")
		}
		for _, path := range cctx.Args().Slice() {
			verdict := "not a container"
			if pandecrypt.LooksLikeContainer(path) {
				verdict = "container"
			}
			fmt.Fprintf(cctx.App.Writer, "%s: %s\n", path, verdict)
		}
		return nil
	},
}

var sealCmd = &cli.Command{
	Name:      "seal",
	Usage:     "Encrypt a file into the container format",
	ArgsUsage: "<file>",
	Flags: withPasswordFlags(
		&cli.StringFlag{
			Name:    FlagOutput,
			Aliases: []string{"o"},
			Usage:   "output file (default <file>.enc)",
		},
	),
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return xerrors.New("expected exactly one file")
		}
		opts, err := resolveOptions(cctx)
		if err != nil {
			return err
		}

		in := cctx.Args().First()
		out := cctx.String(FlagOutput)
		if out == "" {
			out = in + ".enc"
		}

		plaintext, err := os.ReadFile(in)
		if err != nil {
			return xerrors.Errorf("reading %s: %w", in, err)
		}
		c, err := pandecrypt.SealContainer(plaintext, []byte(opts.Password), opts.Iterations)
		if err != nil {
			return xerrors.Errorf("sealing %s: %w", in, err)
		}

		if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return err
		}
		f, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			return xerrors.Errorf("%s already exists", out)
		} else if err != nil {
			return err
		}
		if _, err := c.WriteTo(f); err != nil {
			f.Close()
			return xerrors.Errorf("writing %s: %w", out, err)
		}
		if err := f.Close(); err != nil {
			return xerrors.Errorf("writing %s: %w", out, err)
		}

		fmt.Fprintf(cctx.App.Writer, "sealed: %s\n", out)
		return nil
	},
}
