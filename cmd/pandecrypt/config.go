package main

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/absfs/pandecrypt"
)

// fileConfig is the optional TOML defaults file. Flags and environment
// variables override every value in it.
type fileConfig struct {
	Password     string `toml:"password"`
	Output       string `toml:"output"`
	Workers      int    `toml:"workers"`
	Iterations   int    `toml:"iterations"`
	Recursive    bool   `toml:"recursive"`
	KeepOriginal bool   `toml:"keep_original"`
	AtomicWrite  *bool  `toml:"atomic_write"`
	LogLevel     string `toml:"log_level"`
}

// loadFileConfig decodes the TOML file at path. A missing file is only an
// error when the path was given explicitly.
func loadFileConfig(path string, explicit bool) (*fileConfig, error) {
	fc := &fileConfig{}
	if path == "" {
		return fc, nil
	}

	p, err := homedir.Expand(path)
	if err != nil {
		return nil, xerrors.Errorf("expanding config path %s: %w", path, err)
	}

	md, err := toml.DecodeFile(p, fc)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return &fileConfig{}, nil
		}
		return nil, xerrors.Errorf("loading config %s: %w", p, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, xerrors.Errorf("config %s: unknown keys: %s", p, strings.Join(keys, ", "))
	}

	log.Debugf("loaded config from %s", p)
	return fc, nil
}

// loadEnvFile loads KEY=VALUE pairs into the environment without
// overriding variables that are already set. The default ".env" is
// optional.
func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return xerrors.Errorf("env file %s: %w", path, err)
	}
	return godotenv.Load(path)
}

// options are the resolved settings for one command invocation
type options struct {
	Password     string
	Output       string
	OutputDir    string
	Workers      int
	Iterations   int
	Recursive    bool
	KeepOriginal bool
	AtomicWrite  bool
}

// resolveOptions merges flags (including their environment variables) over
// the TOML defaults
func resolveOptions(cctx *cli.Context) (options, error) {
	fc, _ := cctx.App.Metadata[metaConfig].(*fileConfig)
	if fc == nil {
		fc = &fileConfig{}
	}

	opts := options{
		Password:     stringOpt(cctx, FlagPassword, fc.Password),
		Output:       stringOpt(cctx, FlagOutput, fc.Output),
		OutputDir:    stringOpt(cctx, FlagOutputDir, ""),
		Workers:      intOpt(cctx, FlagWorkers, fc.Workers),
		Iterations:   intOpt(cctx, FlagIterations, fc.Iterations),
		Recursive:    boolOpt(cctx, FlagRecursive, fc.Recursive),
		KeepOriginal: boolOpt(cctx, FlagKeep, fc.KeepOriginal),
		AtomicWrite:  true,
	}
	if fc.AtomicWrite != nil {
		opts.AtomicWrite = *fc.AtomicWrite
	}
	if cctx.IsSet(FlagAtomic) {
		opts.AtomicWrite = cctx.Bool(FlagAtomic)
	}

	if cctx.Bool(FlagAskPassword) {
		pw, err := readPassword(cctx.App.ErrWriter)
		if err != nil {
			return opts, xerrors.Errorf("reading password: %w", err)
		}
		opts.Password = pw
	}

	for _, p := range []*string{&opts.Output, &opts.OutputDir} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return opts, xerrors.Errorf("expanding %s: %w", *p, err)
		}
		*p = expanded
	}

	return opts, nil
}

func (o options) decryptor() (*pandecrypt.Decryptor, error) {
	return pandecrypt.New(pandecrypt.NewOSFS(), &pandecrypt.Config{
		Iterations:  o.Iterations,
		Workers:     o.Workers,
		AtomicWrite: o.AtomicWrite,
	})
}

func stringOpt(cctx *cli.Context, name, fallback string) string {
	if cctx.IsSet(name) || fallback == "" {
		return cctx.String(name)
	}
	return fallback
}

func intOpt(cctx *cli.Context, name string, fallback int) int {
	if cctx.IsSet(name) || fallback == 0 {
		return cctx.Int(name)
	}
	return fallback
}

func boolOpt(cctx *cli.Context, name string, fallback bool) bool {
	if cctx.IsSet(name) {
		return cctx.Bool(name)
	}
	return fallback
}
