package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"

	"github.com/absfs/pandecrypt"
)

var log = logging.Logger("pandecrypt")

var version = "dev"

const (
	FlagConfig      = "config"
	FlagLogLevel    = "log-level"
	FlagPassword    = "password"
	FlagAskPassword = "ask-password"
	FlagOutput      = "output"
	FlagOutputDir   = "output-dir"
	FlagKeep        = "keep"
	FlagRecursive   = "recursive"
	FlagWorkers     = "workers"
	FlagAtomic      = "atomic"
	FlagIterations  = "iterations"
	FlagSettle      = "settle"

	DefaultConfigPath = "~/.pandecrypt.toml"
	metaConfig        = "fileConfig"
)

func main() {
	if err := loadEnvFile(os.Getenv("PANDECRYPT_ENV_FILE")); err != nil {
		log.Warnf("loading env file: %s", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Errorf("%+v", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:                 "pandecrypt",
		Usage:                "Decrypt files encrypted by the cloud drive sync client",
		Version:              version,
		EnableBashCompletion: true,
		Writer:               os.Stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    FlagConfig,
				EnvVars: []string{"PANDECRYPT_CONFIG"},
				Value:   DefaultConfigPath,
				Usage:   "TOML file with defaults for password, output and workers",
			},
			&cli.StringFlag{
				Name:    FlagLogLevel,
				EnvVars: []string{"PANDECRYPT_LOG_LEVEL"},
				Value:   "info",
				Usage:   "log level: debug, info, warn, error",
			},
		},
		Before: func(cctx *cli.Context) error {
			fc, err := loadFileConfig(cctx.String(FlagConfig), cctx.IsSet(FlagConfig))
			if err != nil {
				return err
			}
			cctx.App.Metadata[metaConfig] = fc

			level := cctx.String(FlagLogLevel)
			if !cctx.IsSet(FlagLogLevel) && fc.LogLevel != "" {
				level = fc.LogLevel
			}
			return logging.SetLogLevel("pandecrypt", level)
		},
		Commands: []*cli.Command{
			decryptCmd,
			batchCmd,
			checkCmd,
			watchCmd,
			sealCmd,
		},
	}
}

// passwordFlags are shared by every command that needs a password
var passwordFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    FlagPassword,
		Aliases: []string{"p"},
		EnvVars: []string{"PANDECRYPT_PASSWORD"},
		Value:   pandecrypt.DefaultPassword,
		Usage:   "decryption password",
	},
	&cli.BoolFlag{
		Name:  FlagAskPassword,
		Usage: "read the password from the terminal",
	},
	&cli.IntFlag{
		Name:    FlagIterations,
		EnvVars: []string{"PANDECRYPT_ITERATIONS"},
		Hidden:  true,
		Usage:   "PBKDF2 iteration count",
	},
}

func withPasswordFlags(flags ...cli.Flag) []cli.Flag {
	return append(flags, passwordFlags...)
}
