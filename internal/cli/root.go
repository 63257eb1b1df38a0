package cli

import (
	"cmp"
	"errors"
	"io"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/soyeahso/sprout/internal/config"
	"github.com/soyeahso/sprout/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	// set by loadEnvironment
	paths     config.Paths
	cfg       config.Config
	log       *logging.Logger
	logCloser io.Closer
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sprout",
		Short: "Sprout: chat assistant for parents and admins of a kindergarten",
		Long: "Sprout answers questions about children, daily and semester reports, payments and " +
			"class schedules by calling tools over the school database.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvironment()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logCloser != nil {
				return logCloser.Close()
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.sprout/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newDataCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// loadEnvironment resolves paths, reads the config and opens the logger
// shared by every subcommand. A .env file is optional and never overrides
// variables that are already set.
func loadEnvironment() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	var err error
	if paths, err = config.ResolvePaths(); err != nil {
		return err
	}
	paths.Config = cmp.Or(cfgFile, paths.Config)

	if cfg, err = config.Load(paths.Config); err != nil {
		return err
	}

	log, logCloser, err = logging.NewWithOptions(logging.Options{
		Level: cmp.Or(logLevel, cfg.Logging.Level, "info"),
		Style: cfg.Logging.ConsoleStyle,
		File:  paths.LogFile(cfg.Logging.File),
	})
	return err
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
