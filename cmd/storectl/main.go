package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"example.com/activitystore/internal/config"
	"example.com/activitystore/internal/logging"
)

var Version = "dev"

// cli carries state shared by every subcommand.
type cli struct {
	cfg      config.Config
	basePath string
	verbose  bool
	logger   *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{cfg: config.Load()}

	rootCmd := &cobra.Command{
		Use:           "storectl",
		Short:         "Operate the activity data store: backups, retention and batch validation",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.cfg.BasePath = c.basePath
			if err := c.cfg.Validate(); err != nil {
				return err
			}
			level := c.cfg.LogLevel
			if c.verbose {
				level = "debug"
			}
			logger, err := logging.New(level, "console", "")
			if err != nil {
				return err
			}
			c.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.basePath, "base", c.cfg.BasePath, "Data base path (DATA_BASE_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(backupCmd(c))
	rootCmd.AddCommand(compressCmd(c))
	rootCmd.AddCommand(listCmd(c))
	rootCmd.AddCommand(pruneCmd(c))
	rootCmd.AddCommand(cleanTempCmd(c))
	rootCmd.AddCommand(validateCmd(c))
	rootCmd.AddCommand(importCmd(c))

	return rootCmd
}
