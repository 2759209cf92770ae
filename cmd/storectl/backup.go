package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"example.com/activitystore/internal/backup"
	"example.com/activitystore/internal/retention"
)

func (c *cli) manager() (*backup.Manager, error) {
	return backup.NewManager(c.cfg.StoreConfig(), backup.WithLogger(c.logger))
}

func backupCmd(c *cli) *cobra.Command {
	var (
		category string
		compress bool
	)
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the users tree into the backup root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.manager()
			if err != nil {
				return err
			}
			snap, err := m.CreateSnapshot(cmd.Context(), category)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%d bytes)\n", snap.Name, snap.Size)
			if !compress {
				return nil
			}
			archive, err := m.Compress(cmd.Context(), snap.Name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "compressed to %s\n", archive)
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", c.cfg.BackupCategory, "Snapshot category (name prefix)")
	cmd.Flags().BoolVar(&compress, "compress", false, "Compress the snapshot after creating it")
	return cmd
}

func compressCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "compress [snapshot]",
		Short: "Compress a complete snapshot directory into a zip archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.manager()
			if err != nil {
				return err
			}
			archive, err := m.Compress(cmd.Context(), strings.TrimSuffix(args[0], "/"))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), archive)
			return nil
		},
	}
}

func listCmd(c *cli) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List complete snapshots, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.manager()
			if err != nil {
				return err
			}
			snapshots, err := m.List()
			if err != nil {
				return err
			}
			switch output {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snapshots)
			case "yaml":
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				defer enc.Close()
				return enc.Encode(snapshots)
			case "table":
			default:
				return fmt.Errorf("unknown output format %q (want table, json or yaml)", output)
			}
			if len(snapshots) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no snapshots")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tCATEGORY\tTAKEN\tSIZE\tARCHIVED")
			for _, s := range snapshots {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\n", s.Name, s.Category, s.Time.Format(time.RFC3339), s.Size, s.Archived)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table, json or yaml")
	return cmd
}

func pruneCmd(c *cli) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete backups older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			storeCfg := c.cfg.StoreConfig()
			storeCfg.BackupRetentionDays = days
			sweeper, err := retention.NewSweeper(storeCfg, retention.WithLogger(c.logger))
			if err != nil {
				return err
			}
			result, err := sweeper.PruneBackups(cmd.Context())
			printResult(cmd, "deleted", result.Deleted)
			printResult(cmd, "skipped", result.Skipped)
			return err
		},
	}
	cmd.Flags().IntVarP(&days, "days", "d", c.cfg.BackupRetentionDays, "Retention window in days")
	return cmd
}

func cleanTempCmd(c *cli) *cobra.Command {
	var maxAge int
	cmd := &cobra.Command{
		Use:   "clean-temp",
		Short: "Delete temp files at least max-age-days old",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sweeper, err := retention.NewSweeper(c.cfg.StoreConfig(), retention.WithLogger(c.logger))
			if err != nil {
				return err
			}
			result, err := sweeper.CleanupTempFiles(cmd.Context(), maxAge)
			printResult(cmd, "deleted", result.Deleted)
			return err
		},
	}
	cmd.Flags().IntVar(&maxAge, "max-age-days", c.cfg.TempMaxAgeDays, "Minimum age in whole days")
	return cmd
}

func printResult(cmd *cobra.Command, label string, names []string) {
	for _, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", label, name)
	}
}
