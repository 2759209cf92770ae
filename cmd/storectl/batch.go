package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"example.com/activitystore/internal/domain"
	"example.com/activitystore/internal/store"
)

func readBatch(path string) (domain.RawBatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.RawBatch{}, err
	}
	defer f.Close()
	return store.DecodeRaw(f)
}

func validateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file.csv]",
		Short: "Validate a CSV batch and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := readBatch(args[0])
			if err != nil {
				return err
			}
			report := domain.Validate(batch)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if !report.Valid() {
				return domain.ErrValidationFailed
			}
			return nil
		},
	}
}

func importCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "import [user-id] [activity-type] [file.csv]",
		Short: "Validate a CSV batch and merge it into the user's current partition",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := readBatch(args[2])
			if err != nil {
				return err
			}
			activityStore, err := store.Open(c.cfg.StoreConfig(), store.WithLogger(c.logger))
			if err != nil {
				return err
			}
			service := domain.NewService(activityStore, c.logger)
			result, err := service.SubmitBatch(cmd.Context(), domain.SubmitBatchInput{
				UserID:       args[0],
				ActivityType: args[1],
				Batch:        batch,
				Source:       "storectl",
			})
			if result != nil {
				for _, w := range result.Report.Warnings {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
				}
				for _, e := range result.Report.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", e)
				}
			}
			if err != nil {
				if errors.Is(err, domain.ErrNotPersisted) {
					return fmt.Errorf("import %s: %w", args[2], err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %d records (batch %s)\n", result.Stored, result.BatchID)
			return nil
		},
	}
}
