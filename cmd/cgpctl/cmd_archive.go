package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/baldhumanity/cgp-go/cgp/archive"
)

func newArchiveCmd() *cobra.Command {
	var dbPath string

	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "Query archived genotypes",
	}
	archiveCmd.PersistentFlags().StringVar(&dbPath, "db", "cgp.db", "SQLite archive path")

	openStore := func(ctx context.Context) (archive.Store, error) {
		store, err := archive.NewStore("sqlite", dbPath)
		if err != nil {
			return nil, err
		}
		if err := store.Init(ctx); err != nil {
			return nil, fmt.Errorf("failed to open archive '%s': %w", dbPath, err)
		}
		return store, nil
	}

	var (
		runID string
		limit int
	)
	bestCmd := &cobra.Command{
		Use:   "best",
		Short: "List the fittest genotypes of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Best(ctx, runID, limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "GENERATION\tFITNESS\tGENOTYPE")
			for _, r := range records {
				fmt.Fprintf(w, "%d\t%.4f\t%s\n", r.Generation, r.Fitness, r.Genotype)
			}
			return w.Flush()
		},
	}
	bestCmd.Flags().StringVar(&runID, "run", "", "Run identifier")
	bestCmd.Flags().IntVar(&limit, "limit", 10, "Maximum records (0 for all)")
	_ = bestCmd.MarkFlagRequired("run")

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Runs(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tRECORDS\tGENERATIONS\tBEST")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%d\t%d\t%.4f\n", r.RunID, r.Records, r.Generations, r.BestFitness)
			}
			return w.Flush()
		},
	}

	archiveCmd.AddCommand(bestCmd, runsCmd)
	return archiveCmd
}
