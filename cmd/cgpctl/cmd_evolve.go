package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/baldhumanity/cgp-go/cgp"
	"github.com/baldhumanity/cgp-go/cgp/archive"
	"github.com/baldhumanity/cgp-go/cgp/bench"
)

type evolveOptions struct {
	configPath  string
	task        string
	bits        int
	generations int
	storeKind   string
	dbPath      string
	checkpoint  string
	runID       string
}

func newEvolveCmd(logger func(*cobra.Command) *slog.Logger) *cobra.Command {
	var opts evolveOptions
	cmd := &cobra.Command{
		Use:   "evolve",
		Short: "Evolve a population against a benchmark task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runEvolve(ctx, cmd, logger(cmd), opts)
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", "configs/xor.ini", "INI configuration file")
	cmd.Flags().StringVar(&opts.task, "task", "xor", "Benchmark task: xor or parity")
	cmd.Flags().IntVar(&opts.bits, "bits", 3, "Input bits for the parity task")
	cmd.Flags().IntVar(&opts.generations, "generations", 100, "Maximum generations to run")
	cmd.Flags().StringVar(&opts.storeKind, "store", "memory", "Archive backend: memory or sqlite")
	cmd.Flags().StringVar(&opts.dbPath, "db", "cgp.db", "SQLite archive path")
	cmd.Flags().StringVar(&opts.checkpoint, "checkpoint", "", "Checkpoint file to resume from and save to")
	cmd.Flags().StringVar(&opts.runID, "run", "", "Run identifier (generated when empty)")
	return cmd
}

func runEvolve(ctx context.Context, cmd *cobra.Command, logger *slog.Logger, opts evolveOptions) error {
	config, err := cgp.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	task, err := bench.ByName(opts.task, opts.bits)
	if err != nil {
		return err
	}
	if task.Inputs != config.CGP.NumInputs {
		return fmt.Errorf("task %s needs num_inputs = %d, config has %d", task.Name, task.Inputs, config.CGP.NumInputs)
	}

	store, err := archive.NewStore(opts.storeKind, opts.dbPath)
	if err != nil {
		return err
	}
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize %s archive: %w", opts.storeKind, err)
	}
	defer store.Close()

	popOpts := []cgp.PopulationOption{cgp.WithLogger(logger), cgp.WithArchive(store)}
	if opts.runID != "" {
		popOpts = append(popOpts, cgp.WithRunID(opts.runID))
	}

	var pop *cgp.Population
	if opts.checkpoint != "" {
		if _, statErr := os.Stat(opts.checkpoint); statErr == nil {
			pop, err = cgp.RestoreCheckpoint(opts.checkpoint, config, popOpts...)
			if err != nil {
				logger.Warn("failed to load checkpoint, starting new evolution", slog.String("error", err.Error()))
				pop = nil
			}
		} else if !errors.Is(statErr, os.ErrNotExist) {
			return statErr
		}
	}
	if pop == nil {
		pop, err = cgp.NewPopulation(config, popOpts...)
		if err != nil {
			return fmt.Errorf("failed to create population: %w", err)
		}
	}

	fitness := task.FitnessFunc()
	solved := false
	for pop.Generation < opts.generations {
		winner, err := pop.RunGenerationContext(ctx, fitness)
		if err != nil {
			return err
		}
		if winner != nil {
			solved = true
			break
		}
	}

	if opts.checkpoint != "" {
		if err := pop.SaveCheckpoint(opts.checkpoint); err != nil {
			logger.Warn("failed to save checkpoint", slog.String("error", err.Error()))
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:         %s\n", pop.RunID)
	fmt.Fprintf(out, "Generations: %d\n", pop.Generation)
	fmt.Fprintf(out, "Solved:      %t\n", solved)
	if pop.Best != nil {
		fmt.Fprintf(out, "Best:        %.4f / %.0f\n", pop.Best.Fitness, task.MaxFitness())
		fmt.Fprintf(out, "Genotype:    %s\n", pop.Best.Genotype.Export())
	}
	return nil
}
