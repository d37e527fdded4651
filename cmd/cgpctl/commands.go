package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:          "cgpctl",
		Short:        "Evolve, inspect and archive Cartesian GP genotypes",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	logger := func(cmd *cobra.Command) *slog.Logger {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	}

	rootCmd.AddCommand(
		newEvolveCmd(logger),
		newInspectCmd(),
		newRandomCmd(),
		newMutateCmd(),
		newArchiveCmd(),
	)
	return rootCmd
}

// seedOrClock returns seed, or a clock based seed when it is 0.
func seedOrClock(seed int64) int64 {
	if seed == 0 {
		return time.Now().UnixNano()
	}
	return seed
}
