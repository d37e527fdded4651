package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/baldhumanity/cgp-go/cgp"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <genotype>",
		Short: "Describe an exported genotype",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := cgp.Decode(args[0])
			if err != nil {
				return err
			}
			p := g.Parameters()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Parameters:        %s\n", p)
			fmt.Fprintf(out, "Functional nodes:  %d\n", g.Len())
			fmt.Fprintf(out, "Connection bits:   %d\n", g.ConnectionBits())

			active := g.ActiveNodes()
			fmt.Fprintf(out, "Active nodes:      %d\n", len(active))
			for _, gi := range active {
				gene := g.Gene(gi)
				layer, index := p.LayerOf(gi)
				srcs := []string{}
				for bit, src := range p.Sources(layer) {
					if gene.Connections[bit] {
						srcs = append(srcs, fmt.Sprintf("L%d.%d", src.Layer, src.Index))
					}
				}
				fmt.Fprintf(out, "  L%d.%d = %s(%s)\n", layer, index, cgp.FunctionName(gene.Function), strings.Join(srcs, ", "))
			}
			return nil
		},
	}
}

func newRandomCmd() *cobra.Command {
	var (
		params string
		rate   float64
		seed   int64
	)
	cmd := &cobra.Command{
		Use:   "random",
		Short: "Print a random genotype",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := cgp.ParseParameters(params)
			if err != nil {
				return err
			}
			g, err := cgp.NewGenotype(p)
			if err != nil {
				return err
			}
			g.SetSeed(seedOrClock(seed))
			if err := g.MutateConnections(rate); err != nil {
				return err
			}
			if err := g.MutateFunctions(1, cgp.NumFunctions()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), g.Export())
			return nil
		},
	}
	cmd.Flags().StringVar(&params, "params", "8,4,2,10,2", "inputs,outputs,layers,nodes_per_layer,layers_back")
	cmd.Flags().Float64Var(&rate, "rate", 0.5, "Probability of each connection bit being set")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (0 uses the clock)")
	return cmd
}

func newMutateCmd() *cobra.Command {
	var (
		rate float64
		seed int64
	)
	cmd := &cobra.Command{
		Use:   "mutate <genotype>",
		Short: "Apply connection and function mutation to a genotype",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := cgp.Decode(args[0])
			if err != nil {
				return err
			}
			g.SetSeed(seedOrClock(seed))
			if err := g.MutateConnections(rate); err != nil {
				return err
			}
			if err := g.MutateFunctions(rate, cgp.NumFunctions()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), g.Export())
			return nil
		},
	}
	cmd.Flags().Float64Var(&rate, "rate", 0.05, "Mutation rate in [0, 1]")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (0 uses the clock)")
	return cmd
}
