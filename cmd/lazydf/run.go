package main

import (
	"github.com/spf13/cobra"

	"github.com/razeghi71/lazydf/engine"
)

func newRunCmd(rf *rootFlags) *cobra.Command {
	var withVariations bool
	cmd := &cobra.Command{
		Use:   "run <query>",
		Short: "Run a query and print its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rf, args[0])
			if err != nil {
				return err
			}
			var m *engine.ResultMap
			if withVariations {
				if m, err = engine.VariationsFor(s.result); err != nil {
					return err
				}
			}
			if err := s.graph.TriggerRun(cmd.Context()); err != nil {
				return err
			}

			rows := []resultRow{{label: engine.NominalKey, result: s.result}}
			if m != nil {
				for _, k := range m.Keys() {
					r, _ := m.Get(k)
					rows = append(rows, resultRow{label: k, result: r})
				}
			}
			out := cmd.OutOrStdout()
			printTable(out, resultsTable("universe", rows))
			printBins(out, s.result)
			return nil
		},
	}
	cmd.Flags().BoolVar(&withVariations, "variations", false, "also fill every universe of the query's Vary steps")
	return cmd
}
