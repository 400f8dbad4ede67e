package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/razeghi71/lazydf/engine"
	"github.com/razeghi71/lazydf/table"
)

func newVarsCmd(rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "vars <query>",
		Short: "List the universes a query's Vary steps produce, without running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rf, args[0])
			if err != nil {
				return err
			}
			before := s.graph.Nodes()
			m, err := engine.VariationsFor(s.result)
			if err != nil {
				return err
			}
			t := table.NewTable([]string{"universe"})
			for _, k := range m.Keys() {
				t.AddRow([]table.Value{table.StrVal(k)})
			}
			out := cmd.OutOrStdout()
			printTable(out, t)
			fmt.Fprintf(out, "%d universes, %d cloned nodes\n", m.Len(), s.graph.Nodes()-before)
			return nil
		},
	}
}
