package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/razeghi71/lazydf/engine"
)

func newChunksCmd(rf *rootFlags) *cobra.Command {
	var (
		chunks         int
		cumulative     bool
		withVariations bool
	)
	cmd := &cobra.Command{
		Use:   "chunks <query>",
		Short: "Run a query over consecutive entry ranges, snapshotting each result",
		Long: "chunks splits the entry range into equal parts, runs the graph once per\n" +
			"part and keeps a detached copy of the result after each run. Without\n" +
			"--cumulative the live result is reset between parts. --variations also\n" +
			"snapshots every universe of the query's Vary steps.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if chunks < 1 {
				return fmt.Errorf("--chunks must be >= 1, got %d", chunks)
			}
			s, err := openSession(cmd, rf, args[0])
			if err != nil {
				return err
			}
			span, err := fullRange(s.graph)
			if err != nil {
				return err
			}
			var m *engine.ResultMap
			if withVariations {
				if m, err = engine.VariationsFor(s.result); err != nil {
					return err
				}
			}

			var rows []resultRow
			step := (span.Len() + int64(chunks) - 1) / int64(chunks)
			for lo := span.Begin; lo < span.End || len(rows) == 0; lo += step {
				r := engine.Range{Begin: lo, End: min(lo+step, span.End)}
				if err := s.graph.ChangeRange(r); err != nil {
					return err
				}
				if err := s.graph.TriggerRun(cmd.Context()); err != nil {
					return err
				}
				snap, err := engine.CloneResult(s.result)
				if err != nil {
					return err
				}
				rows = append(rows, resultRow{label: r.String(), result: snap})
				if m != nil {
					snaps, err := engine.CloneResultMap(m)
					if err != nil {
						return err
					}
					for _, k := range snaps.Keys() {
						u, _ := snaps.Get(k)
						rows = append(rows, resultRow{label: r.String() + " " + k, result: u})
					}
				}
				s.log.Debug("chunk done", "range", r.String())
				if !cumulative {
					if err := resetAll(s.result, m); err != nil {
						return err
					}
				}
				if step == 0 {
					break
				}
			}
			printTable(cmd.OutOrStdout(), resultsTable("range", rows))
			return nil
		},
	}
	cmd.Flags().IntVar(&chunks, "chunks", 4, "number of consecutive ranges")
	cmd.Flags().BoolVar(&cumulative, "cumulative", false, "keep accumulating across chunks")
	cmd.Flags().BoolVar(&withVariations, "variations", false, "also snapshot every universe of the query's Vary steps")
	return cmd
}

// fullRange is the graph's current range, or every entry when none is set.
func fullRange(g *engine.Graph) (engine.Range, error) {
	if r, ok := g.Range(); ok {
		return r, nil
	}
	n, err := g.Entries()
	if err != nil {
		return engine.Range{}, err
	}
	return engine.Range{Begin: 0, End: n}, nil
}

// resetAll empties r and every live result of m.
func resetAll(r *engine.Result, m *engine.ResultMap) error {
	if err := r.Reset(); err != nil {
		return err
	}
	if m == nil {
		return nil
	}
	if err := m.Nominal().Reset(); err != nil {
		return err
	}
	for _, k := range m.Keys() {
		u, _ := m.Get(k)
		if err := u.Reset(); err != nil {
			return err
		}
	}
	return nil
}
