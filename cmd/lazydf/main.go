// lazydf books a pipeline query on a lazy graph over a dataset and runs
// it, optionally across every systematic variation of its inputs.
//
// Usage:
//
//	lazydf run '<query>' [--variations] [--range 0:1000]
//	lazydf vars '<query>'
//	lazydf chunks '<query>' --chunks 4 [--cumulative]
//
// Example:
//
//	lazydf run --variations 'events.parquet
//	  | vary jes: jet_pt = [jet_pt * 1.03, jet_pt * 0.97] as up down
//	  | define ht = sum(jet_pt[jet_pt > 25])
//	  | histo ht bins 25 0 1000 weight weights'
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

type rootFlags struct {
	config    string
	workers   int
	seed      int64
	chunkSize int64
	rangeSpec string
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	rf := &rootFlags{}
	root := &cobra.Command{
		Use:   "lazydf",
		Short: "Lazy columnar dataframe queries with systematic variations",
		Long: "lazydf compiles a pipeline query into a lazy computation graph and fills\n" +
			"its terminal action in one parallel pass over the dataset.",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		Version: version,
	}
	f := root.PersistentFlags()
	f.StringVar(&rf.config, "config", "", "YAML run configuration")
	f.IntVar(&rf.workers, "workers", 1, "worker slots (0 = one per CPU)")
	f.Int64Var(&rf.seed, "seed", 0, "base seed for per-slot random generators")
	f.Int64Var(&rf.chunkSize, "chunk-size", 4096, "rows per task")
	f.StringVar(&rf.rangeSpec, "range", "", "global entry range begin:end")
	f.StringVar(&rf.logLevel, "log-level", "info", "debug, info, warn or error")
	f.StringVar(&rf.logFormat, "log-format", "text", "text or json")

	root.AddCommand(newRunCmd(rf))
	root.AddCommand(newVarsCmd(rf))
	root.AddCommand(newChunksCmd(rf))
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
