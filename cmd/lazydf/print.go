package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/razeghi71/lazydf/engine"
	"github.com/razeghi71/lazydf/hist"
	"github.com/razeghi71/lazydf/table"
)

type resultRow struct {
	label  string
	result *engine.Result
}

// resultsTable lays out one row per result: label, action, state, value.
// Scalar accumulators print their number; histograms their summary.
func resultsTable(header string, rows []resultRow) *table.Table {
	t := table.NewTable([]string{header, "action", "state", "value"})
	for _, r := range rows {
		acc, state := r.result.Peek()
		value := table.StrVal(fmt.Sprint(acc))
		if s, ok := acc.(hist.Scalar); ok {
			if _, isHist := acc.(*hist.H1); !isHist {
				value = table.FloatVal(s.Value())
			}
		}
		t.AddRow([]table.Value{
			table.StrVal(r.label),
			table.StrVal(r.result.Name()),
			table.StrVal(state.String()),
			value,
		})
	}
	return t
}

// printBins prints the in-range bins of a histogram result.
func printBins(w io.Writer, r *engine.Result) {
	acc, _ := r.Peek()
	h, ok := acc.(*hist.H1)
	if !ok {
		return
	}
	t := table.NewTable([]string{"bin", "low", "content"})
	for i := 1; i <= h.Model.Bins; i++ {
		t.AddRow([]table.Value{table.IntVal(int64(i)), table.FloatVal(h.BinLow(i)), table.FloatVal(h.Counts[i])})
	}
	fmt.Fprintln(w)
	printTable(w, t)
	fmt.Fprintf(w, "underflow %g, overflow %g\n", h.Counts[0], h.Counts[h.Model.Bins+1])
}

func printTable(w io.Writer, t *table.Table) {
	if len(t.Columns) == 0 {
		return
	}

	widths := make([]int, len(t.Columns))
	for i, col := range t.Columns {
		widths[i] = len(col)
	}

	cells := make([][]string, t.Len())
	for i, row := range t.Rows {
		cells[i] = make([]string, len(t.Columns))
		for j := range t.Columns {
			if j < len(row.Values) {
				cells[i][j] = row.Values[j].AsString()
			} else {
				cells[i][j] = "null"
			}
			widths[j] = max(widths[j], len(cells[i][j]))
		}
	}

	parts := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		parts[i] = padRight(col, widths[i])
	}
	fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, " | "), " "))
	for i := range t.Columns {
		parts[i] = strings.Repeat("-", widths[i])
	}
	fmt.Fprintln(w, strings.Join(parts, "-+-"))
	for _, row := range cells {
		for i := range t.Columns {
			parts[i] = padRight(row[i], widths[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, " | "), " "))
	}
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
