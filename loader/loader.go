// Package loader reads a data file into a table.Table. Each file becomes
// one partition of a dataset.
package loader

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/razeghi71/lazydf/table"
)

// Load reads a file and returns its rows, picking the reader by extension.
func Load(filename string) (*table.Table, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".csv":
		return loadCSV(filename)
	case ".json":
		return loadJSON(filename)
	case ".jsonl":
		return loadJSONL(filename)
	case ".avro":
		return loadAvro(filename)
	case ".parquet":
		return loadParquet(filename)
	default:
		return nil, fmt.Errorf("unsupported file format %q (supported: .csv, .json, .jsonl, .avro, .parquet)", ext)
	}
}

// Supported reports whether Load has a reader for the file's extension.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".json", ".jsonl", ".avro", ".parquet":
		return true
	}
	return false
}

// parseValue infers the type of a text cell.
func parseValue(s string) table.Value {
	if s == "" || strings.EqualFold(s, "null") {
		return table.Null()
	}

	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return table.IntVal(v)
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return table.FloatVal(v)
	}

	lower := strings.ToLower(s)
	if lower == "true" {
		return table.BoolVal(true)
	}
	if lower == "false" {
		return table.BoolVal(false)
	}

	return table.StrVal(s)
}

// records accumulates schemaless key/value records, fixing the column
// order on first sight of each key.
type records struct {
	columns []string
	index   map[string]int
	rows    []map[string]table.Value
}

func newRecords(columns ...string) *records {
	r := &records{index: make(map[string]int)}
	for _, c := range columns {
		r.column(c)
	}
	return r
}

func (r *records) column(name string) {
	if _, ok := r.index[name]; ok {
		return
	}
	r.index[name] = len(r.columns)
	r.columns = append(r.columns, name)
}

func (r *records) add(rec map[string]table.Value) {
	for k := range rec {
		r.column(k)
	}
	r.rows = append(r.rows, rec)
}

// table materializes the records; missing keys become nulls.
func (r *records) table() *table.Table {
	t := table.NewTable(r.columns)
	for _, rec := range r.rows {
		vals := make([]table.Value, len(r.columns))
		for i, col := range r.columns {
			v, ok := rec[col]
			if !ok {
				v = table.Null()
			}
			vals[i] = v
		}
		t.AddRow(vals)
	}
	return t
}
