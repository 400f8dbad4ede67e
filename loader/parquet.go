package loader

import (
	"errors"
	"fmt"
	"io"
	"os"

	parquet "github.com/parquet-go/parquet-go"
	"github.com/razeghi71/lazydf/table"
)

// parquetBatch is the number of rows pulled from the reader at a time.
const parquetBatch = 256

// loadParquet reads a flat Parquet schema. Repeated leaves (Go slices in
// the writer's struct) become List values.
func loadParquet(filename string) (*table.Table, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", filename, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot stat %s: %w", filename, err)
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("cannot read Parquet footer from %s: %w", filename, err)
	}

	fields := pf.Schema().Fields()
	columns := make([]string, len(fields))
	repeated := make([]bool, len(fields))
	for i, field := range fields {
		if !field.Leaf() {
			return nil, fmt.Errorf("parquet: nested group %q in %s is not supported", field.Name(), filename)
		}
		columns[i] = field.Name()
		repeated[i] = field.Repeated()
	}

	reader := parquet.NewReader(pf)
	defer reader.Close()

	t := table.NewTable(columns)
	buf := make([]parquet.Row, parquetBatch)
	for {
		n, err := reader.ReadRows(buf)
		for _, row := range buf[:n] {
			t.AddRow(parquetRow(row, repeated))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading Parquet rows from %s: %w", filename, err)
		}
		if n == 0 {
			break
		}
	}
	return t, nil
}

func parquetRow(row parquet.Row, repeated []bool) []table.Value {
	vals := make([]table.Value, len(repeated))
	for i := range vals {
		if repeated[i] {
			vals[i] = table.ListVal(nil)
		} else {
			vals[i] = table.Null()
		}
	}
	for _, v := range row {
		col := v.Column()
		if col < 0 || col >= len(vals) {
			continue
		}
		if !repeated[col] {
			vals[col] = parquetValue(v)
			continue
		}
		// an empty list is encoded as a single null leaf
		if v.IsNull() {
			continue
		}
		vals[col].List = append(vals[col].List, parquetValue(v))
	}
	return vals
}

func parquetValue(v parquet.Value) table.Value {
	if v.IsNull() {
		return table.Null()
	}
	switch v.Kind() {
	case parquet.Boolean:
		return table.BoolVal(v.Boolean())
	case parquet.Int32:
		return table.IntVal(int64(v.Int32()))
	case parquet.Int64:
		return table.IntVal(v.Int64())
	case parquet.Float:
		return table.FloatVal(float64(v.Float()))
	case parquet.Double:
		return table.FloatVal(v.Double())
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return table.StrVal(string(v.ByteArray()))
	default:
		return table.StrVal(v.String())
	}
}
