package loader

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/razeghi71/lazydf/table"
)

func loadJSON(filename string) (*table.Table, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", filename, err)
	}

	var raw []map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("cannot parse JSON from %s: %w (expected array of objects)", filename, err)
	}

	recs := newRecords()
	for _, rec := range raw {
		recs.add(jsonRecord(rec))
	}
	return recs.table(), nil
}

func loadJSONL(filename string) (*table.Table, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", filename, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	recs := newRecords()
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec map[string]interface{}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("invalid JSON on line %d: %w", lineNum, err)
		}
		recs.add(jsonRecord(rec))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", filename, err)
	}

	return recs.table(), nil
}

func jsonRecord(rec map[string]interface{}) map[string]table.Value {
	out := make(map[string]table.Value, len(rec))
	for k, v := range rec {
		out[k] = jsonValue(v)
	}
	return out
}

func jsonValue(v interface{}) table.Value {
	switch val := v.(type) {
	case float64:
		// JSON numbers are float64; keep whole numbers as ints
		if val == float64(int64(val)) {
			return table.IntVal(int64(val))
		}
		return table.FloatVal(val)
	case string:
		return table.StrVal(val)
	case bool:
		return table.BoolVal(val)
	case nil:
		return table.Null()
	case []interface{}:
		items := make([]table.Value, len(val))
		for i, item := range val {
			items[i] = jsonValue(item)
		}
		return table.ListVal(items)
	default:
		// Nested objects are kept as their JSON text
		b, _ := json.Marshal(val)
		return table.StrVal(string(b))
	}
}
