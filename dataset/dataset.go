// Package dataset provides the row sources an engine graph reads from: a
// set of named partitions, each backed by an in-memory table or by a bare
// entry count.
package dataset

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/razeghi71/lazydf/loader"
	"github.com/razeghi71/lazydf/table"
)

// ErrNoPartition is returned when a partition name is not part of the dataset.
var ErrNoPartition = errors.New("dataset: no such partition")

// Range is a half-open interval [Begin, End) of global entries.
type Range struct {
	Begin int64 `yaml:"begin"`
	End   int64 `yaml:"end"`
}

// Len returns the number of entries covered.
func (r Range) Len() int64 {
	if r.End < r.Begin {
		return 0
	}
	return r.End - r.Begin
}

// Validate checks 0 <= Begin <= End.
func (r Range) Validate() error {
	if r.Begin < 0 || r.End < r.Begin {
		return fmt.Errorf("dataset: invalid range [%d, %d)", r.Begin, r.End)
	}
	return nil
}

// Intersect returns the overlap of r and [begin, end).
func (r Range) Intersect(begin, end int64) (Range, bool) {
	out := Range{Begin: max(r.Begin, begin), End: min(r.End, end)}
	return out, out.Begin < out.End
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Begin, r.End)
}

// Part describes one partition. A nil Table yields Entries rows with no
// columns.
type Part struct {
	Name    string
	Table   *table.Table
	Entries int64
}

type partition struct {
	name    string
	tbl     *table.Table
	entries int64
	colIdx  map[string]int
}

// Dataset is a read-only, ordered set of partitions that share one
// column set. It is safe for concurrent reads.
type Dataset struct {
	columns []string
	parts   []partition
	byName  map[string]int
}

// New builds a dataset from parts. Every table-backed part must expose
// the same columns as the first one.
func New(parts ...Part) (*Dataset, error) {
	d := &Dataset{byName: make(map[string]int, len(parts))}
	for i, p := range parts {
		if _, dup := d.byName[p.Name]; dup {
			return nil, fmt.Errorf("dataset: duplicate partition %q", p.Name)
		}
		part := partition{name: p.Name, tbl: p.Table, entries: p.Entries}
		if p.Table != nil {
			part.entries = int64(p.Table.Len())
			part.colIdx = make(map[string]int, len(p.Table.Columns))
			for j, c := range p.Table.Columns {
				part.colIdx[c] = j
			}
		}
		if part.entries < 0 {
			return nil, fmt.Errorf("dataset: partition %q has negative length %d", p.Name, part.entries)
		}
		if i == 0 && p.Table != nil {
			d.columns = append([]string(nil), p.Table.Columns...)
		} else if err := sameColumns(d.columns, part); err != nil {
			return nil, err
		}
		d.byName[p.Name] = len(d.parts)
		d.parts = append(d.parts, part)
	}
	return d, nil
}

func sameColumns(columns []string, p partition) error {
	if p.tbl == nil {
		if len(columns) > 0 {
			return fmt.Errorf("dataset: partition %q has no columns, expected %v", p.name, columns)
		}
		return nil
	}
	if len(p.tbl.Columns) != len(columns) {
		return fmt.Errorf("dataset: partition %q has columns %v, expected %v", p.name, p.tbl.Columns, columns)
	}
	for _, c := range columns {
		if _, ok := p.colIdx[c]; !ok {
			return fmt.Errorf("dataset: partition %q is missing column %q", p.name, c)
		}
	}
	return nil
}

// Empty returns a dataset of n entries and no columns.
func Empty(n int64) *Dataset {
	d, _ := New(Part{Entries: n})
	return d
}

// FromTable wraps a single table as an unnamed partition.
func FromTable(t *table.Table) *Dataset {
	d, _ := New(Part{Table: t})
	return d
}

// Open loads every file as one partition named by its path.
func Open(paths ...string) (*Dataset, error) {
	if len(paths) == 0 {
		return nil, errors.New("dataset: no files given")
	}
	parts := make([]Part, 0, len(paths))
	for _, p := range paths {
		t, err := loader.Load(p)
		if err != nil {
			return nil, fmt.Errorf("dataset: %w", err)
		}
		parts = append(parts, Part{Name: p, Table: t})
	}
	return New(parts...)
}

// Columns returns the column names shared by all partitions.
func (d *Dataset) Columns() []string {
	return d.columns
}

// Partitions returns the partition names in order.
func (d *Dataset) Partitions() []string {
	names := make([]string, len(d.parts))
	for i, p := range d.parts {
		names[i] = p.name
	}
	return names
}

// Entries returns the total number of rows across partitions.
func (d *Dataset) Entries() int64 {
	var n int64
	for _, p := range d.parts {
		n += p.entries
	}
	return n
}

func (d *Dataset) partition(name string) (*partition, error) {
	i, ok := d.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNoPartition, name)
	}
	return &d.parts[i], nil
}

// RowCount returns the number of rows of a partition.
func (d *Dataset) RowCount(name string) (int64, error) {
	p, err := d.partition(name)
	if err != nil {
		return 0, err
	}
	return p.entries, nil
}

// ReadColumn returns the value of a column at a partition-local row.
func (d *Dataset) ReadColumn(name string, row int64, part string) (table.Value, error) {
	p, err := d.partition(part)
	if err != nil {
		return table.Null(), err
	}
	if row < 0 || row >= p.entries {
		return table.Null(), fmt.Errorf("dataset: row %d out of range for partition %q (%d rows)", row, part, p.entries)
	}
	idx, ok := p.colIdx[name]
	if !ok {
		return table.Null(), fmt.Errorf("dataset: column %q not found in partition %q", name, part)
	}
	return p.tbl.At(int(row), idx), nil
}

// Spec is the file form of a dataset: either a list of files or a bare
// number of entries, optionally restricted to some partitions and a
// global range.
type Spec struct {
	Files      []string `yaml:"files"`
	Entries    int64    `yaml:"entries"`
	Partitions []string `yaml:"partitions"`
	Range      *Range   `yaml:"range"`
}

// LoadSpec reads a YAML dataset spec.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: cannot read spec %s: %w", path, err)
	}
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("dataset: cannot parse spec %s: %w", path, err)
	}
	return &s, s.Validate()
}

// Validate checks that the spec names a source and a sane range.
func (s *Spec) Validate() error {
	if len(s.Files) == 0 && s.Entries <= 0 {
		return errors.New("dataset: spec needs files or a positive entry count")
	}
	if len(s.Files) > 0 && s.Entries > 0 {
		return errors.New("dataset: spec cannot set both files and entries")
	}
	if s.Range != nil {
		return s.Range.Validate()
	}
	return nil
}

// Open materializes the dataset described by the spec.
func (s *Spec) Open() (*Dataset, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if len(s.Files) == 0 {
		return Empty(s.Entries), nil
	}
	return Open(s.Files...)
}
