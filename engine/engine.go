// Package engine implements a lazy computation graph over the rows of a
// dataset. Frames record Define, Filter and Vary nodes without touching
// data; terminal actions register accumulators that are filled by
// TriggerRun in one pass over the assigned range, sharded across worker
// slots.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/razeghi71/lazydf/dataset"
	"github.com/razeghi71/lazydf/table"
)

// Built-in columns available on every graph.
const (
	EntryColumn = "entry_" // global entry index, int
	SlotColumn  = "slot_"  // worker slot index, int
)

// Source is the column store a graph reads from. Rows are addressed
// locally within a partition. Implementations must allow concurrent reads.
type Source interface {
	Columns() []string
	Partitions() []string
	RowCount(partition string) (int64, error)
	ReadColumn(name string, row int64, partition string) (table.Value, error)
}

// Range is a half-open interval of global entries.
type Range = dataset.Range

// DatasetSpec assigns a source to a graph. Partitions selects and orders a
// subset of the source's partitions (all of them when empty); entries are
// numbered globally across the selected partitions. A nil Range covers
// every entry.
type DatasetSpec struct {
	Source     Source
	Partitions []string
	Range      *Range
}

// FromSpec opens the dataset a YAML spec describes.
func FromSpec(s *dataset.Spec) (DatasetSpec, error) {
	d, err := s.Open()
	if err != nil {
		return DatasetSpec{}, err
	}
	return DatasetSpec{Source: d, Partitions: s.Partitions, Range: s.Range}, nil
}

func (s DatasetSpec) validate() error {
	if s.Source == nil {
		return errors.New("dataset spec has no source")
	}
	known := make(map[string]bool)
	for _, p := range s.Source.Partitions() {
		known[p] = true
	}
	for _, p := range s.Partitions {
		if !known[p] {
			return fmt.Errorf("%w %q", dataset.ErrNoPartition, p)
		}
	}
	if s.Range != nil {
		if err := s.Range.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRange, err)
		}
	}
	return nil
}

func (s DatasetSpec) partitions() []string {
	if len(s.Partitions) > 0 {
		return s.Partitions
	}
	return s.Source.Partitions()
}

type nodeKind int

const (
	kindColumn   nodeKind = iota // source column
	kindEntry                    // entry_
	kindSlot                     // slot_
	kindDefine                   // user column
	kindFilter                   // boolean gate
	kindVaryEval                 // computes every alternate of a variation as a list
	kindVary                     // varied column; nominal value is its base
	kindPick                     // one alternate taken from a kindVaryEval node
)

var kindNames = map[nodeKind]string{
	kindColumn: "column", kindEntry: "entry", kindSlot: "slot", kindDefine: "define",
	kindFilter: "filter", kindVaryEval: "vary-eval", kindVary: "vary", kindPick: "pick",
}

func (k nodeKind) String() string { return kindNames[k] }

// node is immutable once appended to the arena.
type node struct {
	kind   nodeKind
	name   string
	column string // kindColumn
	deps   []int
	define DefineFunc
	filter FilterFunc
	vary   VaryFunc
	v      *variation // kindVaryEval, kindVary, kindPick
	pick   int        // kindPick
}

type variation struct {
	name   string
	column string
	tags   []string
	eval   int // kindVaryEval node
	node   int // kindVary node
}

func (v *variation) key(tag int) string {
	return v.name + ":" + v.tags[tag]
}

// Graph owns the node arena, the live action registry and the dataset
// assignment. Construction, rebind and clone calls are rejected while a
// run is in flight.
type Graph struct {
	mu      sync.Mutex
	running bool
	opts    options
	log     *slog.Logger

	spec    DatasetSpec
	columns map[string]bool

	nodes    []*node
	colNodes map[string]int
	entry    int
	slot     int
	intern   map[string]int

	actions []*action
	runs    int
}

// New creates an empty graph over spec.
func New(spec DatasetSpec, opts ...Option) (*Graph, error) {
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	o := applyOptions(opts)
	g := &Graph{
		opts:     o,
		log:      o.logger,
		spec:     spec,
		columns:  columnSet(spec.Source),
		colNodes: make(map[string]int),
		intern:   make(map[string]int),
	}
	g.entry = g.addNode(&node{kind: kindEntry, name: EntryColumn})
	g.slot = g.addNode(&node{kind: kindSlot, name: SlotColumn})
	return g, nil
}

func columnSet(src Source) map[string]bool {
	cols := make(map[string]bool)
	for _, c := range src.Columns() {
		cols[c] = true
	}
	return cols
}

// Root returns the frame over the raw source columns.
func (g *Graph) Root() Frame {
	return Frame{g: g}
}

// Actions returns the number of live registered actions.
func (g *Graph) Actions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.actions)
}

// Nodes returns the arena size.
func (g *Graph) Nodes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// Runs returns the number of completed runs.
func (g *Graph) Runs() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.runs
}

// Range returns the current global range, if one is set.
func (g *Graph) Range() (Range, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.spec.Range == nil {
		return Range{}, false
	}
	return *g.spec.Range, true
}

// Entries returns the number of global entries across the selected
// partitions, ignoring the range.
func (g *Graph) Entries() (int64, error) {
	g.mu.Lock()
	spec := g.spec
	g.mu.Unlock()
	var n int64
	for _, p := range spec.partitions() {
		c, err := spec.Source.RowCount(p)
		if err != nil {
			return 0, fmt.Errorf("partition %q: %w", p, err)
		}
		n += c
	}
	return n, nil
}

// SourceColumns returns the source columns the graph reads, sorted.
func (g *Graph) SourceColumns() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.colNodes))
	for c := range g.colNodes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// lockBuild takes the graph lock for a mutation and fails when a run is
// in flight. On success the caller must unlock.
func (g *Graph) lockBuild(op string) error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return protoErr(op, ErrRunInProgress)
	}
	return nil
}

func (g *Graph) addNode(n *node) int {
	g.nodes = append(g.nodes, n)
	return len(g.nodes) - 1
}

// columnNode returns the shared node reading a source column, creating it
// on first reference.
func (g *Graph) columnNode(name string) int {
	if id, ok := g.colNodes[name]; ok {
		return id
	}
	id := g.addNode(&node{kind: kindColumn, name: name, column: name})
	g.colNodes[name] = id
	return id
}

// internNode returns the node stored under key, building it with mk the
// first time. Variation clones go through here so that universes with
// identical rewritten inputs share one node.
func (g *Graph) internNode(key string, mk func() *node) int {
	if id, ok := g.intern[key]; ok {
		return id
	}
	id := g.addNode(mk())
	g.intern[key] = id
	return id
}
