package engine

import (
	"errors"
	"math/rand/v2"
	"slices"
	"sort"
	"strconv"

	"github.com/razeghi71/lazydf/table"
)

// Args is what a transform function sees for one row.
type Args struct {
	Values    []table.Value // in the order of the declared inputs
	Entry     int64
	Partition string
	Row       int64
	Slot      int
	Rand      *rand.Rand // owned by the slot; never shared across goroutines
}

// Float returns input i as a number.
func (a *Args) Float(i int) (float64, bool) {
	return a.Values[i].AsFloat()
}

// DefineFunc computes a column value.
type DefineFunc func(a *Args) (table.Value, error)

// FilterFunc decides whether a row continues downstream.
type FilterFunc func(a *Args) (bool, error)

// VaryFunc returns one alternate value per variation tag, in tag order.
type VaryFunc func(a *Args) ([]table.Value, error)

var errNilFunc = errors.New("nil function")

// Frame is an immutable handle on a point of a lineage: the columns in
// scope and the filters rows must pass to get there. Every operation
// returns a new Frame and leaves the receiver usable.
type Frame struct {
	g       *Graph
	scope   map[string]int
	filters []int
	vars    []string
}

// Graph returns the graph the frame belongs to.
func (f Frame) Graph() *Graph { return f.g }

func isReserved(name string) bool {
	return name == EntryColumn || name == SlotColumn
}

// has reports whether name resolves in the frame. Caller holds g.mu.
func (f Frame) has(name string) bool {
	if _, ok := f.scope[name]; ok {
		return true
	}
	return isReserved(name) || f.g.columns[name]
}

// lookup resolves a column to its node. Caller holds g.mu.
func (f Frame) lookup(name string) (int, bool) {
	if id, ok := f.scope[name]; ok {
		return id, true
	}
	switch {
	case name == EntryColumn:
		return f.g.entry, true
	case name == SlotColumn:
		return f.g.slot, true
	case f.g.columns[name]:
		return f.g.columnNode(name), true
	}
	return -1, false
}

func (f Frame) resolve(op string, inputs []string) ([]int, error) {
	deps := make([]int, len(inputs))
	for i, in := range inputs {
		id, ok := f.lookup(in)
		if !ok {
			return nil, buildErr(op, in, ErrUnknownColumn)
		}
		deps[i] = id
	}
	return deps, nil
}

func (f Frame) with(name string, id int) Frame {
	scope := make(map[string]int, len(f.scope)+1)
	for k, v := range f.scope {
		scope[k] = v
	}
	scope[name] = id
	f.scope = scope
	return f
}

// Columns returns every column visible in the frame, sorted.
func (f Frame) Columns() []string {
	f.g.mu.Lock()
	defer f.g.mu.Unlock()
	seen := map[string]bool{EntryColumn: true, SlotColumn: true}
	for c := range f.g.columns {
		seen[c] = true
	}
	for c := range f.scope {
		seen[c] = true
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Define adds a column computed by fn from inputs.
func (f Frame) Define(name string, fn DefineFunc, inputs ...string) (Frame, error) {
	return f.define("Define", name, false, fn, inputs)
}

// Redefine replaces an existing column for everything downstream.
func (f Frame) Redefine(name string, fn DefineFunc, inputs ...string) (Frame, error) {
	return f.define("Redefine", name, true, fn, inputs)
}

func (f Frame) define(op, name string, redefine bool, fn DefineFunc, inputs []string) (Frame, error) {
	g := f.g
	if err := g.lockBuild(op); err != nil {
		return f, err
	}
	defer g.mu.Unlock()

	switch {
	case fn == nil:
		return f, buildErr(op, name, errNilFunc)
	case isReserved(name):
		return f, buildErr(op, name, ErrReservedColumn)
	case redefine && !f.has(name):
		return f, buildErr(op, name, ErrUnknownColumn)
	case !redefine && f.has(name):
		return f, buildErr(op, name, ErrDuplicateColumn)
	}
	deps, err := f.resolve(op, inputs)
	if err != nil {
		return f, err
	}
	id := g.addNode(&node{kind: kindDefine, name: name, deps: deps, define: fn})
	return f.with(name, id), nil
}

// Filter keeps rows for which fn returns true.
func (f Frame) Filter(fn FilterFunc, inputs ...string) (Frame, error) {
	return f.filter("", fn, inputs)
}

func (f Frame) filter(name string, fn FilterFunc, inputs []string) (Frame, error) {
	g := f.g
	if err := g.lockBuild("Filter"); err != nil {
		return f, err
	}
	defer g.mu.Unlock()

	if fn == nil {
		return f, buildErr("Filter", name, errNilFunc)
	}
	deps, err := f.resolve("Filter", inputs)
	if err != nil {
		return f, err
	}
	if name == "" {
		name = "filter#" + strconv.Itoa(len(f.filters))
	}
	id := g.addNode(&node{kind: kindFilter, name: name, deps: deps, filter: fn})
	f.filters = append(slices.Clip(f.filters), id)
	return f, nil
}
