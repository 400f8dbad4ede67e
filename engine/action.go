package engine

import (
	"fmt"
	"slices"

	"github.com/razeghi71/lazydf/hist"
	"github.com/razeghi71/lazydf/table"
)

// action is a registered terminal node. obs and weight are node ids, or
// -1 for "no observable" and "unit weight".
type action struct {
	name     string
	obs      int
	weight   int
	filters  []int
	universe string
	result   *Result
}

func (a *action) derive(obs, weight int, filters []int, universe string) *action {
	return &action{name: a.name, obs: obs, weight: weight, filters: slices.Clone(filters), universe: universe}
}

// register books a into the live registry with acc as its accumulator.
// Caller holds g.mu.
func (g *Graph) register(a *action, acc hist.Accumulator) *Result {
	r := &Result{g: g, act: a, acc: acc, name: a.name, universe: a.universe}
	a.result = r
	g.actions = append(g.actions, a)
	return r
}

// Count counts the rows that pass the frame's filters.
func (f Frame) Count() (*Result, error) {
	return f.book("Count", &hist.Count{}, "", "")
}

// Sum sums column, weighted by weight (empty means 1).
func (f Frame) Sum(column, weight string) (*Result, error) {
	return f.book("Sum", &hist.Sum{}, column, weight)
}

// Mean computes the weighted mean of column.
func (f Frame) Mean(column, weight string) (*Result, error) {
	return f.book("Mean", &hist.Mean{}, column, weight)
}

// Histo1D fills a fixed-binning histogram with column.
func (f Frame) Histo1D(m hist.Model, column, weight string) (*Result, error) {
	h, err := hist.NewH1(m)
	if err != nil {
		return nil, buildErr("Histo1D", column, err)
	}
	return f.book("Histo1D", h, column, weight)
}

// Fill books a caller-supplied accumulator. acc is used as the initial
// state; slots fill empty copies of it.
func (f Frame) Fill(acc hist.Accumulator, column, weight string) (*Result, error) {
	if acc == nil {
		return nil, buildErr("Fill", column, errNilFunc)
	}
	return f.book("Fill", acc, column, weight)
}

func (f Frame) book(op string, acc hist.Accumulator, column, weight string) (*Result, error) {
	g := f.g
	if err := g.lockBuild(op); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()

	obs, w := -1, -1
	if column != "" {
		id, ok := f.lookup(column)
		if !ok {
			return nil, buildErr(op, column, ErrUnknownColumn)
		}
		obs = id
	}
	if weight != "" {
		id, ok := f.lookup(weight)
		if !ok {
			return nil, buildErr(op, weight, ErrUnknownColumn)
		}
		w = id
	}
	name := op
	if column != "" {
		name += "(" + column + ")"
	}
	a := &action{name: name, obs: obs, weight: w, filters: slices.Clone(f.filters)}
	return g.register(a, acc), nil
}

// fill feeds one row into acc. A list observable fills every element; a
// list weight must pair element-wise with it. Null observables are skipped.
func fill(acc hist.Accumulator, x, w table.Value) error {
	if x.IsNull() {
		return nil
	}
	if !x.IsList() {
		if w.IsList() {
			return fmt.Errorf("list weight %s needs a list observable", w.AsString())
		}
		xf, ok := x.AsFloat()
		if !ok {
			return fmt.Errorf("observable %s is not numeric", x.AsString())
		}
		wf, ok := w.AsFloat()
		if !ok {
			return fmt.Errorf("weight %s is not numeric", w.AsString())
		}
		acc.Fill(xf, wf)
		return nil
	}

	if w.IsList() && len(w.List) != len(x.List) {
		return fmt.Errorf("weight has %d elements, observable has %d", len(w.List), len(x.List))
	}
	for i, el := range x.List {
		if el.IsNull() {
			continue
		}
		xf, ok := el.AsFloat()
		if !ok {
			return fmt.Errorf("observable element %s is not numeric", el.AsString())
		}
		wv := w
		if w.IsList() {
			wv = w.List[i]
		}
		wf, ok := wv.AsFloat()
		if !ok {
			return fmt.Errorf("weight %s is not numeric", wv.AsString())
		}
		acc.Fill(xf, wf)
	}
	return nil
}
