package engine

import (
	"context"
	"fmt"

	"github.com/razeghi71/lazydf/hist"
)

// State is the lifecycle of a Result.
type State int

const (
	// Pending results have not been filled by a run yet.
	Pending State = iota
	// Ready results hold the accumulation of every run since booking or
	// the last Reset.
	Ready
	// Detached results are clones outside the action registry; runs never
	// touch them.
	Detached
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Detached:
		return "detached"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Result is the deferred handle of a terminal action.
type Result struct {
	g        *Graph
	act      *action // nil when detached
	acc      hist.Accumulator
	state    State
	name     string
	universe string
}

// Name describes the action, e.g. "Sum(pt)".
func (r *Result) Name() string { return r.name }

// Universe returns the universe key, or "" for a nominal result.
func (r *Result) Universe() string { return r.universe }

// State returns the current lifecycle state.
func (r *Result) State() State {
	r.g.mu.Lock()
	defer r.g.mu.Unlock()
	return r.state
}

// Value returns a snapshot of the accumulated state, triggering a run
// first if the result is still pending.
func (r *Result) Value(ctx context.Context) (hist.Accumulator, error) {
	r.g.mu.Lock()
	pending := r.state == Pending
	r.g.mu.Unlock()
	if pending {
		if err := r.g.TriggerRun(ctx); err != nil {
			return nil, err
		}
	}
	r.g.mu.Lock()
	defer r.g.mu.Unlock()
	return r.acc.Clone(), nil
}

// Scalar is Value for accumulators that reduce to one number.
func (r *Result) Scalar(ctx context.Context) (float64, error) {
	acc, err := r.Value(ctx)
	if err != nil {
		return 0, err
	}
	s, ok := acc.(hist.Scalar)
	if !ok {
		return 0, fmt.Errorf("%s: %T is not a scalar", r.name, acc)
	}
	return s.Value(), nil
}

// Peek returns a snapshot of the accumulator without running.
func (r *Result) Peek() (hist.Accumulator, State) {
	r.g.mu.Lock()
	defer r.g.mu.Unlock()
	return r.acc.Clone(), r.state
}

// Reset empties the accumulator. A live result returns to Pending so that
// the next run starts from zero; a detached result stays detached.
func (r *Result) Reset() error {
	if err := r.g.lockBuild("Reset"); err != nil {
		return err
	}
	defer r.g.mu.Unlock()
	r.acc = r.acc.Empty()
	if r.state != Detached {
		r.state = Pending
	}
	return nil
}

func (r *Result) String() string {
	acc, state := r.Peek()
	name := r.name
	if r.universe != "" {
		name += "[" + r.universe + "]"
	}
	return fmt.Sprintf("%s %s: %v", name, state, acc)
}

// CloneResult returns a detached deep copy of a ready result. The original
// keeps its registration, so the live action count is unchanged, and later
// runs accumulate into the original only.
func CloneResult(r *Result) (*Result, error) {
	if r == nil {
		return nil, protoErr("CloneResult", ErrNotReady)
	}
	if err := r.g.lockBuild("CloneResult"); err != nil {
		return nil, err
	}
	defer r.g.mu.Unlock()
	return r.clone()
}

// clone copies r. Caller holds g.mu.
func (r *Result) clone() (*Result, error) {
	if r.state == Pending {
		return nil, protoErr("CloneResult", fmt.Errorf("%w: %s", ErrNotReady, r.name))
	}
	return &Result{
		g:        r.g,
		acc:      r.acc.Clone(),
		state:    Detached,
		name:     r.name,
		universe: r.universe,
	}, nil
}

// CloneResultMap clones every result of m, nominal included. Either every
// entry is cloned or none is.
func CloneResultMap(m *ResultMap) (*ResultMap, error) {
	if m == nil || m.nominal == nil {
		return nil, protoErr("CloneResultMap", ErrNotReady)
	}
	g := m.nominal.g
	if err := g.lockBuild("CloneResultMap"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()

	out := &ResultMap{keys: append([]string(nil), m.keys...), results: make(map[string]*Result, len(m.results))}
	nominal, err := m.nominal.clone()
	if err != nil {
		return nil, err
	}
	out.nominal = nominal
	for _, k := range m.keys {
		c, err := m.results[k].clone()
		if err != nil {
			return nil, err
		}
		out.results[k] = c
	}
	return out, nil
}
