package engine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/razeghi71/lazydf/hist"
	"github.com/razeghi71/lazydf/table"
)

// task is a run of consecutive rows of one partition.
type task struct {
	partition string
	begin     int64 // partition-local, inclusive
	end       int64 // partition-local, exclusive
	base      int64 // global entry of local row 0
}

// plan splits the selected partitions, clipped to the global range, into
// chunks of at most chunk rows.
func plan(spec DatasetSpec, chunk int64) ([]task, error) {
	var tasks []task
	var base int64
	for _, p := range spec.partitions() {
		n, err := spec.Source.RowCount(p)
		if err != nil {
			return nil, fmt.Errorf("partition %q: %w", p, err)
		}
		span := Range{Begin: base, End: base + n}
		if spec.Range != nil {
			var ok bool
			span, ok = spec.Range.Intersect(span.Begin, span.End)
			if !ok {
				base += n
				continue
			}
		}
		for lo := span.Begin; lo < span.End; lo += chunk {
			hi := min(lo+chunk, span.End)
			tasks = append(tasks, task{partition: p, begin: lo - base, end: hi - base, base: base})
		}
		base += n
	}
	return tasks, nil
}

// TriggerRun fills every live action in one pass over the assigned range,
// using the configured number of worker slots. On failure no result is
// modified.
func (g *Graph) TriggerRun(ctx context.Context) error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return protoErr("TriggerRun", ErrRunInProgress)
	}
	if len(g.actions) == 0 {
		g.mu.Unlock()
		return protoErr("TriggerRun", ErrNoActions)
	}
	g.running = true
	actions := slices.Clone(g.actions)
	nodes := g.nodes
	spec := g.spec
	o := g.opts
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.running = false
		g.mu.Unlock()
	}()

	start := time.Now()
	tasks, err := plan(spec, o.chunkSize)
	if err != nil {
		return fmt.Errorf("engine: plan: %w", err)
	}
	workers := max(1, min(o.workers, len(tasks)))
	g.log.Debug("run planned", "tasks", len(tasks), "slots", workers, "actions", len(actions), "nodes", len(nodes))

	slots := make([]*slot, workers)
	for i := range slots {
		slots[i] = newSlot(i, o.seed, nodes, spec.Source, actions)
	}

	eg, ctx := errgroup.WithContext(ctx)
	queue := make(chan task)
	eg.Go(func() error {
		defer close(queue)
		for _, t := range tasks {
			select {
			case queue <- t:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	for _, s := range slots {
		eg.Go(func() error {
			for t := range queue {
				if err := s.process(ctx, t); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		g.log.Error("run aborted", "error", err)
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	var rows int64
	for _, s := range slots {
		rows += s.rows
	}
	for i, a := range actions {
		for _, s := range slots {
			if err := a.result.acc.Merge(s.accs[i]); err != nil {
				return fmt.Errorf("engine: merge %s: %w", a.name, err)
			}
		}
		a.result.state = Ready
	}
	g.runs++
	g.log.Info("run finished", "run", g.runs, "rows", rows, "actions", len(actions), "slots", workers, "elapsed", time.Since(start))
	return nil
}

type memo struct {
	epoch uint64
	val   table.Value
}

// slot is the scratch state of one worker: its accumulators, its per-row
// node cache and its random generator.
type slot struct {
	id      int
	nodes   []*node
	src     Source
	actions []*action
	accs    []hist.Accumulator
	memo    []memo
	epoch   uint64
	rng     *rand.Rand
	rows    int64

	entry int64
	part  string
	row   int64
}

func newSlot(id int, seed int64, nodes []*node, src Source, actions []*action) *slot {
	s := &slot{
		id:      id,
		nodes:   nodes,
		src:     src,
		actions: actions,
		accs:    make([]hist.Accumulator, len(actions)),
		memo:    make([]memo, len(nodes)),
		rng:     rand.New(rand.NewPCG(uint64(seed), uint64(id))),
	}
	for i, a := range actions {
		s.accs[i] = a.result.acc.Empty()
	}
	return s
}

const cancelCheckEvery = 1024

func (s *slot) process(ctx context.Context, t task) error {
	for row := t.begin; row < t.end; row++ {
		if (row-t.begin)%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		s.epoch++
		s.entry, s.part, s.row = t.base+row, t.partition, row
		for i, a := range s.actions {
			if err := s.feed(a, s.accs[i]); err != nil {
				return err
			}
		}
		s.rows++
	}
	return nil
}

// feed checks a's filters in lineage order and fills acc if all pass.
func (s *slot) feed(a *action, acc hist.Accumulator) error {
	for _, id := range a.filters {
		v, err := s.value(id)
		if err != nil {
			return err
		}
		if !v.Bool {
			return nil
		}
	}
	x, w := table.FloatVal(0), table.FloatVal(1)
	var err error
	if a.obs >= 0 {
		if x, err = s.value(a.obs); err != nil {
			return err
		}
	}
	if a.weight >= 0 {
		if w, err = s.value(a.weight); err != nil {
			return err
		}
	}
	if err := fill(acc, x, w); err != nil {
		return s.fail(a.name, err)
	}
	return nil
}

func (s *slot) fail(name string, err error) error {
	return &RuntimeTransformError{Node: name, Entry: s.entry, Partition: s.part, Row: s.row, Err: err}
}

// value returns node id's value for the current row, computing it at most
// once per row. Errors from inputs are returned as they are; errors of the
// node itself are wrapped with the row context.
func (s *slot) value(id int) (table.Value, error) {
	m := &s.memo[id]
	if m.epoch == s.epoch {
		return m.val, nil
	}
	n := s.nodes[id]

	var v table.Value
	switch n.kind {
	case kindEntry:
		v = table.IntVal(s.entry)
	case kindSlot:
		v = table.IntVal(int64(s.id))
	case kindColumn:
		var err error
		if v, err = s.src.ReadColumn(n.column, s.row, s.part); err != nil {
			return table.Null(), s.fail(n.name, err)
		}
	case kindVary:
		var err error
		if v, err = s.value(n.deps[0]); err != nil {
			return table.Null(), err
		}
	case kindPick:
		alts, err := s.value(n.deps[0])
		if err != nil {
			return table.Null(), err
		}
		v = alts.List[n.pick]
	default:
		args, err := s.args(n)
		if err != nil {
			return table.Null(), err
		}
		if v, err = s.call(n, args); err != nil {
			return table.Null(), s.fail(n.name, err)
		}
	}

	m.epoch, m.val = s.epoch, v
	return v, nil
}

func (s *slot) args(n *node) (*Args, error) {
	a := &Args{
		Values:    make([]table.Value, len(n.deps)),
		Entry:     s.entry,
		Partition: s.part,
		Row:       s.row,
		Slot:      s.id,
		Rand:      s.rng,
	}
	for i, d := range n.deps {
		v, err := s.value(d)
		if err != nil {
			return nil, err
		}
		a.Values[i] = v
	}
	return a, nil
}

func (s *slot) call(n *node, a *Args) (table.Value, error) {
	switch n.kind {
	case kindDefine:
		return n.define(a)
	case kindFilter:
		ok, err := n.filter(a)
		return table.BoolVal(ok), err
	case kindVaryEval:
		alts, err := n.vary(a)
		if err != nil {
			return table.Null(), err
		}
		if len(alts) != len(n.v.tags) {
			return table.Null(), fmt.Errorf("%w: got %d values for %d tags", ErrVariationCount, len(alts), len(n.v.tags))
		}
		return table.ListVal(alts), nil
	}
	return table.Null(), fmt.Errorf("cannot evaluate %s node", n.kind)
}
