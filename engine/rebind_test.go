package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/razeghi71/lazydf/dataset"
	"github.com/razeghi71/lazydf/hist"
)

func TestCloneSurvivesRangeChange(t *testing.T) {
	g := newGraph(t, dataset.Empty(10))
	r := book(t)(g.Root().Sum(EntryColumn, ""))
	if err := g.ChangeRange(Range{Begin: 0, End: 5}); err != nil {
		t.Fatal(err)
	}
	if got := scalar(t, r); got != 10 {
		t.Fatalf("first chunk: expected 10, got %g", got)
	}
	clone, err := CloneResult(r)
	if err != nil {
		t.Fatal(err)
	}
	if clone.State() != Detached {
		t.Errorf("clone should be detached, got %s", clone.State())
	}
	if got := g.Actions(); got != 1 {
		t.Errorf("cloning changed the action count to %d", got)
	}

	if err := g.ChangeRange(Range{Begin: 5, End: 10}); err != nil {
		t.Fatal(err)
	}
	run(t, g)
	if got := scalar(t, r); got != 45 {
		t.Errorf("original after second run: expected 45, got %g", got)
	}
	if got := scalar(t, clone); got != 10 {
		t.Errorf("clone after second run: expected 10, got %g", got)
	}
	if g.Runs() != 2 {
		t.Errorf("expected 2 runs, got %d", g.Runs())
	}
}

func TestResetStartsFromZero(t *testing.T) {
	g := newGraph(t, dataset.Empty(4))
	r := book(t)(g.Root().Count())
	run(t, g)
	if err := r.Reset(); err != nil {
		t.Fatal(err)
	}
	if r.State() != Pending {
		t.Errorf("expected pending after reset, got %s", r.State())
	}
	if err := g.ChangeRange(Range{Begin: 1, End: 3}); err != nil {
		t.Fatal(err)
	}
	if got := scalar(t, r); got != 2 {
		t.Errorf("expected 2 after reset and rerun, got %g", got)
	}
	if err := g.ClearRange(); err != nil {
		t.Fatal(err)
	}
	if _, ok := g.Range(); ok {
		t.Error("range should be cleared")
	}
}

func TestValueTriggersOneRun(t *testing.T) {
	g := newGraph(t, dataset.Empty(3))
	a := book(t)(g.Root().Count())
	b := book(t)(g.Root().Sum(EntryColumn, ""))
	if got := scalar(t, a); got != 3 {
		t.Errorf("count: expected 3, got %g", got)
	}
	if got := scalar(t, b); got != 3 {
		t.Errorf("sum: expected 3, got %g", got)
	}
	if g.Runs() != 1 {
		t.Errorf("expected a single run for both results, got %d", g.Runs())
	}
	if acc, state := a.Peek(); state != Ready || acc.(hist.Scalar).Value() != 3 {
		t.Errorf("peek: got %v %s", acc, state)
	}
}

func TestClonePendingResult(t *testing.T) {
	g := newGraph(t, dataset.Empty(1))
	r := book(t)(g.Root().Count())
	var pe *ProtocolError
	if _, err := CloneResult(r); !errors.As(err, &pe) || !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ProtocolError wrapping ErrNotReady, got %v", err)
	}
	if _, err := CloneResult(nil); !errors.Is(err, ErrNotReady) {
		t.Errorf("nil result: expected ErrNotReady, got %v", err)
	}
}

func TestCloneResultMap(t *testing.T) {
	g := newGraph(t, dataset.FromTable(xzTable(3)))
	f := must(t)(g.Root().VaryExpr("x", "[x * 2, x * 3]", []string{"double", "triple"}))
	r := book(t)(f.Sum("x", ""))
	m := variations(t, r)
	if _, err := CloneResultMap(m); !errors.Is(err, ErrNotReady) {
		t.Errorf("pending map: expected ErrNotReady, got %v", err)
	}
	run(t, g)

	c, err := CloneResultMap(m)
	if err != nil {
		t.Fatal(err)
	}
	run(t, g)
	want := map[string][2]float64{
		"nominal":  {6, 12},
		"x:double": {12, 24},
		"x:triple": {18, 36},
	}
	for key, w := range want {
		if got := scalar(t, get(t, c, key)); got != w[0] {
			t.Errorf("clone %s: expected %g, got %g", key, w[0], got)
		}
		if got := scalar(t, get(t, m, key)); got != w[1] {
			t.Errorf("live %s: expected %g, got %g", key, w[1], got)
		}
		if s := get(t, c, key).State(); s != Detached {
			t.Errorf("clone %s: expected detached, got %s", key, s)
		}
	}
}

func TestInvalidRange(t *testing.T) {
	g := newGraph(t, dataset.Empty(3))
	if err := g.ChangeRange(Range{Begin: 3, End: 1}); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange, got %v", err)
	}
	if _, ok := g.Range(); ok {
		t.Error("a rejected range must not be applied")
	}
}

func TestChangeSource(t *testing.T) {
	g := newGraph(t, dataset.FromTable(xzTable(3)))
	r := book(t)(g.Root().Sum("x", ""))
	if got := scalar(t, r); got != 6 {
		t.Fatalf("expected 6, got %g", got)
	}

	err := g.ChangeSource(DatasetSpec{Source: dataset.FromTable(eventsTable([]float64{1}))})
	if !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn, got %v", err)
	}
	run(t, g)
	if got := scalar(t, r); got != 12 {
		t.Errorf("failed swap must keep the old source: expected 12, got %g", got)
	}

	if err := g.ChangeSource(DatasetSpec{Source: dataset.FromTable(xzTable(4))}); err != nil {
		t.Fatal(err)
	}
	if err := r.Reset(); err != nil {
		t.Fatal(err)
	}
	if got := scalar(t, r); got != 10 {
		t.Errorf("new source: expected 10, got %g", got)
	}
}

func TestRunAppendsByDefault(t *testing.T) {
	g := newGraph(t, dataset.Empty(2))
	r := book(t)(g.Root().Count())
	ctx := context.Background()
	for range 3 {
		if err := g.TriggerRun(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if got := scalar(t, r); got != 6 {
		t.Errorf("expected counts to accumulate to 6, got %g", got)
	}
}
