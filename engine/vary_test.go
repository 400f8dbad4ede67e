package engine

import (
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/razeghi71/lazydf/dataset"
	"github.com/razeghi71/lazydf/hist"
	"github.com/razeghi71/lazydf/table"
)

func xzTable(n int) *table.Table {
	t := table.NewTable([]string{"x", "z"})
	for i := 1; i <= n; i++ {
		t.AddRow([]table.Value{table.IntVal(int64(i)), table.IntVal(int64(i))})
	}
	return t
}

func variations(t *testing.T, r *Result) *ResultMap {
	t.Helper()
	m, err := VariationsFor(r)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func get(t *testing.T, m *ResultMap, key string) *Result {
	t.Helper()
	r, ok := m.Get(key)
	if !ok {
		t.Fatalf("no universe %q in %v", key, m.Keys())
	}
	return r
}

func shift(n int64) DefineFunc {
	return func(a *Args) (table.Value, error) { return table.IntVal(a.Values[0].Int + n), nil }
}

func TestVariationsShareUnaffectedNodes(t *testing.T) {
	var sibling, alternates atomic.Int64
	g := newGraph(t, dataset.FromTable(xzTable(4)))
	f := must(t)(g.Root().Define("s", counted(&sibling, func(a *Args) (table.Value, error) {
		return table.IntVal(a.Values[0].Int * 10), nil
	}), "z"))
	f = must(t)(f.Vary("x", func(a *Args) ([]table.Value, error) {
		alternates.Add(1)
		x := a.Values[0].Int
		return []table.Value{table.IntVal(x + 100), table.IntVal(x + 200)}, nil
	}, []string{"x"}, []string{"A", "B"}))
	f = must(t)(f.DefineExpr("t", "x + s"))
	r := book(t)(f.Sum("t", ""))
	m := variations(t, r)
	run(t, g)

	if diff := cmp.Diff([]string{"x:A", "x:B"}, m.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	want := map[string]float64{"nominal": 110, "x:A": 510, "x:B": 910, "A": 510}
	for key, w := range want {
		if got := scalar(t, get(t, m, key)); got != w {
			t.Errorf("%s: expected %g, got %g", key, w, got)
		}
	}
	if got := scalar(t, r); got != 110 {
		t.Errorf("original result: expected 110, got %g", got)
	}
	if sibling.Load() != 4 {
		t.Errorf("unaffected define ran %d times, expected once per row", sibling.Load())
	}
	if alternates.Load() != 4 {
		t.Errorf("vary function ran %d times, expected once per row", alternates.Load())
	}
}

func TestEndToEndScenario(t *testing.T) {
	g := newGraph(t, dataset.Empty(2))
	f := must(t)(g.Root().Define("pt", func(a *Args) (table.Value, error) {
		if a.Entry == 0 {
			return table.FloatsVal(10, 20), nil
		}
		return table.FloatsVal(5, 5, 5, 5), nil
	}, EntryColumn))
	f = must(t)(f.Vary("pt", func(a *Args) ([]table.Value, error) {
		up, err := mapFloat(a.Values[0], func(x float64) float64 { return x * 1.1 })
		return []table.Value{up}, err
	}, []string{"pt"}, []string{"up"}))
	f = must(t)(f.FilterExpr("len(pt) >= 4"))
	r := book(t)(f.Sum("pt", ""))
	m := variations(t, r)
	run(t, g)

	if got := scalar(t, r); got != 20 {
		t.Errorf("nominal: expected 20, got %g", got)
	}
	if got := scalar(t, m.Nominal()); got != 20 {
		t.Errorf("map nominal: expected 20, got %g", got)
	}
	if got := scalar(t, get(t, m, "pt:up")); math.Abs(got-22) > 1e-9 {
		t.Errorf("up: expected 22, got %g", got)
	}
}

func TestNominalRunSkipsVaryFunc(t *testing.T) {
	var calls atomic.Int64
	g := newGraph(t, dataset.FromTable(xzTable(3)))
	f := must(t)(g.Root().Vary("x", func(a *Args) ([]table.Value, error) {
		calls.Add(1)
		return []table.Value{a.Values[0]}, nil
	}, []string{"x"}, []string{"same"}))
	r := book(t)(f.Sum("x", ""))
	if got := scalar(t, r); got != 6 {
		t.Errorf("expected 6, got %g", got)
	}
	if calls.Load() != 0 {
		t.Errorf("nominal run called the vary function %d times", calls.Load())
	}
}

func TestCartesianProduct(t *testing.T) {
	g := newGraph(t, dataset.Empty(3))
	f := must(t)(g.Root().Define("a", shift(0), EntryColumn))
	f = must(t)(f.Define("b", shift(0), EntryColumn))
	f = must(t)(f.VaryN("a", func(a *Args) ([]table.Value, error) {
		v := a.Values[0].Int
		return []table.Value{table.IntVal(v + 1), table.IntVal(v + 2)}, nil
	}, []string{"a"}, 2))
	f = must(t)(f.Vary("b", func(a *Args) ([]table.Value, error) {
		v := a.Values[0].Int
		out := make([]table.Value, 4)
		for k := range out {
			out[k] = table.IntVal(v + 10*int64(k+1))
		}
		return out, nil
	}, []string{"b"}, []string{"0", "1", "2", "3"}, WithVariationName("bb")))
	f = must(t)(f.DefineExpr("c", "a * 10 + b"))
	r := book(t)(f.Sum("c", ""))
	m := variations(t, r)
	run(t, g)

	if m.Len() != 8 {
		t.Fatalf("expected 8 universes, got %d: %v", m.Len(), m.Keys())
	}
	keys := m.Keys()
	if keys[0] != "a:0,bb:0" || keys[7] != "a:1,bb:3" {
		t.Errorf("unexpected key order %v", keys)
	}
	if got := scalar(t, get(t, m, "a:1,bb:2")); got != 183 {
		t.Errorf("a:1,bb:2: expected 183, got %g", got)
	}
	if got := scalar(t, get(t, m, "nominal")); got != 33 {
		t.Errorf("nominal: expected 33, got %g", got)
	}
	if _, ok := m.Get("1,2"); !ok {
		t.Error("bare tags should resolve a unique universe")
	}
}

func TestClonesAreHashConsed(t *testing.T) {
	var da, db atomic.Int64
	g := newGraph(t, dataset.Empty(5))
	f := must(t)(g.Root().Define("a", shift(0), EntryColumn))
	f = must(t)(f.Define("b", shift(0), EntryColumn))
	twoWays := func(a *Args) ([]table.Value, error) {
		v := a.Values[0].Int
		return []table.Value{table.IntVal(v + 1), table.IntVal(v - 1)}, nil
	}
	f = must(t)(f.Vary("a", twoWays, []string{"a"}, []string{"up", "down"}))
	f = must(t)(f.Vary("b", twoWays, []string{"b"}, []string{"up", "down"}))
	f = must(t)(f.Define("da", counted(&da, shift(0)), "a"))
	f = must(t)(f.Define("db", counted(&db, shift(0)), "b"))
	f = must(t)(f.DefineExpr("c", "da + db"))
	r := book(t)(f.Sum("c", ""))
	m := variations(t, r)
	run(t, g)

	if m.Len() != 4 {
		t.Fatalf("expected 4 universes, got %d", m.Len())
	}
	// nominal plus one clone per tag of its own variation
	if da.Load() != 15 || db.Load() != 15 {
		t.Errorf("expected 15 calls each, got da=%d db=%d", da.Load(), db.Load())
	}
	if got := scalar(t, get(t, m, "a:up,b:down")); got != scalar(t, r) {
		t.Errorf("up/down should cancel: got %g, nominal %g", got, scalar(t, r))
	}
}

func TestUnreachableVary(t *testing.T) {
	g := newGraph(t, dataset.FromTable(xzTable(3)))
	f := must(t)(g.Root().Vary("z", func(a *Args) ([]table.Value, error) {
		return []table.Value{table.IntVal(0)}, nil
	}, []string{"z"}, []string{"zero"}))
	r := book(t)(f.Sum("x", ""))
	m := variations(t, r)
	run(t, g)

	if m.Len() != 0 || len(m.Keys()) != 0 {
		t.Errorf("expected no universes, got %v", m.Keys())
	}
	if a, b := scalar(t, m.Nominal()), scalar(t, r); a != b {
		t.Errorf("nominal %g differs from original %g", a, b)
	}
}

func TestVaryThroughFilter(t *testing.T) {
	g := newGraph(t, dataset.Empty(4))
	f := must(t)(g.Root().Define("x", shift(0), EntryColumn))
	f = must(t)(f.VaryExpr("x", "[x + 10]", []string{"shift"}))
	f = must(t)(f.FilterExpr("x >= 2"))
	r := book(t)(f.Count())
	m := variations(t, r)
	run(t, g)

	if got := scalar(t, r); got != 2 {
		t.Errorf("nominal: expected 2 rows, got %g", got)
	}
	if got := scalar(t, get(t, m, "x:shift")); got != 4 {
		t.Errorf("shifted: expected 4 rows, got %g", got)
	}
}

func TestVaryBuildErrors(t *testing.T) {
	g := newGraph(t, dataset.FromTable(xzTable(1)))
	keep := func(a *Args) ([]table.Value, error) { return []table.Value{a.Values[0]}, nil }
	f := must(t)(g.Root().Vary("x", keep, []string{"x"}, []string{"up"}, WithVariationName("jes")))

	cases := []struct {
		name string
		err  error
		want error
	}{
		{"reused name", second(f.Vary("z", keep, []string{"z"}, []string{"up"}, WithVariationName("jes"))), ErrTagCollision},
		{"reused column name", second(f.Vary("z", keep, []string{"z"}, []string{"a"}, WithVariationName("x"))), nil},
		{"repeated tag", second(f.Vary("z", keep, []string{"z"}, []string{"a", "a"})), ErrTagCollision},
		{"nominal tag", second(f.Vary("z", keep, []string{"z"}, []string{"nominal"})), ErrTagCollision},
		{"no tags", second(f.Vary("z", keep, []string{"z"}, nil)), ErrVariationCount},
		{"zero count", second(f.VaryN("z", keep, []string{"z"}, 0)), ErrVariationCount},
		{"unknown column", second(f.Vary("eta", keep, []string{"z"}, []string{"a"})), ErrUnknownColumn},
		{"unknown input", second(f.Vary("z", keep, []string{"eta"}, []string{"a"})), ErrUnknownColumn},
		{"reserved", second(f.Vary(EntryColumn, keep, []string{"z"}, []string{"a"})), ErrReservedColumn},
		{"list count", second(f.VaryExpr("z", "[z, z * 2]", []string{"a"})), ErrVariationCount},
		{"untagged non-list", second(f.VaryExpr("z", "z * 2", nil)), ErrVariationCount},
	}
	for _, c := range cases {
		if c.want == nil {
			if c.err != nil {
				t.Errorf("%s: unexpected error %v", c.name, c.err)
			}
			continue
		}
		var be *GraphBuildError
		if !errors.Is(c.err, c.want) || !errors.As(c.err, &be) {
			t.Errorf("%s: expected GraphBuildError wrapping %v, got %v", c.name, c.want, c.err)
		}
	}
}

func second(_ Frame, err error) error { return err }

func TestVaryExprPositional(t *testing.T) {
	g := newGraph(t, dataset.FromTable(xzTable(2)))
	f := must(t)(g.Root().VaryExpr("x", "[x * 2, x * 3]", nil))
	r := book(t)(f.Sum("x", ""))
	m := variations(t, r)
	run(t, g)
	if diff := cmp.Diff([]string{"x:0", "x:1"}, m.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	if got := scalar(t, get(t, m, "x:1")); got != 9 {
		t.Errorf("x:1: expected 9, got %g", got)
	}
}

func TestVaryRuntimeCountMismatch(t *testing.T) {
	g := newGraph(t, dataset.FromTable(xzTable(2)))
	f := must(t)(g.Root().Vary("x", func(a *Args) ([]table.Value, error) {
		return []table.Value{a.Values[0]}, nil
	}, []string{"x"}, []string{"up", "down"}))
	r := book(t)(f.Sum("x", ""))
	variations(t, r)

	err := g.TriggerRun(t.Context())
	var rte *RuntimeTransformError
	if !errors.As(err, &rte) || !errors.Is(err, ErrVariationCount) {
		t.Fatalf("expected RuntimeTransformError wrapping ErrVariationCount, got %v", err)
	}
	if rte.Node != "vary x" {
		t.Errorf("expected node 'vary x', got %q", rte.Node)
	}
}

func TestVariationsForProtocol(t *testing.T) {
	g := newGraph(t, dataset.FromTable(xzTable(2)))
	f := must(t)(g.Root().VaryExpr("x", "[x + 1]", []string{"up"}))
	r := book(t)(f.Sum("x", ""))
	m := variations(t, r)

	var pe *ProtocolError
	if _, err := VariationsFor(get(t, m, "x:up")); !errors.As(err, &pe) || !errors.Is(err, ErrTagCollision) {
		t.Errorf("universe result: expected ProtocolError, got %v", err)
	}
	run(t, g)
	if _, err := VariationsFor(r); !errors.As(err, &pe) || !errors.Is(err, ErrAlreadyRun) {
		t.Errorf("ready result: expected ErrAlreadyRun, got %v", err)
	}
	clone, err := CloneResult(r)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := VariationsFor(clone); !errors.Is(err, ErrDetached) {
		t.Errorf("detached result: expected ErrDetached, got %v", err)
	}
}

func TestVariationsKeepInitialState(t *testing.T) {
	g := newGraph(t, dataset.FromTable(xzTable(2)))
	r := book(t)(g.Root().Fill(&hist.Sum{Total: 100}, "x", ""))
	plain := variations(t, r)

	f := must(t)(g.Root().VaryExpr("x", "[x + 1]", []string{"up"}))
	vr := book(t)(f.Fill(&hist.Sum{Total: 100}, "x", ""))
	varied := variations(t, vr)
	run(t, g)

	if plain.Len() != 0 {
		t.Errorf("expected no universes, got %v", plain.Keys())
	}
	want := []struct {
		name string
		r    *Result
		sum  float64
	}{
		{"original", r, 103},
		{"nominal", get(t, plain, "nominal"), 103},
		{"varied nominal", get(t, varied, "nominal"), 103},
		{"x:up", get(t, varied, "x:up"), 105},
	}
	for _, w := range want {
		if got := scalar(t, w.r); got != w.sum {
			t.Errorf("%s: expected %g, got %g", w.name, w.sum, got)
		}
	}
}
