package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/razeghi71/lazydf/ast"
)

func TestParseDefaultCount(t *testing.T) {
	q, err := Parse("events.parquet")
	if err != nil {
		t.Fatal(err)
	}
	if q.Source.Filename != "events.parquet" {
		t.Errorf("expected 'events.parquet', got %q", q.Source.Filename)
	}
	if len(q.Ops) != 1 {
		t.Fatalf("expected 1 op, got %d", len(q.Ops))
	}
	if _, ok := q.Ops[0].(*ast.CountOp); !ok {
		t.Fatalf("expected CountOp, got %T", q.Ops[0])
	}
}

func TestParsePipeline(t *testing.T) {
	q, err := Parse(`events.parquet
		| define mask = jet_pt > 25
		| vary jet_pt = [jet_pt * 1.03, smear(jet_pt, 0.05)] as pt_scale_up pt_res_up
		| filter { sum(mask) >= 4 }
		| define ht = sum(jet_pt[mask])
		| histo ht bins 25 50 550 weight weights`)
	if err != nil {
		t.Fatal(err)
	}
	if len(q.Ops) != 5 {
		t.Fatalf("expected 5 ops, got %d", len(q.Ops))
	}
	if _, ok := q.Ops[0].(*ast.DefineOp); !ok {
		t.Errorf("op[0]: expected DefineOp, got %T", q.Ops[0])
	}
	vary, ok := q.Ops[1].(*ast.VaryOp)
	if !ok {
		t.Fatalf("op[1]: expected VaryOp, got %T", q.Ops[1])
	}
	if diff := cmp.Diff([]string{"pt_scale_up", "pt_res_up"}, vary.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if list, ok := vary.Expr.(*ast.ListExpr); !ok || len(list.Elems) != 2 {
		t.Errorf("expected a 2-element list, got %s", ast.Format(vary.Expr))
	}
	if _, ok := q.Ops[2].(*ast.FilterOp); !ok {
		t.Errorf("op[2]: expected FilterOp, got %T", q.Ops[2])
	}
	h, ok := q.Ops[4].(*ast.HistoOp)
	if !ok {
		t.Fatalf("op[4]: expected HistoOp, got %T", q.Ops[4])
	}
	want := &ast.HistoOp{Column: "ht", Bins: 25, Lo: 50, Hi: 550, Weight: "weights"}
	if diff := cmp.Diff(want, h); diff != "" {
		t.Errorf("histo mismatch (-want +got):\n%s", diff)
	}
}

func TestParseVaryNamed(t *testing.T) {
	q, err := Parse("e.csv | vary jes: pt = [pt * 1.1, pt * 0.9] as up down | sum pt")
	if err != nil {
		t.Fatal(err)
	}
	vary := q.Ops[0].(*ast.VaryOp)
	if vary.Name != "jes" || vary.Column != "pt" {
		t.Errorf("expected jes:pt, got %s:%s", vary.Name, vary.Column)
	}
	sum := q.Ops[1].(*ast.SumOp)
	if sum.Column != "pt" || sum.Weight != "" {
		t.Errorf("unexpected sum %+v", sum)
	}
}

func TestParseVaryPositional(t *testing.T) {
	q, err := Parse("e.csv | vary pt = [pt, pt * 2, pt * 3] | count")
	if err != nil {
		t.Fatal(err)
	}
	vary := q.Ops[0].(*ast.VaryOp)
	if vary.Name != "" || len(vary.Tags) != 0 {
		t.Errorf("expected unnamed, untagged vary, got %+v", vary)
	}
}

func TestParseDefineMany(t *testing.T) {
	q, err := Parse("e.csv | redefine a = x + 1, b = a * 2 | mean b weight w")
	if err != nil {
		t.Fatal(err)
	}
	def := q.Ops[0].(*ast.DefineOp)
	if !def.Redefine || len(def.Assignments) != 2 {
		t.Fatalf("expected redefine with 2 assignments, got %+v", def)
	}
	if got := ast.Format(def.Assignments[1].Expr); got != "(a * 2)" {
		t.Errorf("unexpected expression %q", got)
	}
	mean := q.Ops[1].(*ast.MeanOp)
	if mean.Weight != "w" {
		t.Errorf("expected weight w, got %q", mean.Weight)
	}
}

func TestParseHistoNegativeRange(t *testing.T) {
	q, err := Parse("e.csv | histo eta bins 10 -2.5 2.5")
	if err != nil {
		t.Fatal(err)
	}
	h := q.Ops[0].(*ast.HistoOp)
	if h.Lo != -2.5 || h.Hi != 2.5 {
		t.Errorf("expected [-2.5, 2.5], got [%g, %g]", h.Lo, h.Hi)
	}
}

func TestParsePrecedence(t *testing.T) {
	expr, err := ParseExpr("a + b * c > 1 or not d")
	if err != nil {
		t.Fatal(err)
	}
	if got := ast.Format(expr); got != "(((a + (b * c)) > 1) or not d)" {
		t.Errorf("unexpected tree %q", got)
	}
}

func TestParseIndex(t *testing.T) {
	expr, err := ParseExpr("jet_pt[jet_pt > 25][0]")
	if err != nil {
		t.Fatal(err)
	}
	outer, ok := expr.(*ast.IndexExpr)
	if !ok {
		t.Fatalf("expected IndexExpr, got %T", expr)
	}
	if _, ok := outer.Target.(*ast.IndexExpr); !ok {
		t.Errorf("expected nested IndexExpr, got %T", outer.Target)
	}
	if diff := cmp.Diff([]string{"jet_pt"}, ast.Columns(expr)); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
}

func TestParseIsNull(t *testing.T) {
	expr, err := ParseExpr("tag is not null")
	if err != nil {
		t.Fatal(err)
	}
	isNull, ok := expr.(*ast.IsNullExpr)
	if !ok {
		t.Fatalf("expected IsNullExpr, got %T", expr)
	}
	if !isNull.Negated {
		t.Error("expected negated")
	}
}

func TestParseFuncLowercased(t *testing.T) {
	expr, err := ParseExpr("LEN(x)")
	if err != nil {
		t.Fatal(err)
	}
	if fn := expr.(*ast.FuncCallExpr); fn.Name != "len" {
		t.Errorf("expected 'len', got %q", fn.Name)
	}
}

func TestParsePathFilename(t *testing.T) {
	q, err := Parse("data/run2.parquet | count")
	if err != nil {
		t.Fatal(err)
	}
	if q.Source.Filename != "data/run2.parquet" {
		t.Errorf("expected 'data/run2.parquet', got %q", q.Source.Filename)
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{
		"e.csv | count | count",
		"e.csv | sum",
		"e.csv | head 3",
		"e.csv | filter { a > }",
		"e.csv | vary pt = [pt] as",
		"e.csv | histo pt 10 0 1",
		"e.csv | define a = [1, 2",
	} {
		if _, err := Parse(in); err == nil {
			t.Errorf("%q: expected parse error", in)
		}
	}
	if _, err := ParseExpr("a b"); err == nil {
		t.Error("expected error for trailing token")
	}
}
