package engine

import (
	"fmt"

	"github.com/razeghi71/lazydf/ast"
	"github.com/razeghi71/lazydf/parser"
	"github.com/razeghi71/lazydf/table"
)

// compiled is an expression bound to the columns it reads.
type compiled struct {
	expr   ast.Expr
	inputs []string
	index  map[string]int
}

func compileAST(expr ast.Expr) *compiled {
	c := &compiled{expr: expr, inputs: ast.Columns(expr), index: make(map[string]int)}
	for i, name := range c.inputs {
		c.index[name] = i
	}
	return c
}

func compileSource(op, column, src string) (*compiled, error) {
	expr, err := parser.ParseExpr(src)
	if err != nil {
		return nil, buildErr(op, column, err)
	}
	return compileAST(expr), nil
}

func (c *compiled) eval(a *Args) (table.Value, error) {
	return Eval(c.expr, &EvalContext{Index: c.index, Values: a.Values, Rand: a.Rand})
}

func (c *compiled) define(a *Args) (table.Value, error) {
	return c.eval(a)
}

func (c *compiled) filter(a *Args) (bool, error) {
	v, err := c.eval(a)
	if err != nil {
		return false, err
	}
	b, ok := v.AsBool()
	if !ok {
		return false, fmt.Errorf("filter expression %s yielded %s, expected bool", ast.Format(c.expr), v.Type)
	}
	return b, nil
}

func (c *compiled) vary(a *Args) ([]table.Value, error) {
	v, err := c.eval(a)
	if err != nil {
		return nil, err
	}
	if !v.IsList() {
		return nil, fmt.Errorf("%w: vary expression %s yielded %s, expected a list of alternates", ErrVariationCount, ast.Format(c.expr), v.Type)
	}
	return v.List, nil
}

// DefineExpr adds a column computed by an expression, e.g.
// "sum(jet_pt[jet_pt > 25])".
func (f Frame) DefineExpr(name, src string) (Frame, error) {
	c, err := compileSource("Define", name, src)
	if err != nil {
		return f, err
	}
	return f.define("Define", name, false, c.define, c.inputs)
}

// RedefineExpr replaces an existing column with an expression.
func (f Frame) RedefineExpr(name, src string) (Frame, error) {
	c, err := compileSource("Redefine", name, src)
	if err != nil {
		return f, err
	}
	return f.define("Redefine", name, true, c.define, c.inputs)
}

// FilterExpr keeps rows for which the expression is true; null counts as
// false.
func (f Frame) FilterExpr(src string) (Frame, error) {
	c, err := compileSource("Filter", "", src)
	if err != nil {
		return f, err
	}
	return f.filter(src, c.filter, c.inputs)
}

// VaryExpr varies column with an expression yielding one alternate per
// tag, typically a list literal such as "[pt * 1.1, pt * 0.9]". Without
// tags a list literal's alternates are named by position.
func (f Frame) VaryExpr(column, src string, tags []string, opts ...VaryOption) (Frame, error) {
	expr, err := parser.ParseExpr(src)
	if err != nil {
		return f, buildErr("Vary", column, err)
	}
	return f.varyAST(column, expr, tags, opts)
}

func (f Frame) varyAST(column string, expr ast.Expr, tags []string, opts []VaryOption) (Frame, error) {
	if list, ok := expr.(*ast.ListExpr); ok {
		switch {
		case len(tags) == 0:
			tags = positionalTags(len(list.Elems))
		case len(tags) != len(list.Elems):
			return f, buildErr("Vary", column, fmt.Errorf("%w: %d alternates for %d tags", ErrVariationCount, len(list.Elems), len(tags)))
		}
	} else if len(tags) == 0 {
		return f, buildErr("Vary", column, fmt.Errorf("%w: tags are required unless the expression is a list literal", ErrVariationCount))
	}
	c := compileAST(expr)
	return f.vary(column, c.vary, c.inputs, tags, opts)
}
