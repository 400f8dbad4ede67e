package engine

import (
	"fmt"

	"github.com/razeghi71/lazydf/ast"
	"github.com/razeghi71/lazydf/hist"
)

// Compile books the query's operations on top of f and returns the result
// of its terminal action together with the frame it was booked on. The
// query's source is not consulted; f already carries the dataset.
func Compile(q *ast.Query, f Frame) (*Result, Frame, error) {
	for _, op := range q.Ops {
		var err error
		switch o := op.(type) {
		case *ast.DefineOp:
			f, err = compileDefine(o, f)
		case *ast.FilterOp:
			c := compileAST(o.Expr)
			f, err = f.filter(ast.Format(o.Expr), c.filter, c.inputs)
		case *ast.VaryOp:
			var opts []VaryOption
			if o.Name != "" {
				opts = append(opts, WithVariationName(o.Name))
			}
			f, err = f.varyAST(o.Column, o.Expr, o.Tags, opts)
		case ast.Terminal:
			r, err := compileTerminal(o, f)
			return r, f, err
		default:
			err = fmt.Errorf("unknown operation type %T", op)
		}
		if err != nil {
			return nil, f, err
		}
	}
	return nil, f, fmt.Errorf("query has no terminal operation")
}

func compileDefine(o *ast.DefineOp, f Frame) (Frame, error) {
	op := "Define"
	if o.Redefine {
		op = "Redefine"
	}
	for _, a := range o.Assignments {
		c := compileAST(a.Expr)
		var err error
		if f, err = f.define(op, a.Column, o.Redefine, c.define, c.inputs); err != nil {
			return f, err
		}
	}
	return f, nil
}

func compileTerminal(op ast.Terminal, f Frame) (*Result, error) {
	switch o := op.(type) {
	case *ast.CountOp:
		return f.Count()
	case *ast.SumOp:
		return f.Sum(o.Column, o.Weight)
	case *ast.MeanOp:
		return f.Mean(o.Column, o.Weight)
	case *ast.HistoOp:
		return f.Histo1D(hist.Model{Name: o.Column, Bins: o.Bins, Lo: o.Lo, Hi: o.Hi}, o.Column, o.Weight)
	}
	return nil, fmt.Errorf("unknown terminal type %T", op)
}
