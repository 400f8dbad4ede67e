package engine

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/razeghi71/lazydf/ast"
	"github.com/razeghi71/lazydf/table"
)

// EvalContext provides column lookup for expression evaluation. Index
// maps a column name to its position in Values.
type EvalContext struct {
	Index  map[string]int
	Values []table.Value
	Rand   *rand.Rand
}

// Eval evaluates an expression against a row context.
func Eval(expr ast.Expr, ctx *EvalContext) (table.Value, error) {
	switch e := expr.(type) {
	case *ast.LiteralExpr:
		return evalLiteral(e), nil
	case *ast.ColumnExpr:
		return evalColumn(e, ctx)
	case *ast.BinaryExpr:
		return evalBinary(e, ctx)
	case *ast.UnaryExpr:
		return evalUnary(e, ctx)
	case *ast.FuncCallExpr:
		return evalFunc(e, ctx)
	case *ast.IsNullExpr:
		return evalIsNull(e, ctx)
	case *ast.ListExpr:
		return evalList(e, ctx)
	case *ast.IndexExpr:
		return evalIndex(e, ctx)
	default:
		return table.Null(), fmt.Errorf("unknown expression type %T", expr)
	}
}

func evalLiteral(e *ast.LiteralExpr) table.Value {
	switch e.Kind {
	case "int":
		return table.IntVal(e.Int)
	case "float":
		return table.FloatVal(e.Float)
	case "string":
		return table.StrVal(e.Str)
	case "bool":
		return table.BoolVal(e.Bool)
	default:
		return table.Null()
	}
}

func evalColumn(e *ast.ColumnExpr, ctx *EvalContext) (table.Value, error) {
	idx, ok := ctx.Index[e.Name]
	if !ok || idx >= len(ctx.Values) {
		return table.Null(), fmt.Errorf("column %q not found", e.Name)
	}
	return ctx.Values[idx], nil
}

func evalList(e *ast.ListExpr, ctx *EvalContext) (table.Value, error) {
	items := make([]table.Value, len(e.Elems))
	for i, el := range e.Elems {
		v, err := Eval(el, ctx)
		if err != nil {
			return table.Null(), err
		}
		items[i] = v
	}
	return table.ListVal(items), nil
}

// evalIndex handles x[i] (negative i counts from the end), x[mask] with a
// boolean list of the same length, and x[idx] with a list of positions.
func evalIndex(e *ast.IndexExpr, ctx *EvalContext) (table.Value, error) {
	target, err := Eval(e.Target, ctx)
	if err != nil {
		return table.Null(), err
	}
	index, err := Eval(e.Index, ctx)
	if err != nil {
		return table.Null(), err
	}
	if target.IsNull() || index.IsNull() {
		return table.Null(), nil
	}
	if !target.IsList() {
		return table.Null(), fmt.Errorf("cannot index %s", target.Type)
	}

	if !index.IsList() {
		if index.Type != table.TypeInt {
			return table.Null(), fmt.Errorf("list index must be an int, got %s", index.Type)
		}
		return at(target.List, index.Int)
	}

	var out []table.Value
	for i, sel := range index.List {
		switch sel.Type {
		case table.TypeBool:
			if len(index.List) != len(target.List) {
				return table.Null(), fmt.Errorf("mask has %d elements, list has %d", len(index.List), len(target.List))
			}
			if sel.Bool {
				out = append(out, target.List[i])
			}
		case table.TypeInt:
			v, err := at(target.List, sel.Int)
			if err != nil {
				return table.Null(), err
			}
			out = append(out, v)
		default:
			return table.Null(), fmt.Errorf("cannot select with %s", sel.Type)
		}
	}
	return table.ListVal(out), nil
}

func at(items []table.Value, i int64) (table.Value, error) {
	n := int64(len(items))
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return table.Null(), fmt.Errorf("index %d out of range for list of %d", i, n)
	}
	return items[i], nil
}

// broadcast applies f element-wise when either side is a list. Two lists
// must have the same length; a scalar pairs with every element.
func broadcast(left, right table.Value, f func(l, r table.Value) (table.Value, error)) (table.Value, error) {
	if !left.IsList() && !right.IsList() {
		return f(left, right)
	}
	n := len(left.List)
	if !left.IsList() {
		n = len(right.List)
	} else if right.IsList() && len(right.List) != n {
		return table.Null(), fmt.Errorf("list lengths differ: %d and %d", len(left.List), len(right.List))
	}
	out := make([]table.Value, n)
	for i := range out {
		l, r := left, right
		if left.IsList() {
			l = left.List[i]
		}
		if right.IsList() {
			r = right.List[i]
		}
		v, err := broadcast(l, r, f)
		if err != nil {
			return table.Null(), err
		}
		out[i] = v
	}
	return table.ListVal(out), nil
}

func evalBinary(e *ast.BinaryExpr, ctx *EvalContext) (table.Value, error) {
	left, err := Eval(e.Left, ctx)
	if err != nil {
		return table.Null(), err
	}
	right, err := Eval(e.Right, ctx)
	if err != nil {
		return table.Null(), err
	}

	var f func(l, r table.Value) (table.Value, error)
	switch e.Op {
	case "+", "-", "*", "/":
		f = func(l, r table.Value) (table.Value, error) {
			if l.IsNull() || r.IsNull() {
				return table.Null(), nil
			}
			return evalArith(e.Op, l, r)
		}
	case "==", "!=", "<", ">", "<=", ">=":
		f = func(l, r table.Value) (table.Value, error) { return evalComparison(e.Op, l, r) }
	case "and":
		f = func(l, r table.Value) (table.Value, error) { return evalLogical("and", l, r) }
	case "or":
		f = func(l, r table.Value) (table.Value, error) { return evalLogical("or", l, r) }
	default:
		return table.Null(), fmt.Errorf("unknown operator %q", e.Op)
	}
	return broadcast(left, right, f)
}

func evalArith(op string, left, right table.Value) (table.Value, error) {
	if op == "+" && left.Type == table.TypeString && right.Type == table.TypeString {
		return table.StrVal(left.Str + right.Str), nil
	}

	lf, lok := left.AsFloat()
	rf, rok := right.AsFloat()
	if !lok || !rok {
		return table.Null(), fmt.Errorf("cannot perform %s on %v and %v", op, left.AsString(), right.AsString())
	}
	bothInt := left.Type == table.TypeInt && right.Type == table.TypeInt

	switch op {
	case "+":
		if bothInt {
			return table.IntVal(left.Int + right.Int), nil
		}
		return table.FloatVal(lf + rf), nil
	case "-":
		if bothInt {
			return table.IntVal(left.Int - right.Int), nil
		}
		return table.FloatVal(lf - rf), nil
	case "*":
		if bothInt {
			return table.IntVal(left.Int * right.Int), nil
		}
		return table.FloatVal(lf * rf), nil
	}

	// division by zero yields null
	if rf == 0 {
		return table.Null(), nil
	}
	if bothInt && left.Int%right.Int == 0 {
		return table.IntVal(left.Int / right.Int), nil
	}
	return table.FloatVal(lf / rf), nil
}

func evalComparison(op string, left, right table.Value) (table.Value, error) {
	// null == null is true, null == anything else is false
	if left.IsNull() || right.IsNull() {
		both := left.IsNull() && right.IsNull()
		switch op {
		case "==":
			return table.BoolVal(both), nil
		case "!=":
			return table.BoolVal(!both), nil
		default:
			return table.Null(), nil
		}
	}

	if left.Type == table.TypeString && right.Type == table.TypeString {
		return table.BoolVal(cmpResult(op, strings.Compare(left.Str, right.Str))), nil
	}

	if left.Type == table.TypeBool && right.Type == table.TypeBool {
		switch op {
		case "==":
			return table.BoolVal(left.Bool == right.Bool), nil
		case "!=":
			return table.BoolVal(left.Bool != right.Bool), nil
		default:
			return table.Null(), fmt.Errorf("cannot use %s on booleans", op)
		}
	}

	lf, lok := left.AsFloat()
	rf, rok := right.AsFloat()
	if !lok || !rok {
		return table.Null(), fmt.Errorf("cannot compare %v with %v", left.AsString(), right.AsString())
	}
	c := 0
	switch {
	case lf < rf:
		c = -1
	case lf > rf:
		c = 1
	}
	return table.BoolVal(cmpResult(op, c)), nil
}

func cmpResult(op string, c int) bool {
	switch op {
	case "==":
		return c == 0
	case "!=":
		return c != 0
	case "<":
		return c < 0
	case ">":
		return c > 0
	case "<=":
		return c <= 0
	case ">=":
		return c >= 0
	}
	return false
}

func evalLogical(op string, left, right table.Value) (table.Value, error) {
	lb, lok := left.AsBool()
	rb, rok := right.AsBool()
	if !lok || !rok {
		return table.Null(), fmt.Errorf("'%s' requires boolean operands", op)
	}
	if op == "and" {
		return table.BoolVal(lb && rb), nil
	}
	return table.BoolVal(lb || rb), nil
}

func evalUnary(e *ast.UnaryExpr, ctx *EvalContext) (table.Value, error) {
	operand, err := Eval(e.Operand, ctx)
	if err != nil {
		return table.Null(), err
	}
	return mapValue(operand, func(v table.Value) (table.Value, error) {
		switch e.Op {
		case "not":
			b, ok := v.AsBool()
			if !ok {
				return table.Null(), fmt.Errorf("'not' requires boolean operand")
			}
			return table.BoolVal(!b), nil
		case "-":
			switch v.Type {
			case table.TypeNull:
				return table.Null(), nil
			case table.TypeInt:
				return table.IntVal(-v.Int), nil
			case table.TypeFloat:
				return table.FloatVal(-v.Float), nil
			}
			return table.Null(), fmt.Errorf("cannot negate %v", v.AsString())
		}
		return table.Null(), fmt.Errorf("unknown unary operator %q", e.Op)
	})
}

// mapValue applies f to v, or to every element when v is a list.
func mapValue(v table.Value, f func(table.Value) (table.Value, error)) (table.Value, error) {
	if !v.IsList() {
		return f(v)
	}
	out := make([]table.Value, len(v.List))
	for i, item := range v.List {
		r, err := mapValue(item, f)
		if err != nil {
			return table.Null(), err
		}
		out[i] = r
	}
	return table.ListVal(out), nil
}

// mapFloat applies f to a number or to every number of a list. Nulls pass
// through.
func mapFloat(v table.Value, f func(float64) float64) (table.Value, error) {
	return mapValue(v, func(x table.Value) (table.Value, error) {
		if x.IsNull() {
			return x, nil
		}
		xf, ok := x.AsFloat()
		if !ok {
			return table.Null(), fmt.Errorf("expected a number, got %s", x.AsString())
		}
		r := f(xf)
		if math.IsNaN(r) {
			return table.Null(), nil
		}
		return table.FloatVal(r), nil
	})
}

func evalIsNull(e *ast.IsNullExpr, ctx *EvalContext) (table.Value, error) {
	operand, err := Eval(e.Operand, ctx)
	if err != nil {
		return table.Null(), err
	}
	return table.BoolVal(operand.IsNull() != e.Negated), nil
}
