package engine

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/razeghi71/lazydf/ast"
	"github.com/razeghi71/lazydf/table"
)

// evalFunc dispatches function calls to the appropriate implementation.
func evalFunc(e *ast.FuncCallExpr, ctx *EvalContext) (table.Value, error) {
	switch e.Name {
	// lazily evaluated arguments
	case "if":
		return callIf(e.Args, ctx)
	case "coalesce":
		return callCoalesce(e.Args, ctx)
	}

	args := make([]table.Value, len(e.Args))
	for i, a := range e.Args {
		v, err := Eval(a, ctx)
		if err != nil {
			return table.Null(), err
		}
		args[i] = v
	}

	switch e.Name {
	// list reductions
	case "sum":
		return unary(e.Name, args, callSum)
	case "len":
		return unary(e.Name, args, callLen)
	case "any":
		return unary(e.Name, args, func(v table.Value) (table.Value, error) { return callQuantifier(v, true) })
	case "all":
		return unary(e.Name, args, func(v table.Value) (table.Value, error) { return callQuantifier(v, false) })
	case "min":
		return callExtremum(args, -1)
	case "max":
		return callExtremum(args, 1)
	case "take":
		return callTake(args)

	// element-wise math
	case "abs":
		return unary(e.Name, args, func(v table.Value) (table.Value, error) { return mapFloat(v, math.Abs) })
	case "sqrt":
		return unary(e.Name, args, func(v table.Value) (table.Value, error) { return mapFloat(v, math.Sqrt) })
	case "smear":
		return callSmear(args, ctx)

	// strings
	case "upper":
		return unary(e.Name, args, stringFunc(strings.ToUpper))
	case "lower":
		return unary(e.Name, args, stringFunc(strings.ToLower))
	case "trim":
		return unary(e.Name, args, stringFunc(strings.TrimSpace))

	default:
		return table.Null(), fmt.Errorf("unknown function %q", e.Name)
	}
}

func unary(name string, args []table.Value, f func(table.Value) (table.Value, error)) (table.Value, error) {
	if len(args) != 1 {
		return table.Null(), fmt.Errorf("%s() takes 1 argument, got %d", name, len(args))
	}
	return f(args[0])
}

func stringFunc(f func(string) string) func(table.Value) (table.Value, error) {
	return func(v table.Value) (table.Value, error) {
		return mapValue(v, func(x table.Value) (table.Value, error) {
			if x.IsNull() {
				return x, nil
			}
			return table.StrVal(f(x.AsString())), nil
		})
	}
}

// callSum adds the elements of a list; booleans count as 0 or 1. The sum
// of ints is an int.
func callSum(v table.Value) (table.Value, error) {
	if v.IsNull() {
		return table.Null(), nil
	}
	if !v.IsList() {
		return v, nil
	}
	allInt := true
	var fsum float64
	var isum int64
	for _, item := range v.List {
		switch item.Type {
		case table.TypeNull:
			continue
		case table.TypeInt:
			isum += item.Int
		case table.TypeBool:
			if item.Bool {
				isum++
			}
		default:
			allInt = false
		}
		f, ok := item.AsFloat()
		if !ok {
			return table.Null(), fmt.Errorf("sum: cannot add %s", item.AsString())
		}
		fsum += f
	}
	if allInt {
		return table.IntVal(isum), nil
	}
	return table.FloatVal(fsum), nil
}

func callLen(v table.Value) (table.Value, error) {
	switch v.Type {
	case table.TypeNull:
		return table.Null(), nil
	case table.TypeList:
		return table.IntVal(int64(len(v.List))), nil
	}
	return table.IntVal(int64(len(v.AsString()))), nil
}

func callQuantifier(v table.Value, want bool) (table.Value, error) {
	items := []table.Value{v}
	if v.IsList() {
		items = v.List
	}
	for _, item := range items {
		b, ok := item.AsBool()
		if !ok {
			return table.Null(), fmt.Errorf("expected booleans, got %s", item.AsString())
		}
		if b == want {
			return table.BoolVal(want), nil
		}
	}
	return table.BoolVal(!want), nil
}

// callExtremum returns the smallest (sign -1) or largest (sign 1) element
// of a single list argument, or of several scalar arguments.
func callExtremum(args []table.Value, sign float64) (table.Value, error) {
	name := "min"
	if sign > 0 {
		name = "max"
	}
	if len(args) == 0 {
		return table.Null(), fmt.Errorf("%s() requires at least 1 argument", name)
	}
	items := args
	if len(args) == 1 && args[0].IsList() {
		items = args[0].List
	}
	best := table.Null()
	var bestF float64
	for _, item := range items {
		if item.IsNull() {
			continue
		}
		f, ok := item.AsFloat()
		if !ok {
			return table.Null(), fmt.Errorf("%s: cannot compare %s", name, item.AsString())
		}
		if best.IsNull() || sign*(f-bestF) > 0 {
			best, bestF = item, f
		}
	}
	return best, nil
}

// callTake returns the first n elements of a list, or the last -n.
func callTake(args []table.Value) (table.Value, error) {
	if len(args) != 2 {
		return table.Null(), fmt.Errorf("take() takes 2 arguments (list, n), got %d", len(args))
	}
	list, nv := args[0], args[1]
	if list.IsNull() {
		return table.Null(), nil
	}
	if !list.IsList() {
		return table.Null(), fmt.Errorf("take: expected a list, got %s", list.Type)
	}
	if nv.Type != table.TypeInt {
		return table.Null(), fmt.Errorf("take: n must be an int, got %s", nv.Type)
	}
	n, size := nv.Int, int64(len(list.List))
	if n >= 0 {
		return table.ListVal(list.List[:min(n, size)]), nil
	}
	return table.ListVal(list.List[size-min(-n, size):]), nil
}

var errNoRand = errors.New("smear: no random generator in context")

// callSmear multiplies every element by an independent Gaussian factor
// 1 + sigma*N(0, 1) drawn from the slot's generator.
func callSmear(args []table.Value, ctx *EvalContext) (table.Value, error) {
	if len(args) != 2 {
		return table.Null(), fmt.Errorf("smear() takes 2 arguments (value, sigma), got %d", len(args))
	}
	if ctx.Rand == nil {
		return table.Null(), errNoRand
	}
	sigma, ok := args[1].AsFloat()
	if !ok {
		return table.Null(), fmt.Errorf("smear: sigma must be a number")
	}
	return mapFloat(args[0], func(x float64) float64 {
		return x * (1 + sigma*ctx.Rand.NormFloat64())
	})
}

func callCoalesce(args []ast.Expr, ctx *EvalContext) (table.Value, error) {
	if len(args) == 0 {
		return table.Null(), fmt.Errorf("coalesce() requires at least 1 argument")
	}
	for _, arg := range args {
		v, err := Eval(arg, ctx)
		if err != nil {
			return table.Null(), err
		}
		if !v.IsNull() {
			return v, nil
		}
	}
	return table.Null(), nil
}

func callIf(args []ast.Expr, ctx *EvalContext) (table.Value, error) {
	if len(args) != 3 {
		return table.Null(), fmt.Errorf("if() takes 3 arguments (condition, then, else), got %d", len(args))
	}
	cond, err := Eval(args[0], ctx)
	if err != nil {
		return table.Null(), err
	}
	b, ok := cond.AsBool()
	if !ok {
		return table.Null(), fmt.Errorf("if: condition must be boolean")
	}
	if b {
		return Eval(args[1], ctx)
	}
	return Eval(args[2], ctx)
}
