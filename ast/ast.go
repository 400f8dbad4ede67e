package ast

import (
	"strconv"
	"strings"
)

// Expr represents an expression tree used in define, filter and vary.
type Expr interface {
	exprNode()
}

// LiteralExpr represents a literal value: number, string, bool, null.
type LiteralExpr struct {
	// Kind: "int", "float", "string", "bool", "null"
	Kind  string
	Int   int64
	Float float64
	Str   string
	Bool  bool
}

func (e *LiteralExpr) exprNode() {}

// ColumnExpr references a column by name.
type ColumnExpr struct {
	Name string
}

func (e *ColumnExpr) exprNode() {}

// BinaryExpr represents a binary operation: a op b.
type BinaryExpr struct {
	Op    string // +, -, *, /, ==, !=, <, >, <=, >=, and, or
	Left  Expr
	Right Expr
}

func (e *BinaryExpr) exprNode() {}

// UnaryExpr represents a unary operation (e.g. not, unary minus).
type UnaryExpr struct {
	Op      string // "not", "-"
	Operand Expr
}

func (e *UnaryExpr) exprNode() {}

// FuncCallExpr represents a function call: func(arg1, arg2, ...).
type FuncCallExpr struct {
	Name string
	Args []Expr
}

func (e *FuncCallExpr) exprNode() {}

// IsNullExpr represents "col is null" or "col is not null".
type IsNullExpr struct {
	Operand Expr
	Negated bool // true = "is not null"
}

func (e *IsNullExpr) exprNode() {}

// ListExpr is a list literal: [a, b, c].
type ListExpr struct {
	Elems []Expr
}

func (e *ListExpr) exprNode() {}

// IndexExpr selects from a list: x[i] with an integer index, or x[mask]
// with a boolean list of the same length.
type IndexExpr struct {
	Target Expr
	Index  Expr
}

func (e *IndexExpr) exprNode() {}

// Assignment represents "col = expr" in define.
type Assignment struct {
	Column string
	Expr   Expr
}

// --- Operations (pipeline stages) ---

// Op represents a single operation in the pipeline.
type Op interface {
	opNode()
}

// Terminal is implemented by ops that register an action.
type Terminal interface {
	Op
	terminal()
}

// SourceOp represents the input file reference.
type SourceOp struct {
	Filename string
}

func (o *SourceOp) opNode() {}

// DefineOp adds columns computed from existing ones. With Redefine set it
// replaces columns that already exist.
type DefineOp struct {
	Assignments []Assignment
	Redefine    bool
}

func (o *DefineOp) opNode() {}

// FilterOp keeps rows for which the expression is true.
type FilterOp struct {
	Expr Expr
}

func (o *FilterOp) opNode() {}

// VaryOp registers alternate definitions of a column. Expr must produce
// one value per tag; with no tags the values are named by position.
type VaryOp struct {
	Name   string // variation name; empty means the column name
	Column string
	Expr   Expr
	Tags   []string
}

func (o *VaryOp) opNode() {}

// CountOp counts surviving rows.
type CountOp struct{}

func (o *CountOp) opNode()   {}
func (o *CountOp) terminal() {}

// SumOp sums a column, optionally weighted.
type SumOp struct {
	Column string
	Weight string
}

func (o *SumOp) opNode()   {}
func (o *SumOp) terminal() {}

// MeanOp averages a column, optionally weighted.
type MeanOp struct {
	Column string
	Weight string
}

func (o *MeanOp) opNode()   {}
func (o *MeanOp) terminal() {}

// HistoOp fills a fixed-binning histogram.
type HistoOp struct {
	Column string
	Bins   int
	Lo     float64
	Hi     float64
	Weight string
}

func (o *HistoOp) opNode()   {}
func (o *HistoOp) terminal() {}

// Query represents a full parsed query: source + pipeline of operations.
type Query struct {
	Source *SourceOp
	Ops    []Op
}

// Columns returns the distinct column names referenced by expr, in order
// of first appearance.
func Columns(expr Expr) []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case *ColumnExpr:
			if !seen[n.Name] {
				seen[n.Name] = true
				out = append(out, n.Name)
			}
		case *BinaryExpr:
			walk(n.Left)
			walk(n.Right)
		case *UnaryExpr:
			walk(n.Operand)
		case *FuncCallExpr:
			for _, a := range n.Args {
				walk(a)
			}
		case *IsNullExpr:
			walk(n.Operand)
		case *ListExpr:
			for _, el := range n.Elems {
				walk(el)
			}
		case *IndexExpr:
			walk(n.Target)
			walk(n.Index)
		}
	}
	walk(expr)
	return out
}

// Format renders an expression back to source form.
func Format(expr Expr) string {
	var sb strings.Builder
	format(&sb, expr)
	return sb.String()
}

func format(sb *strings.Builder, e Expr) {
	switch n := e.(type) {
	case *LiteralExpr:
		switch n.Kind {
		case "int":
			sb.WriteString(strconv.FormatInt(n.Int, 10))
		case "float":
			sb.WriteString(strconv.FormatFloat(n.Float, 'g', -1, 64))
		case "string":
			sb.WriteString(strconv.Quote(n.Str))
		case "bool":
			sb.WriteString(strconv.FormatBool(n.Bool))
		default:
			sb.WriteString("null")
		}
	case *ColumnExpr:
		sb.WriteString(n.Name)
	case *BinaryExpr:
		sb.WriteString("(")
		format(sb, n.Left)
		sb.WriteString(" " + n.Op + " ")
		format(sb, n.Right)
		sb.WriteString(")")
	case *UnaryExpr:
		sb.WriteString(n.Op)
		if n.Op == "not" {
			sb.WriteString(" ")
		}
		format(sb, n.Operand)
	case *FuncCallExpr:
		sb.WriteString(n.Name + "(")
		for i, a := range n.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			format(sb, a)
		}
		sb.WriteString(")")
	case *IsNullExpr:
		format(sb, n.Operand)
		if n.Negated {
			sb.WriteString(" is not null")
		} else {
			sb.WriteString(" is null")
		}
	case *ListExpr:
		sb.WriteString("[")
		for i, el := range n.Elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			format(sb, el)
		}
		sb.WriteString("]")
	case *IndexExpr:
		format(sb, n.Target)
		sb.WriteString("[")
		format(sb, n.Index)
		sb.WriteString("]")
	default:
		sb.WriteString("?")
	}
}
