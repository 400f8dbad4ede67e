package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/razeghi71/lazydf/ast"
	"github.com/razeghi71/lazydf/lexer"
)

// Parser converts a token stream into an AST.
type Parser struct {
	tokens []lexer.Token
	pos    int
}

// Parse parses a full query string into a Query AST. A query without a
// terminal operation counts rows.
func Parse(input string) (*ast.Query, error) {
	p, err := newParser(input)
	if err != nil {
		return nil, err
	}
	return p.parseQuery()
}

// ParseExpr parses a standalone expression, as used by DefineExpr,
// FilterExpr and VaryExpr.
func ParseExpr(input string) (ast.Expr, error) {
	p, err := newParser(input)
	if err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Type != lexer.TokenEOF {
		return nil, fmt.Errorf("unexpected token %s (%q) at position %d after expression", tok.Type, tok.Val, tok.Pos)
	}
	return expr, nil
}

func newParser(input string) (*Parser, error) {
	tokens, err := lexer.Lex(input)
	if err != nil {
		return nil, fmt.Errorf("lex error: %w", err)
	}
	return &Parser{tokens: tokens}, nil
}

func (p *Parser) peek() lexer.Token {
	return p.peekN(0)
}

func (p *Parser) peekN(n int) lexer.Token {
	if p.pos+n >= len(p.tokens) {
		return lexer.Token{Type: lexer.TokenEOF}
	}
	return p.tokens[p.pos+n]
}

func (p *Parser) advance() lexer.Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) expect(tt lexer.TokenType) (lexer.Token, error) {
	tok := p.advance()
	if tok.Type != tt {
		return tok, fmt.Errorf("expected %s, got %s (%q) at position %d", tt, tok.Type, tok.Val, tok.Pos)
	}
	return tok, nil
}

func isName(tok lexer.Token) bool {
	return tok.Type == lexer.TokenIdent || tok.Type == lexer.TokenBacktickIdent
}

func (p *Parser) expectName(what string) (string, error) {
	tok := p.advance()
	if !isName(tok) {
		return "", fmt.Errorf("expected %s, got %s (%q) at position %d", what, tok.Type, tok.Val, tok.Pos)
	}
	return tok.Val, nil
}

func (p *Parser) parseQuery() (*ast.Query, error) {
	source, err := p.parseSource()
	if err != nil {
		return nil, err
	}

	var ops []ast.Op
	terminated := false
	for p.peek().Type == lexer.TokenPipe {
		pipe := p.advance()
		if terminated {
			return nil, fmt.Errorf("operation after terminal at position %d", pipe.Pos)
		}
		op, err := p.parseOp()
		if err != nil {
			return nil, err
		}
		if _, ok := op.(ast.Terminal); ok {
			terminated = true
		}
		ops = append(ops, op)
	}

	if p.peek().Type != lexer.TokenEOF {
		return nil, fmt.Errorf("unexpected token %s (%q) at position %d", p.peek().Type, p.peek().Val, p.peek().Pos)
	}
	if !terminated {
		ops = append(ops, &ast.CountOp{})
	}

	return &ast.Query{Source: source, Ops: ops}, nil
}

func (p *Parser) parseSource() (*ast.SourceOp, error) {
	// Filenames like "data/run2.parquet" tokenize as IDENT SLASH IDENT DOT IDENT.
	tok := p.advance()
	if tok.Type == lexer.TokenString {
		return &ast.SourceOp{Filename: tok.Val}, nil
	}
	if !isName(tok) && tok.Type != lexer.TokenInt {
		return nil, fmt.Errorf("expected filename, got %s (%q) at position %d", tok.Type, tok.Val, tok.Pos)
	}

	var sb strings.Builder
	sb.WriteString(tok.Val)
	for p.peek().Type == lexer.TokenDot || p.peek().Type == lexer.TokenSlash {
		sep := p.advance()
		next := p.advance()
		if next.Type != lexer.TokenIdent && next.Type != lexer.TokenInt {
			return nil, fmt.Errorf("expected path component after %q, got %s at position %d", sep.Val, next.Type, next.Pos)
		}
		sb.WriteString(sep.Val + next.Val)
	}

	return &ast.SourceOp{Filename: sb.String()}, nil
}

type opParser func(p *Parser) (ast.Op, error)

var opParsers = map[string]opParser{
	"define":   func(p *Parser) (ast.Op, error) { return p.parseDefine(false) },
	"redefine": func(p *Parser) (ast.Op, error) { return p.parseDefine(true) },
	"filter":   (*Parser).parseFilter,
	"vary":     (*Parser).parseVary,
	"count":    func(p *Parser) (ast.Op, error) { return &ast.CountOp{}, nil },
	"sum":      (*Parser).parseSum,
	"mean":     (*Parser).parseMean,
	"histo":    (*Parser).parseHisto,
}

func (p *Parser) parseOp() (ast.Op, error) {
	tok := p.peek()
	if tok.Type != lexer.TokenIdent {
		return nil, fmt.Errorf("expected operation name, got %s (%q) at position %d", tok.Type, tok.Val, tok.Pos)
	}
	fn, ok := opParsers[tok.Val]
	if !ok {
		return nil, fmt.Errorf("unknown operation %q at position %d", tok.Val, tok.Pos)
	}
	p.advance() // consume op name
	op, err := fn(p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tok.Val, err)
	}
	return op, nil
}

func (p *Parser) parseDefine(redefine bool) (ast.Op, error) {
	assignments, err := p.parseAssignments()
	if err != nil {
		return nil, err
	}
	return &ast.DefineOp{Assignments: assignments, Redefine: redefine}, nil
}

func (p *Parser) parseFilter() (ast.Op, error) {
	if _, err := p.expect(lexer.TokenLBrace); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenRBrace); err != nil {
		return nil, err
	}
	return &ast.FilterOp{Expr: expr}, nil
}

// parseVary handles "vary [name:] col = expr [as tag...]".
func (p *Parser) parseVary() (ast.Op, error) {
	op := &ast.VaryOp{}
	if isName(p.peek()) && p.peekN(1).Type == lexer.TokenColon {
		op.Name = p.advance().Val
		p.advance() // consume :
	}
	col, err := p.expectName("column name")
	if err != nil {
		return nil, err
	}
	op.Column = col
	if _, err := p.expect(lexer.TokenEquals); err != nil {
		return nil, fmt.Errorf("expected '=' after column %q: %w", col, err)
	}
	if op.Expr, err = p.parseExpr(); err != nil {
		return nil, err
	}
	if p.peek().Type != lexer.TokenAs {
		return op, nil
	}
	p.advance() // consume as
	for {
		tok := p.peek()
		if !isName(tok) && tok.Type != lexer.TokenInt && tok.Type != lexer.TokenString {
			break
		}
		op.Tags = append(op.Tags, p.advance().Val)
	}
	if len(op.Tags) == 0 {
		return nil, fmt.Errorf("expected at least one tag after 'as' at position %d", p.peek().Pos)
	}
	return op, nil
}

func (p *Parser) parseSum() (ast.Op, error) {
	col, weight, err := p.parseObservable()
	if err != nil {
		return nil, err
	}
	return &ast.SumOp{Column: col, Weight: weight}, nil
}

func (p *Parser) parseMean() (ast.Op, error) {
	col, weight, err := p.parseObservable()
	if err != nil {
		return nil, err
	}
	return &ast.MeanOp{Column: col, Weight: weight}, nil
}

// parseHisto handles "histo col bins N lo hi [weight w]".
func (p *Parser) parseHisto() (ast.Op, error) {
	col, err := p.expectName("column name")
	if err != nil {
		return nil, err
	}
	if kw := p.advance(); kw.Type != lexer.TokenIdent || kw.Val != "bins" {
		return nil, fmt.Errorf("expected 'bins', got %s (%q) at position %d", kw.Type, kw.Val, kw.Pos)
	}
	bins, err := p.parseInt()
	if err != nil {
		return nil, err
	}
	lo, err := p.parseNumber()
	if err != nil {
		return nil, err
	}
	hi, err := p.parseNumber()
	if err != nil {
		return nil, err
	}
	weight, err := p.parseWeight()
	if err != nil {
		return nil, err
	}
	return &ast.HistoOp{Column: col, Bins: bins, Lo: lo, Hi: hi, Weight: weight}, nil
}

// --- Helpers ---

func (p *Parser) parseObservable() (string, string, error) {
	col, err := p.expectName("column name")
	if err != nil {
		return "", "", err
	}
	weight, err := p.parseWeight()
	return col, weight, err
}

func (p *Parser) parseWeight() (string, error) {
	if tok := p.peek(); tok.Type != lexer.TokenIdent || tok.Val != "weight" {
		return "", nil
	}
	p.advance() // consume weight
	return p.expectName("weight column")
}

func (p *Parser) parseInt() (int, error) {
	tok := p.advance()
	if tok.Type != lexer.TokenInt {
		return 0, fmt.Errorf("expected integer, got %s (%q) at position %d", tok.Type, tok.Val, tok.Pos)
	}
	n, err := strconv.Atoi(tok.Val)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q: %w", tok.Val, err)
	}
	return n, nil
}

// parseNumber accepts a signed int or float. After another number the
// lexer emits '-' as a separate token, so the sign is handled here.
func (p *Parser) parseNumber() (float64, error) {
	sign := 1.0
	if p.peek().Type == lexer.TokenMinus {
		p.advance()
		sign = -1
	}
	tok := p.advance()
	if tok.Type != lexer.TokenInt && tok.Type != lexer.TokenFloat {
		return 0, fmt.Errorf("expected number, got %s (%q) at position %d", tok.Type, tok.Val, tok.Pos)
	}
	v, err := strconv.ParseFloat(tok.Val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", tok.Val, err)
	}
	return sign * v, nil
}

// parseAssignments parses comma-separated "col = expr" assignments.
func (p *Parser) parseAssignments() ([]ast.Assignment, error) {
	var assignments []ast.Assignment

	for {
		col, err := p.expectName("column name in assignment")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenEquals); err != nil {
			return nil, fmt.Errorf("expected '=' after column %q: %w", col, err)
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, fmt.Errorf("in assignment for %q: %w", col, err)
		}
		assignments = append(assignments, ast.Assignment{Column: col, Expr: expr})

		if p.peek().Type != lexer.TokenComma {
			break
		}
		p.advance() // consume comma
	}

	return assignments, nil
}

// --- Expression parsing (precedence climbing) ---

const (
	precOr = iota + 1
	precAnd
	precComp
	precAdd
	precMul
)

var binaryOps = map[lexer.TokenType]struct {
	op   string
	prec int
}{
	lexer.TokenOr:    {"or", precOr},
	lexer.TokenAnd:   {"and", precAnd},
	lexer.TokenEq:    {"==", precComp},
	lexer.TokenNeq:   {"!=", precComp},
	lexer.TokenLt:    {"<", precComp},
	lexer.TokenGt:    {">", precComp},
	lexer.TokenLte:   {"<=", precComp},
	lexer.TokenGte:   {">=", precComp},
	lexer.TokenPlus:  {"+", precAdd},
	lexer.TokenMinus: {"-", precAdd},
	lexer.TokenStar:  {"*", precMul},
	lexer.TokenSlash: {"/", precMul},
}

func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseExprPrec(precOr)
}

func (p *Parser) parseExprPrec(minPrec int) (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		bop, ok := binaryOps[p.peek().Type]
		if !ok || bop.prec < minPrec {
			break
		}
		p.advance()

		right, err := p.parseExprPrec(bop.prec + 1) // left-associative
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: bop.op, Left: left, Right: right}
	}

	if p.peek().Type == lexer.TokenIs {
		p.advance() // consume "is"
		negated := false
		if p.peek().Type == lexer.TokenNot {
			p.advance()
			negated = true
		}
		if tok, err := p.expect(lexer.TokenNull); err != nil {
			return nil, fmt.Errorf("expected 'null' after 'is' at position %d", tok.Pos)
		}
		left = &ast.IsNullExpr{Operand: left, Negated: negated}
	}

	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	var op string
	switch p.peek().Type {
	case lexer.TokenNot:
		op = "not"
	case lexer.TokenMinus:
		op = "-"
	default:
		return p.parsePostfix()
	}
	p.advance()
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &ast.UnaryExpr{Op: op, Operand: operand}, nil
}

// parsePostfix handles chained indexing: x[i][j].
func (p *Parser) parsePostfix() (ast.Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == lexer.TokenLBracket {
		p.advance()
		idx, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenRBracket); err != nil {
			return nil, err
		}
		expr = &ast.IndexExpr{Target: expr, Index: idx}
	}
	return expr, nil
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.peek()

	switch tok.Type {
	case lexer.TokenInt:
		p.advance()
		v, err := strconv.ParseInt(tok.Val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", tok.Val, err)
		}
		return &ast.LiteralExpr{Kind: "int", Int: v}, nil

	case lexer.TokenFloat:
		p.advance()
		v, err := strconv.ParseFloat(tok.Val, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q: %w", tok.Val, err)
		}
		return &ast.LiteralExpr{Kind: "float", Float: v}, nil

	case lexer.TokenString:
		p.advance()
		return &ast.LiteralExpr{Kind: "string", Str: tok.Val}, nil

	case lexer.TokenTrue, lexer.TokenFalse:
		p.advance()
		return &ast.LiteralExpr{Kind: "bool", Bool: tok.Type == lexer.TokenTrue}, nil

	case lexer.TokenNull:
		p.advance()
		return &ast.LiteralExpr{Kind: "null"}, nil

	case lexer.TokenBacktickIdent:
		p.advance()
		return &ast.ColumnExpr{Name: tok.Val}, nil

	case lexer.TokenIdent:
		p.advance()
		if p.peek().Type == lexer.TokenLParen {
			return p.parseFuncCall(tok.Val)
		}
		return &ast.ColumnExpr{Name: tok.Val}, nil

	case lexer.TokenLParen:
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenRParen); err != nil {
			return nil, err
		}
		return expr, nil

	case lexer.TokenLBracket:
		p.advance()
		elems, err := p.parseExprList(lexer.TokenRBracket)
		if err != nil {
			return nil, fmt.Errorf("in list: %w", err)
		}
		return &ast.ListExpr{Elems: elems}, nil

	default:
		return nil, fmt.Errorf("unexpected token %s (%q) at position %d in expression", tok.Type, tok.Val, tok.Pos)
	}
}

func (p *Parser) parseFuncCall(name string) (ast.Expr, error) {
	p.advance() // consume (
	name = strings.ToLower(name)
	args, err := p.parseExprList(lexer.TokenRParen)
	if err != nil {
		return nil, fmt.Errorf("in function %s: %w", name, err)
	}
	return &ast.FuncCallExpr{Name: name, Args: args}, nil
}

// parseExprList parses comma-separated expressions up to and including
// the closing token.
func (p *Parser) parseExprList(closing lexer.TokenType) ([]ast.Expr, error) {
	var out []ast.Expr
	if p.peek().Type != closing {
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			out = append(out, e)
			if p.peek().Type != lexer.TokenComma {
				break
			}
			p.advance() // consume comma
		}
	}
	if _, err := p.expect(closing); err != nil {
		return nil, err
	}
	return out, nil
}
