package lexer

import (
	"fmt"
	"unicode"
)

// TokenType represents the type of a lexical token.
type TokenType int

const (
	// Structural
	TokenPipe     TokenType = iota // |
	TokenLBrace                    // {
	TokenRBrace                    // }
	TokenLParen                    // (
	TokenRParen                    // )
	TokenLBracket                  // [
	TokenRBracket                  // ]
	TokenComma                     // ,
	TokenEquals                    // = (assignment)
	TokenDot                       // .
	TokenColon                     // :

	// Operators
	TokenPlus  // +
	TokenMinus // -
	TokenStar  // *
	TokenSlash // /
	TokenEq    // ==
	TokenNeq   // !=
	TokenLt    // <
	TokenGt    // >
	TokenLte   // <=
	TokenGte   // >=

	// Keywords / logical
	TokenAnd   // and
	TokenOr    // or
	TokenNot   // not
	TokenIs    // is
	TokenTrue  // true
	TokenFalse // false
	TokenNull  // null
	TokenAs    // as

	// Literals
	TokenInt    // integer literal
	TokenFloat  // float literal
	TokenString // "string literal"

	// Identifiers
	TokenIdent         // plain identifier (column name, op name)
	TokenBacktickIdent // `identifier with spaces`

	// End
	TokenEOF
)

var tokenNames = map[TokenType]string{
	TokenPipe: "|", TokenLBrace: "{", TokenRBrace: "}", TokenLParen: "(", TokenRParen: ")",
	TokenLBracket: "[", TokenRBracket: "]", TokenComma: ",", TokenEquals: "=", TokenDot: ".",
	TokenColon: ":",
	TokenPlus:  "+", TokenMinus: "-", TokenStar: "*", TokenSlash: "/",
	TokenEq: "==", TokenNeq: "!=", TokenLt: "<", TokenGt: ">", TokenLte: "<=", TokenGte: ">=",
	TokenAnd: "and", TokenOr: "or", TokenNot: "not", TokenIs: "is",
	TokenTrue: "true", TokenFalse: "false", TokenNull: "null", TokenAs: "as",
	TokenInt: "INT", TokenFloat: "FLOAT", TokenString: "STRING",
	TokenIdent: "IDENT", TokenBacktickIdent: "BACKTICK_IDENT", TokenEOF: "EOF",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Token(%d)", int(t))
}

// Token represents a single lexical token.
type Token struct {
	Type TokenType
	Val  string
	Pos  int // rune offset in original input
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d", t.Type, t.Val, t.Pos)
}

var keywords = map[string]TokenType{
	"and":   TokenAnd,
	"or":    TokenOr,
	"not":   TokenNot,
	"is":    TokenIs,
	"true":  TokenTrue,
	"false": TokenFalse,
	"null":  TokenNull,
	"as":    TokenAs,
}

// single-rune tokens that never combine with a following rune
var singles = map[rune]TokenType{
	'|': TokenPipe, '{': TokenLBrace, '}': TokenRBrace,
	'(': TokenLParen, ')': TokenRParen, '[': TokenLBracket, ']': TokenRBracket,
	',': TokenComma, '.': TokenDot, ':': TokenColon,
	'+': TokenPlus, '*': TokenStar,
}

// two-rune operators keyed by their first rune; the second is always '='
var pairs = map[rune][2]TokenType{
	'=': {TokenEquals, TokenEq},
	'<': {TokenLt, TokenLte},
	'>': {TokenGt, TokenGte},
}

type scanner struct {
	runes  []rune
	pos    int
	tokens []Token
}

// Lex tokenizes the input string into a slice of Tokens.
func Lex(input string) ([]Token, error) {
	s := &scanner{runes: []rune(input)}
	for s.pos < len(s.runes) {
		if err := s.next(); err != nil {
			return nil, err
		}
	}
	s.emit(TokenEOF, "", len(s.runes))
	return s.tokens, nil
}

func (s *scanner) emit(tt TokenType, val string, pos int) {
	s.tokens = append(s.tokens, Token{Type: tt, Val: val, Pos: pos})
}

func (s *scanner) peekAt(off int) (rune, bool) {
	if s.pos+off >= len(s.runes) {
		return 0, false
	}
	return s.runes[s.pos+off], true
}

func (s *scanner) next() error {
	ch := s.runes[s.pos]
	pos := s.pos

	if unicode.IsSpace(ch) {
		s.pos++
		return nil
	}

	if tt, ok := singles[ch]; ok {
		s.emit(tt, string(ch), pos)
		s.pos++
		return nil
	}

	if pair, ok := pairs[ch]; ok {
		if nxt, ok := s.peekAt(1); ok && nxt == '=' {
			s.emit(pair[1], string(ch)+"=", pos)
			s.pos += 2
		} else {
			s.emit(pair[0], string(ch), pos)
			s.pos++
		}
		return nil
	}

	switch {
	case ch == '!':
		if nxt, ok := s.peekAt(1); ok && nxt == '=' {
			s.emit(TokenNeq, "!=", pos)
			s.pos += 2
			return nil
		}
		return fmt.Errorf("unexpected character '!' at position %d (did you mean '!='?)", pos)
	case ch == '-':
		if nxt, ok := s.peekAt(1); ok && unicode.IsDigit(nxt) && s.negativeContext() {
			s.number()
			return nil
		}
		s.emit(TokenMinus, "-", pos)
		s.pos++
		return nil
	case ch == '/':
		if nxt, ok := s.peekAt(1); ok && nxt == '/' {
			for s.pos < len(s.runes) && s.runes[s.pos] != '\n' {
				s.pos++
			}
			return nil
		}
		s.emit(TokenSlash, "/", pos)
		s.pos++
		return nil
	case ch == '"':
		return s.str()
	case ch == '`':
		return s.backtick()
	case unicode.IsDigit(ch):
		s.number()
		return nil
	case isIdentStart(ch):
		s.ident()
		return nil
	}
	return fmt.Errorf("unexpected character %q at position %d", ch, pos)
}

// negativeContext reports whether a '-' followed by a digit starts a
// number rather than a subtraction.
func (s *scanner) negativeContext() bool {
	if len(s.tokens) == 0 {
		return true
	}
	switch s.tokens[len(s.tokens)-1].Type {
	case TokenLParen, TokenLBracket, TokenComma, TokenEquals, TokenPipe, TokenLBrace,
		TokenPlus, TokenMinus, TokenStar, TokenSlash,
		TokenEq, TokenNeq, TokenLt, TokenGt, TokenLte, TokenGte,
		TokenAnd, TokenOr, TokenNot:
		return true
	}
	return false
}

var escapes = map[rune]rune{'"': '"', '\\': '\\', 'n': '\n', 't': '\t'}

func (s *scanner) str() error {
	start := s.pos
	s.pos++ // opening quote
	var sb []rune
	for s.pos < len(s.runes) {
		ch := s.runes[s.pos]
		if ch == '\\' && s.pos+1 < len(s.runes) {
			if esc, ok := escapes[s.runes[s.pos+1]]; ok {
				sb = append(sb, esc)
			} else {
				sb = append(sb, '\\', s.runes[s.pos+1])
			}
			s.pos += 2
			continue
		}
		if ch == '"' {
			s.emit(TokenString, string(sb), start)
			s.pos++
			return nil
		}
		sb = append(sb, ch)
		s.pos++
	}
	return fmt.Errorf("unterminated string starting at position %d", start)
}

func (s *scanner) backtick() error {
	start := s.pos
	for i := start + 1; i < len(s.runes); i++ {
		if s.runes[i] == '`' {
			s.emit(TokenBacktickIdent, string(s.runes[start+1:i]), start)
			s.pos = i + 1
			return nil
		}
	}
	return fmt.Errorf("unterminated backtick identifier starting at position %d", start)
}

func (s *scanner) digits() {
	for s.pos < len(s.runes) && unicode.IsDigit(s.runes[s.pos]) {
		s.pos++
	}
}

func (s *scanner) number() {
	start := s.pos
	isFloat := false
	if s.runes[s.pos] == '-' {
		s.pos++
	}
	s.digits()

	// a dot only continues the number when a digit follows, so that
	// "2.csv" style paths still split into INT DOT IDENT
	if r, ok := s.peekAt(0); ok && r == '.' {
		if d, ok := s.peekAt(1); ok && unicode.IsDigit(d) {
			isFloat = true
			s.pos++
			s.digits()
		}
	}

	if r, ok := s.peekAt(0); ok && (r == 'e' || r == 'E') {
		off := 1
		if sign, ok := s.peekAt(1); ok && (sign == '+' || sign == '-') {
			off = 2
		}
		if d, ok := s.peekAt(off); ok && unicode.IsDigit(d) {
			isFloat = true
			s.pos += off
			s.digits()
		}
	}

	tt := TokenInt
	if isFloat {
		tt = TokenFloat
	}
	s.emit(tt, string(s.runes[start:s.pos]), start)
}

func (s *scanner) ident() {
	start := s.pos
	for s.pos < len(s.runes) && isIdentPart(s.runes[s.pos]) {
		s.pos++
	}
	val := string(s.runes[start:s.pos])
	if tt, ok := keywords[val]; ok {
		s.emit(tt, val, start)
		return
	}
	s.emit(TokenIdent, val, start)
}

func isIdentStart(ch rune) bool {
	return unicode.IsLetter(ch) || ch == '_'
}

func isIdentPart(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}
