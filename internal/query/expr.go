package query

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/alexanderramin/arbor/internal/tree"
)

// Expr is a parsed search expression.
type Expr interface {
	Match(n *tree.Node) bool
	String() string
}

// SyntaxError reports where an expression failed to parse.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at position %d: %s", e.Pos, e.Msg)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

type andExpr struct{ left, right Expr }
type orExpr struct{ left, right Expr }
type notExpr struct{ inner Expr }
type cmpExpr struct{ f Filter }

func (e andExpr) Match(n *tree.Node) bool { return e.left.Match(n) && e.right.Match(n) }
func (e orExpr) Match(n *tree.Node) bool { return e.left.Match(n) || e.right.Match(n) }
func (e notExpr) Match(n *tree.Node) bool { return !e.inner.Match(n) }
func (e cmpExpr) Match(n *tree.Node) bool { return e.f.Match(n) }

func (e andExpr) String() string { return "(" + e.left.String() + " and " + e.right.String() + ")" }
func (e orExpr) String() string { return "(" + e.left.String() + " or " + e.right.String() + ")" }
func (e notExpr) String() string { return "not " + e.inner.String() }
func (e cmpExpr) String() string { return fmt.Sprintf("%s %s %v", e.f.Path, e.f.Op, e.f.Value) }

// ParseExpr parses a search expression.
//
//	expr    = and { "or" and }
//	and     = unary { "and" unary }
//	unary   = "not" unary | "(" expr ")" | compare
//	compare = path operator literal
//
// Literals are quoted strings, numbers, true, false or bare words.
// Example: Name contains "kit" and not (SquareFeet < 100)
func ParseExpr(input string) (Expr, error) {
	p := &exprParser{input: input}
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return nil, p.errorf("empty expression")
	}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipSpaces()
	if p.pos < len(p.input) {
		return nil, p.errorf("unexpected %q", p.input[p.pos:])
	}
	return e, nil
}

type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orExpr{left, right}
	}
	return left, nil
}

func (p *exprParser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.keyword("and") {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = andExpr{left, right}
	}
	return left, nil
}

func (p *exprParser) parseUnary() (Expr, error) {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return nil, p.errorf("unexpected end of expression")
	}
	if p.keyword("not") {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notExpr{inner}, nil
	}
	if p.input[p.pos] == '(' {
		p.pos++ // skip '('
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		p.skipSpaces()
		if p.pos >= len(p.input) || p.input[p.pos] != ')' {
			return nil, p.errorf("expected ')'")
		}
		p.pos++ // skip ')'
		return e, nil
	}
	return p.parseCompare()
}

func (p *exprParser) parseCompare() (Expr, error) {
	start := p.pos
	path := p.word()
	if path == "" {
		return nil, p.errorf("expected property path")
	}

	p.skipSpaces()
	opPos := p.pos
	var opText string
	if p.pos < len(p.input) && strings.ContainsRune("=!<>", rune(p.input[p.pos])) {
		for p.pos < len(p.input) && strings.ContainsRune("=!<>", rune(p.input[p.pos])) {
			p.pos++
		}
		opText = p.input[opPos:p.pos]
	} else {
		opText = p.word()
	}
	if opText == "" {
		return nil, p.errorf("expected operator after %q", p.input[start:opPos])
	}
	op, err := ParseOperator(opText)
	if err != nil {
		return nil, &SyntaxError{Pos: opPos, Msg: fmt.Sprintf("unknown operator %q", opText)}
	}

	value, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return cmpExpr{Filter{Path: path, Op: op, Value: value}}, nil
}

func (p *exprParser) parseLiteral() (any, error) {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return nil, p.errorf("expected value")
	}
	ch := p.input[p.pos]
	if ch == '"' || ch == '\'' {
		return p.parseQuoted(ch)
	}
	start := p.pos
	if ch == '-' || ch == '+' {
		p.pos++
	}
	w := p.word()
	raw := p.input[start:p.pos]
	if w == "" {
		p.pos = start
		return nil, p.errorf("expected value")
	}
	switch strings.ToLower(raw) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f, nil
	}
	return raw, nil
}

func (p *exprParser) parseQuoted(quote byte) (string, error) {
	start := p.pos
	p.pos++ // skip opening quote
	var b strings.Builder
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		switch {
		case ch == '\\' && p.pos+1 < len(p.input):
			b.WriteByte(p.input[p.pos+1])
			p.pos += 2
		case ch == quote:
			p.pos++
			return b.String(), nil
		default:
			b.WriteByte(ch)
			p.pos++
		}
	}
	return "", &SyntaxError{Pos: start, Msg: "unterminated string"}
}

// keyword consumes kw when it appears as a whole word at the cursor.
func (p *exprParser) keyword(kw string) bool {
	p.skipSpaces()
	end := p.pos + len(kw)
	if end > len(p.input) || !strings.EqualFold(p.input[p.pos:end], kw) {
		return false
	}
	if end < len(p.input) && isWordByte(p.input[end]) {
		return false
	}
	p.pos = end
	return true
}

// word reads a run of identifier characters, dots included.
func (p *exprParser) word() string {
	start := p.pos
	for p.pos < len(p.input) && isWordByte(p.input[p.pos]) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *exprParser) skipSpaces() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *exprParser) errorf(format string, args ...any) error {
	return &SyntaxError{Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func isWordByte(ch byte) bool {
	return ch == '_' || ch == '.' || ch == '-' || ch >= 0x80 ||
		unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch))
}
