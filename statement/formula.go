/*
formula.go - Arithmetic formula parser and evaluator

PURPOSE:
  Total lines reference other lines through small arithmetic formulas like
  "A01 - A02" or "(B01 + B02) / 4". Formulas are authored as strings, so
  they must never reach a general-purpose evaluator: this file implements
  a closed recursive-descent parser restricted to numeric literals, line
  code references, + - * / and parentheses. Anything else is a parse
  error.

GRAMMAR:
  expr    := term (('+' | '-') term)*
  term    := unary (('*' | '/') unary)*
  unary   := '-' unary | primary
  primary := NUMBER | LINECODE | '(' expr ')'

  LINECODE := letter (letter | digit | '_')*
  NUMBER   := digit+ ('.' digit+)?

EVALUATION:
  Evaluate resolves references against a lineCode -> decimal map. An
  unresolved reference is an error; callers in the computation path treat
  it as a skip (the target line keeps its prior value), while publish-time
  validation treats it as fatal.

SEE ALSO:
  - template.go: FormulaReferences for publish-time checks
  - builder.go: Total-line evaluation in budget-vs-actual statements
*/
package statement

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AST
// =============================================================================

// Expr is a parsed formula node.
type Expr interface {
	eval(vars map[string]decimal.Decimal) (decimal.Decimal, error)
	collectRefs(into map[string]struct{})
}

type literalExpr struct{ value decimal.Decimal }

type refExpr struct{ lineCode string }

type unaryExpr struct{ operand Expr }

type binaryExpr struct {
	op          byte // '+', '-', '*', '/'
	left, right Expr
}

func (e literalExpr) eval(map[string]decimal.Decimal) (decimal.Decimal, error) {
	return e.value, nil
}

func (e refExpr) eval(vars map[string]decimal.Decimal) (decimal.Decimal, error) {
	v, ok := vars[e.lineCode]
	if !ok {
		return decimal.Zero, fmt.Errorf("unresolved line code %q", e.lineCode)
	}
	return v, nil
}

func (e unaryExpr) eval(vars map[string]decimal.Decimal) (decimal.Decimal, error) {
	v, err := e.operand.eval(vars)
	if err != nil {
		return decimal.Zero, err
	}
	return v.Neg(), nil
}

func (e binaryExpr) eval(vars map[string]decimal.Decimal) (decimal.Decimal, error) {
	l, err := e.left.eval(vars)
	if err != nil {
		return decimal.Zero, err
	}
	r, err := e.right.eval(vars)
	if err != nil {
		return decimal.Zero, err
	}
	switch e.op {
	case '+':
		return l.Add(r), nil
	case '-':
		return l.Sub(r), nil
	case '*':
		return l.Mul(r), nil
	case '/':
		if r.IsZero() {
			return decimal.Zero, fmt.Errorf("division by zero")
		}
		return l.Div(r), nil
	}
	return decimal.Zero, fmt.Errorf("unknown operator %q", e.op)
}

func (e literalExpr) collectRefs(map[string]struct{}) {}
func (e refExpr) collectRefs(into map[string]struct{}) {
	into[e.lineCode] = struct{}{}
}
func (e unaryExpr) collectRefs(into map[string]struct{}) { e.operand.collectRefs(into) }
func (e binaryExpr) collectRefs(into map[string]struct{}) {
	e.left.collectRefs(into)
	e.right.collectRefs(into)
}

// Formula is a parsed, reusable calculation formula.
type Formula struct {
	source string
	root   Expr
}

// Source returns the original formula text.
func (f *Formula) Source() string { return f.source }

// References returns the distinct line codes the formula reads, sorted
// lexicographically for deterministic output.
func (f *Formula) References() []string {
	set := make(map[string]struct{})
	f.root.collectRefs(set)
	refs := make([]string, 0, len(set))
	for code := range set {
		refs = append(refs, code)
	}
	sort.Strings(refs)
	return refs
}

// Evaluate resolves the formula against the given line values.
func (f *Formula) Evaluate(vars map[string]decimal.Decimal) (decimal.Decimal, error) {
	return f.root.eval(vars)
}

// =============================================================================
// PARSER
// =============================================================================

type parser struct {
	src string
	pos int
}

// ParseFormula parses an arithmetic formula into an AST. Only numeric
// literals, line code references, + - * / and parentheses are accepted.
func ParseFormula(src string) (*Formula, error) {
	p := &parser{src: src}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, &FormulaError{Formula: src, Pos: p.pos,
			Reason: fmt.Sprintf("unexpected character %q", p.src[p.pos])}
	}
	return &Formula{source: src, root: root}, nil
}

func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return left, nil
		}
		op := p.src[p.pos]
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: op, left: left, right: right}
	}
}

func (p *parser) parseTerm() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return left, nil
		}
		op := p.src[p.pos]
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '-' {
		p.pos++
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryExpr{operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return nil, &FormulaError{Formula: p.src, Pos: p.pos, Reason: "unexpected end of formula"}
	}

	c := p.src[p.pos]
	switch {
	case c == '(':
		p.pos++
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != ')' {
			return nil, &FormulaError{Formula: p.src, Pos: p.pos, Reason: "missing closing parenthesis"}
		}
		p.pos++
		return inner, nil

	case unicode.IsDigit(rune(c)):
		start := p.pos
		for p.pos < len(p.src) && (unicode.IsDigit(rune(p.src[p.pos])) || p.src[p.pos] == '.') {
			p.pos++
		}
		value, err := decimal.NewFromString(p.src[start:p.pos])
		if err != nil {
			return nil, &FormulaError{Formula: p.src, Pos: start, Reason: "invalid number"}
		}
		return literalExpr{value: value}, nil

	case unicode.IsLetter(rune(c)):
		start := p.pos
		for p.pos < len(p.src) && isLineCodeChar(p.src[p.pos]) {
			p.pos++
		}
		return refExpr{lineCode: strings.ToUpper(p.src[start:p.pos])}, nil
	}

	return nil, &FormulaError{Formula: p.src, Pos: p.pos,
		Reason: fmt.Sprintf("unexpected character %q", c)}
}

func isLineCodeChar(c byte) bool {
	return unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c)) || c == '_'
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}
