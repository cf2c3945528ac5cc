// internal/formula/parse.go
package formula

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/meridianins/ratekeeper/internal/types"
)

/*
 * Safe arithmetic formula parser.
 *
 * Parses impact formulas to a small expression AST (Literal | Variable |
 * Binary | Call) evaluated with named-variable lookup. Formulas never pass
 * through string substitution and never reach a general-purpose interpreter;
 * the grammar admits arithmetic only.
 *
 * Grammar (recursive descent, standard precedence):
 *   expr    := term (('+' | '-') term)*
 *   term    := unary (('*' | '/') unary)*
 *   unary   := '-' unary | primary
 *   primary := number | ident | ident '(' expr (',' expr)* ')' | '(' expr ')'
 *
 * Identifiers may contain dots ("profile.age") and resolve against the
 * calculation context at evaluation time. Function identifiers are checked
 * against the call whitelist during evaluation.
 */

// Expr is a parsed formula expression node.
type Expr interface {
	isExpr()
}

// Literal is a numeric constant.
type Literal struct {
	Value float64
}

// Variable is a named lookup into the calculation context.
type Variable struct {
	Name string
}

// Binary is an arithmetic operation over two sub-expressions.
type Binary struct {
	Op    byte // one of + - * /
	Left  Expr
	Right Expr
}

// Call is a whitelisted numeric function application.
type Call struct {
	Name string
	Args []Expr
}

func (Literal) isExpr()  {}
func (Variable) isExpr() {}
func (Binary) isExpr()   {}
func (Call) isExpr()     {}

// Parse converts a formula string into an expression tree.
func Parse(input string) (Expr, error) {
	p := &parser{input: input}
	p.skipSpace()
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return nil, fmt.Errorf("%w: unexpected %q at position %d", types.ErrFormulaParse, p.input[p.pos], p.pos)
	}
	return expr, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.input) {
			return left, nil
		}
		op := p.input[p.pos]
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseTerm() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.input) {
			return left, nil
		}
		op := p.input[p.pos]
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	p.skipSpace()
	if p.pos < len(p.input) && p.input[p.pos] == '-' {
		p.pos++
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		// -x parses as (0 - x); avoids a dedicated unary node
		return Binary{Op: '-', Left: Literal{Value: 0}, Right: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return nil, fmt.Errorf("%w: unexpected end of formula", types.ErrFormulaParse)
	}

	c := p.input[p.pos]
	switch {
	case c == '(':
		p.pos++
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return expr, nil

	case c >= '0' && c <= '9' || c == '.':
		return p.parseNumber()

	case isIdentStart(c):
		return p.parseIdent()

	default:
		return nil, fmt.Errorf("%w: unexpected %q at position %d", types.ErrFormulaParse, c, p.pos)
	}
}

func (p *parser) parseNumber() (Expr, error) {
	start := p.pos
	for p.pos < len(p.input) && (isDigit(p.input[p.pos]) || p.input[p.pos] == '.') {
		p.pos++
	}
	text := p.input[start:p.pos]
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid number %q", types.ErrFormulaParse, text)
	}
	return Literal{Value: v}, nil
}

func (p *parser) parseIdent() (Expr, error) {
	start := p.pos
	for p.pos < len(p.input) && isIdentPart(p.input[p.pos]) {
		p.pos++
	}
	name := p.input[start:p.pos]

	p.skipSpace()
	if p.pos < len(p.input) && p.input[p.pos] == '(' {
		p.pos++
		var args []Expr
		p.skipSpace()
		if p.pos < len(p.input) && p.input[p.pos] == ')' {
			p.pos++
			return Call{Name: strings.ToLower(name), Args: nil}, nil
		}
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			p.skipSpace()
			if p.pos < len(p.input) && p.input[p.pos] == ',' {
				p.pos++
				continue
			}
			break
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return Call{Name: strings.ToLower(name), Args: args}, nil
	}

	return Variable{Name: name}, nil
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if p.pos >= len(p.input) || p.input[p.pos] != c {
		return fmt.Errorf("%w: expected %q at position %d", types.ErrFormulaParse, c, p.pos)
	}
	p.pos++
	return nil
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '.'
}
