// Package ratelaw parses and evaluates infix kinetic-law expressions such as
// "k1 * A * B / (Km + A)" or "Vmax * S^n / (K^n + S^n)".
//
// The grammar follows the usual arithmetic precedence: "+"/"-" bind loosest,
// then "*"/"/", then unary sign, then right-associative "^" (or "**").
// Function calls (exp, ln, log, pow, sqrt, ...) and a handful of named
// constants (pi, exponentiale, avogadro, infinity) are built in.
package ratelaw

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse compiles src into an evaluable expression.
func Parse(src string) (*Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrSyntax)
	}
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	root, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.typ != tokenEOF {
		return nil, fmt.Errorf("%w: unexpected %s", ErrSyntax, tok)
	}
	return &Expr{source: src, root: root}, nil
}

// MustParse is Parse for expressions known to be valid; it panics on error.
func MustParse(src string) *Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) advance() token {
	tok := p.tokens[p.pos]
	if tok.typ != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(typ tokenType, what string) error {
	tok := p.advance()
	if tok.typ != typ {
		return fmt.Errorf("%w: expected %s, got %s", ErrSyntax, what, tok)
	}
	return nil
}

func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.typ != tokenPlus && tok.typ != tokenMinus {
			return left, nil
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: tok.value[0], left: left, right: right}
	}
}

func (p *parser) parseMultiplicative() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.typ != tokenStar && tok.typ != tokenSlash {
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: tok.value[0], left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	tok := p.peek()
	if tok.typ == tokenMinus || tok.typ == tokenPlus {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: tok.value[0], operand: operand}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.peek().typ != tokenCaret {
		return base, nil
	}
	p.advance()
	// Right-associative, and the exponent may carry its own sign: 2^-x.
	exponent, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return binaryNode{op: '^', left: base, right: exponent}, nil
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.advance()
	switch tok.typ {
	case tokenNumber:
		v, err := strconv.ParseFloat(tok.value, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %s", ErrSyntax, tok)
		}
		return numberNode{value: v}, nil
	case tokenIdent:
		if p.peek().typ == tokenLeftParen {
			return p.parseCall(tok)
		}
		return identNode{name: tok.value}, nil
	case tokenLeftParen:
		inner, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokenRightParen, "\")\""); err != nil {
			return nil, err
		}
		return inner, nil
	default:
		return nil, fmt.Errorf("%w: unexpected %s", ErrSyntax, tok)
	}
}

func (p *parser) parseCall(name token) (node, error) {
	fn, ok := functions[name.value]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunc, name.value)
	}
	p.advance() // (

	args := make([]node, 0, 2)
	if p.peek().typ != tokenRightParen {
		for {
			arg, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().typ != tokenComma {
				break
			}
			p.advance()
		}
	}
	if err := p.expect(tokenRightParen, "\")\""); err != nil {
		return nil, err
	}
	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return nil, fmt.Errorf("%w: %s takes %s, got %d", ErrFunctionArity, name.value, arityText(fn), len(args))
	}
	return callNode{name: name.value, fn: fn, args: args}, nil
}

func arityText(fn function) string {
	switch {
	case fn.maxArgs < 0:
		return fmt.Sprintf("at least %d", fn.minArgs)
	case fn.minArgs == fn.maxArgs:
		return strconv.Itoa(fn.minArgs)
	default:
		return fmt.Sprintf("%d to %d", fn.minArgs, fn.maxArgs)
	}
}
