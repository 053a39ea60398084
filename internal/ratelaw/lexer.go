package ratelaw

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenNumber
	tokenIdent
	tokenPlus
	tokenMinus
	tokenStar
	tokenSlash
	tokenCaret
	tokenComma
	tokenLeftParen
	tokenRightParen
)

type token struct {
	typ   tokenType
	value string
	pos   int
}

func (t token) String() string {
	if t.typ == tokenEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q at %d", t.value, t.pos)
}

type lexer struct {
	input []rune
	pos   int
}

func tokenize(input string) ([]token, error) {
	l := &lexer{input: []rune(input)}
	tokens := make([]token, 0, len(l.input)/2+1)
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.typ == tokenEOF {
			return tokens, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && unicode.IsSpace(l.input[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{typ: tokenEOF, pos: l.pos}, nil
	}

	start := l.pos
	ch := l.input[l.pos]
	switch {
	case unicode.IsDigit(ch) || (ch == '.' && l.peekDigit(1)):
		return l.readNumber(), nil
	case ch == '_' || unicode.IsLetter(ch):
		for l.pos < len(l.input) && (l.input[l.pos] == '_' || unicode.IsLetter(l.input[l.pos]) || unicode.IsDigit(l.input[l.pos])) {
			l.pos++
		}
		return token{typ: tokenIdent, value: string(l.input[start:l.pos]), pos: start}, nil
	}

	l.pos++
	switch ch {
	case '+':
		return token{typ: tokenPlus, value: "+", pos: start}, nil
	case '-':
		return token{typ: tokenMinus, value: "-", pos: start}, nil
	case '*':
		// "**" is accepted as an alias for "^".
		if l.pos < len(l.input) && l.input[l.pos] == '*' {
			l.pos++
			return token{typ: tokenCaret, value: "**", pos: start}, nil
		}
		return token{typ: tokenStar, value: "*", pos: start}, nil
	case '/':
		return token{typ: tokenSlash, value: "/", pos: start}, nil
	case '^':
		return token{typ: tokenCaret, value: "^", pos: start}, nil
	case ',':
		return token{typ: tokenComma, value: ",", pos: start}, nil
	case '(':
		return token{typ: tokenLeftParen, value: "(", pos: start}, nil
	case ')':
		return token{typ: tokenRightParen, value: ")", pos: start}, nil
	default:
		return token{}, fmt.Errorf("%w: unexpected character %q at %d", ErrSyntax, ch, start)
	}
}

func (l *lexer) peekDigit(offset int) bool {
	i := l.pos + offset
	return i < len(l.input) && unicode.IsDigit(l.input[i])
}

func (l *lexer) readNumber() token {
	start := l.pos
	for l.pos < len(l.input) && unicode.IsDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.input) && unicode.IsDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		mark := l.pos
		l.pos++
		if l.pos < len(l.input) && (l.input[l.pos] == '+' || l.input[l.pos] == '-') {
			l.pos++
		}
		if l.pos < len(l.input) && unicode.IsDigit(l.input[l.pos]) {
			for l.pos < len(l.input) && unicode.IsDigit(l.input[l.pos]) {
				l.pos++
			}
		} else {
			// Not an exponent: "2e" followed by an identifier character.
			l.pos = mark
		}
	}
	return token{typ: tokenNumber, value: strings.TrimSpace(string(l.input[start:l.pos])), pos: start}
}
