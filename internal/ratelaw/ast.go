package ratelaw

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrSyntax        = errors.New("rate law syntax error")
	ErrUnknownFunc   = errors.New("unknown function")
	ErrFunctionArity = errors.New("wrong number of function arguments")
)

// UndefinedSymbolError reports a name that none of the evaluation namespaces define.
type UndefinedSymbolError struct {
	Name string
}

func (e *UndefinedSymbolError) Error() string {
	return fmt.Sprintf("undefined symbol %q", e.Name)
}

// Resolver maps an identifier to its current value.
type Resolver interface {
	Resolve(name string) (float64, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(name string) (float64, bool)

func (f ResolverFunc) Resolve(name string) (float64, bool) { return f(name) }

// MapResolver resolves names from a plain map.
type MapResolver map[string]float64

func (m MapResolver) Resolve(name string) (float64, bool) {
	v, ok := m[name]
	return v, ok
}

// Chain resolves a name against each resolver in order; the first hit wins.
func Chain(resolvers ...Resolver) Resolver {
	return ResolverFunc(func(name string) (float64, bool) {
		for _, r := range resolvers {
			if r == nil {
				continue
			}
			if v, ok := r.Resolve(name); ok {
				return v, true
			}
		}
		return 0, false
	})
}

// Expr is a parsed rate law.
type Expr struct {
	source string
	root   node
}

// Eval evaluates the expression. Built-in constants are consulted only after r.
func (e *Expr) Eval(r Resolver) (float64, error) {
	if e == nil || e.root == nil {
		return 0, fmt.Errorf("%w: empty expression", ErrSyntax)
	}
	return e.root.eval(r)
}

// Source returns the text the expression was parsed from.
func (e *Expr) Source() string { return e.source }

// String renders the expression in canonical infix form.
func (e *Expr) String() string {
	if e == nil || e.root == nil {
		return ""
	}
	var b strings.Builder
	e.root.write(&b)
	return b.String()
}

// Identifiers lists the free names referenced by the expression, sorted.
// Function names and built-in constants are excluded.
func (e *Expr) Identifiers() []string {
	if e == nil || e.root == nil {
		return nil
	}
	seen := make(map[string]struct{})
	e.root.collect(seen)
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

const (
	precAdditive = iota + 1
	precMultiplicative
	precUnary
	precPower
	precAtom
)

type node interface {
	eval(r Resolver) (float64, error)
	write(b *strings.Builder)
	collect(seen map[string]struct{})
	precedence() int
}

type numberNode struct {
	value float64
}

func (n numberNode) eval(Resolver) (float64, error) { return n.value, nil }
func (n numberNode) write(b *strings.Builder) {
	b.WriteString(strconv.FormatFloat(n.value, 'g', -1, 64))
}
func (numberNode) collect(map[string]struct{}) {}
func (numberNode) precedence() int              { return precAtom }

type identNode struct {
	name string
}

func (n identNode) eval(r Resolver) (float64, error) {
	if r != nil {
		if v, ok := r.Resolve(n.name); ok {
			return v, nil
		}
	}
	if v, ok := constants[n.name]; ok {
		return v, nil
	}
	return 0, &UndefinedSymbolError{Name: n.name}
}

func (n identNode) write(b *strings.Builder) { b.WriteString(n.name) }
func (n identNode) collect(seen map[string]struct{}) {
	if _, ok := constants[n.name]; ok {
		return
	}
	seen[n.name] = struct{}{}
}
func (identNode) precedence() int { return precAtom }

type unaryNode struct {
	op      byte
	operand node
}

func (n unaryNode) eval(r Resolver) (float64, error) {
	v, err := n.operand.eval(r)
	if err != nil {
		return 0, err
	}
	if n.op == '-' {
		return -v, nil
	}
	return v, nil
}

func (n unaryNode) write(b *strings.Builder) {
	b.WriteByte(n.op)
	writeOperand(b, n.operand, n.operand.precedence() < precUnary)
}
func (n unaryNode) collect(seen map[string]struct{}) { n.operand.collect(seen) }
func (unaryNode) precedence() int                   { return precUnary }

type binaryNode struct {
	op          byte
	left, right node
}

func (n binaryNode) eval(r Resolver) (float64, error) {
	lv, err := n.left.eval(r)
	if err != nil {
		return 0, err
	}
	rv, err := n.right.eval(r)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case '+':
		return lv + rv, nil
	case '-':
		return lv - rv, nil
	case '*':
		return lv * rv, nil
	case '/':
		return lv / rv, nil
	case '^':
		return math.Pow(lv, rv), nil
	default:
		return 0, fmt.Errorf("%w: unknown operator %q", ErrSyntax, n.op)
	}
}

func (n binaryNode) write(b *strings.Builder) {
	prec := n.precedence()
	if n.op == '^' {
		writeOperand(b, n.left, n.left.precedence() <= prec)
		b.WriteString("^")
		writeOperand(b, n.right, n.right.precedence() < prec)
		return
	}
	writeOperand(b, n.left, n.left.precedence() < prec)
	b.WriteByte(' ')
	b.WriteByte(n.op)
	b.WriteByte(' ')
	writeOperand(b, n.right, n.right.precedence() <= prec)
}

func (n binaryNode) collect(seen map[string]struct{}) {
	n.left.collect(seen)
	n.right.collect(seen)
}

func (n binaryNode) precedence() int {
	switch n.op {
	case '+', '-':
		return precAdditive
	case '*', '/':
		return precMultiplicative
	default:
		return precPower
	}
}

type callNode struct {
	name string
	fn   function
	args []node
}

func (n callNode) eval(r Resolver) (float64, error) {
	values := make([]float64, len(n.args))
	for i, arg := range n.args {
		v, err := arg.eval(r)
		if err != nil {
			return 0, err
		}
		values[i] = v
	}
	return n.fn.apply(values), nil
}

func (n callNode) write(b *strings.Builder) {
	b.WriteString(n.name)
	b.WriteByte('(')
	for i, arg := range n.args {
		if i > 0 {
			b.WriteString(", ")
		}
		arg.write(b)
	}
	b.WriteByte(')')
}

func (n callNode) collect(seen map[string]struct{}) {
	for _, arg := range n.args {
		arg.collect(seen)
	}
}
func (callNode) precedence() int { return precAtom }

func writeOperand(b *strings.Builder, n node, paren bool) {
	if paren {
		b.WriteByte('(')
		n.write(b)
		b.WriteByte(')')
		return
	}
	n.write(b)
}

type function struct {
	minArgs, maxArgs int
	apply            func(args []float64) float64
}

func unary(fn func(float64) float64) function {
	return function{minArgs: 1, maxArgs: 1, apply: func(args []float64) float64 { return fn(args[0]) }}
}

var functions = map[string]function{
	"exp":   unary(math.Exp),
	"ln":    unary(math.Log),
	"log10": unary(math.Log10),
	"sqrt":  unary(math.Sqrt),
	"abs":   unary(math.Abs),
	"floor": unary(math.Floor),
	"ceil":  unary(math.Ceil),
	"sin":   unary(math.Sin),
	"cos":   unary(math.Cos),
	"tan":   unary(math.Tan),
	"pow": {minArgs: 2, maxArgs: 2, apply: func(args []float64) float64 {
		return math.Pow(args[0], args[1])
	}},
	// log(x) is base 10; log(base, x) takes an explicit base.
	"log": {minArgs: 1, maxArgs: 2, apply: func(args []float64) float64 {
		if len(args) == 1 {
			return math.Log10(args[0])
		}
		return math.Log(args[1]) / math.Log(args[0])
	}},
	"root": {minArgs: 1, maxArgs: 2, apply: func(args []float64) float64 {
		if len(args) == 1 {
			return math.Sqrt(args[0])
		}
		return math.Pow(args[1], 1/args[0])
	}},
	"min": {minArgs: 1, maxArgs: -1, apply: func(args []float64) float64 {
		out := args[0]
		for _, v := range args[1:] {
			out = math.Min(out, v)
		}
		return out
	}},
	"max": {minArgs: 1, maxArgs: -1, apply: func(args []float64) float64 {
		out := args[0]
		for _, v := range args[1:] {
			out = math.Max(out, v)
		}
		return out
	}},
}

var constants = map[string]float64{
	"pi":           math.Pi,
	"exponentiale": math.E,
	"avogadro":     6.02214179e23,
	"infinity":     math.Inf(1),
	"INF":          math.Inf(1),
	"notanumber":   math.NaN(),
	"NaN":          math.NaN(),
	"true":         1,
	"false":        0,
}
