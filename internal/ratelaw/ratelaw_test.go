package ratelaw

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestParseAndEvalPrecedence(t *testing.T) {
	cases := []struct {
		src  string
		want float64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"10 - 4 - 3", 3},
		{"12 / 3 / 2", 2},
		{"2^3^2", 512},
		{"2**3", 8},
		{"-2^2", -4},
		{"2^-1", 0.5},
		{"+3 - -2", 5},
		{"1.5e2 + .5", 150.5},
		{"pow(2, 10)", 1024},
		{"log(100)", 2},
		{"log(2, 8)", 3},
		{"root(3, 27)", 3},
		{"max(1, 7, 3) - min(4, 2)", 5},
		{"exp(0) + ln(exponentiale)", 2},
	}
	for _, tc := range cases {
		expr, err := Parse(tc.src)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.src, err)
		}
		got, err := expr.Eval(nil)
		if err != nil {
			t.Fatalf("eval %q: %v", tc.src, err)
		}
		if math.Abs(got-tc.want) > 1e-12 {
			t.Fatalf("eval %q: got=%g want=%g", tc.src, got, tc.want)
		}
	}
}

func TestEvalResolvesIdentifiers(t *testing.T) {
	expr := MustParse("Vmax * S^n / (K^n + S^n)")
	got, err := expr.Eval(MapResolver{"Vmax": 10, "S": 2, "K": 2, "n": 2})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got != 5 {
		t.Fatalf("unexpected hill value: %g", got)
	}
}

func TestChainFirstResolverWins(t *testing.T) {
	expr := MustParse("k * x")
	r := Chain(MapResolver{"k": 3}, nil, MapResolver{"k": 100, "x": 2})
	got, err := expr.Eval(r)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got != 6 {
		t.Fatalf("expected local k to shadow later namespaces, got %g", got)
	}
}

func TestResolverShadowsConstants(t *testing.T) {
	expr := MustParse("pi")
	got, err := expr.Eval(MapResolver{"pi": 3})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got != 3 {
		t.Fatalf("expected resolver value, got %g", got)
	}
	got, err = expr.Eval(nil)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got != math.Pi {
		t.Fatalf("expected built-in pi, got %g", got)
	}
}

func TestUndefinedSymbol(t *testing.T) {
	expr := MustParse("k1 * missing")
	_, err := expr.Eval(MapResolver{"k1": 1})
	var undef *UndefinedSymbolError
	if !errors.As(err, &undef) {
		t.Fatalf("expected UndefinedSymbolError, got %v", err)
	}
	if undef.Name != "missing" {
		t.Fatalf("unexpected symbol name: %q", undef.Name)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		src  string
		want error
	}{
		{"", ErrSyntax},
		{"   ", ErrSyntax},
		{"1 +", ErrSyntax},
		{"(a + b", ErrSyntax},
		{"a b", ErrSyntax},
		{"a $ b", ErrSyntax},
		{"3 * )", ErrSyntax},
		{"frobnicate(1)", ErrUnknownFunc},
		{"exp(1, 2)", ErrFunctionArity},
		{"pow(1)", ErrFunctionArity},
		{"max()", ErrFunctionArity},
	}
	for _, tc := range cases {
		if _, err := Parse(tc.src); !errors.Is(err, tc.want) {
			t.Fatalf("parse %q: expected %v, got %v", tc.src, tc.want, err)
		}
	}
}

func TestIdentifiersExcludeFunctionsAndConstants(t *testing.T) {
	expr := MustParse("k1 * A * exp(-B / pi) + k1")
	got := expr.Identifiers()
	want := []string{"A", "B", "k1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("identifiers: got=%v want=%v", got, want)
	}
}

func TestStringRoundTrip(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"a+b*c", "a + b * c"},
		{"(a+b)*c", "(a + b) * c"},
		{"a-(b-c)", "a - (b - c)"},
		{"(a-b)-c", "a - b - c"},
		{"(2^3)^2", "(2^3)^2"},
		{"2^3^2", "2^3^2"},
		{"-x^2", "-x^2"},
		{"(-x)^2", "(-x)^2"},
		{"k*max(a,b,c)", "k * max(a, b, c)"},
		{"rate/(1+(y/Kd)^n)", "rate / (1 + (y / Kd)^n)"},
	}
	for _, tc := range cases {
		src, want := tc.src, tc.want
		expr := MustParse(src)
		if got := expr.String(); got != want {
			t.Fatalf("string %q: got=%q want=%q", src, got, want)
		}
		again := MustParse(expr.String())
		if again.String() != want {
			t.Fatalf("round trip %q: got=%q", src, again.String())
		}
		if expr.Source() != src {
			t.Fatalf("source not preserved: %q", expr.Source())
		}
	}
}

func TestDivisionByZeroIsNotAnError(t *testing.T) {
	got, err := MustParse("1 / x").Eval(MapResolver{"x": 0})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !math.IsInf(got, 1) {
		t.Fatalf("expected +Inf, got %g", got)
	}
}
