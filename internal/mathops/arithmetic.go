package mathops

import (
	"math"

	"github.com/khanglvm/toolgate/internal/catalog"
)

func arithmeticOps() []operation {
	pair := func(a, b string) catalog.Schema {
		return catalog.Schema{number("a", a), number("b", b)}
	}
	return []operation{
		{
			desc: catalog.Descriptor{
				Name:        "add",
				Category:    CategoryArithmetic,
				Description: "Add two numbers together",
				Parameters:  pair("first addend", "second addend"),
				Examples:    examples(`{"a": 2, "b": 3}`, "5"),
				Keywords:    []string{"sum", "addition", "plus", "total"},
			},
			fn: func(p args) (any, error) { return p.num("a") + p.num("b"), nil },
		},
		{
			desc: catalog.Descriptor{
				Name:        "subtract",
				Category:    CategoryArithmetic,
				Description: "Subtract the second number from the first",
				Parameters:  pair("minuend", "subtrahend"),
				Examples:    examples(`{"a": 10, "b": 4}`, "6"),
				Keywords:    []string{"difference", "minus", "subtraction", "take away"},
			},
			fn: func(p args) (any, error) { return p.num("a") - p.num("b"), nil },
		},
		{
			desc: catalog.Descriptor{
				Name:        "multiply",
				Category:    CategoryArithmetic,
				Description: "Multiply two numbers",
				Parameters:  pair("first factor", "second factor"),
				Examples:    examples(`{"a": 6, "b": 7}`, "42"),
				Keywords:    []string{"product", "times", "multiplication"},
			},
			fn: func(p args) (any, error) { return p.num("a") * p.num("b"), nil },
		},
		{
			desc: catalog.Descriptor{
				Name:        "divide",
				Category:    CategoryArithmetic,
				Description: "Divide the first number by the second",
				Parameters:  catalog.Schema{number("a", "dividend"), number("b", "divisor")},
				Examples:    examples(`{"a": 10, "b": 4}`, "2.5"),
				Keywords:    []string{"quotient", "division", "ratio", "split"},
			},
			fn: func(p args) (any, error) {
				b := p.num("b")
				if b == 0 {
					return nil, p.fail("division by zero")
				}
				return p.num("a") / b, nil
			},
		},
		{
			desc: catalog.Descriptor{
				Name:        "power",
				Category:    CategoryArithmetic,
				Description: "Raise a base to an exponent",
				Parameters:  catalog.Schema{number("base", "the base"), number("exponent", "the exponent")},
				Examples:    examples(`{"base": 2, "exponent": 10}`, "1024"),
				Keywords:    []string{"exponent", "exponentiation", "raise", "squared", "cubed"},
			},
			fn: func(p args) (any, error) {
				base, exp := p.num("base"), p.num("exponent")
				if base == 0 && exp < 0 {
					return nil, p.fail("zero cannot be raised to a negative power")
				}
				if base < 0 && exp != math.Trunc(exp) {
					return nil, p.fail("a negative base requires an integer exponent")
				}
				out := math.Pow(base, exp)
				if math.IsInf(out, 0) {
					return nil, p.fail("result overflows")
				}
				return out, nil
			},
		},
		{
			desc: catalog.Descriptor{
				Name:        "modulo",
				Category:    CategoryArithmetic,
				Description: "Remainder after dividing the first number by the second",
				Parameters:  catalog.Schema{number("a", "dividend"), nonZero("b", "divisor")},
				Examples:    examples(`{"a": 17, "b": 5}`, "2"),
				Keywords:    []string{"remainder", "mod", "modulus"},
			},
			fn: func(p args) (any, error) { return math.Mod(p.num("a"), p.num("b")), nil },
		},
	}
}
