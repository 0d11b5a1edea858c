package mathops

import (
	"math"
	"sort"

	"github.com/khanglvm/toolgate/internal/catalog"
)

func algebraOps() []operation {
	return []operation{
		{
			desc: catalog.Descriptor{
				Name:        "solve_linear",
				Category:    CategoryAlgebra,
				Description: "Solve a linear equation of the form ax + b = 0 for x",
				Parameters: catalog.Schema{
					nonZero("a", "coefficient of x"),
					number("b", "constant term"),
				},
				Examples: examples(`{"a": 2, "b": -4}`, "2"),
				Keywords: []string{"equation", "solve", "root", "unknown", "linear"},
			},
			fn: func(p args) (any, error) { return -p.num("b") / p.num("a"), nil },
		},
		{
			desc: catalog.Descriptor{
				Name:        "solve_quadratic",
				Category:    CategoryAlgebra,
				Description: "Find the real roots of a quadratic equation ax^2 + bx + c = 0",
				Parameters: catalog.Schema{
					nonZero("a", "coefficient of x^2"),
					number("b", "coefficient of x"),
					number("c", "constant term"),
				},
				Examples: examples(
					`{"a": 1, "b": -5, "c": 6}`, "[2, 3]",
					`{"a": 1, "b": 2, "c": 1}`, "[-1]",
				),
				Keywords: []string{"quadratic", "roots", "discriminant", "polynomial", "parabola", "equation"},
			},
			fn: func(p args) (any, error) {
				roots, ok := quadraticRoots(p.num("a"), p.num("b"), p.num("c"))
				if !ok {
					return nil, p.fail("equation has no real roots")
				}
				return roots, nil
			},
		},
	}
}

// quadraticRoots returns the distinct real roots in ascending order.
func quadraticRoots(a, b, c float64) ([]float64, bool) {
	d := b*b - 4*a*c
	switch {
	case d < 0:
		return nil, false
	case d == 0:
		return []float64{-b / (2 * a)}, true
	}
	sq := math.Sqrt(d)
	// q avoids cancellation when b and sq are close in magnitude.
	q := -0.5 * (b + math.Copysign(sq, b))
	r1, r2 := q/a, c/q
	roots := []float64{r1, r2}
	sort.Float64s(roots)
	return roots, true
}
