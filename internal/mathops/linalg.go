package mathops

import (
	"math"

	"github.com/khanglvm/toolgate/internal/catalog"
)

func linearAlgebraOps() []operation {
	return []operation{
		{
			desc: catalog.Descriptor{
				Name:        "vector_dot_product",
				Category:    CategoryLinearAlg,
				Description: "Dot product of two vectors of equal length",
				Parameters: catalog.Schema{
					numbers("a", "first vector", 1),
					numbers("b", "second vector", 1),
				},
				Rules: []catalog.Rule{{
					Expr:    "size(params.a) == size(params.b)",
					Field:   "b",
					Message: "vectors must have the same length",
				}},
				Examples: examples(`{"a": [1, 2, 3], "b": [4, 5, 6]}`, "32"),
				Keywords: []string{"dot product", "scalar product", "vector", "inner product"},
			},
			fn: func(p args) (any, error) {
				a, err := p.vector("a")
				if err != nil {
					return nil, err
				}
				b, err := p.vector("b")
				if err != nil {
					return nil, err
				}
				var sum float64
				for i := range a {
					sum += a[i] * b[i]
				}
				return sum, nil
			},
		},
		{
			desc: catalog.Descriptor{
				Name:        "matrix_multiply",
				Category:    CategoryLinearAlg,
				Description: "Multiply two matrices given as lists of rows",
				Parameters: catalog.Schema{
					matrix("a", "left matrix"),
					matrix("b", "right matrix"),
				},
				Examples: examples(`{"a": [[1, 2], [3, 4]], "b": [[5, 6], [7, 8]]}`, "[[19, 22], [43, 50]]"),
				Keywords: []string{"matrix", "multiplication", "product", "linear algebra"},
			},
			fn: func(p args) (any, error) {
				a, err := p.matrix("a")
				if err != nil {
					return nil, err
				}
				b, err := p.matrix("b")
				if err != nil {
					return nil, err
				}
				if len(a[0]) != len(b) {
					return nil, p.fail("cannot multiply a %dx%d matrix by a %dx%d matrix", len(a), len(a[0]), len(b), len(b[0]))
				}
				out := make([][]float64, len(a))
				for i := range a {
					out[i] = make([]float64, len(b[0]))
					for j := range b[0] {
						for k := range b {
							out[i][j] += a[i][k] * b[k][j]
						}
					}
				}
				return out, nil
			},
		},
		{
			desc: catalog.Descriptor{
				Name:        "matrix_determinant",
				Category:    CategoryLinearAlg,
				Description: "Determinant of a square matrix",
				Parameters:  catalog.Schema{matrix("matrix", "square matrix as a list of rows")},
				Examples:    examples(`{"matrix": [[1, 2], [3, 4]]}`, "-2"),
				Keywords:    []string{"determinant", "matrix", "square", "linear algebra", "singular"},
			},
			fn: func(p args) (any, error) {
				m, err := p.matrix("matrix")
				if err != nil {
					return nil, err
				}
				if len(m[0]) != len(m) {
					return nil, p.fail("matrix must be square, got %dx%d", len(m), len(m[0]))
				}
				return determinant(m), nil
			},
		},
	}
}

// determinant uses Gaussian elimination with partial pivoting on a copy of m.
func determinant(m [][]float64) float64 {
	n := len(m)
	a := make([][]float64, n)
	for i := range m {
		a[i] = append([]float64(nil), m[i]...)
	}

	det := 1.0
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if a[pivot][col] == 0 {
			return 0
		}
		if pivot != col {
			a[pivot], a[col] = a[col], a[pivot]
			det = -det
		}
		det *= a[col][col]
		for r := col + 1; r < n; r++ {
			f := a[r][col] / a[col][col]
			for c := col; c < n; c++ {
				a[r][c] -= f * a[col][c]
			}
		}
	}
	return det
}
