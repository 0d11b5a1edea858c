package mathops_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/toolgate/internal/catalog"
	"github.com/khanglvm/toolgate/internal/execute"
	"github.com/khanglvm/toolgate/internal/fault"
	"github.com/khanglvm/toolgate/internal/log"
	"github.com/khanglvm/toolgate/internal/mathops"
)

func run(t *testing.T, op string, params map[string]any) execute.Result {
	t.Helper()
	e, err := execute.NewEngine(mathops.New(), execute.WithLogger(log.Nop))
	require.NoError(t, err)
	return e.Execute(context.Background(), execute.Request{Operation: op, Parameters: params})
}

func value(t *testing.T, op string, params map[string]any) any {
	t.Helper()
	res := run(t, op, params)
	require.True(t, res.Success, "%s: %v", op, res.Error)
	return res.Value
}

func TestCatalogIsWellFormed(t *testing.T) {
	reg := mathops.New()
	descs, err := reg.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, descs, 29)
	assert.Empty(t, catalog.DuplicateNames(descs))

	for _, d := range descs {
		assert.NoError(t, d.Validate(), d.Name)
		assert.NotEmpty(t, d.Category, d.Name)
		assert.NotEmpty(t, d.Keywords, d.Name)
		assert.NotEmpty(t, d.Examples, d.Name)
	}

	d, _, ok := reg.Resolve("add")
	require.True(t, ok)
	assert.Equal(t, "Add two numbers together", d.Description)
	assert.Equal(t, []string{"a", "b"}, d.Parameters.Names())
	assert.Equal(t, []string{"sum", "addition", "plus", "total"}, d.Keywords)
}

func TestArithmetic(t *testing.T) {
	assert.Equal(t, 5.0, value(t, "add", map[string]any{"a": 2, "b": 3}))
	assert.Equal(t, 6.0, value(t, "subtract", map[string]any{"a": 10, "b": "4"}))
	assert.Equal(t, 42.0, value(t, "multiply", map[string]any{"a": 6, "b": 7}))
	assert.Equal(t, 2.5, value(t, "divide", map[string]any{"a": 10, "b": 4}))
	assert.Equal(t, 1024.0, value(t, "power", map[string]any{"base": 2, "exponent": 10}))
	assert.Equal(t, 2.0, value(t, "modulo", map[string]any{"a": 17, "b": 5}))
}

func TestDomainErrors(t *testing.T) {
	tests := []struct {
		op     string
		params map[string]any
		msg    string
	}{
		{"divide", map[string]any{"a": 1, "b": 0}, "divide: division by zero"},
		{"power", map[string]any{"base": -8, "exponent": 0.5}, "power: a negative base requires an integer exponent"},
		{"solve_quadratic", map[string]any{"a": 1, "b": 0, "c": 1}, "solve_quadratic: equation has no real roots"},
		{"slope", map[string]any{"point1": []any{2, 1}, "point2": []any{2, 7}}, "slope: slope is undefined for vertical lines"},
		{"tan", map[string]any{"angle": 90, "unit": "degrees"}, "tan: tangent is undefined for odd multiples of 90 degrees"},
		{"matrix_determinant", map[string]any{"matrix": []any{[]any{1, 2}}}, "matrix_determinant: matrix must be square, got 1x2"},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			res := run(t, tt.op, tt.params)
			require.NotNil(t, res.Error)
			assert.Equal(t, fault.ComputationError, res.Error.Kind)
			assert.Equal(t, tt.msg, res.Error.Message)
			var de *catalog.DomainError
			assert.True(t, errors.As(res.Error, &de))
		})
	}
}

func TestSchemaConstraintsRejectBeforeInvoke(t *testing.T) {
	res := run(t, "modulo", map[string]any{"a": 1, "b": 0})
	require.NotNil(t, res.Error)
	assert.Equal(t, fault.InvalidParameters, res.Error.Kind)
	assert.Equal(t, []string{"b"}, res.Error.FieldNames())

	res = run(t, "circle_area", map[string]any{"radius": -1})
	require.NotNil(t, res.Error)
	assert.Equal(t, fault.InvalidParameters, res.Error.Kind)

	res = run(t, "distance_2d", map[string]any{"point1": []any{0, 0, 0}, "point2": []any{1, 1}})
	require.NotNil(t, res.Error)
	assert.Equal(t, []string{"point1"}, res.Error.FieldNames())

	res = run(t, "sin", map[string]any{"angle": 1, "unit": "gradians"})
	require.NotNil(t, res.Error)
	assert.Equal(t, []string{"unit"}, res.Error.FieldNames())
}

func TestAlgebra(t *testing.T) {
	assert.Equal(t, 2.0, value(t, "solve_linear", map[string]any{"a": 2, "b": -4}))
	assert.Equal(t, []float64{2, 3}, value(t, "solve_quadratic", map[string]any{"a": 1, "b": -5, "c": 6}))
	assert.Equal(t, []float64{-2, 2}, value(t, "solve_quadratic", map[string]any{"a": 1, "b": 0, "c": -4}))
	assert.Equal(t, []float64{-1}, value(t, "solve_quadratic", map[string]any{"a": 1, "b": 2, "c": 1}))
}

func TestGeometryAndTrigonometry(t *testing.T) {
	assert.Equal(t, 25.0, value(t, "triangle_area", map[string]any{"base": 10, "height": 5}))
	assert.InDelta(t, 4*math.Pi, value(t, "circle_area", map[string]any{"radius": 2}), 1e-12)
	assert.InDelta(t, 2*math.Pi, value(t, "circle_circumference", map[string]any{"radius": 1}), 1e-12)
	assert.Equal(t, 12.0, value(t, "rectangle_area", map[string]any{"length": 4, "width": 3}))
	assert.Equal(t, 14.0, value(t, "rectangle_perimeter", map[string]any{"length": 4, "width": 3}))
	assert.InDelta(t, 36*math.Pi, value(t, "sphere_volume", map[string]any{"radius": 3}), 1e-9)

	assert.InDelta(t, 1.0, value(t, "sin", map[string]any{"angle": 90, "unit": "degrees"}), 1e-12)
	assert.InDelta(t, 1.0, value(t, "cos", map[string]any{"angle": 0}), 1e-12)
	assert.InDelta(t, 1.0, value(t, "tan", map[string]any{"angle": 45, "unit": "degrees"}), 1e-12)
	assert.InDelta(t, math.Pi, value(t, "degrees_to_radians", map[string]any{"degrees": 180}), 1e-12)
	assert.InDelta(t, 180.0, value(t, "radians_to_degrees", map[string]any{"radians": math.Pi}), 1e-9)
}

func TestCoordinates(t *testing.T) {
	assert.Equal(t, 5.0, value(t, "distance_2d", map[string]any{"point1": []any{0, 0}, "point2": []any{3, 4}}))
	assert.Equal(t, []float64{2, 1}, value(t, "midpoint_2d", map[string]any{"point1": "[0, 0]", "point2": []any{4, 2}}))
	assert.Equal(t, 2.0, value(t, "slope", map[string]any{"point1": []any{1, 1}, "point2": []any{3, 5}}))
}

func TestStatistics(t *testing.T) {
	data := []any{1, 2, 3, 4}
	assert.Equal(t, 2.5, value(t, "mean", map[string]any{"data": data}))
	assert.Equal(t, 2.5, value(t, "median", map[string]any{"data": data}))
	assert.Equal(t, 2.0, value(t, "median", map[string]any{"data": []any{3, 1, 2}}))
	assert.Equal(t, 1.25, value(t, "variance", map[string]any{"data": data}))
	assert.InDelta(t, 5.0/3.0, value(t, "variance", map[string]any{"data": data, "ddof": 1}), 1e-12)
	assert.Equal(t, 2.0, value(t, "standard_deviation", map[string]any{"data": []any{2, 4, 4, 4, 5, 5, 7, 9}}))

	res := run(t, "variance", map[string]any{"data": []any{1}, "ddof": 1})
	require.NotNil(t, res.Error)
	assert.Equal(t, fault.InvalidParameters, res.Error.Kind)
	assert.Equal(t, []string{"ddof"}, res.Error.FieldNames())

	res = run(t, "mean", map[string]any{"data": []any{}})
	require.NotNil(t, res.Error)
	assert.Equal(t, fault.InvalidParameters, res.Error.Kind)
}

func TestLinearAlgebra(t *testing.T) {
	assert.Equal(t, 32.0, value(t, "vector_dot_product", map[string]any{"a": []any{1, 2, 3}, "b": []any{4, 5, 6}}))

	res := run(t, "vector_dot_product", map[string]any{"a": []any{1, 2}, "b": []any{1}})
	require.NotNil(t, res.Error)
	assert.Equal(t, []fault.FieldError{{Field: "b", Reason: "vectors must have the same length"}}, res.Error.Fields)

	got := value(t, "matrix_multiply", map[string]any{
		"a": []any{[]any{1, 2}, []any{3, 4}},
		"b": []any{[]any{5, 6}, []any{7, 8}},
	})
	assert.Equal(t, [][]float64{{19, 22}, {43, 50}}, got)

	res = run(t, "matrix_multiply", map[string]any{
		"a": []any{[]any{1, 2}},
		"b": []any{[]any{1, 2}},
	})
	require.NotNil(t, res.Error)
	assert.Equal(t, fault.ComputationError, res.Error.Kind)

	assert.InDelta(t, -2.0, value(t, "matrix_determinant", map[string]any{"matrix": []any{[]any{1, 2}, []any{3, 4}}}), 1e-12)
	assert.InDelta(t, 0.0, value(t, "matrix_determinant", map[string]any{"matrix": []any{[]any{1, 2}, []any{2, 4}}}), 1e-12)
	assert.InDelta(t, 24.0, value(t, "matrix_determinant", map[string]any{
		"matrix": []any{[]any{2, 0, 0}, []any{0, 3, 0}, []any{0, 0, 4}},
	}), 1e-12)
}
