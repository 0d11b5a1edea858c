/*
Package mathops is the built-in catalog of mathematical operations.

Every operation is declared statically with a description, search keywords,
worked examples and a parameter schema. Handlers receive parameters already
validated and coerced by the execution engine: numbers arrive as float64,
integers as int64 and arrays as []any. Inputs that are well typed but outside
an operation's domain return a *catalog.DomainError.
*/
package mathops

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/khanglvm/toolgate/internal/catalog"
)

// Categories in registration order.
const (
	CategoryArithmetic   = "arithmetic"
	CategoryAlgebra      = "algebra"
	CategoryGeometry     = "geometry"
	CategoryTrigonometry = "trigonometry"
	CategoryCoordinates  = "coordinates"
	CategoryStatistics   = "statistics"
	CategoryLinearAlg    = "linear_algebra"
)

type operation struct {
	desc catalog.Descriptor
	fn   func(p args) (any, error)
}

// New returns a registry holding every built-in operation.
func New() *catalog.StaticRegistry {
	reg := catalog.NewStaticRegistry()
	groups := [][]operation{
		arithmeticOps(),
		algebraOps(),
		geometryOps(),
		trigonometryOps(),
		coordinateOps(),
		statisticsOps(),
		linearAlgebraOps(),
	}
	for _, group := range groups {
		for _, op := range group {
			reg.MustRegister(op.desc, handler(op.desc.Name, op.fn))
		}
	}
	return reg
}

func handler(name string, fn func(args) (any, error)) catalog.Handle {
	return catalog.HandlerFunc(func(_ context.Context, params map[string]any) (any, error) {
		return fn(args{op: name, m: params})
	})
}

// args reads validated parameters.
type args struct {
	op string
	m  map[string]any
}

func (a args) num(name string) float64 {
	f, _ := toFloat(a.m[name])
	return f
}

func (a args) integer(name string) int64 {
	switch v := a.m[name].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func (a args) str(name string) string {
	s, _ := a.m[name].(string)
	return s
}

func (a args) vector(name string) ([]float64, error) {
	return floats(a.op, name, a.m[name])
}

func (a args) matrix(name string) ([][]float64, error) {
	rows, ok := a.m[name].([]any)
	if !ok {
		return nil, catalog.NewDomainError(a.op, "%s must be a list of rows", name)
	}
	out := make([][]float64, len(rows))
	width := -1
	for i, r := range rows {
		row, err := floats(a.op, fmt.Sprintf("%s[%d]", name, i), r)
		if err != nil {
			return nil, err
		}
		if width >= 0 && len(row) != width {
			return nil, catalog.NewDomainError(a.op, "%s is ragged: row %d has %d columns, expected %d", name, i, len(row), width)
		}
		width = len(row)
		out[i] = row
	}
	return out, nil
}

func (a args) fail(format string, v ...any) error {
	return catalog.NewDomainError(a.op, format, v...)
}

func floats(op, name string, v any) ([]float64, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, catalog.NewDomainError(op, "%s must be a list of numbers", name)
	}
	out := make([]float64, len(list))
	for i, e := range list {
		f, ok := toFloat(e)
		if !ok {
			return nil, catalog.NewDomainError(op, "%s[%d] is not a number", name, i)
		}
		out[i] = f
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

func number(name, desc string) catalog.Parameter {
	return catalog.Parameter{Name: name, Type: catalog.TypeNumber, Description: desc, Required: true}
}

func positive(name, desc string) catalog.Parameter {
	p := number(name, desc)
	p.Constraints.ExclusiveMinimum = catalog.Float(0)
	return p
}

func nonZero(name, desc string) catalog.Parameter {
	p := number(name, desc)
	p.Constraints.NotZero = true
	return p
}

func numbers(name, desc string, minLen int) catalog.Parameter {
	return catalog.Parameter{
		Name:        name,
		Type:        catalog.TypeArray,
		Description: desc,
		Required:    true,
		Constraints: catalog.Constraints{Items: catalog.TypeNumber, MinLength: catalog.Int(minLen)},
	}
}

func point(name, desc string) catalog.Parameter {
	return catalog.Parameter{
		Name:        name,
		Type:        catalog.TypeArray,
		Description: desc,
		Required:    true,
		Constraints: catalog.Constraints{Items: catalog.TypeNumber, Length: catalog.Int(2)},
	}
}

func matrix(name, desc string) catalog.Parameter {
	return catalog.Parameter{
		Name:        name,
		Type:        catalog.TypeArray,
		Description: desc,
		Required:    true,
		Constraints: catalog.Constraints{Items: catalog.TypeArray, MinLength: catalog.Int(1)},
	}
}

func examples(pairs ...string) []catalog.Example {
	out := make([]catalog.Example, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, catalog.Example{Input: pairs[i], Output: pairs[i+1]})
	}
	return out
}
