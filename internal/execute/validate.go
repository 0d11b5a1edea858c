package execute

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/khanglvm/toolgate/internal/catalog"
	"github.com/khanglvm/toolgate/internal/fault"
)

// plainNumber matches decimal literals only: no hex, no underscores,
// no "Inf" or "NaN", no surrounding whitespace.
var plainNumber = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// Validate checks params against schema and returns a new map holding the
// coerced values with defaults filled in. Every violation is reported, in
// schema order, followed by unknown keys in sorted order.
//
// Coercion is strict: numeric strings become numbers only when they are a
// plain decimal literal, "true"/"false" become booleans, and a string holding
// a JSON array may stand in for an array. Anything else is a type error.
func Validate(schema catalog.Schema, params map[string]any) (map[string]any, []fault.FieldError) {
	out := make(map[string]any, len(schema))
	var errs []fault.FieldError

	for _, p := range schema {
		raw, present := params[p.Name]
		if !present || raw == nil {
			if p.Required {
				errs = append(errs, fault.FieldError{Field: p.Name, Reason: "required parameter is missing"})
				continue
			}
			if p.Default != nil {
				out[p.Name] = p.Default
			}
			continue
		}

		v, reason := coerce(p, raw)
		if reason != "" {
			errs = append(errs, fault.FieldError{Field: p.Name, Reason: reason})
			continue
		}
		if reason := checkConstraints(p, v); reason != "" {
			errs = append(errs, fault.FieldError{Field: p.Name, Reason: reason})
			continue
		}
		out[p.Name] = v
	}

	var unknown []string
	for k := range params {
		if _, ok := schema.Lookup(k); !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		errs = append(errs, fault.FieldError{Field: k, Reason: "unknown parameter"})
	}

	return out, errs
}

func coerce(p catalog.Parameter, raw any) (any, string) {
	switch p.Type {
	case catalog.TypeNumber:
		return toNumber(raw)
	case catalog.TypeInteger:
		return toInteger(raw)
	case catalog.TypeBoolean:
		return toBool(raw)
	case catalog.TypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Sprintf("expected string, got %s", typeName(raw))
		}
		return s, ""
	case catalog.TypeArray:
		return toArray(raw, p.Constraints.Items)
	case catalog.TypeObject:
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Sprintf("expected object, got %s", typeName(raw))
		}
		return m, ""
	case catalog.TypeAny, "":
		return raw, ""
	}
	return nil, fmt.Sprintf("unsupported parameter type %q", p.Type)
}

func toNumber(raw any) (any, string) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil, fmt.Sprintf("cannot interpret %q as a number", v.String())
		}
		f = parsed
	case string:
		if !plainNumber.MatchString(v) {
			return nil, fmt.Sprintf("cannot interpret %q as a number", v)
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Sprintf("cannot interpret %q as a number", v)
		}
		f = parsed
	default:
		return nil, fmt.Sprintf("expected number, got %s", typeName(raw))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, "must be a finite number"
	}
	return f, ""
}

// maxExactFloat is the largest magnitude below which every integer has an
// exact float64 representation.
const maxExactFloat = 1 << 53

func toInteger(raw any) (any, string) {
	switch v := raw.(type) {
	case int:
		return int64(v), ""
	case int8:
		return int64(v), ""
	case int16:
		return int64(v), ""
	case int32:
		return int64(v), ""
	case int64:
		return v, ""
	case uint8:
		return int64(v), ""
	case uint16:
		return int64(v), ""
	case uint32:
		return int64(v), ""
	case uint:
		if uint64(v) > math.MaxInt64 {
			return nil, "integer out of range"
		}
		return int64(v), ""
	case uint64:
		if v > math.MaxInt64 {
			return nil, "integer out of range"
		}
		return int64(v), ""
	case json.Number:
		if n, reason, ok := parseInteger(v.String()); ok {
			return n, reason
		}
	case string:
		if plainNumber.MatchString(v) {
			if n, reason, ok := parseInteger(v); ok {
				return n, reason
			}
		}
	}

	n, reason := toNumber(raw)
	if reason != "" {
		if strings.HasPrefix(reason, "expected number") {
			return nil, "expected integer, got " + typeName(raw)
		}
		return nil, reason
	}
	f := n.(float64)
	if f != math.Trunc(f) {
		return nil, fmt.Sprintf("expected integer, got fractional value %v", f)
	}
	if f >= 0x1p63 || f < -0x1p63 {
		return nil, "integer out of range"
	}
	if math.Abs(f) > maxExactFloat {
		return nil, fmt.Sprintf("integer %v is not exactly representable; pass it as a decimal string", f)
	}
	return int64(f), ""
}

// parseInteger parses a plain decimal integer literal exactly. ok is false when
// s is not an integer literal and should be handled as a float.
func parseInteger(s string) (any, string, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	switch {
	case err == nil:
		return n, "", true
	case errors.Is(err, strconv.ErrRange):
		return nil, "integer out of range", true
	}
	return nil, "", false
}

func toBool(raw any) (any, string) {
	switch v := raw.(type) {
	case bool:
		return v, ""
	case string:
		switch strings.ToLower(v) {
		case "true":
			return true, ""
		case "false":
			return false, ""
		}
		return nil, fmt.Sprintf("cannot interpret %q as a boolean", v)
	}
	return nil, fmt.Sprintf("expected boolean, got %s", typeName(raw))
}

func toArray(raw any, items catalog.ParamType) (any, string) {
	var elems []any
	switch v := raw.(type) {
	case []any:
		elems = v
	case string:
		s := strings.TrimSpace(v)
		if !strings.HasPrefix(s, "[") {
			return nil, "expected array, got string"
		}
		if err := json.Unmarshal([]byte(s), &elems); err != nil {
			return nil, "expected array, got a string that is not a JSON array"
		}
	default:
		rv := reflect.ValueOf(raw)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fmt.Sprintf("expected array, got %s", typeName(raw))
		}
		elems = make([]any, rv.Len())
		for i := range elems {
			elems[i] = rv.Index(i).Interface()
		}
	}

	if items == "" || items == catalog.TypeAny {
		return elems, ""
	}

	out := make([]any, len(elems))
	elem := catalog.Parameter{Type: items}
	for i, e := range elems {
		v, reason := coerce(elem, e)
		if reason != "" {
			return nil, fmt.Sprintf("element %d: %s", i, reason)
		}
		out[i] = v
	}
	return out, ""
}

func checkConstraints(p catalog.Parameter, v any) string {
	c := p.Constraints

	if f, ok := asFloat(v); ok {
		if c.Minimum != nil && f < *c.Minimum {
			return fmt.Sprintf("must be >= %v", *c.Minimum)
		}
		if c.Maximum != nil && f > *c.Maximum {
			return fmt.Sprintf("must be <= %v", *c.Maximum)
		}
		if c.ExclusiveMinimum != nil && f <= *c.ExclusiveMinimum {
			return fmt.Sprintf("must be > %v", *c.ExclusiveMinimum)
		}
		if c.NotZero && f == 0 {
			return "must not be zero"
		}
	}

	var n int
	var isSized bool
	switch x := v.(type) {
	case string:
		n, isSized = utf8.RuneCountInString(x), true
		if len(c.Enum) > 0 && !contains(c.Enum, x) {
			return fmt.Sprintf("must be one of [%s]", strings.Join(c.Enum, ", "))
		}
	case []any:
		n, isSized = len(x), true
	}
	if isSized {
		if c.Length != nil && n != *c.Length {
			return fmt.Sprintf("length must be %d, got %d", *c.Length, n)
		}
		if c.MinLength != nil && n < *c.MinLength {
			return fmt.Sprintf("length must be >= %d, got %d", *c.MinLength, n)
		}
		if c.MaxLength != nil && n > *c.MaxLength {
			return fmt.Sprintf("length must be <= %d, got %d", *c.MaxLength, n)
		}
	}
	return ""
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	}
	return 0, false
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return reflect.TypeOf(v).String()
}
