package spawner

import (
	"encoding/json"
	"sort"

	"github.com/khanglvm/toolgate/internal/catalog"
)

// jsonSchema is the subset of JSON Schema that maps onto catalog.Schema.
type jsonSchema struct {
	Type             any                    `json:"type"`
	Description      string                 `json:"description"`
	Properties       map[string]*jsonSchema `json:"properties"`
	Required         []string               `json:"required"`
	Items            *jsonSchema            `json:"items"`
	Enum             []any                  `json:"enum"`
	Default          any                    `json:"default"`
	Minimum          *float64               `json:"minimum"`
	Maximum          *float64               `json:"maximum"`
	ExclusiveMinimum any                    `json:"exclusiveMinimum"`
	MinLength        *int                   `json:"minLength"`
	MaxLength        *int                   `json:"maxLength"`
	MinItems         *int                   `json:"minItems"`
	MaxItems         *int                   `json:"maxItems"`
}

// SchemaFromJSON converts a tool's inputSchema to a parameter list. Required
// properties come first in their declared order, then the rest by name.
// Unsupported keywords are ignored; a malformed schema yields no parameters.
func SchemaFromJSON(raw json.RawMessage) catalog.Schema {
	if len(raw) == 0 {
		return nil
	}
	var s jsonSchema
	if err := json.Unmarshal(raw, &s); err != nil || len(s.Properties) == 0 {
		return nil
	}

	required := make(map[string]bool, len(s.Required))
	var names []string
	for _, name := range s.Required {
		if _, ok := s.Properties[name]; ok && !required[name] {
			required[name] = true
			names = append(names, name)
		}
	}
	var rest []string
	for name := range s.Properties {
		if !required[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	names = append(names, rest...)

	out := make(catalog.Schema, 0, len(names))
	for _, name := range names {
		prop := s.Properties[name]
		if prop == nil {
			prop = &jsonSchema{}
		}
		out = append(out, parameter(name, prop, required[name]))
	}
	return out
}

func parameter(name string, s *jsonSchema, required bool) catalog.Parameter {
	p := catalog.Parameter{
		Name:        name,
		Type:        paramType(s.Type),
		Description: s.Description,
		Required:    required,
		Default:     s.Default,
	}

	c := &p.Constraints
	c.Minimum = s.Minimum
	c.Maximum = s.Maximum
	if f, ok := s.ExclusiveMinimum.(float64); ok {
		c.ExclusiveMinimum = &f
	}
	switch p.Type {
	case catalog.TypeString:
		c.MinLength, c.MaxLength = s.MinLength, s.MaxLength
		for _, e := range s.Enum {
			if str, ok := e.(string); ok {
				c.Enum = append(c.Enum, str)
			}
		}
	case catalog.TypeArray:
		c.MinLength, c.MaxLength = s.MinItems, s.MaxItems
		if s.Items != nil {
			c.Items = paramType(s.Items.Type)
		}
	}
	return p
}

// paramType maps a JSON Schema "type", which may be a string or a list
// including "null".
func paramType(t any) catalog.ParamType {
	switch v := t.(type) {
	case string:
		if pt := catalog.ParamType(v); pt.Valid() {
			return pt
		}
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && s != "null" {
				return paramType(s)
			}
		}
	}
	return catalog.TypeAny
}
