/*
Package catalog defines operation descriptors and the registries that supply them.

A Descriptor is the neutral, searchable description of one callable operation.
A Registry lists descriptors and resolves a name to its descriptor and an
invocable Handle. Registries are statically declared; nothing here inspects
function signatures at runtime.
*/
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ParamType is the declared type of a parameter.
type ParamType string

const (
	TypeNumber  ParamType = "number"
	TypeInteger ParamType = "integer"
	TypeString  ParamType = "string"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
	TypeAny     ParamType = "any"
)

// Valid reports whether t is a known type.
func (t ParamType) Valid() bool {
	switch t {
	case TypeNumber, TypeInteger, TypeString, TypeBoolean, TypeArray, TypeObject, TypeAny:
		return true
	}
	return false
}

// Constraints restrict the values a parameter accepts. Nil fields are unset.
type Constraints struct {
	Minimum          *float64 `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum          *float64 `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	ExclusiveMinimum *float64 `json:"exclusiveMinimum,omitempty" yaml:"exclusiveMinimum,omitempty"`
	NotZero          bool     `json:"notZero,omitempty" yaml:"notZero,omitempty"`

	// Length bounds apply to strings (in runes) and arrays (in elements).
	MinLength *int `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength *int `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Length    *int `json:"length,omitempty" yaml:"length,omitempty"`

	// Items is the element type of an array parameter.
	Items ParamType `json:"items,omitempty" yaml:"items,omitempty"`

	Enum []string `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// Parameter describes one named input of an operation.
type Parameter struct {
	Name        string      `json:"name" yaml:"name"`
	Type        ParamType   `json:"type" yaml:"type"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool        `json:"required" yaml:"required"`
	Default     any         `json:"default,omitempty" yaml:"default,omitempty"`
	Constraints Constraints `json:"constraints,omitzero" yaml:"constraints,omitempty"`
}

// Schema is the ordered parameter list of an operation.
type Schema []Parameter

// Lookup returns the parameter with the given name.
func (s Schema) Lookup(name string) (Parameter, bool) {
	for _, p := range s {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Names returns parameter names in declaration order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.Name
	}
	return out
}

// Required returns the names of required parameters in declaration order.
func (s Schema) Required() []string {
	var out []string
	for _, p := range s {
		if p.Required {
			out = append(out, p.Name)
		}
	}
	return out
}

// Example is a worked input/output pair shown to callers.
type Example struct {
	Input  string `json:"input" yaml:"input"`
	Output string `json:"output" yaml:"output"`
}

func (e Example) String() string {
	if e.Output == "" {
		return e.Input
	}
	return e.Input + " -> " + e.Output
}

// Rule is a cross-field assertion over the validated parameters, written in CEL
// against the variable `params`. A false result rejects the request with
// Message attributed to Field.
type Rule struct {
	Expr    string `json:"expr" yaml:"expr"`
	Field   string `json:"field" yaml:"field"`
	Message string `json:"message" yaml:"message"`
}

// Descriptor is the searchable description of one operation.
type Descriptor struct {
	Name        string    `json:"name" yaml:"name"`
	Category    string    `json:"category" yaml:"category"`
	Description string    `json:"description" yaml:"description"`
	Parameters  Schema    `json:"parameters" yaml:"parameters"`
	Examples    []Example `json:"examples,omitempty" yaml:"examples,omitempty"`
	Keywords    []string  `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Rules       []Rule    `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// ErrInvalidDescriptor is returned by Descriptor.Validate.
var ErrInvalidDescriptor = errors.New("invalid descriptor")

// Validate checks the descriptor is usable for indexing: a name, a
// non-empty description, and well-formed, uniquely named parameters.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidDescriptor)
	}
	if strings.TrimSpace(d.Description) == "" {
		return fmt.Errorf("%w: %s has an empty description", ErrInvalidDescriptor, d.Name)
	}
	seen := make(map[string]bool, len(d.Parameters))
	for _, p := range d.Parameters {
		if p.Name == "" {
			return fmt.Errorf("%w: %s has an unnamed parameter", ErrInvalidDescriptor, d.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: %s declares parameter %q twice", ErrInvalidDescriptor, d.Name, p.Name)
		}
		seen[p.Name] = true
		if !p.Type.Valid() {
			return fmt.Errorf("%w: %s parameter %q has unknown type %q", ErrInvalidDescriptor, d.Name, p.Name, p.Type)
		}
	}
	return nil
}

// Float returns a pointer to v, for building Constraints literals.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v, for building Constraints literals.
func Int(v int) *int { return &v }
