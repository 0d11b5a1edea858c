package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Overlay is an offline-authored catalog file that enriches descriptors
// without touching operation code. Keys are operation names.
//
//	operations:
//	  add:
//	    keywords: [sum, plus]
//	    examples:
//	      - input: "add 2 and 3"
//	        output: "5"
type Overlay struct {
	Operations map[string]OverlayEntry `yaml:"operations"`
}

// OverlayEntry holds the fields an overlay may set. Description and Category
// replace the registry's value when non-empty; Keywords and Examples append.
type OverlayEntry struct {
	Description string    `yaml:"description,omitempty"`
	Category    string    `yaml:"category,omitempty"`
	Keywords    []string  `yaml:"keywords,omitempty"`
	Examples    []Example `yaml:"examples,omitempty"`
	Rules       []Rule    `yaml:"rules,omitempty"`
}

// LoadOverlay reads an overlay from a YAML file.
func LoadOverlay(path string) (*Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog overlay: %w", err)
	}
	return ParseOverlay(data)
}

// ParseOverlay decodes overlay YAML. Unknown keys are rejected.
func ParseOverlay(data []byte) (*Overlay, error) {
	var ov Overlay
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ov); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse catalog overlay: %w", err)
	}
	if ov.Operations == nil {
		ov.Operations = map[string]OverlayEntry{}
	}
	return &ov, nil
}

// Apply returns d with the overlay entry for d.Name merged in.
func (o *Overlay) Apply(d Descriptor) Descriptor {
	if o == nil {
		return d
	}
	e, ok := o.Operations[d.Name]
	if !ok {
		return d
	}
	if e.Description != "" {
		d.Description = e.Description
	}
	if e.Category != "" {
		d.Category = e.Category
	}
	if len(e.Keywords) > 0 {
		d.Keywords = appendUnique(append([]string(nil), d.Keywords...), e.Keywords...)
	}
	if len(e.Examples) > 0 {
		d.Examples = append(append([]Example(nil), d.Examples...), e.Examples...)
	}
	if len(e.Rules) > 0 {
		d.Rules = append(append([]Rule(nil), d.Rules...), e.Rules...)
	}
	return d
}

// Unmatched returns overlay keys that name no descriptor in descs.
func (o *Overlay) Unmatched(descs []Descriptor) []string {
	if o == nil {
		return nil
	}
	names := make(map[string]bool, len(descs))
	for _, d := range descs {
		names[d.Name] = true
	}
	var out []string
	for name := range o.Operations {
		if !names[name] {
			out = append(out, name)
		}
	}
	return out
}

type overlayRegistry struct {
	base    Registry
	overlay *Overlay
}

// WithOverlay returns a Registry view of base with ov applied to every descriptor.
func WithOverlay(base Registry, ov *Overlay) Registry {
	if ov == nil {
		return base
	}
	return &overlayRegistry{base: base, overlay: ov}
}

func (r *overlayRegistry) List(ctx context.Context) ([]Descriptor, error) {
	descs, err := r.base.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Descriptor, len(descs))
	for i, d := range descs {
		out[i] = r.overlay.Apply(d)
	}
	return out, nil
}

func (r *overlayRegistry) Resolve(name string) (Descriptor, Handle, bool) {
	d, h, ok := r.base.Resolve(name)
	if !ok {
		return Descriptor{}, nil, false
	}
	return r.overlay.Apply(d), h, true
}

func appendUnique(dst []string, items ...string) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range items {
		if !seen[s] {
			seen[s] = true
			dst = append(dst, s)
		}
	}
	return dst
}
