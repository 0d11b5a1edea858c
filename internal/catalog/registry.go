package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Handle invokes an operation with validated parameters.
type Handle interface {
	Invoke(ctx context.Context, params map[string]any) (any, error)
}

// HandlerFunc adapts a function to Handle.
type HandlerFunc func(ctx context.Context, params map[string]any) (any, error)

// Invoke calls f.
func (f HandlerFunc) Invoke(ctx context.Context, params map[string]any) (any, error) {
	return f(ctx, params)
}

// Cancellable is implemented by handles that stop work when their context ends.
// A handle that does not implement it is assumed to run to completion even
// after the caller has given up on it.
type Cancellable interface {
	Cancellable() bool
}

type cooperative struct {
	HandlerFunc
}

func (cooperative) Cancellable() bool { return true }

// Cooperative marks fn as honoring context cancellation.
func Cooperative(fn HandlerFunc) Handle {
	return cooperative{fn}
}

// IsCancellable reports whether h declares it honors cancellation.
func IsCancellable(h Handle) bool {
	c, ok := h.(Cancellable)
	return ok && c.Cancellable()
}

// Registry supplies operation descriptors and resolves names to handles.
type Registry interface {
	// List returns every descriptor the registry exposes.
	List(ctx context.Context) ([]Descriptor, error)

	// Resolve returns the descriptor and handle for name.
	Resolve(name string) (Descriptor, Handle, bool)
}

// ErrDuplicateOperation is returned when two operations share a name.
var ErrDuplicateOperation = errors.New("duplicate operation name")

type entry struct {
	desc   Descriptor
	handle Handle
}

// StaticRegistry is an in-memory Registry populated by Register.
// List preserves registration order.
type StaticRegistry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]entry
}

// NewStaticRegistry returns an empty registry.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{entries: make(map[string]entry)}
}

// Register adds an operation. Empty names, nil handles and duplicate names
// are rejected; an existing entry is never overwritten.
func (r *StaticRegistry) Register(d Descriptor, h Handle) error {
	if d.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidDescriptor)
	}
	if h == nil {
		return fmt.Errorf("%w: %s has no handle", ErrInvalidDescriptor, d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateOperation, d.Name)
	}
	r.entries[d.Name] = entry{desc: d, handle: h}
	r.order = append(r.order, d.Name)
	return nil
}

// MustRegister is Register that panics on error, for static catalogs.
func (r *StaticRegistry) MustRegister(d Descriptor, h Handle) {
	if err := r.Register(d, h); err != nil {
		panic(err)
	}
}

// List returns descriptors in registration order.
func (r *StaticRegistry) List(_ context.Context) ([]Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].desc)
	}
	return out, nil
}

// Resolve looks up an operation by exact name.
func (r *StaticRegistry) Resolve(name string) (Descriptor, Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return Descriptor{}, nil, false
	}
	return e.desc, e.handle, true
}

// Len returns the number of registered operations.
func (r *StaticRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Composite merges several registries. The first member that resolves a name wins,
// but List fails if any name is exposed by more than one member.
type Composite struct {
	members []Registry
}

// Compose returns a registry over members, skipping nils.
func Compose(members ...Registry) *Composite {
	c := &Composite{}
	for _, m := range members {
		if m != nil {
			c.members = append(c.members, m)
		}
	}
	return c
}

// List concatenates member listings in order.
func (c *Composite) List(ctx context.Context) ([]Descriptor, error) {
	var out []Descriptor
	seen := make(map[string]bool)
	for _, m := range c.members {
		descs, err := m.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, d := range descs {
			if strings.TrimSpace(d.Name) != "" {
				if seen[d.Name] {
					return nil, fmt.Errorf("%w: %s", ErrDuplicateOperation, d.Name)
				}
				seen[d.Name] = true
			}
			out = append(out, d)
		}
	}
	return out, nil
}

// Resolve asks each member in order.
func (c *Composite) Resolve(name string) (Descriptor, Handle, bool) {
	for _, m := range c.members {
		if d, h, ok := m.Resolve(name); ok {
			return d, h, true
		}
	}
	return Descriptor{}, nil, false
}

// DuplicateNames returns names appearing more than once in descs, in first-seen
// order. Unnamed descriptors are malformed, not duplicates, and are ignored.
func DuplicateNames(descs []Descriptor) []string {
	counts := make(map[string]int, len(descs))
	var dups []string
	for _, d := range descs {
		if strings.TrimSpace(d.Name) == "" {
			continue
		}
		counts[d.Name]++
		if counts[d.Name] == 2 {
			dups = append(dups, d.Name)
		}
	}
	return dups
}

// DomainError reports an input that is well-typed but outside the operation's
// domain, such as division by zero.
type DomainError struct {
	Operation string
	Message   string
	Err       error
}

func (e *DomainError) Error() string {
	if e.Operation == "" {
		return e.Message
	}
	return e.Operation + ": " + e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError returns a DomainError for op.
func NewDomainError(op, format string, args ...any) *DomainError {
	return &DomainError{Operation: op, Message: fmt.Sprintf(format, args...)}
}
