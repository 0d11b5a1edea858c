/*
Package execute validates and invokes named operations.

Execute resolves the operation, validates and coerces the parameters against
its declared schema, runs any cross-field rules, and invokes the handle under
a timeout. Every outcome is a Result; failures carry a structured fault.Error.
The engine holds no mutable state across calls and is safe for concurrent use.
*/
package execute

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/khanglvm/toolgate/internal/catalog"
	"github.com/khanglvm/toolgate/internal/fault"
	"github.com/khanglvm/toolgate/internal/log"
)

// DefaultTimeout bounds an invocation when the request does not set one.
const DefaultTimeout = 30 * time.Second

// Request is one execution call.
type Request struct {
	Operation  string         `json:"operationName"`
	Parameters map[string]any `json:"parameters"`

	// Timeout of zero or less selects the engine default.
	Timeout time.Duration `json:"-"`
}

// Metadata describes an execution attempt.
type Metadata struct {
	Operation string        `json:"operationName"`
	Elapsed   time.Duration `json:"-"`
	ElapsedMS float64       `json:"elapsedMs"`
	Timestamp time.Time     `json:"timestamp"`
}

// Result is the outcome of Execute. Exactly one of Value and Error is meaningful.
type Result struct {
	Success  bool         `json:"success"`
	Value    any          `json:"value,omitempty"`
	Error    *fault.Error `json:"error,omitempty"`
	Metadata Metadata     `json:"metadata"`
}

// Engine executes operations from a Registry.
type Engine struct {
	registry catalog.Registry
	timeout  time.Duration
	rules    *ruleSet
	log      log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDefaultTimeout overrides DefaultTimeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine returns an Engine over reg.
func NewEngine(reg catalog.Registry, opts ...Option) (*Engine, error) {
	rules, err := newRuleSet()
	if err != nil {
		return nil, err
	}
	e := &Engine{registry: reg, timeout: DefaultTimeout, rules: rules, log: log.Default}
	for _, opt := range opts {
		opt(e)
	}
	e.log = log.OrDefault(e.log)
	return e, nil
}

// DefaultTimeout returns the timeout applied when a request sets none.
func (e *Engine) DefaultTimeout() time.Duration { return e.timeout }

// Execute runs req and always returns a Result.
func (e *Engine) Execute(ctx context.Context, req Request) Result {
	start := time.Now()
	finish := func(value any, err *fault.Error) Result {
		elapsed := time.Since(start)
		r := Result{
			Success: err == nil,
			Metadata: Metadata{
				Operation: req.Operation,
				Elapsed:   elapsed,
				ElapsedMS: float64(elapsed.Microseconds()) / 1000,
				Timestamp: start.UTC(),
			},
		}
		if err != nil {
			r.Error = err
		} else {
			r.Value = value
		}
		return r
	}

	desc, handle, ok := e.registry.Resolve(req.Operation)
	if !ok {
		return finish(nil, fault.New(fault.UnknownOperation, "unknown operation %q", req.Operation))
	}

	params, fieldErrs := Validate(desc.Parameters, req.Parameters)
	if len(fieldErrs) == 0 && len(desc.Rules) > 0 {
		fieldErrs = e.rules.check(desc.Rules, params)
	}
	if len(fieldErrs) > 0 {
		return finish(nil, fault.Invalid(fieldErrs...))
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}

	value, err := e.invoke(ctx, req.Operation, handle, params, timeout)
	return finish(value, err)
}

type outcome struct {
	value any
	err   error
}

// invoke runs handle on its own goroutine and returns as soon as it finishes
// or the deadline passes, whichever is first.
func (e *Engine) invoke(ctx context.Context, name string, h catalog.Handle, params map[string]any, timeout time.Duration) (any, *fault.Error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.log.Errorf("operation %s panicked: %v\n%s", name, r, debug.Stack())
				done <- outcome{err: fmt.Errorf("operation panicked: %v", r)}
			}
		}()
		v, err := h.Invoke(ctx, params)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			// A cooperative handle that stops on its context returns ctx.Err().
			if ctx.Err() != nil && (errors.Is(out.err, context.DeadlineExceeded) || errors.Is(out.err, context.Canceled)) {
				return nil, contextFault(ctx, name, timeout)
			}
			if fe, ok := fault.As(out.err); ok {
				return nil, fe
			}
			return nil, fault.Wrap(fault.ComputationError, out.err, "")
		}
		return out.value, nil
	case <-ctx.Done():
		if !catalog.IsCancellable(h) {
			e.log.Warnf("operation %s abandoned after %s; it may still be running", name, timeout)
		}
		return nil, contextFault(ctx, name, timeout)
	}
}

func contextFault(ctx context.Context, name string, timeout time.Duration) *fault.Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fault.Wrap(fault.ExecutionTimeout, ctx.Err(),
			fmt.Sprintf("operation %s exceeded timeout of %s", name, timeout))
	}
	return fault.Wrap(fault.ExecutionCanceled, ctx.Err(),
		fmt.Sprintf("operation %s canceled", name))
}
