package execute

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/khanglvm/toolgate/internal/catalog"
	"github.com/khanglvm/toolgate/internal/fault"
)

// ruleSet compiles catalog.Rule expressions once and caches the programs.
type ruleSet struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

func newRuleSet() (*ruleSet, error) {
	env, err := cel.NewEnv(
		cel.Variable("params", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rule environment: %w", err)
	}
	return &ruleSet{env: env, programs: make(map[string]cel.Program)}, nil
}

func (r *ruleSet) program(expr string) (cel.Program, error) {
	r.mu.RLock()
	prg, ok := r.programs[expr]
	r.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := r.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("rule compile error: %w", issues.Err())
	}
	prg, err := r.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("rule program build error: %w", err)
	}

	r.mu.Lock()
	r.programs[expr] = prg
	r.mu.Unlock()
	return prg, nil
}

// check evaluates every rule and returns one FieldError per failing rule.
// A rule that does not compile or evaluate to a boolean fails closed.
func (r *ruleSet) check(rules []catalog.Rule, params map[string]any) []fault.FieldError {
	var errs []fault.FieldError
	for _, rule := range rules {
		ok, err := r.eval(rule.Expr, params)
		if err != nil {
			errs = append(errs, fault.FieldError{Field: ruleField(rule), Reason: err.Error()})
			continue
		}
		if !ok {
			msg := rule.Message
			if msg == "" {
				msg = "violates " + rule.Expr
			}
			errs = append(errs, fault.FieldError{Field: ruleField(rule), Reason: msg})
		}
	}
	return errs
}

func (r *ruleSet) eval(expr string, params map[string]any) (bool, error) {
	prg, err := r.program(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]any{"params": params})
	if err != nil {
		return false, fmt.Errorf("rule eval error: %w", err)
	}
	return asBool(out)
}

func asBool(v ref.Val) (bool, error) {
	b, ok := v.(types.Bool)
	if !ok {
		return false, fmt.Errorf("rule returned %s, want bool", v.Type().TypeName())
	}
	return bool(b), nil
}

func ruleField(r catalog.Rule) string {
	if r.Field == "" {
		return "parameters"
	}
	return r.Field
}
