// Package evaluator binds the custom/vehicle-specific PID expression
// evaluator named as an external collaborator in spec §6
// ("evaluate_expression: (expr, bytes, offset) -> Option<f64>") to a
// concrete implementation.
package evaluator

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Evaluator is the collaborator interface named by spec §6.
type Evaluator interface {
	// Evaluate runs expr against the byte window bytes[offset:] and
	// returns the resulting value. The second return is false on any
	// compile or evaluation error (spec §7 ExpressionFailed: "not
	// updated, not flagged as failed").
	Evaluate(expression string, bytes []byte, offset int) (float64, bool)
}

// byteEnv exposes up to 8 bytes of the response window as named
// variables, following the A/B/C/D... convention used by custom PID
// formulas like "A*256+B".
type byteEnv struct {
	A, B, C, D, E, F, G, H float64
}

// ExprEvaluator implements Evaluator with github.com/expr-lang/expr,
// compiling each distinct expression once and caching the program:
// the scheduler calls Evaluate on a ~100ms cadence per parameter, so
// recompiling on every poll would defeat the point of caching.
type ExprEvaluator struct {
	mu    sync.Mutex
	cache map[string]*vm.Program
}

// New creates an empty ExprEvaluator.
func New() *ExprEvaluator {
	return &ExprEvaluator{cache: make(map[string]*vm.Program)}
}

func (e *ExprEvaluator) Evaluate(expression string, bytes []byte, offset int) (float64, bool) {
	program, err := e.compiled(expression)
	if err != nil {
		return 0, false
	}

	env := envFromBytes(bytes, offset)
	out, err := expr.Run(program, env)
	if err != nil {
		return 0, false
	}

	return toFloat64(out)
}

func (e *ExprEvaluator) compiled(expression string) (*vm.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.cache[expression]; ok {
		return p, nil
	}
	p, err := expr.Compile(expression, expr.Env(byteEnv{}))
	if err != nil {
		return nil, fmt.Errorf("evaluator: compile %q: %w", expression, err)
	}
	e.cache[expression] = p
	return p, nil
}

func envFromBytes(bytes []byte, offset int) byteEnv {
	var env byteEnv
	slots := []*float64{&env.A, &env.B, &env.C, &env.D, &env.E, &env.F, &env.G, &env.H}
	for i, slot := range slots {
		idx := offset + i
		if idx >= 0 && idx < len(bytes) {
			*slot = float64(bytes[idx])
		}
	}
	return env
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
