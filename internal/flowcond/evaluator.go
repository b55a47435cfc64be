// Package flowcond evaluates the boolean predicates loop controllers
// use (whileCondition's `condition` config), grounded on the
// teacher's ConditionEvaluator (internal/application/executor/conditions.go):
// same compiled-program cache over github.com/expr-lang/expr, trimmed
// to what the loop controllers need.
package flowcond

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/flowscript-dev/flowscript/internal/domain"
)

// Evaluator compiles and runs condition expressions against a
// variable environment, caching compiled programs by source text.
type Evaluator struct {
	mu       sync.RWMutex
	compiled map[string]*vm.Program
}

// NewEvaluator builds an Evaluator with an empty compile cache.
func NewEvaluator() *Evaluator {
	return &Evaluator{compiled: make(map[string]*vm.Program)}
}

// Evaluate runs condition against vars and requires a boolean result.
// condition may be a bare path-like identifier ("i", "items.done") —
// evaluated for truthiness — or a full expr-lang predicate
// ("i < limit && !cancelled"); expr-lang treats both uniformly, so
// whileCondition's `path|predicate` config accepts either without the
// evaluator needing to distinguish them (spec §4.5).
func (e *Evaluator) Evaluate(condition string, vars map[string]any) (bool, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return false, domain.NewError(domain.CodeConfigInvalid, "condition must not be empty")
	}

	program, err := e.compile(condition)
	if err != nil {
		return false, err
	}

	result, err := expr.Run(program, vars)
	if err != nil {
		if isUndefinedVariable(err.Error()) {
			return false, nil
		}
		return false, domain.WrapError(domain.CodeConfigInvalid,
			fmt.Sprintf("failed to evaluate condition %q", condition), err)
	}

	b, ok := result.(bool)
	if !ok {
		return false, domain.NewError(domain.CodeConfigInvalid,
			fmt.Sprintf("condition %q did not evaluate to a boolean, got %T", condition, result))
	}
	return b, nil
}

func (e *Evaluator) compile(condition string) (*vm.Program, error) {
	e.mu.RLock()
	program, ok := e.compiled[condition]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := expr.Compile(condition, expr.Env(map[string]any{}), expr.AsBool())
	if err != nil {
		program, err = expr.Compile(condition, expr.AsBool())
		if err != nil {
			return nil, domain.WrapError(domain.CodeConfigInvalid,
				fmt.Sprintf("failed to compile condition %q", condition), err)
		}
	}

	e.mu.Lock()
	e.compiled[condition] = program
	e.mu.Unlock()
	return program, nil
}

// isUndefinedVariable treats a reference to a not-yet-bound variable
// as a graceful false rather than an error, matching the teacher's
// handleEvaluationError classification.
func isUndefinedVariable(msg string) bool {
	msg = strings.ToLower(msg)
	for _, pattern := range []string{"cannot fetch", "undefined", "unknown name", "nil pointer", "not found"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
