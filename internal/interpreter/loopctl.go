package interpreter

import (
	"context"
	"fmt"

	"github.com/flowscript-dev/flowscript/internal/domain"
	"github.com/flowscript-dev/flowscript/internal/flowcond"
	"github.com/flowscript-dev/flowscript/internal/registry"
)

// RegisterLoopControllers registers the two canonical loop controllers
// required by spec §4.5: whileCondition and forEach.
func RegisterLoopControllers(reg *registry.Registry, evaluator *flowcond.Evaluator) error {
	if err := reg.Register(whileConditionDescriptor(evaluator)); err != nil {
		return err
	}
	return reg.Register(forEachDescriptor())
}

// whileConditionDescriptor builds the `{condition: path|predicate}`
// controller: emits "continue" while its condition is truthy, "exit"
// otherwise. It carries no bindings into the loop body.
func whileConditionDescriptor(evaluator *flowcond.Evaluator) domain.NodeDescriptor {
	return domain.NodeDescriptor{
		Name:         "whileCondition",
		Kind:         domain.NodeKindControl,
		ConfigKeys:   []string{"condition"},
		RequiredKeys: []string{"condition"},
		Alphabet:     []string{domain.EdgeContinue, domain.EdgeExit},
		Execute: func(ctx context.Context, call domain.Executable) (domain.Edge, error) {
			condition, ok := call.Config()["condition"].(string)
			if !ok {
				return domain.Edge{}, domain.ConfigInvalid(call.NodeID(), "condition", "condition must be a string")
			}

			vars := evalVars(call)
			truthy, err := evaluator.Evaluate(condition, vars)
			if err != nil {
				return domain.Edge{}, err
			}
			if truthy {
				return domain.NewEdge(domain.EdgeContinue), nil
			}
			return domain.NewEdge(domain.EdgeExit), nil
		},
	}
}

// forEachDescriptor builds the `{items, as}` controller: emits "next"
// while items remain (binding `as` to the current item and `as +
// "Index"` to its index), "exit" when exhausted.
func forEachDescriptor() domain.NodeDescriptor {
	return domain.NodeDescriptor{
		Name:         "forEach",
		Kind:         domain.NodeKindControl,
		ConfigKeys:   []string{"items", "as"},
		RequiredKeys: []string{"items", "as"},
		Alphabet:     []string{"next", domain.EdgeExit},
		Execute: func(ctx context.Context, call domain.Executable) (domain.Edge, error) {
			as, ok := call.Config()["as"].(string)
			if !ok || as == "" {
				return domain.Edge{}, domain.ConfigInvalid(call.NodeID(), "as", "as must be a non-empty string")
			}

			scratch := call.Scratch()
			items, ok := scratch["items"].([]any)
			if !ok {
				resolved, err := resolveItems(call)
				if err != nil {
					return domain.Edge{}, err
				}
				items = resolved
				scratch["items"] = items
				scratch["i"] = 0
			}
			i, _ := scratch["i"].(int)

			if i >= len(items) {
				return domain.NewEdge(domain.EdgeExit), nil
			}
			item := items[i]
			scratch["i"] = i + 1

			bindings := map[string]any{as: item, as + "Index": i}
			return domain.NewEdgeWithData("next", func() any { return bindings }), nil
		},
	}
}

// resolveItems reads forEach's `items` config, which templating has
// already resolved to either a literal array or (if the template was
// a whole-token reference to a non-array) left as some other value.
func resolveItems(call domain.Executable) ([]any, error) {
	raw := call.Config()["items"]
	switch v := raw.(type) {
	case []any:
		return v, nil
	case nil:
		return nil, domain.ConfigInvalid(call.NodeID(), "items", "items resolved to no value")
	default:
		return nil, domain.ConfigInvalid(call.NodeID(), "items",
			fmt.Sprintf("items must resolve to an array, got %T", v))
	}
}

// evalVars assembles the variable environment a whileCondition
// predicate runs against: its loop bindings flattened with the
// innermost frame taking precedence, plus the state snapshot under
// "state" so a condition can write e.g. "state.counter < 10".
func evalVars(call domain.Executable) map[string]any {
	vars := map[string]any{}
	bindings := call.Bindings()
	for i := len(bindings) - 1; i >= 0; i-- {
		for k, v := range bindings[i] {
			vars[k] = v
		}
	}
	if snap, err := call.State().Get("$"); err == nil {
		vars["state"] = snap
	}
	return vars
}
