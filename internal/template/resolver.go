// Package template implements the Template Resolver: substitution of
// `{{path}}` tokens in node config against the current loop bindings
// and the execution's state document.
//
// Grounded on the teacher's TemplateProcessor
// (internal/application/executor/template.go): same compiled-regexp
// approach to finding tokens, generalized so the lookup chain walks
// loop bindings before falling back to state, per spec §4.3, and a
// miss leaves the token untouched instead of erroring.
package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// tokenPattern matches `{{expr}}`, mirroring the teacher's
// simpleVarPattern.
var tokenPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// StateGetter is the read side of the State Manager the resolver
// needs; satisfied by *state.Manager.
type StateGetter interface {
	Get(path string) (any, error)
}

// MissFunc is invoked once per unresolved token, for the caller to
// turn into a TemplateMiss event.
type MissFunc func(path string)

// Resolver resolves template tokens against a loop-binding chain and
// a state document.
type Resolver struct {
	State StateGetter
	// Bindings is the loop-local binding chain, innermost first.
	Bindings []map[string]any
	OnMiss   MissFunc
}

// Process applies template resolution recursively to the string
// leaves of value (spec §4.3): maps and slices are walked, strings are
// substituted, everything else passes through unchanged.
func (r *Resolver) Process(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return r.processString(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			resolved, err := r.Process(child)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			resolved, err := r.Process(child)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

// ProcessConfig is a convenience for the common node-config case.
func (r *Resolver) ProcessConfig(cfg map[string]any) (map[string]any, error) {
	resolved, err := r.Process(cfg)
	if err != nil {
		return nil, err
	}
	return resolved.(map[string]any), nil
}

// processString substitutes every token in s. A string that is
// exactly one token (after trimming whitespace) resolves to the raw
// value, preserving its type (a config field like `"{{count}}"`
// resolving to a JSON number, not its string form). Any other string
// is rebuilt with each resolved token formatted into the surrounding
// text; an unresolved token is left as-is.
func (r *Resolver) processString(s string) (any, error) {
	trimmed := strings.TrimSpace(s)
	if m := tokenPattern.FindStringSubmatch(trimmed); m != nil && m[0] == trimmed {
		value, ok := r.lookup(strings.TrimSpace(m[1]))
		if !ok {
			r.miss(m[1])
			return s, nil
		}
		return value, nil
	}

	result := tokenPattern.ReplaceAllStringFunc(s, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		value, ok := r.lookup(expr)
		if !ok {
			r.miss(expr)
			return match
		}
		return formatValue(value)
	})
	return result, nil
}

func (r *Resolver) miss(path string) {
	if r.OnMiss != nil {
		r.OnMiss(path)
	}
}

// lookup resolves a dotted/bracketed path against the binding chain
// (innermost first) then the state document, stripping a literal
// "state." prefix when present (spec §4.3).
func (r *Resolver) lookup(expr string) (any, bool) {
	expr = strings.TrimPrefix(expr, "state.")
	segs := parseExprPath(expr)
	if len(segs) == 0 {
		return nil, false
	}

	if !segs[0].isIndex {
		for _, binding := range r.Bindings {
			if v, ok := binding[segs[0].field]; ok {
				if len(segs) == 1 {
					return v, true
				}
				return navigate(v, segs[1:])
			}
		}
	}

	if r.State == nil {
		return nil, false
	}
	v, err := r.State.Get("$." + expr)
	if err != nil || v == nil {
		return nil, false
	}
	return v, true
}

type exprSegment struct {
	field   string
	index   int
	isIndex bool
}

// parseExprPath splits a dotted/bracketed template expression (e.g.
// "item.tags[0].name") into segments; nil on malformed input.
func parseExprPath(expr string) []exprSegment {
	var segs []exprSegment
	i, n := 0, len(expr)
	for i < n {
		switch expr[i] {
		case '.':
			i++
		case '[':
			end := strings.IndexByte(expr[i:], ']')
			if end < 0 {
				return nil
			}
			idx, err := strconv.Atoi(expr[i+1 : i+end])
			if err != nil || idx < 0 {
				return nil
			}
			segs = append(segs, exprSegment{isIndex: true, index: idx})
			i += end + 1
		default:
			start := i
			for i < n && expr[i] != '.' && expr[i] != '[' {
				i++
			}
			field := expr[start:i]
			if field == "" {
				return nil
			}
			segs = append(segs, exprSegment{field: field})
		}
	}
	if len(segs) == 0 {
		return nil
	}
	return segs
}

func navigate(root any, segs []exprSegment) (any, bool) {
	cur := root
	for _, seg := range segs {
		if seg.isIndex {
			arr, ok := cur.([]any)
			if !ok || seg.index < 0 || seg.index >= len(arr) {
				return nil, false
			}
			cur = arr[seg.index]
		} else {
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			cur, ok = obj[seg.field]
			if !ok {
				return nil, false
			}
		}
	}
	return cur, true
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
