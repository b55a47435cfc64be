package domain

import (
	"encoding/json"
	"fmt"
)

// FlowElement is the smallest structural unit of a workflow: a node
// invocation, a branch, a loop, or a sequence (spec §3). It is a
// closed tagged variant built once at workflow-load time (spec §9),
// not re-parsed from raw JSON on every walk.
type FlowElement interface {
	flowElement()
}

// NodeInvocation is a single-entry `{ nodeName: configObject }` mapping.
type NodeInvocation struct {
	// ID identifies this specific call site within the workflow (used
	// to key pending pauses and node-scoped state). It defaults to
	// Name if the document does not assign one explicitly.
	ID     string
	Name   string
	Config map[string]any
}

func (NodeInvocation) flowElement() {}

// Branch is `[conditionElement, branchMap]`: run the condition, then
// route on its edge name through branchMap (spec §4.4).
type Branch struct {
	Condition FlowElement
	Map       map[string]FlowElement
}

func (Branch) flowElement() {}

// Loop is `[loopController, bodyElement]` (spec §4.4/§4.5).
type Loop struct {
	Controller NodeInvocation
	Body       FlowElement
}

func (Loop) flowElement() {}

// Sequence is an ordered list of flow elements, evaluated left to
// right; an empty sequence returns the sentinel edge "next".
type Sequence []FlowElement

func (Sequence) flowElement() {}

// Workflow is the immutable workflow definition of spec §3.
type Workflow struct {
	ID           string
	Name         string
	Description  string
	Version      string
	InitialState map[string]any
	Root         FlowElement
	Metadata     map[string]any
}

// workflowDoc mirrors the on-the-wire JSON shape before it is compiled
// into the tagged FlowElement tree.
type workflowDoc struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Version      string          `json:"version"`
	InitialState json.RawMessage `json:"initialState"`
	Nodes        json.RawMessage `json:"nodes"`
}

// reserved top-level document keys, everything else is preserved into
// Workflow.Metadata per spec §6 ("unknown keys at the top level are
// preserved in a metadata field").
var reservedDocKeys = map[string]bool{
	"id": true, "name": true, "description": true, "version": true,
	"initialState": true, "nodes": true,
}

// ParseWorkflow parses and validates a workflow document (spec §4.9 /
// §6). It compiles the raw JSON `nodes` value into a FlowElement tree
// exactly once.
func ParseWorkflow(raw []byte) (*Workflow, error) {
	var doc workflowDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, WrapError(CodeInvalidInput, "malformed workflow document", err)
	}
	if doc.ID == "" {
		return nil, NewError(CodeInvalidInput, "workflow id is required")
	}

	var rawTop map[string]any
	if err := json.Unmarshal(raw, &rawTop); err != nil {
		return nil, WrapError(CodeInvalidInput, "malformed workflow document", err)
	}
	metadata := map[string]any{}
	for k, v := range rawTop {
		if !reservedDocKeys[k] {
			metadata[k] = v
		}
	}

	var initialState map[string]any
	if len(doc.InitialState) > 0 {
		if err := json.Unmarshal(doc.InitialState, &initialState); err != nil {
			return nil, WrapError(CodeInvalidInput, "initialState must be a JSON object", err)
		}
	}
	if initialState == nil {
		initialState = map[string]any{}
	}

	root, err := parseFlowElement(doc.Nodes)
	if err != nil {
		return nil, err
	}

	wf := &Workflow{
		ID:           doc.ID,
		Name:         doc.Name,
		Description:  doc.Description,
		Version:      doc.Version,
		InitialState: initialState,
		Root:         root,
		Metadata:     metadata,
	}
	return wf, nil
}

// parseFlowElement compiles one raw JSON value into a FlowElement,
// recursing into branch maps, loop bodies, and sequences.
func parseFlowElement(raw json.RawMessage) (FlowElement, error) {
	if len(raw) == 0 {
		return Sequence{}, nil
	}

	var asArray []json.RawMessage
	if err := json.Unmarshal(raw, &asArray); err == nil {
		seq := make(Sequence, 0, len(asArray))
		for _, item := range asArray {
			el, err := parseFlowElement(item)
			if err != nil {
				return nil, err
			}
			seq = append(seq, el)
		}
		return seq, nil
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asObject); err != nil {
		return nil, WrapError(CodeInvalidInput, "flow element must be an object or array", err)
	}

	if branchRaw, ok := asObject["branch"]; ok {
		if len(asObject) != 1 {
			return nil, NewError(CodeInvalidInput, "branch element must not carry sibling keys")
		}
		return parseBranch(branchRaw)
	}
	if loopRaw, ok := asObject["loop"]; ok {
		if len(asObject) != 1 {
			return nil, NewError(CodeInvalidInput, "loop element must not carry sibling keys")
		}
		return parseLoop(loopRaw)
	}

	if len(asObject) != 1 {
		return nil, NewError(CodeInvalidInput,
			fmt.Sprintf("node invocation must have exactly one key, got %d", len(asObject)))
	}
	for name, configRaw := range asObject {
		var cfg map[string]any
		if len(configRaw) > 0 {
			if err := json.Unmarshal(configRaw, &cfg); err != nil {
				return nil, WrapError(CodeConfigInvalid, "node config must be a JSON object", err)
			}
		}
		if cfg == nil {
			cfg = map[string]any{}
		}
		id := name
		if explicit, ok := cfg["_id"].(string); ok && explicit != "" {
			id = explicit
		}
		return NodeInvocation{ID: id, Name: name, Config: cfg}, nil
	}
	panic("unreachable")
}

func parseBranch(raw json.RawMessage) (FlowElement, error) {
	var tuple []json.RawMessage
	if err := json.Unmarshal(raw, &tuple); err != nil || len(tuple) != 2 {
		return nil, NewError(CodeInvalidInput, "branch must be a [condition, branchMap] tuple")
	}
	cond, err := parseFlowElement(tuple[0])
	if err != nil {
		return nil, err
	}
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(tuple[1], &rawMap); err != nil {
		return nil, NewError(CodeInvalidInput, "branch map must be a JSON object of edge name to flow element")
	}
	branchMap := make(map[string]FlowElement, len(rawMap))
	for edge, elRaw := range rawMap {
		el, err := parseFlowElement(elRaw)
		if err != nil {
			return nil, err
		}
		branchMap[edge] = el
	}
	return Branch{Condition: cond, Map: branchMap}, nil
}

func parseLoop(raw json.RawMessage) (FlowElement, error) {
	var tuple []json.RawMessage
	if err := json.Unmarshal(raw, &tuple); err != nil || len(tuple) != 2 {
		return nil, NewError(CodeInvalidInput, "loop must be a [controller, body] tuple")
	}
	controllerEl, err := parseFlowElement(tuple[0])
	if err != nil {
		return nil, err
	}
	controller, ok := controllerEl.(NodeInvocation)
	if !ok {
		return nil, NewError(CodeInvalidInput, "loop controller must be a single node invocation")
	}
	body, err := parseFlowElement(tuple[1])
	if err != nil {
		return nil, err
	}
	return Loop{Controller: controller, Body: body}, nil
}

// Validate walks the compiled tree checking the structural invariants
// of spec §3 that require the Node Registry: every node name must
// resolve, control-kind nodes may appear only as loop controllers, and
// loop controllers must be registered as control-kind nodes. Branch-map
// coverage is not checked here; an edge with no entry and no catch-all
// fails at run time with UnroutedEdge. lookupNode is supplied by
// the caller (the registry) to avoid a dependency from domain on
// internal/registry.
func (w *Workflow) Validate(lookupNode func(name string) (kind NodeKind, alphabet []string, ok bool)) error {
	return validateElement(w.Root, lookupNode)
}

func validateElement(el FlowElement, lookup func(name string) (NodeKind, []string, bool)) error {
	switch v := el.(type) {
	case NodeInvocation:
		kind, _, ok := lookup(v.Name)
		if !ok {
			return UnknownNode(v.Name)
		}
		if kind == NodeKindControl {
			return NewError(CodeInvalidInput, fmt.Sprintf("control node %q used outside a loop position", v.Name))
		}
		return nil
	case Branch:
		if err := validateElement(v.Condition, lookup); err != nil {
			return err
		}
		for _, target := range v.Map {
			if err := validateElement(target, lookup); err != nil {
				return err
			}
		}
		return nil
	case Loop:
		kind, alphabet, ok := lookup(v.Controller.Name)
		if !ok {
			return UnknownNode(v.Controller.Name)
		}
		if kind != NodeKindControl {
			return NewError(CodeInvalidInput, fmt.Sprintf("loop controller %q must be a control node", v.Controller.Name))
		}
		if len(alphabet) == 0 {
			return NewError(CodeInvalidInput, fmt.Sprintf("loop controller %q declares no edge alphabet", v.Controller.Name))
		}
		return validateElement(v.Body, lookup)
	case Sequence:
		for _, child := range v {
			if err := validateElement(child, lookup); err != nil {
				return err
			}
		}
		return nil
	default:
		return NewError(CodeInvalidInput, "unknown flow element type")
	}
}
