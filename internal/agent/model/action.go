package model

import (
	"fmt"
	"sort"
	"strings"
)

// Params is a read-only view over the parameters of an action request.
// Handlers can read values but never mutate the request they were given.
type Params struct {
	m map[string]any
}

// NewParams copies m so later changes by the caller are not visible.
func NewParams(m map[string]any) Params {
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Params{m: cp}
}

// Get returns the raw value for key.
func (p Params) Get(key string) (any, bool) {
	v, ok := p.m[key]
	return v, ok
}

// String returns the value for key as trimmed text, or "" when absent or empty.
// Numbers are formatted; sequences and objects are not strings.
func (p Params) String(key string) string {
	v, ok := p.m[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64, int, int64, bool:
		return fmt.Sprint(t)
	default:
		return ""
	}
}

// FirstString returns the first non-empty String among keys.
func (p Params) FirstString(keys ...string) string {
	for _, k := range keys {
		if s := p.String(k); s != "" {
			return s
		}
	}
	return ""
}

// Strings returns the value for key as a list of strings. A single scalar
// becomes a one-element list.
func (p Params) Strings(key string) []string {
	v, ok := p.m[key]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" && item != nil {
				out = append(out, s)
			}
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		if s := p.String(key); s != "" {
			return []string{s}
		}
		return nil
	}
}

// Len returns the number of parameters.
func (p Params) Len() int {
	return len(p.m)
}

// Map returns a copy of the underlying parameters.
func (p Params) Map() map[string]any {
	cp := make(map[string]any, len(p.m))
	for k, v := range p.m {
		cp[k] = v
	}
	return cp
}

// Format renders the parameters as sorted key=value pairs.
func (p Params) Format() string {
	keys := make([]string, 0, len(p.m))
	for k := range p.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, p.m[k]))
	}
	return strings.Join(parts, ", ")
}

// ActionKind is the closed set of shapes an untrusted action payload can take.
type ActionKind int

const (
	// ActionNone parsed as JSON but named no action.
	ActionNone ActionKind = iota
	// ActionSingle carried an "action" key.
	ActionSingle
	// ActionMulti carried an "actions" list.
	ActionMulti
	// ActionUnparseable could not be parsed at all.
	ActionUnparseable
)

func (k ActionKind) String() string {
	switch k {
	case ActionSingle:
		return "single"
	case ActionMulti:
		return "multi"
	case ActionUnparseable:
		return "unparseable"
	default:
		return "none"
	}
}

// ActionRequest is the validated form of a model-produced action payload.
type ActionRequest struct {
	Kind       ActionKind
	Actions    []string
	Parameters Params
	Reasoning  string
	// Raw keeps a truncated copy of the original text for unparseable payloads.
	Raw string
}

// Action returns the single action name, or "" for other kinds.
func (r ActionRequest) Action() string {
	if r.Kind == ActionSingle && len(r.Actions) == 1 {
		return r.Actions[0]
	}
	return ""
}

func SingleAction(name string, params Params, reasoning string) ActionRequest {
	return ActionRequest{Kind: ActionSingle, Actions: []string{name}, Parameters: params, Reasoning: reasoning}
}

func MultiAction(names []string, params Params, reasoning string) ActionRequest {
	cp := make([]string, len(names))
	copy(cp, names)
	return ActionRequest{Kind: ActionMulti, Actions: cp, Parameters: params, Reasoning: reasoning}
}

func UnparseableAction(raw string) ActionRequest {
	return ActionRequest{Kind: ActionUnparseable, Parameters: NewParams(nil), Raw: raw}
}

// ActionResult is the outcome of one handler invocation.
type ActionResult struct {
	Action string
	Result string
	Params Params
	Error  string
	// Data carries structured output some handlers add beside the text.
	Data any
}

// Failed reports whether the handler returned an error-shaped result.
func (r ActionResult) Failed() bool {
	return r.Error != ""
}

// Text is the result line shown to the resident.
func (r ActionResult) Text() string {
	if r.Failed() {
		return r.Error
	}
	return r.Result
}

// Dispatch holds the results of one dispatch in input order. A dispatch that
// processed exactly one action is single; callers must branch on Single.
type Dispatch struct {
	Results []ActionResult
}

// Single returns the only result when exactly one action was processed.
func (d Dispatch) Single() (ActionResult, bool) {
	if len(d.Results) == 1 {
		return d.Results[0], true
	}
	return ActionResult{}, false
}

// Text joins result lines in order.
func (d Dispatch) Text() string {
	if r, ok := d.Single(); ok {
		return r.Text()
	}
	lines := make([]string, 0, len(d.Results))
	for _, r := range d.Results {
		lines = append(lines, fmt.Sprintf("- %s: %s", r.Action, r.Text()))
	}
	return strings.Join(lines, "\n")
}
