package parsers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spacecopilot/server/internal/agent/model"
	errx "github.com/spacecopilot/server/internal/core/error"
	logx "github.com/spacecopilot/server/pkg/logger"
)

// reserved top-level keys that never count as parameters
var reservedKeys = map[string]struct{}{
	"action":    {},
	"actions":   {},
	"reasoning": {},
}

// ParseActionRequest converts a model-produced action payload into one of
// the closed ActionRequest variants. It never fails: anything that is not a
// JSON object becomes the unparseable variant.
//
// Parameters come from the "parameters" object when present, otherwise from
// every top-level key except action, actions and reasoning.
func ParseActionRequest(content string) (req model.ActionRequest) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			err := errx.New(fmt.Errorf("action parser panic: %v", r), http.StatusInternalServerError, errx.SystemErrorMessage)
			logx.Component("action_parser").Error().Err(err).Msg("panic recovered")
			req = model.UnparseableAction(safeSnippet(content))
		}
	}()

	var obj map[string]any
	if err := decodeObject("action_parser", content, &obj); err != nil || obj == nil {
		logx.Component("action_parser").Warn().
			Str("snippet", safeSnippet(content)).
			AnErr("reason", err).
			Msg("unparseable action payload")
		return model.UnparseableAction(safeSnippet(content))
	}

	params := extractParams(obj)
	reasoning := extractReasoning(obj)

	if raw, ok := obj["action"]; ok {
		name := scalarString(raw)
		if name == "" {
			return model.ActionRequest{Kind: model.ActionNone, Parameters: params, Reasoning: reasoning}
		}
		return model.SingleAction(name, params, reasoning)
	}
	if raw, ok := obj["actions"]; ok {
		return model.MultiAction(actionNames(raw), params, reasoning)
	}
	return model.ActionRequest{Kind: model.ActionNone, Parameters: params, Reasoning: reasoning}
}

func extractParams(obj map[string]any) model.Params {
	if p, ok := obj["parameters"].(map[string]any); ok {
		return model.NewParams(p)
	}
	m := make(map[string]any, len(obj))
	for k, v := range obj {
		if _, skip := reservedKeys[k]; skip || k == "parameters" {
			continue
		}
		m[k] = v
	}
	return model.NewParams(m)
}

func extractReasoning(obj map[string]any) string {
	if s, ok := obj["reasoning"].(string); ok {
		return strings.TrimSpace(s)
	}
	if p, ok := obj["parameters"].(map[string]any); ok {
		if s, ok := p["reasoning"].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// actionNames accepts a list of names or a single name.
func actionNames(raw any) []string {
	switch t := raw.(type) {
	case []any:
		names := make([]string, 0, len(t))
		for _, item := range t {
			if s := scalarString(item); s != "" {
				names = append(names, s)
			}
		}
		return names
	default:
		if s := scalarString(t); s != "" {
			return []string{s}
		}
		return nil
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case nil:
		return ""
	case map[string]any, []any:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
