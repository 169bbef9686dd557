package parsers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spacecopilot/server/internal/agent/model"
)

// SplitPart is one fragment returned by the question splitter, before
// topic resolution.
type SplitPart struct {
	Text        string `json:"text" validate:"required"`
	Destination string `json:"destination"`
}

type splitPayload struct {
	Parts []SplitPart `json:"parts" validate:"required,min=1,dive"`
}

// ParseSplit parses the splitter output. It accepts {"parts": [...]} or a
// bare array of parts. Texts are trimmed before validation, so a blank part
// fails like a missing one. Any structural problem is an error; the caller
// applies the default route.
func ParseSplit(content string) ([]SplitPart, error) {
	var payload splitPayload
	objErr := decodeObject("split_parser", content, &payload)
	if objErr != nil || len(payload.Parts) == 0 {
		// bare array form
		var parts []SplitPart
		if err := decodeObject("split_parser", content, &parts); err == nil && len(parts) > 0 {
			payload.Parts = parts
		} else if objErr != nil {
			return nil, objErr
		}
	}
	for i := range payload.Parts {
		payload.Parts[i].Text = strings.TrimSpace(payload.Parts[i].Text)
		payload.Parts[i].Destination = strings.ToLower(strings.TrimSpace(payload.Parts[i].Destination))
	}
	if err := validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("validate split_parser: %w", err)
	}
	return payload.Parts, nil
}

// Dest maps the raw label to a Destination; unknown labels are unhandled.
func (p SplitPart) Dest() model.Destination {
	return model.ParseDestination(p.Destination)
}

type topicPayload struct {
	Topic string `json:"topic" validate:"required"`
}

// ParseTopic parses {"topic": "..."} and returns the trimmed label.
func ParseTopic(content string) (string, error) {
	var payload topicPayload
	if err := decodeAndValidate("topic_parser", content, &payload); err != nil {
		// a bare quoted label is accepted too
		var label string
		if jerr := json.Unmarshal([]byte(strings.TrimSpace(content)), &label); jerr == nil && strings.TrimSpace(label) != "" {
			return strings.TrimSpace(label), nil
		}
		return "", err
	}
	return strings.TrimSpace(payload.Topic), nil
}
