package parsers

import (
	"fmt"
	"strings"

	"github.com/spacecopilot/server/internal/agent/model"
)

// ParseGeometrySuggestions parses and validates the geometry advisor
// output. Every suggestion must name exactly one known variation type.
func ParseGeometrySuggestions(content string) (*model.GeometrySuggestions, error) {
	var out model.GeometrySuggestions
	if err := decodeAndValidate("geometry_parser", content, &out); err != nil {
		return nil, err
	}
	for i := range out.Suggestions {
		out.Suggestions[i].VariationType = strings.TrimSpace(out.Suggestions[i].VariationType)
	}
	return &out, nil
}

type assignmentPayload struct {
	Parameters struct {
		ID       string `json:"id"`
		Activity string `json:"activity" validate:"required"`
	} `json:"parameters"`
	Reasoning string `json:"reasoning"`
}

// ParseAssignment parses {"parameters": {"id", "activity"}, "reasoning"}
// for spaceID. The id in the payload is ignored in favour of spaceID.
func ParseAssignment(spaceID, content string) (model.Assignment, error) {
	var payload assignmentPayload
	if err := decodeAndValidate("assignment_parser", content, &payload); err != nil {
		return model.Assignment{}, err
	}
	activity := strings.TrimSpace(payload.Parameters.Activity)
	if activity == "" {
		return model.Assignment{}, fmt.Errorf("assignment_parser: empty activity")
	}
	return model.Assignment{
		SpaceID:   spaceID,
		Activity:  &activity,
		Reasoning: strings.TrimSpace(payload.Reasoning),
	}, nil
}
