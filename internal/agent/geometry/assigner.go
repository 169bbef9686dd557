package geometry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/spacecopilot/server/internal/agent/dataset"
	"github.com/spacecopilot/server/internal/agent/graph/parsers"
	"github.com/spacecopilot/server/internal/agent/graph/prompts"
	"github.com/spacecopilot/server/internal/agent/llm"
	"github.com/spacecopilot/server/internal/agent/model"
	logx "github.com/spacecopilot/server/pkg/logger"
)

const (
	// residentsPerSpace is how many of the nearest residents are consulted.
	residentsPerSpace = 5
	distanceEpsilon   = 1e-5
)

// requiredColumns must be present and non-null on a space before it can be
// assigned.
var requiredColumns = []string{"area", "type", "orientation"}

// Assigner picks the best activity for every outdoor space.
type Assigner struct {
	data        DataSource
	gen         llm.Generator
	temperature float32
}

func NewAssigner(data DataSource, gen llm.Generator, temperature float32) *Assigner {
	return &Assigner{data: data, gen: gen, temperature: temperature}
}

// AssignAll returns one assignment per space, in space order. Spaces that
// cannot be assigned carry a nil activity and the reason. Only a dataset
// failure or cancellation returns an error.
func (a *Assigner) AssignAll(ctx context.Context) ([]model.Assignment, error) {
	ctx, span := tracer.Start(ctx, "Assigner.AssignAll")
	defer span.End()

	data, err := a.data.Load(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	out := make([]model.Assignment, 0, len(data.Spaces))
	for _, space := range data.Spaces {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out = append(out, a.assign(ctx, data, space))
	}
	span.SetAttributes(attribute.Int("spaces", len(out)))
	return out, nil
}

// Assign returns the assignment of one space.
func (a *Assigner) Assign(ctx context.Context, spaceID string) (model.Assignment, error) {
	data, err := a.data.Load(ctx)
	if err != nil {
		return model.Assignment{}, err
	}
	space, ok := data.Space(spaceID)
	if !ok {
		return failedAssignment(spaceID, fmt.Sprintf("Error: no space found with id %s", spaceID)), nil
	}
	return a.assign(ctx, data, space), nil
}

func (a *Assigner) assign(ctx context.Context, data *dataset.Data, space dataset.Space) model.Assignment {
	if col, ok := missingColumn(space); ok {
		return failedAssignment(space.ID, fmt.Sprintf("Error: Missing or NaN column: %s", col))
	}
	residents := data.Distances.NearestResidents(space.ID, residentsPerSpace)
	if len(residents) == 0 {
		return failedAssignment(space.ID, fmt.Sprintf("Error: No distances found for space %s", space.ID))
	}

	summary, scores := ScoreActivities(data, space.ID, residents)
	p, err := prompts.RenderAssignment(ctx, prompts.AssignmentVars{
		SpaceID:             space.ID,
		SpaceDetails:        space.Details(),
		ThresholdPrediction: data.Threshold(space.ID),
		GreenPrediction:     data.Green(space.ID),
		UsabilityPrediction: data.Usability(space.ID),
		ResidentsSummary:    summary,
		Scores:              FormatScores(scores),
	})
	if err != nil {
		return failedAssignment(space.ID, fmt.Sprintf("Error: %v", err))
	}
	out, err := a.gen.Generate(ctx, p.System, p.User, a.temperature)
	if err != nil {
		logx.Component("assigner").Warn().Err(err).Str("space", space.ID).Msg("generation failed")
		return failedAssignment(space.ID, fmt.Sprintf("Error: %v", err))
	}
	assignment, err := parsers.ParseAssignment(space.ID, out)
	if err != nil {
		logx.Component("assigner").Warn().Err(err).Str("space", space.ID).Msg("invalid assignment output")
		return failedAssignment(space.ID, "Invalid LLM output: "+out)
	}
	return assignment
}

func failedAssignment(spaceID, reasoning string) model.Assignment {
	return model.Assignment{SpaceID: spaceID, Reasoning: reasoning}
}

func missingColumn(space dataset.Space) (string, bool) {
	for _, col := range requiredColumns {
		found := false
		for _, f := range space.Fields {
			if strings.EqualFold(f.Name, col) && f.Value != "" && f.Value != "NULL" {
				found = true
				break
			}
		}
		if !found {
			return col, true
		}
	}
	return "", false
}

// ScoreActivities weighs the votes of the given residents for spaceID by
// household size over distance. It returns the residents summary lines and
// the activity scores, highest first. Residents without a persona are
// skipped.
func ScoreActivities(data *dataset.Data, spaceID string, residents []dataset.Neighbor) (string, []dataset.ActivityWeight) {
	var lines []string
	idx := make(map[string]int)
	var scores []dataset.ActivityWeight
	for _, r := range residents {
		p, ok := data.Persona(r.Key)
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s (%d people)", r.Key, p.Persona, p.Population))
		weight := float64(p.Population) / (r.Distance + distanceEpsilon)
		for _, v := range data.SpaceVotes(spaceID) {
			if v.Resident != r.Key {
				continue
			}
			i, ok := idx[v.Activity]
			if !ok {
				i = len(scores)
				idx[v.Activity] = i
				scores = append(scores, dataset.ActivityWeight{Activity: v.Activity})
			}
			scores[i].Weight += v.Weight * weight
		}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Weight > scores[j].Weight })
	return strings.Join(lines, "\n"), scores
}

// FormatScores renders scores as "- activity: score" lines.
func FormatScores(scores []dataset.ActivityWeight) string {
	lines := make([]string, len(scores))
	for i, s := range scores {
		lines[i] = fmt.Sprintf("- %s: %.3f", s.Activity, s.Weight)
	}
	return strings.Join(lines, "\n")
}

// Rows converts assignments to assignment CSV rows. Unassigned spaces keep
// an empty activity.
func Rows(assignments []model.Assignment) []dataset.AssignmentRow {
	rows := make([]dataset.AssignmentRow, len(assignments))
	for i, a := range assignments {
		rows[i] = dataset.AssignmentRow{SpaceID: a.SpaceID, Reasoning: a.Reasoning}
		if a.Activity != nil {
			rows[i].Activity = *a.Activity
		}
	}
	return rows
}
