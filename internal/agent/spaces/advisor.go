// Package spaces answers a resident's questions about the outdoor spaces
// near their home.
package spaces

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/spacecopilot/server/internal/agent/dataset"
	"github.com/spacecopilot/server/internal/agent/graph/prompts"
	"github.com/spacecopilot/server/internal/agent/llm"
	errx "github.com/spacecopilot/server/internal/core/error"
	logx "github.com/spacecopilot/server/pkg/logger"
)

var tracer = otel.Tracer("spacecopilot.agent.spaces")

const (
	DefaultTemperature = 0.7
	unknown            = "Unknown"

	MissingInput = "Missing 'house_key' or 'question' in request."
)

var (
	explainPattern = regexp.MustCompile(`(?i)\b(why|reason)\b.*\b(o\d+)\b`)
	nearestPattern = regexp.MustCompile(`(?i)(closest|nearest|nearby).*outdoor|outdoor.*(spaces|areas).*on my floor`)
)

// DataSource serves the current building data.
type DataSource interface {
	Load(ctx context.Context) (*dataset.Data, error)
}

// Advisor answers nearby-space questions. Explanation and listing questions
// are recognised by pattern before the general prompt is used.
type Advisor struct {
	data        DataSource
	gen         llm.Generator
	temperature float32
}

func NewAdvisor(data DataSource, gen llm.Generator, temperature float32) *Advisor {
	return &Advisor{data: data, gen: gen, temperature: temperature}
}

// Answer never fails; problems become apology text.
func (a *Advisor) Answer(ctx context.Context, houseKey, question string) string {
	ctx, span := tracer.Start(ctx, "Advisor.Answer")
	defer span.End()

	houseKey = strings.TrimSpace(houseKey)
	if houseKey == "" || strings.TrimSpace(question) == "" {
		return MissingInput
	}

	data, err := a.data.Load(ctx)
	if err != nil {
		span.RecordError(err)
		logx.Component("spaces").Error().Err(err).Msg("dataset load failed")
		return errx.UserMessage(err)
	}
	if !data.Distances.HasResident(houseKey) {
		return fmt.Sprintf("No distances found for house key %s.", houseKey)
	}

	switch {
	case explainPattern.MatchString(question):
		spaceID := strings.ToUpper(explainPattern.FindStringSubmatch(question)[2])
		span.SetAttributes(attribute.String("stage", "explain"), attribute.String("space", spaceID))
		return a.explain(ctx, data, houseKey, spaceID, question)
	case nearestPattern.MatchString(question):
		span.SetAttributes(attribute.String("stage", "nearest"))
		return Nearest(data, houseKey)
	default:
		span.SetAttributes(attribute.String("stage", "general"))
		return a.general(ctx, data, houseKey, question)
	}
}

func (a *Advisor) explain(ctx context.Context, data *dataset.Data, houseKey, spaceID, question string) string {
	space, ok := data.Space(spaceID)
	if !ok {
		return fmt.Sprintf("No space found with id %s.", spaceID)
	}
	assigned, ok := data.Assignment(spaceID)
	if !ok {
		assigned = unknown
	}
	vars := prompts.SpaceExplainVars{
		SpaceID:             spaceID,
		AssignedActivity:    assigned,
		SpaceDetails:        space.Details(),
		ThresholdPrediction: data.Threshold(spaceID),
		GreenPrediction:     data.Green(spaceID),
		UsabilityPrediction: data.Usability(spaceID),
		VotingSummary:       orNone(dataset.FormatAggregate(data.TopActivities(spaceID, dataset.NearbyTopActivities))),
		ResidentVotes:       orNone(dataset.FormatOwnVotes(data.ResidentVotes(spaceID, houseKey))),
		Reasoning:           orNone(data.AssignmentReasoning(spaceID)),
	}
	p, err := prompts.RenderSpaceExplain(ctx, vars, question)
	if err != nil {
		logx.Component("spaces").Error().Err(err).Msg("prompt render failed")
		return errx.ApologyGeneric
	}
	return a.generate(ctx, p)
}

// Nearest lists the spaces closest to houseKey with their assigned
// activity.
func Nearest(data *dataset.Data, houseKey string) string {
	lines := []string{"Nearest outdoor spaces:"}
	for _, n := range data.Distances.NearestSpaces(houseKey, dataset.NearbySpaces) {
		assigned, ok := data.Assignment(n.Key)
		if !ok {
			assigned = unknown
		}
		lines = append(lines, fmt.Sprintf("- %s (%s): %.1fm away", n.Key, assigned, n.Distance))
	}
	return strings.Join(lines, "\n")
}

// NearbySummary describes the spaces closest to houseKey: distance,
// assigned activity, the top voted activities of all residents and the
// resident's own votes.
func NearbySummary(data *dataset.Data, houseKey string) string {
	var lines []string
	for _, n := range data.Distances.NearestSpaces(houseKey, dataset.NearbySpaces) {
		assigned, ok := data.Assignment(n.Key)
		if !ok {
			assigned = unknown
		}
		lines = append(lines, fmt.Sprintf("- %s (%s), %.1fm away. Voting (all): %s. Your votes: %s.",
			n.Key, assigned, n.Distance,
			orNone(dataset.FormatAggregate(data.TopActivities(n.Key, dataset.NearbyTopActivities))),
			orNone(dataset.FormatOwnVotes(data.ResidentVotes(n.Key, houseKey))),
		))
	}
	return strings.Join(lines, "\n")
}

// AllAssignments lists every space with its assigned activity.
func AllAssignments(data *dataset.Data) string {
	lines := make([]string, 0, len(data.Spaces))
	for _, s := range data.Spaces {
		assigned, ok := data.Assignment(s.ID)
		if !ok {
			assigned = unknown
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", s.ID, assigned))
	}
	return strings.Join(lines, "\n")
}

func (a *Advisor) general(ctx context.Context, data *dataset.Data, houseKey, question string) string {
	vars := prompts.SpaceGeneralVars{
		HouseKey:       houseKey,
		Persona:        unknown,
		PersonaDetails: "none",
		NearbySummary:  NearbySummary(data, houseKey),
		AllAssignments: AllAssignments(data),
	}
	if p, ok := data.Persona(houseKey); ok {
		vars.Persona = p.Persona
		vars.PersonaDetails = orNone(p.Describe())
	}
	p, err := prompts.RenderSpaceGeneral(ctx, vars, question)
	if err != nil {
		logx.Component("spaces").Error().Err(err).Msg("prompt render failed")
		return errx.ApologyGeneric
	}
	return a.generate(ctx, p)
}

func (a *Advisor) generate(ctx context.Context, p prompts.Pair) string {
	out, err := a.gen.Generate(ctx, p.System, p.User, a.temperature)
	if err != nil {
		logx.Component("spaces").Warn().Err(err).Msg("answer call failed")
		return errx.ApologyGeneric
	}
	return strings.TrimSpace(out)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
