// Package geometry proposes physical changes to outdoor spaces and assigns
// each space its best activity.
package geometry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/spacecopilot/server/internal/agent/dataset"
	"github.com/spacecopilot/server/internal/agent/graph/parsers"
	"github.com/spacecopilot/server/internal/agent/graph/prompts"
	"github.com/spacecopilot/server/internal/agent/llm"
	"github.com/spacecopilot/server/internal/agent/model"
	errx "github.com/spacecopilot/server/internal/core/error"
	logx "github.com/spacecopilot/server/pkg/logger"
)

var tracer = otel.Tracer("spacecopilot.agent.geometry")

// Messages returned as data by the advisor.
const (
	MissingSpace    = "Missing 'space_id'."
	MissingResident = "Missing 'resident_key' when 'space_id' is provided for geometric suggestions."
	InvalidOutput   = "Failed to parse LLM response for geometric variations. Output was not valid JSON."
	noSpaceDetails  = "No specific details found for this space in the database."
	unknownActivity = "Unknown"
)

// DataSource serves the current building data.
type DataSource interface {
	Load(ctx context.Context) (*dataset.Data, error)
}

// DetailSource reads one space row from the building database.
type DetailSource interface {
	SpaceDetails(ctx context.Context, table, idColumn, id string) (string, error)
}

// Result is either validated suggestions or an error message. Raw keeps the
// model output when it could not be used.
type Result struct {
	Suggestions *model.GeometrySuggestions `json:"suggestions,omitempty"`
	Error       string                     `json:"error,omitempty"`
	Raw         string                     `json:"raw_output,omitempty"`
}

// AdvisorConfig wires an Advisor.
type AdvisorConfig struct {
	Data        DataSource
	Details     DetailSource
	Generator   llm.Generator
	Table       string
	IDColumn    string
	Count       int
	Temperature float32
}

// Advisor suggests geometric variations of a space for one resident.
type Advisor struct {
	cfg AdvisorConfig
}

func NewAdvisor(cfg AdvisorConfig) *Advisor {
	if cfg.Count <= 0 {
		cfg.Count = model.DefaultSuggestionsCount
	}
	return &Advisor{cfg: cfg}
}

// Suggest never fails; every problem is reported in Result.Error.
func (a *Advisor) Suggest(ctx context.Context, spaceID, residentKey string) Result {
	ctx, span := tracer.Start(ctx, "Advisor.Suggest")
	defer span.End()
	span.SetAttributes(attribute.String("space", spaceID), attribute.String("resident", residentKey))

	spaceID = strings.TrimSpace(spaceID)
	residentKey = strings.TrimSpace(residentKey)
	if spaceID == "" {
		return Result{Error: MissingSpace}
	}
	if residentKey == "" {
		return Result{Error: MissingResident}
	}

	data, err := a.cfg.Data.Load(ctx)
	if err != nil {
		span.RecordError(err)
		logx.Component("geometry").Error().Err(err).Msg("dataset load failed")
		return Result{Error: errx.UserMessage(err)}
	}
	details, err := a.cfg.Details.SpaceDetails(ctx, a.cfg.Table, a.cfg.IDColumn, spaceID)
	if err != nil {
		span.RecordError(err)
		logx.Component("geometry").Warn().Err(err).Str("space", spaceID).Msg("space details unavailable")
		details = ""
	}
	if details == "" {
		details = noSpaceDetails
	}

	p, err := prompts.RenderGeometry(ctx, geometryVars(data, a.cfg.Count, spaceID, residentKey, details))
	if err != nil {
		logx.Component("geometry").Error().Err(err).Msg("prompt render failed")
		return Result{Error: errx.ApologyGeneric}
	}
	out, err := a.cfg.Generator.Generate(ctx, p.System, p.User, a.cfg.Temperature)
	if err != nil {
		span.RecordError(err)
		logx.Component("geometry").Warn().Err(err).Msg("generation failed")
		return Result{Error: errx.ApologyGeneric}
	}

	suggestions, err := parsers.ParseGeometrySuggestions(out)
	if err != nil {
		logx.Component("geometry").Warn().Err(err).Str("space", spaceID).Msg("invalid geometry output")
		return Result{Error: InvalidOutput, Raw: out}
	}
	span.SetAttributes(attribute.Int("suggestions", len(suggestions.Suggestions)))
	return Result{Suggestions: suggestions}
}

func geometryVars(data *dataset.Data, count int, spaceID, residentKey, details string) prompts.GeometryVars {
	v := prompts.GeometryVars{
		Count:               count,
		SpaceID:             spaceID,
		Persona:             residentKey,
		Distance:            dataset.NotAvailable,
		ActivityWeights:     "none",
		CurrentActivity:     unknownActivity,
		SpaceDetails:        details,
		ThresholdPrediction: data.Threshold(spaceID),
		GreenPrediction:     data.Green(spaceID),
		UsabilityPrediction: data.Usability(spaceID),
	}
	if p, ok := data.Persona(residentKey); ok && p.Persona != "" {
		v.Persona = fmt.Sprintf("%s (%d people)", p.Persona, p.Population)
	}
	if d, ok := data.Distances.Get(spaceID, residentKey); ok {
		v.Distance = fmt.Sprintf("%.1fm", d)
	}
	if w := dataset.FormatOwnVotes(data.ResidentVotes(spaceID, residentKey)); w != "" {
		v.ActivityWeights = w
	}
	if a, ok := data.Assignment(spaceID); ok {
		v.CurrentActivity = a
	}
	return v
}
