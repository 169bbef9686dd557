package prompts

import (
	"context"
)

// SpaceExplainVars feeds the "why was this assigned" prompt.
type SpaceExplainVars struct {
	SpaceID             string
	AssignedActivity    string
	SpaceDetails        string
	ThresholdPrediction string
	GreenPrediction     string
	UsabilityPrediction string
	VotingSummary       string
	ResidentVotes       string
	Reasoning           string
}

// RenderSpaceExplain renders the assignment explanation prompt.
func RenderSpaceExplain(ctx context.Context, v SpaceExplainVars, question string) (Pair, error) {
	return render(ctx, "space explain", spaceExplainSystem, questionUser, map[string]any{
		"SpaceID":             v.SpaceID,
		"AssignedActivity":    v.AssignedActivity,
		"SpaceDetails":        v.SpaceDetails,
		"ThresholdPrediction": v.ThresholdPrediction,
		"GreenPrediction":     v.GreenPrediction,
		"UsabilityPrediction": v.UsabilityPrediction,
		"VotingSummary":       v.VotingSummary,
		"ResidentVotes":       v.ResidentVotes,
		"Reasoning":           v.Reasoning,
		"Question":            question,
	})
}

// SpaceGeneralVars feeds the general nearby-space prompt.
type SpaceGeneralVars struct {
	HouseKey       string
	Persona        string
	PersonaDetails string
	NearbySummary  string
	AllAssignments string
}

// RenderSpaceGeneral renders the general nearby-space prompt.
func RenderSpaceGeneral(ctx context.Context, v SpaceGeneralVars, question string) (Pair, error) {
	return render(ctx, "space general", spaceGeneralSystem, questionUser, map[string]any{
		"HouseKey":       v.HouseKey,
		"Persona":        v.Persona,
		"PersonaDetails": v.PersonaDetails,
		"NearbySummary":  v.NearbySummary,
		"AllAssignments": v.AllAssignments,
		"Question":       question,
	})
}

// GeometryVars feeds the geometric variation prompt.
type GeometryVars struct {
	Count               int
	SpaceID             string
	Persona             string
	Distance            string
	ActivityWeights     string
	CurrentActivity     string
	SpaceDetails        string
	ThresholdPrediction string
	GreenPrediction     string
	UsabilityPrediction string
}

const geometryUser = `Generate geometric variations for the following:
Space ID: {{.SpaceID}}
Resident Persona (User Profile): {{.Persona}}
Resident's Distance to this Space: {{.Distance}}
Resident's Activity Preferences for this space (weights): {{.ActivityWeights}}
Current Activity in this Space: {{.CurrentActivity}}
Space Details:
{{.SpaceDetails}}
Threshold Prediction for this space: {{.ThresholdPrediction}}
Green Prediction for this space: {{.GreenPrediction}}
Usability Prediction for this space: {{.UsabilityPrediction}}`

// RenderGeometry renders the geometric variation prompt.
func RenderGeometry(ctx context.Context, v GeometryVars) (Pair, error) {
	return render(ctx, "geometry", geometrySystem, geometryUser, map[string]any{
		"Count":               v.Count,
		"SpaceID":             v.SpaceID,
		"Persona":             v.Persona,
		"Distance":            v.Distance,
		"ActivityWeights":     v.ActivityWeights,
		"CurrentActivity":     v.CurrentActivity,
		"SpaceDetails":        v.SpaceDetails,
		"ThresholdPrediction": v.ThresholdPrediction,
		"GreenPrediction":     v.GreenPrediction,
		"UsabilityPrediction": v.UsabilityPrediction,
	})
}

// AssignmentVars feeds the per-space activity assignment prompt.
type AssignmentVars struct {
	SpaceID             string
	SpaceDetails        string
	ThresholdPrediction string
	GreenPrediction     string
	UsabilityPrediction string
	ResidentsSummary    string
	Scores              string
}

// RenderAssignment renders the activity assignment prompt.
func RenderAssignment(ctx context.Context, v AssignmentVars) (Pair, error) {
	return render(ctx, "assignment", assignmentSystem, "Assign the best activity for space {{.SpaceID}}.", map[string]any{
		"SpaceID":             v.SpaceID,
		"SpaceDetails":        v.SpaceDetails,
		"ThresholdPrediction": v.ThresholdPrediction,
		"GreenPrediction":     v.GreenPrediction,
		"UsabilityPrediction": v.UsabilityPrediction,
		"ResidentsSummary":    v.ResidentsSummary,
		"Scores":              v.Scores,
	})
}
