package negotiation

import (
	"context"
	"fmt"
	"strings"

	"github.com/spacecopilot/server/internal/agent/dataset"
	"github.com/spacecopilot/server/internal/agent/model"
)

const (
	// areaGrowth is the factor applied to a space's area by change_geometry.
	areaGrowth = 1.1
	// topActivities is how many of a resident's activities a swap compares.
	topActivities = 3
)

func failed(format string, args ...any) model.ActionResult {
	return model.ActionResult{Error: fmt.Sprintf(format, args...)}
}

func succeeded(data any, format string, args ...any) model.ActionResult {
	return model.ActionResult{Result: fmt.Sprintf(format, args...), Data: data}
}

// AreaChange is the structured output of change_geometry.
type AreaChange struct {
	SpaceID  string  `json:"space_id"`
	Area     float64 `json:"area"`
	Proposed float64 `json:"proposed_area"`
}

func changeGeometry(_ context.Context, data *dataset.Data, p model.Params) model.ActionResult {
	id := p.FirstString("outdoor_id", "id", "space_id")
	if id == "" {
		user := p.String("user_id")
		if user == "" {
			return failed("No outdoor_id provided.")
		}
		near := data.Distances.NearestSpaces(user, 1)
		if len(near) == 0 {
			return failed("No outdoor_id provided.")
		}
		id = near[0].Key
	}

	space, ok := data.Space(id)
	if !ok {
		return failed("No space found with id %s.", id)
	}
	if !space.HasArea {
		return failed("No area recorded for space %s.", id)
	}
	change := AreaChange{SpaceID: id, Area: space.Area, Proposed: space.Area * areaGrowth}
	return succeeded(change, "Suggested new area for space %s: %.2f (was %.2f)", id, change.Proposed, change.Area)
}

// NearbySpace is one entry of get_nearby_activities.
type NearbySpace struct {
	SpaceID    string                   `json:"space_id"`
	Distance   float64                  `json:"distance"`
	Area       float64                  `json:"area,omitempty"`
	Top        []dataset.ActivityWeight `json:"top_activities"`
	Desired    []dataset.ActivityWeight `json:"desired_activities,omitempty"`
	AssignedTo string                   `json:"assigned_activity,omitempty"`
}

func nearbyActivities(_ context.Context, data *dataset.Data, p model.Params) model.ActionResult {
	user := p.String("user_id")
	if user == "" {
		return failed("No user_id provided.")
	}
	near := data.Distances.NearestSpaces(user, dataset.NearbySpaces)
	if len(near) == 0 {
		return failed("No distances found for user %s.", user)
	}
	desired := p.Strings("desired_activity")

	out := make([]NearbySpace, 0, len(near))
	lines := make([]string, 0, len(near))
	for _, n := range near {
		ns := NearbySpace{
			SpaceID:  n.Key,
			Distance: n.Distance,
			Top:      data.TopActivities(n.Key, dataset.NearbyTopActivities),
		}
		if sp, ok := data.Space(n.Key); ok && sp.HasArea {
			ns.Area = sp.Area
		}
		ns.AssignedTo, _ = data.Assignment(n.Key)
		all := data.TopActivities(n.Key, 0)
		for _, want := range desired {
			w := dataset.ActivityWeight{Activity: want}
			for _, a := range all {
				if strings.EqualFold(a.Activity, want) {
					w.Weight = a.Weight
				}
			}
			ns.Desired = append(ns.Desired, w)
		}
		out = append(out, ns)

		line := fmt.Sprintf("- %s: %.1fm away, area %.2f; top activities: %s", ns.SpaceID, ns.Distance, ns.Area, orNone(dataset.FormatAggregate(ns.Top)))
		if len(ns.Desired) > 0 {
			line += "; desired activities: " + dataset.FormatAggregate(ns.Desired)
		}
		lines = append(lines, line)
	}
	return succeeded(out, "Nearby spaces for user %s:\n%s", user, strings.Join(lines, "\n"))
}

func proposeActivityChange(_ context.Context, _ *dataset.Data, p model.Params) model.ActionResult {
	user := p.String("user_id")
	desired := strings.Join(p.Strings("desired_activity"), ", ")
	current := strings.Join(p.Strings("current_activity"), ", ")
	if user == "" || desired == "" || current == "" {
		return failed("Missing user_id, desired_activity, or current_activity.")
	}
	return succeeded(nil, "To change from %s to %s, you may need to negotiate with other residents.", current, desired)
}

// SwapCandidate is a resident whose strongest preferences match the
// requested features.
type SwapCandidate struct {
	Resident string   `json:"resident"`
	Persona  string   `json:"persona"`
	Matches  []string `json:"matches"`
}

func findProfileSwap(_ context.Context, data *dataset.Data, p model.Params) model.ActionResult {
	user := p.String("user_id")
	if user == "" {
		return failed("No user_id provided.")
	}
	features := p.Strings("features")
	if len(features) == 0 {
		features = p.Strings("desired_activity")
	}
	if len(features) == 0 {
		return failed("Missing features or desired_activity.")
	}

	var candidates []SwapCandidate
	for _, resident := range data.Distances.Residents() {
		if resident == user {
			continue
		}
		var matches []string
		for _, top := range topN(data.ResidentSummary(resident), topActivities) {
			for _, f := range features {
				if strings.EqualFold(top.Activity, f) {
					matches = append(matches, top.Activity)
				}
			}
		}
		if len(matches) == 0 {
			continue
		}
		c := SwapCandidate{Resident: resident, Matches: matches}
		if persona, ok := data.Persona(resident); ok {
			c.Persona = persona.Persona
		}
		candidates = append(candidates, c)
	}

	featureList := "[" + strings.Join(features, ", ") + "]"
	if len(candidates) == 0 {
		return succeeded(candidates, "Suggested swaps for features %s: no residents with matching preferences.", featureList)
	}
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Resident
		if c.Persona != "" {
			names[i] += " (" + c.Persona + ")"
		}
	}
	return succeeded(candidates, "Suggested swaps for features %s: %s", featureList, strings.Join(names, ", "))
}

func processBooking(_ context.Context, _ *dataset.Data, p model.Params) model.ActionResult {
	user := p.String("user_id")
	desired := strings.Join(p.Strings("desired_activity"), ", ")
	if user == "" || desired == "" {
		return failed("Missing user_id or desired_activity.")
	}
	return succeeded(nil, "Booked activity %s for user %s.", desired, user)
}

func summarizePreferences(_ context.Context, data *dataset.Data, p model.Params) model.ActionResult {
	user := p.String("user_id")
	if user == "" {
		return failed("No user_id provided.")
	}
	summary := data.ResidentSummary(user)
	if len(summary) == 0 {
		return succeeded(summary, "No preferences recorded for user %s.", user)
	}
	return succeeded(summary, "Summary of preferences for user %s: %s", user, dataset.FormatOwnVotes(summary))
}

func assignActivity(_ context.Context, _ *dataset.Data, p model.Params) model.ActionResult {
	space := p.FirstString("space_id", "id")
	activity := p.String("activity")
	if space == "" || activity == "" {
		return failed("Missing space_id or activity.")
	}
	row := dataset.AssignmentRow{SpaceID: space, Activity: activity}
	return succeeded(row, "Activity '%s' assigned to space '%s'!", activity, space)
}

func topN(in []dataset.ActivityWeight, n int) []dataset.ActivityWeight {
	if len(in) > n {
		return in[:n]
	}
	return in
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
