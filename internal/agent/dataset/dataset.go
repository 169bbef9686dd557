// Package dataset holds the tabular building data the assistant reasons
// over: outdoor spaces, resident distances, personas, voting weights, model
// predictions and activity assignments.
//
// Data is loaded once into an owned Store and shared read-only until the
// store is reloaded.
package dataset

import (
	"fmt"
	"sort"
	"strings"
)

// NotAvailable stands in for a prediction that was never produced.
const NotAvailable = "N/A"

// Field is one column of a space row.
type Field struct {
	Name  string
	Value string
}

// Space is one row of the outdoor space table.
type Space struct {
	ID      string
	Area    float64
	HasArea bool
	Fields  []Field
}

// Details renders the row as "column: value" lines.
func (s Space) Details() string {
	lines := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		lines[i] = fmt.Sprintf("%s: %s", f.Name, f.Value)
	}
	return strings.Join(lines, "\n")
}

// Persona is the profile assigned to one household.
type Persona struct {
	Key        string
	Persona    string
	Population int
	Details    []Field
}

// Describe renders the extra persona columns as "column: value" lines.
func (p Persona) Describe() string {
	lines := make([]string, len(p.Details))
	for i, f := range p.Details {
		lines[i] = fmt.Sprintf("%s: %s", f.Name, f.Value)
	}
	return strings.Join(lines, "\n")
}

// Vote is the weighted preference of one resident for one activity in one
// space.
type Vote struct {
	Resident string
	Space    string
	Activity string
	Distance float64
	Weight   float64
}

// ActivityWeight is an activity with an aggregated weight.
type ActivityWeight struct {
	Activity string
	Weight   float64
}

// AssignmentRow is the activity currently assigned to a space.
type AssignmentRow struct {
	SpaceID   string
	Activity  string
	Reasoning string
}

// Predictions holds the per-space model outputs keyed by space id.
type Predictions struct {
	Threshold map[string]string
	Green     map[string]string
	Usability map[string]string
}

// Data is one consistent snapshot of the building data. Callers must treat
// it as read-only.
type Data struct {
	Spaces      []Space
	Distances   *Distances
	Personas    map[string]Persona
	Votes       []Vote
	Predictions Predictions
	Assignments []AssignmentRow
}

// Space returns the space with id.
func (d *Data) Space(id string) (Space, bool) {
	for _, s := range d.Spaces {
		if s.ID == id {
			return s, true
		}
	}
	return Space{}, false
}

// Persona returns the persona of a household.
func (d *Data) Persona(key string) (Persona, bool) {
	p, ok := d.Personas[key]
	return p, ok
}

// Assignment returns the activity assigned to spaceID.
func (d *Data) Assignment(spaceID string) (string, bool) {
	for _, a := range d.Assignments {
		if a.SpaceID == spaceID && a.Activity != "" {
			return a.Activity, true
		}
	}
	return "", false
}

// AssignmentReasoning returns the recorded reasoning for spaceID.
func (d *Data) AssignmentReasoning(spaceID string) string {
	for _, a := range d.Assignments {
		if a.SpaceID == spaceID {
			return a.Reasoning
		}
	}
	return ""
}

// Threshold returns the threshold prediction of a space or NotAvailable.
func (d *Data) Threshold(spaceID string) string {
	return lookupPrediction(d.Predictions.Threshold, spaceID)
}

// Green returns the green prediction of a space or NotAvailable.
func (d *Data) Green(spaceID string) string {
	return lookupPrediction(d.Predictions.Green, spaceID)
}

// Usability returns the usability prediction of a space or NotAvailable.
func (d *Data) Usability(spaceID string) string {
	return lookupPrediction(d.Predictions.Usability, spaceID)
}

func lookupPrediction(m map[string]string, id string) string {
	if v, ok := m[id]; ok && strings.TrimSpace(v) != "" {
		return v
	}
	return NotAvailable
}

// SpaceVotes returns every vote cast for spaceID in load order.
func (d *Data) SpaceVotes(spaceID string) []Vote {
	var out []Vote
	for _, v := range d.Votes {
		if v.Space == spaceID {
			out = append(out, v)
		}
	}
	return out
}

// TopActivities sums the votes of all residents per activity in spaceID and
// returns the n heaviest. n <= 0 returns all.
func (d *Data) TopActivities(spaceID string, n int) []ActivityWeight {
	return topN(sumByActivity(d.Votes, func(v Vote) bool { return v.Space == spaceID }), n)
}

// ResidentVotes returns the weights one resident gave each activity in
// spaceID, heaviest first.
func (d *Data) ResidentVotes(spaceID, resident string) []ActivityWeight {
	return topN(sumByActivity(d.Votes, func(v Vote) bool {
		return v.Space == spaceID && v.Resident == resident
	}), 0)
}

// ResidentSummary sums one resident's weights per activity over all spaces,
// heaviest first.
func (d *Data) ResidentSummary(resident string) []ActivityWeight {
	return topN(sumByActivity(d.Votes, func(v Vote) bool { return v.Resident == resident }), 0)
}

func sumByActivity(votes []Vote, keep func(Vote) bool) []ActivityWeight {
	idx := make(map[string]int)
	var out []ActivityWeight
	for _, v := range votes {
		if !keep(v) {
			continue
		}
		i, ok := idx[v.Activity]
		if !ok {
			i = len(out)
			idx[v.Activity] = i
			out = append(out, ActivityWeight{Activity: v.Activity})
		}
		out[i].Weight += v.Weight
	}
	return out
}

// topN orders by weight descending, ties by first appearance.
func topN(in []ActivityWeight, n int) []ActivityWeight {
	sort.SliceStable(in, func(i, j int) bool { return in[i].Weight > in[j].Weight })
	if n > 0 && len(in) > n {
		in = in[:n]
	}
	return in
}

// Nearby-space rule shared by every answer about the spaces around a
// resident: the NearbySpaces closest spaces, each with its NearbyTopActivities
// heaviest all-resident totals.
const (
	NearbySpaces        = 5
	NearbyTopActivities = 3
)

// FormatAggregate renders all-resident totals with one decimal.
func FormatAggregate(weights []ActivityWeight) string {
	return FormatWeights(weights, 1)
}

// FormatOwnVotes renders one resident's weights with two decimals.
func FormatOwnVotes(weights []ActivityWeight) string {
	return FormatWeights(weights, 2)
}

// FormatWeights renders weights as "activity: weight" joined by "; ", each
// weight with the given number of decimals.
func FormatWeights(weights []ActivityWeight, decimals int) string {
	parts := make([]string, len(weights))
	for i, w := range weights {
		parts[i] = fmt.Sprintf("%s: %.*f", w.Activity, decimals, w.Weight)
	}
	return strings.Join(parts, "; ")
}
