package negotiation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacecopilot/server/internal/agent/dataset"
	"github.com/spacecopilot/server/internal/agent/model"
	"github.com/spacecopilot/server/internal/agent/spaces"
	errx "github.com/spacecopilot/server/internal/core/error"
)

func fixture() *dataset.Data {
	d := dataset.NewDistances()
	d.Set("O1", "H5", 10)
	d.Set("O2", "H5", 2)
	d.Set("O3", "H5", 30)
	d.Set("O4", "H5", 40)
	d.Set("O1", "H7", 5)
	return &dataset.Data{
		Spaces: []dataset.Space{
			{ID: "O1", Area: 100, HasArea: true},
			{ID: "O2", Area: 20, HasArea: true},
			{ID: "O3"},
		},
		Distances: d,
		Personas: map[string]dataset.Persona{
			"H5": {Key: "H5", Persona: "Young Family", Population: 3},
			"H7": {Key: "H7", Persona: "Retiree", Population: 1},
		},
		Votes: []dataset.Vote{
			{Resident: "H5", Space: "O1", Activity: "Playground", Weight: 0.3},
			{Resident: "H5", Space: "O2", Activity: "Playground", Weight: 0.9},
			{Resident: "H5", Space: "O2", Activity: "Yoga", Weight: 0.2},
			{Resident: "H7", Space: "O1", Activity: "Yoga", Weight: 0.8},
		},
		Assignments: []dataset.AssignmentRow{{SpaceID: "O2", Activity: "Playground"}},
	}
}

type failingSource struct{}

func (failingSource) Load(context.Context) (*dataset.Data, error) {
	return nil, errx.WrapDataset(errors.New("no such table"))
}

func params(m map[string]any) model.Params { return model.NewParams(m) }

func TestDispatchSingleActions(t *testing.T) {
	tests := []struct {
		name    string
		action  string
		params  map[string]any
		want    string
		wantErr bool
	}{
		{"geometry by id", ActionChangeGeometry, map[string]any{"outdoor_id": "O1"}, "Suggested new area for space O1: 110.00 (was 100.00)", false},
		{"geometry from nearest space", ActionChangeGeometry, map[string]any{"user_id": "H5"}, "Suggested new area for space O2: 22.00 (was 20.00)", false},
		{"geometry missing id", ActionChangeGeometry, nil, "No outdoor_id provided.", true},
		{"geometry unknown space", ActionChangeGeometry, map[string]any{"id": "O9"}, "No space found with id O9.", true},
		{"geometry without area", ActionChangeGeometry, map[string]any{"id": "O3"}, "No area recorded for space O3.", true},
		{"nearby missing user", ActionGetNearbyActivities, nil, "No user_id provided.", true},
		{"nearby unknown user", ActionGetNearbyActivities, map[string]any{"user_id": "H9"}, "No distances found for user H9.", true},
		{"propose missing field", ActionProposeActivityChange, map[string]any{"user_id": "H5", "desired_activity": "Yoga"}, "Missing user_id, desired_activity, or current_activity.", true},
		{"propose", ActionProposeActivityChange, map[string]any{"user_id": "H5", "desired_activity": "Viewpoint", "current_activity": "Sunbath"}, "To change from Sunbath to Viewpoint, you may need to negotiate with other residents.", false},
		{"swap", ActionFindProfileSwap, map[string]any{"user_id": "H5", "features": []any{"yoga"}}, "Suggested swaps for features [yoga]: H7 (Retiree)", false},
		{"swap no match", ActionFindProfileSwap, map[string]any{"user_id": "H5", "features": []any{"Chess"}}, "Suggested swaps for features [Chess]: no residents with matching preferences.", false},
		{"swap missing features", ActionFindProfileSwap, map[string]any{"user_id": "H5"}, "Missing features or desired_activity.", true},
		{"booking", ActionProcessBooking, map[string]any{"user_id": "H5", "desired_activity": "Yoga"}, "Booked activity Yoga for user H5.", false},
		{"booking missing", ActionProcessBooking, map[string]any{"desired_activity": "Yoga"}, "Missing user_id or desired_activity.", true},
		{"summary", ActionSummarizePreferences, map[string]any{"user_id": "H5"}, "Summary of preferences for user H5: Playground: 1.20; Yoga: 0.20", false},
		{"summary missing", ActionSummarizePreferences, nil, "No user_id provided.", true},
		{"assign", ActionAssignActivity, map[string]any{"space_id": "O1", "activity": "Sunbath"}, "Activity 'Sunbath' assigned to space 'O1'!", false},
		{"assign by id", ActionAssignActivity, map[string]any{"id": "O1", "activity": "Sunbath"}, "Activity 'Sunbath' assigned to space 'O1'!", false},
		{"assign missing activity", ActionAssignActivity, map[string]any{"space_id": "O1"}, "Missing space_id or activity.", true},
	}
	d := NewDispatcher(dataset.NewStaticStore(fixture()))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := d.Dispatch(context.Background(), model.SingleAction(tt.action, params(tt.params), ""))
			res, ok := out.Single()
			require.True(t, ok)
			assert.Equal(t, tt.action, res.Action)
			assert.Equal(t, tt.wantErr, res.Failed())
			assert.Equal(t, tt.want, res.Text())
		})
	}
}

func TestDispatchNearbyActivities(t *testing.T) {
	d := NewDispatcher(dataset.NewStaticStore(fixture()))
	out := d.Dispatch(context.Background(), model.SingleAction(ActionGetNearbyActivities,
		params(map[string]any{"user_id": "H5", "desired_activity": []any{"Yoga", "Chess"}}), ""))
	res, ok := out.Single()
	require.True(t, ok)
	require.False(t, res.Failed())

	nearby, ok := res.Data.([]NearbySpace)
	require.True(t, ok)
	require.Len(t, nearby, 4)
	ids := make([]string, len(nearby))
	for i, sp := range nearby {
		ids[i] = sp.SpaceID
	}
	assert.Equal(t, []string{"O2", "O1", "O3", "O4"}, ids)
	assert.Equal(t, "Playground", nearby[0].AssignedTo)
	assert.Equal(t, []dataset.ActivityWeight{{Activity: "Yoga", Weight: 0.2}, {Activity: "Chess"}}, nearby[0].Desired)
	assert.Contains(t, res.Result, "- O2: 2.0m away, area 20.00; top activities: Playground: 0.9; Yoga: 0.2; desired activities: Yoga: 0.2; Chess: 0.0")
	assert.Contains(t, res.Result, "- O3: 30.0m away, area 0.00; top activities: none")
}

func TestNearbyActivitiesFollowsNearbySpaceRule(t *testing.T) {
	d := dataset.NewDistances()
	var votes []dataset.Vote
	for i, id := range []string{"O1", "O2", "O3", "O4", "O5", "O6"} {
		d.Set(id, "H1", float64(10*(i+1)))
		for j, activity := range []string{"Yoga", "BBQ", "Chess", "Garden"} {
			votes = append(votes, dataset.Vote{Resident: "H2", Space: id, Activity: activity, Weight: float64(4-j) / 10})
		}
	}
	data := &dataset.Data{Distances: d, Votes: votes}

	res, ok := NewDispatcher(dataset.NewStaticStore(data)).Dispatch(context.Background(),
		model.SingleAction(ActionGetNearbyActivities, params(map[string]any{"user_id": "H1"}), "")).Single()
	require.True(t, ok)
	require.False(t, res.Failed())

	nearby, ok := res.Data.([]NearbySpace)
	require.True(t, ok)
	require.Len(t, nearby, dataset.NearbySpaces)
	assert.Len(t, strings.Split(spaces.Nearest(data, "H1"), "\n")[1:], dataset.NearbySpaces)
	for _, ns := range nearby {
		assert.Len(t, ns.Top, dataset.NearbyTopActivities)
	}
	assert.Equal(t, "- O1: 10.0m away, area 0.00; top activities: Yoga: 0.4; BBQ: 0.3; Chess: 0.2",
		strings.Split(res.Result, "\n")[1])
	assert.Contains(t, spaces.NearbySummary(data, "H1"), "- O1 (Unknown), 10.0m away. Voting (all): Yoga: 0.4; BBQ: 0.3; Chess: 0.2.")
}

func TestDispatchUnknownAction(t *testing.T) {
	d := NewDispatcher(dataset.NewStaticStore(fixture()))
	out := d.Dispatch(context.Background(), model.SingleAction("levitate", params(nil), ""))
	res, ok := out.Single()
	require.True(t, ok)
	assert.Equal(t, "Unknown action: levitate", res.Error)
}

func TestDispatchMultiKeepsOrder(t *testing.T) {
	d := NewDispatcher(dataset.NewStaticStore(fixture()))
	p := params(map[string]any{"user_id": "H5", "desired_activity": "Yoga"})
	out := d.Dispatch(context.Background(), model.MultiAction([]string{ActionSummarizePreferences, ActionProcessBooking}, p, ""))

	require.Len(t, out.Results, 2)
	_, single := out.Single()
	assert.False(t, single)
	assert.Equal(t, ActionSummarizePreferences, out.Results[0].Action)
	assert.Equal(t, ActionProcessBooking, out.Results[1].Action)
	assert.Equal(t, "Booked activity Yoga for user H5.", out.Results[1].Result)
	assert.True(t, strings.HasPrefix(out.Text(), "- summarize_preferences: Summary of preferences for user H5"))
	assert.Equal(t, "H5", p.String("user_id"))
}

func TestDispatchNoAction(t *testing.T) {
	d := NewDispatcher(dataset.NewStaticStore(fixture()))
	for _, req := range []model.ActionRequest{
		{Kind: model.ActionNone, Parameters: params(nil)},
		model.UnparseableAction("garbage"),
		model.MultiAction(nil, params(nil), ""),
	} {
		res, ok := d.Dispatch(context.Background(), req).Single()
		require.True(t, ok)
		assert.Equal(t, NoActionFound, res.Error)
	}
}

func TestDispatchDatasetFailure(t *testing.T) {
	d := NewDispatcher(failingSource{})
	out := d.Dispatch(context.Background(), model.MultiAction(
		[]string{ActionSummarizePreferences, ActionProcessBooking},
		params(map[string]any{"user_id": "H5", "desired_activity": "Yoga"}), ""))

	require.Len(t, out.Results, 2)
	assert.Equal(t, errx.ApologyGeneric, out.Results[0].Error)
	assert.False(t, out.Results[1].Failed())
}

type fakeGenerator struct {
	reply string
	err   error
	user  string
}

func (g *fakeGenerator) Generate(_ context.Context, _, user string, _ float32) (string, error) {
	g.user = user
	return g.reply, g.err
}

func TestSuggestUsesHouseKey(t *testing.T) {
	gen := &fakeGenerator{reply: `{"action": "summarize_preferences", "parameters": {}, "reasoning": "wants a summary"}`}
	s := NewSuggester(gen, NewDispatcher(nil).Actions(), 0)

	req := s.Suggest(context.Background(), "H5", "Summarize my preferences")
	assert.Equal(t, "House key: H5\nSummarize my preferences", gen.user)
	assert.Equal(t, ActionSummarizePreferences, req.Action())
	assert.Equal(t, "H5", req.Parameters.String("user_id"))

	gen.reply = `{"action": "process_booking", "parameters": {"user_id": "H2", "desired_activity": "Yoga"}}`
	req = s.Suggest(context.Background(), "H5", "Book yoga for H2")
	assert.Equal(t, "H2", req.Parameters.String("user_id"))
}

func TestSuggestDegrades(t *testing.T) {
	s := NewSuggester(&fakeGenerator{err: errors.New("503")}, nil, 0)
	assert.Equal(t, model.ActionUnparseable, s.Suggest(context.Background(), "H5", "hi").Kind)

	s = NewSuggester(&fakeGenerator{reply: "no json here"}, nil, 0)
	assert.Equal(t, model.ActionUnparseable, s.Suggest(context.Background(), "", "hi").Kind)
}

func TestNegotiate(t *testing.T) {
	gen := &fakeGenerator{reply: `{"actions": ["summarize_preferences", "assign_activity"], "parameters": {"space_id": "O1", "activity": "Yoga"}}`}
	out := NewNegotiator(gen, dataset.NewStaticStore(fixture()), 0).Negotiate(context.Background(), "H7", "Summarize and put yoga in O1")

	require.Len(t, out.Dispatch.Results, 2)
	assert.Equal(t, "Summary of preferences for user H7: Yoga: 0.80", out.Dispatch.Results[0].Result)
	assert.Equal(t, "Activity 'Yoga' assigned to space 'O1'!", out.Dispatch.Results[1].Result)
	assert.Equal(t, "H7", out.Request.Parameters.String("user_id"))
}

func TestActionsListEveryHandler(t *testing.T) {
	actions := NewDispatcher(nil).Actions()
	require.Len(t, actions, 7)
	assert.Equal(t, ActionChangeGeometry, actions[0].Name)
	assert.Equal(t, ActionAssignActivity, actions[6].Name)
}
