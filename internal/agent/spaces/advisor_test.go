package spaces

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacecopilot/server/internal/agent/dataset"
	errx "github.com/spacecopilot/server/internal/core/error"
)

type fakeGenerator struct {
	system string
	user   string
	reply  string
	err    error
	calls  int
}

func (g *fakeGenerator) Generate(_ context.Context, system, user string, _ float32) (string, error) {
	g.calls++
	g.system, g.user = system, user
	return g.reply, g.err
}

type failingSource struct{}

func (failingSource) Load(context.Context) (*dataset.Data, error) {
	return nil, errx.WrapDataset(errors.New("missing table"))
}

func fixture() *dataset.Data {
	d := dataset.NewDistances()
	for i, id := range []string{"O1", "O2", "O3", "O4", "O5", "O6"} {
		d.Set(id, "H1", float64(10*(6-i)))
	}
	return &dataset.Data{
		Spaces: []dataset.Space{
			{ID: "O1", Fields: []dataset.Field{{Name: "key", Value: "O1"}, {Name: "level", Value: "3"}}},
			{ID: "O6"},
		},
		Distances: d,
		Personas: map[string]dataset.Persona{
			"H1": {Key: "H1", Persona: "Young Family", Population: 3, Details: []dataset.Field{{Name: "pets", Value: "dog"}}},
		},
		Votes: []dataset.Vote{
			{Resident: "H1", Space: "O6", Activity: "Playground", Weight: 0.8},
			{Resident: "H2", Space: "O6", Activity: "Yoga", Weight: 0.5},
			{Resident: "H2", Space: "O1", Activity: "BBQ", Weight: 0.3},
		},
		Predictions: dataset.Predictions{Green: map[string]string{"O1": "Green roof"}},
		Assignments: []dataset.AssignmentRow{
			{SpaceID: "O6", Activity: "Playground"},
			{SpaceID: "O1", Activity: "BBQ", Reasoning: "Highest score near the kitchens."},
		},
	}
}

func TestAnswerNearestListsFiveSpaces(t *testing.T) {
	gen := &fakeGenerator{}
	a := NewAdvisor(dataset.NewStaticStore(fixture()), gen, DefaultTemperature)

	got := a.Answer(context.Background(), "H1", "What are the closest outdoor spaces to me?")
	want := "Nearest outdoor spaces:\n" +
		"- O6 (Playground): 10.0m away\n" +
		"- O5 (Unknown): 20.0m away\n" +
		"- O4 (Unknown): 30.0m away\n" +
		"- O3 (Unknown): 40.0m away\n" +
		"- O2 (Unknown): 50.0m away"
	assert.Equal(t, want, got)
	assert.Zero(t, gen.calls)

	got = a.Answer(context.Background(), "H1", "Which outdoor areas are on my floor?")
	assert.Contains(t, got, "Nearest outdoor spaces:")
	assert.Zero(t, gen.calls)
}

func TestAnswerExplainsAssignment(t *testing.T) {
	gen := &fakeGenerator{reply: "  BBQ scored highest.  "}
	a := NewAdvisor(dataset.NewStaticStore(fixture()), gen, DefaultTemperature)

	got := a.Answer(context.Background(), "H1", "Why did o1 get a BBQ?")
	assert.Equal(t, "BBQ scored highest.", got)
	assert.Contains(t, gen.system, "- ID: O1")
	assert.Contains(t, gen.system, "- Assigned activity: BBQ")
	assert.Contains(t, gen.system, "level: 3")
	assert.Contains(t, gen.system, "- Green prediction: Green roof")
	assert.Contains(t, gen.system, "- Threshold prediction: N/A")
	assert.Contains(t, gen.system, "BBQ: 0.3")
	assert.Contains(t, gen.system, "Highest score near the kitchens.")
	assert.Equal(t, "Why did o1 get a BBQ?", gen.user)

	assert.Equal(t, "No space found with id O4.", a.Answer(context.Background(), "H1", "What is the reason for O4?"))
}

func TestAnswerGeneralUsesOneAggregation(t *testing.T) {
	gen := &fakeGenerator{reply: "Try O6."}
	a := NewAdvisor(dataset.NewStaticStore(fixture()), gen, DefaultTemperature)

	got := a.Answer(context.Background(), "H1", "Where can my kids play?")
	assert.Equal(t, "Try O6.", got)
	assert.Contains(t, gen.system, "- Persona: Young Family")
	assert.Contains(t, gen.system, "- Persona details: pets: dog")
	assert.Contains(t, gen.system, "- O6 (Playground), 10.0m away. Voting (all): Playground: 0.8; Yoga: 0.5. Your votes: Playground: 0.80.")
	assert.Contains(t, gen.system, "- O5 (Unknown), 20.0m away. Voting (all): none. Your votes: none.")
	assert.Contains(t, gen.system, "- O1: BBQ\n- O6: Playground")
}

func TestAnswerDegrades(t *testing.T) {
	tests := []struct {
		name     string
		data     DataSource
		gen      *fakeGenerator
		house    string
		question string
		want     string
	}{
		{"missing house", dataset.NewStaticStore(fixture()), &fakeGenerator{}, "", "hi", MissingInput},
		{"missing question", dataset.NewStaticStore(fixture()), &fakeGenerator{}, "H1", "  ", MissingInput},
		{"unknown house", dataset.NewStaticStore(fixture()), &fakeGenerator{}, "H9", "hi", "No distances found for house key H9."},
		{"dataset down", failingSource{}, &fakeGenerator{}, "H1", "hi", errx.ApologyGeneric},
		{"model down", dataset.NewStaticStore(fixture()), &fakeGenerator{err: errors.New("503")}, "H1", "hi", errx.ApologyGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewAdvisor(tt.data, tt.gen, 0).Answer(context.Background(), tt.house, tt.question)
			require.Equal(t, tt.want, got)
		})
	}
}
