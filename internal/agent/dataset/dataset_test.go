package dataset

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacecopilot/server/internal/agent/model"
)

type fakeSource struct {
	tables map[string]*model.Rows
	calls  int
}

func (f *fakeSource) Execute(_ context.Context, query string) (*model.Rows, error) {
	f.calls++
	for name, rows := range f.tables {
		if strings.HasSuffix(query, `"`+name+`"`) {
			return rows, nil
		}
	}
	return nil, errors.New("no such table")
}

func buildingSource() *fakeSource {
	return &fakeSource{tables: map[string]*model.Rows{
		"activity_space": {
			Columns: []string{"key", "level", "area"},
			Values: [][]any{
				{"O1", int64(1), 120.0},
				{"O2", int64(1), "80.5"},
				{nil, int64(2), 10.0},
			},
		},
		"resident_distances": {
			Columns: []string{"Outdoor Space", "H1", "H2"},
			Values: [][]any{
				{"O1", 4.0, 20.0},
				{"O2", 1.0, nil},
			},
		},
		"personas_assigned": {
			Columns: []string{"resident_key", "resident_persona", "resident_population", "age"},
			Values: [][]any{
				{"H1", "Young Family", int64(3), "30s"},
				{"H2", "Retiree", nil, "70s"},
			},
		},
	}}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testConfig(dir string) model.DatasetConfig {
	return model.DatasetConfig{
		VotingCSV:         filepath.Join(dir, "voting_weights.csv"),
		PersonaActivities: filepath.Join(dir, "persona_activity.json"),
		GreenCSV:          filepath.Join(dir, "green.csv"),
		ThresholdCSV:      filepath.Join(dir, "threshold.csv"),
		UsabilityCSV:      filepath.Join(dir, "usability.csv"),
		AssignmentsCSV:    filepath.Join(dir, "assignments.csv"),
		SpacesTable:       "activity_space",
		SpacesIDColumn:    "key",
		DistancesTable:    "resident_distances",
		DistancesIDColumn: "Outdoor Space",
		PersonasTable:     "personas_assigned",
	}
}

func TestStoreLoadsOnceUntilReload(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	writeFile(t, dir, "voting_weights.csv", "resident,space,activity,distance,weight\nH1,O1,BBQ,4,0.5\nH2,O1,BBQ,20,0.25\nH2,O1,Reading,20,0.1\n")
	writeFile(t, dir, "green.csv", "id,green_prediction\nO1,High\n")
	writeFile(t, dir, "assignments.csv", "space_id,assigned_activity\nO1,BBQ\nO2,\n")

	src := buildingSource()
	store := NewStore(src, cfg)
	ctx := context.Background()

	data, err := store.Load(ctx)
	require.NoError(t, err)
	calls := src.calls

	again, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Same(t, data, again)
	assert.Equal(t, calls, src.calls)

	store.Reload()
	_, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2*calls, src.calls)

	require.Len(t, data.Spaces, 2)
	sp, ok := data.Space("O2")
	require.True(t, ok)
	assert.True(t, sp.HasArea)
	assert.InDelta(t, 80.5, sp.Area, 1e-9)
	assert.Equal(t, "key: O1\nlevel: 1\narea: 120", data.Spaces[0].Details())

	h1, ok := data.Persona("H1")
	require.True(t, ok)
	assert.Equal(t, 3, h1.Population)
	assert.Equal(t, "age: 30s", h1.Describe())
	h2, _ := data.Persona("H2")
	assert.Equal(t, 1, h2.Population)

	assert.Equal(t, "High", data.Green("O1"))
	assert.Equal(t, NotAvailable, data.Green("O2"))
	assert.Equal(t, NotAvailable, data.Threshold("O1"))

	activity, ok := data.Assignment("O1")
	assert.True(t, ok)
	assert.Equal(t, "BBQ", activity)
	_, ok = data.Assignment("O2")
	assert.False(t, ok)

	top := data.TopActivities("O1", 1)
	require.Len(t, top, 1)
	assert.Equal(t, "BBQ", top[0].Activity)
	assert.InDelta(t, 0.75, top[0].Weight, 1e-9)
	assert.Equal(t, "BBQ: 0.25; Reading: 0.10", FormatWeights(data.ResidentVotes("O1", "H2"), 2))
}

func TestStoreComputesVotesWithoutCSV(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	writeFile(t, dir, "persona_activity.json", `{"Young Family": {"Playground": 1.0, "BBQ": 0.5}}`)

	data, err := NewStore(buildingSource(), cfg).Load(context.Background())
	require.NoError(t, err)

	// only H1 has a persona with preferences: 2 spaces x 2 activities
	require.Len(t, data.Votes, 4)
	assert.Equal(t, Vote{Resident: "H1", Space: "O1", Activity: "BBQ", Distance: 4, Weight: VotingWeight(0.5, 4, 3)}, data.Votes[0])
	assert.Equal(t, "O2", data.Votes[2].Space)
}

func TestStoreFailsWithoutSpaces(t *testing.T) {
	src := &fakeSource{}
	_, err := NewStore(src, testConfig(t.TempDir())).Load(context.Background())
	assert.Error(t, err)

	_, err = NewStore(nil, model.DatasetConfig{}).Load(context.Background())
	assert.Error(t, err)
}

func TestStaticStoreKeepsData(t *testing.T) {
	data := &Data{Spaces: []Space{{ID: "O9"}}}
	store := NewStaticStore(data)
	store.Reload()
	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Same(t, data, got)
}

func TestVotingWeight(t *testing.T) {
	tests := []struct {
		name       string
		pref, dist float64
		pop        int
		want       float64
	}{
		{"adjacent single", 1, 0, 1, 1},
		{"distance halves", 1, 1, 1, 0.5},
		{"household of three", 0.8, 3, 3, 0.3},
		{"zero population treated as one", 1, 1, 0, 0.5},
		{"rounded to four places", 1, 2, 1, 0.3333},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, VotingWeight(tt.pref, tt.dist, tt.pop), 1e-9)
		})
	}
}

func TestDistancesNearest(t *testing.T) {
	d := NewDistances()
	d.Set("O1", "H1", 12)
	d.Set("O2", "H1", 3)
	d.Set("O3", "H1", 12)
	d.Set("O1", "H2", 1)

	near := d.NearestSpaces("H1", 2)
	assert.Equal(t, []Neighbor{{Key: "O2", Distance: 3}, {Key: "O1", Distance: 12}}, near)
	assert.Len(t, d.NearestSpaces("H1", 0), 3)
	assert.Empty(t, d.NearestSpaces("H9", 5))
	assert.Equal(t, []Neighbor{{Key: "H2", Distance: 1}, {Key: "H1", Distance: 12}}, d.NearestResidents("O1", 5))
	assert.True(t, d.HasResident("H2"))

	var nilDist *Distances
	assert.Nil(t, nilDist.NearestSpaces("H1", 1))
}

func TestVotesCSVRoundTrip(t *testing.T) {
	votes := []Vote{{Resident: "H1", Space: "O1", Activity: "Yoga", Distance: 2.5, Weight: 0.2857}}
	var buf bytes.Buffer
	require.NoError(t, WriteVotes(&buf, votes))
	assert.True(t, strings.HasPrefix(buf.String(), "resident,space,activity,distance,weight\n"))

	got, err := ReadVotes(&buf)
	require.NoError(t, err)
	assert.Equal(t, votes, got)

	_, err = ReadVotes(strings.NewReader("resident,space\nH1,O1\n"))
	assert.Error(t, err)
	_, err = ReadVotes(strings.NewReader("resident,space,activity,weight\nH1,O1,Yoga,heavy\n"))
	assert.Error(t, err)
}

type reloadCounter chan struct{}

func (r reloadCounter) Reload() {
	select {
	case r <- struct{}{}:
	default:
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "green.csv", "id,green_prediction\n")

	reloads := make(reloadCounter, 1)
	w, err := NewWatcher()
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.WatchFiles([]string{path}, reloads))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go w.Run(ctx)

	// unrelated files in the same directory are ignored
	writeFile(t, dir, "notes.txt", "hello")
	writeFile(t, dir, "green.csv", "id,green_prediction\nO1,Low\n")

	select {
	case <-reloads:
	case <-ctx.Done():
		t.Fatal("timeout waiting for reload")
	}
}

func TestWatcherReloadsOnCorpusChange(t *testing.T) {
	dataDir := t.TempDir()
	db := writeFile(t, dataDir, "gh_data.db", "")
	knowledgeDir := t.TempDir()

	store := make(reloadCounter, 1)
	corpora := make(reloadCounter, 1)
	w, err := NewWatcher()
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.WatchFiles([]string{db, db + "-wal"}, store))
	require.NoError(t, w.WatchDir(knowledgeDir, ".json", corpora))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go w.Run(ctx)

	writeFile(t, knowledgeDir, "README.md", "not a corpus")
	writeFile(t, knowledgeDir, "overview.json", `[{"text":"Courtyard","embedding":[1,0]}]`)
	select {
	case <-corpora:
	case <-ctx.Done():
		t.Fatal("timeout waiting for corpus reload")
	}
	assert.Empty(t, store)

	writeFile(t, dataDir, "gh_data.db-wal", "wal")
	select {
	case <-store:
	case <-ctx.Done():
		t.Fatal("timeout waiting for database reload")
	}
}

type countingReloader struct{ n int }

func (c *countingReloader) Reload() { c.n++ }

func TestWatcherTargetsFor(t *testing.T) {
	dir := t.TempDir()
	csv := filepath.Join(dir, "green.csv")
	store := &countingReloader{}
	corpora := &countingReloader{}

	w, err := NewWatcher()
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.WatchFiles([]string{csv, ""}, store))
	require.NoError(t, w.WatchDir(dir, ".json", corpora, store))

	tests := []struct {
		name  string
		event fsnotify.Event
		want  []Reloader
	}{
		{"data file", fsnotify.Event{Name: csv, Op: fsnotify.Write}, []Reloader{store}},
		{"corpus reloads each target once", fsnotify.Event{Name: filepath.Join(dir, "rules.JSON"), Op: fsnotify.Create}, []Reloader{corpora, store}},
		{"other extension", fsnotify.Event{Name: filepath.Join(dir, "notes.txt"), Op: fsnotify.Write}, nil},
		{"nested corpus", fsnotify.Event{Name: filepath.Join(dir, "old", "a.json"), Op: fsnotify.Write}, nil},
		{"chmod only", fsnotify.Event{Name: csv, Op: fsnotify.Chmod}, nil},
		{"removed", fsnotify.Event{Name: csv, Op: fsnotify.Remove}, []Reloader{store}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.targetsFor(tt.event))
		})
	}
}
