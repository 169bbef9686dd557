package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// Voting CSV columns.
var voteHeader = []string{"resident", "space", "activity", "distance", "weight"}

// csvTable is a CSV file read as a header plus records.
type csvTable struct {
	index   map[string]int
	records [][]string
}

func readCSV(r io.Reader) (*csvTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	all, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("empty csv")
	}
	t := &csvTable{index: make(map[string]int, len(all[0])), records: all[1:]}
	for i, h := range all[0] {
		t.index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	return t, nil
}

func (t *csvTable) require(cols ...string) error {
	for _, c := range cols {
		if _, ok := t.index[c]; !ok {
			return fmt.Errorf("missing column %q", c)
		}
	}
	return nil
}

func (t *csvTable) get(rec []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func openFile(path string) (*os.File, error) {
	if path == "" {
		return nil, fs.ErrNotExist
	}
	return os.Open(path)
}

// ReadVotes parses a voting CSV with resident, space, activity, distance and
// weight columns.
func ReadVotes(r io.Reader) ([]Vote, error) {
	t, err := readCSV(r)
	if err != nil {
		return nil, fmt.Errorf("voting csv: %w", err)
	}
	if err := t.require("resident", "space", "activity", "weight"); err != nil {
		return nil, fmt.Errorf("voting csv: %w", err)
	}
	votes := make([]Vote, 0, len(t.records))
	for i, rec := range t.records {
		weight, err := strconv.ParseFloat(t.get(rec, "weight"), 64)
		if err != nil {
			return nil, fmt.Errorf("voting csv: row %d: weight: %w", i+2, err)
		}
		v := Vote{
			Resident: t.get(rec, "resident"),
			Space:    t.get(rec, "space"),
			Activity: t.get(rec, "activity"),
			Weight:   weight,
		}
		if d, err := strconv.ParseFloat(t.get(rec, "distance"), 64); err == nil {
			v.Distance = d
		}
		votes = append(votes, v)
	}
	return votes, nil
}

// ReadVotesFile reads a voting CSV from disk.
func ReadVotesFile(path string) ([]Vote, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadVotes(f)
}

// WriteVotes writes votes in the voting CSV layout.
func WriteVotes(w io.Writer, votes []Vote) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(voteHeader); err != nil {
		return err
	}
	for _, v := range votes {
		rec := []string{
			v.Resident,
			v.Space,
			v.Activity,
			strconv.FormatFloat(v.Distance, 'f', -1, 64),
			strconv.FormatFloat(v.Weight, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadPredictions maps the id column to column for one prediction CSV.
func ReadPredictions(r io.Reader, column string) (map[string]string, error) {
	t, err := readCSV(r)
	if err != nil {
		return nil, fmt.Errorf("predictions csv: %w", err)
	}
	if err := t.require("id", column); err != nil {
		return nil, fmt.Errorf("predictions csv: %w", err)
	}
	out := make(map[string]string, len(t.records))
	for _, rec := range t.records {
		if id := t.get(rec, "id"); id != "" {
			out[id] = t.get(rec, column)
		}
	}
	return out, nil
}

// ReadPredictionsFile reads one prediction CSV from disk.
func ReadPredictionsFile(path, column string) (map[string]string, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadPredictions(f, column)
}

// ReadAssignments parses an assignment CSV with space_id and
// assigned_activity columns and an optional reasoning column. Rows keep
// file order.
func ReadAssignments(r io.Reader) ([]AssignmentRow, error) {
	t, err := readCSV(r)
	if err != nil {
		return nil, fmt.Errorf("assignments csv: %w", err)
	}
	if err := t.require("space_id", "assigned_activity"); err != nil {
		return nil, fmt.Errorf("assignments csv: %w", err)
	}
	out := make([]AssignmentRow, 0, len(t.records))
	for _, rec := range t.records {
		id := t.get(rec, "space_id")
		if id == "" {
			continue
		}
		out = append(out, AssignmentRow{
			SpaceID:   id,
			Activity:  t.get(rec, "assigned_activity"),
			Reasoning: t.get(rec, "reasoning"),
		})
	}
	return out, nil
}

// ReadAssignmentsFile reads an assignment CSV from disk.
func ReadAssignmentsFile(path string) ([]AssignmentRow, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadAssignments(f)
}

// WriteAssignments writes rows in the assignment CSV layout.
func WriteAssignments(w io.Writer, rows []AssignmentRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"space_id", "assigned_activity", "reasoning"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.SpaceID, r.Activity, r.Reasoning}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// PersonaActivities maps a persona name to its preference score per
// activity.
type PersonaActivities map[string]map[string]float64

// ReadPersonaActivitiesFile reads the persona preference JSON.
func ReadPersonaActivitiesFile(path string) (PersonaActivities, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out PersonaActivities
	if err := json.NewDecoder(f).Decode(&out); err != nil {
		return nil, fmt.Errorf("persona activities %s: %w", path, err)
	}
	return out, nil
}
