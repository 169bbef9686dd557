package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"strconv"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/spacecopilot/server/internal/agent/database"
	"github.com/spacecopilot/server/internal/agent/model"
	errx "github.com/spacecopilot/server/internal/core/error"
	logx "github.com/spacecopilot/server/pkg/logger"
)

var tracer = otel.Tracer("spacecopilot.agent.dataset")

const (
	personaKeyColumn        = "resident_key"
	personaNameColumn       = "resident_persona"
	personaPopulationColumn = "resident_population"
	areaColumn              = "area"
)

// Source runs read queries against the building database.
type Source interface {
	Execute(ctx context.Context, query string) (*model.Rows, error)
}

// Store owns the loaded building data. The first Load reads every table and
// file; later calls return the same snapshot until Reload.
type Store struct {
	src Source
	cfg model.DatasetConfig

	mu   sync.Mutex
	data *Data
}

// NewStore builds a Store. Nothing is read until the first Load.
func NewStore(src Source, cfg model.DatasetConfig) *Store {
	return &Store{src: src, cfg: cfg}
}

// NewStaticStore returns a Store that always serves data.
func NewStaticStore(data *Data) *Store {
	return &Store{data: data}
}

// Load returns the current snapshot, reading it on first use.
func (s *Store) Load(ctx context.Context) (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data != nil {
		return s.data, nil
	}
	if s.src == nil {
		return nil, errx.WrapDataset(fmt.Errorf("no data source"))
	}

	data, err := s.read(ctx)
	if err != nil {
		return nil, errx.WrapDataset(err)
	}
	s.data = data
	return data, nil
}

// Reload drops the snapshot so the next Load reads everything again. A
// static store keeps its data.
func (s *Store) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.src == nil {
		return
	}
	s.data = nil
	logx.Component("dataset").Info().Msg("dataset invalidated")
}

// Files lists the data files the store reads, for watching.
func (s *Store) Files() []string {
	var out []string
	for _, p := range []string{
		s.cfg.VotingCSV,
		s.cfg.PersonaActivities,
		s.cfg.GreenCSV,
		s.cfg.ThresholdCSV,
		s.cfg.UsabilityCSV,
		s.cfg.AssignmentsCSV,
	} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) read(ctx context.Context) (*Data, error) {
	ctx, span := tracer.Start(ctx, "Store.read")
	defer span.End()

	spaces, err := s.readSpaces(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	distances, err := s.readDistances(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	personas, err := s.readPersonas(ctx)
	if err != nil {
		logx.Component("dataset").Warn().Err(err).Str("table", s.cfg.PersonasTable).Msg("personas unavailable")
		personas = map[string]Persona{}
	}

	data := &Data{
		Spaces:    spaces,
		Distances: distances,
		Personas:  personas,
		Predictions: Predictions{
			Threshold: s.optionalPredictions(s.cfg.ThresholdCSV, "predicted_activities"),
			Green:     s.optionalPredictions(s.cfg.GreenCSV, "green_prediction"),
			Usability: s.optionalPredictions(s.cfg.UsabilityCSV, "usability_prediction"),
		},
	}

	data.Votes, err = s.votes(distances, personas)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	data.Assignments, err = ReadAssignmentsFile(s.cfg.AssignmentsCSV)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		logx.Component("dataset").Warn().Str("file", s.cfg.AssignmentsCSV).Msg("no activity assignments yet")
	}

	span.SetAttributes(
		attribute.Int("spaces", len(data.Spaces)),
		attribute.Int("residents", len(distances.Residents())),
		attribute.Int("votes", len(data.Votes)),
	)
	logx.Component("dataset").Info().
		Int("spaces", len(data.Spaces)).
		Int("personas", len(data.Personas)).
		Int("votes", len(data.Votes)).
		Msg("dataset loaded")
	return data, nil
}

func (s *Store) selectAll(ctx context.Context, table string) (*model.Rows, error) {
	rows, err := s.src.Execute(ctx, "SELECT * FROM "+database.QuoteIdent(table))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return rows, nil
}

func (s *Store) readSpaces(ctx context.Context) ([]Space, error) {
	rows, err := s.selectAll(ctx, s.cfg.SpacesTable)
	if err != nil {
		return nil, err
	}
	idCol := columnIndex(rows.Columns, s.cfg.SpacesIDColumn)
	if idCol < 0 {
		return nil, fmt.Errorf("read %s: no %q column", s.cfg.SpacesTable, s.cfg.SpacesIDColumn)
	}
	areaCol := columnIndex(rows.Columns, areaColumn)

	spaces := make([]Space, 0, len(rows.Values))
	for _, row := range rows.Values {
		id := model.FormatValue(row[idCol])
		if id == "" || row[idCol] == nil {
			continue
		}
		sp := Space{ID: id, Fields: make([]Field, len(rows.Columns))}
		for i, c := range rows.Columns {
			sp.Fields[i] = Field{Name: c, Value: model.FormatValue(row[i])}
		}
		if areaCol >= 0 {
			sp.Area, sp.HasArea = toFloat(row[areaCol])
		}
		spaces = append(spaces, sp)
	}
	return spaces, nil
}

func (s *Store) readDistances(ctx context.Context) (*Distances, error) {
	rows, err := s.selectAll(ctx, s.cfg.DistancesTable)
	if err != nil {
		return nil, err
	}
	idCol := columnIndex(rows.Columns, s.cfg.DistancesIDColumn)
	if idCol < 0 {
		return nil, fmt.Errorf("read %s: no %q column", s.cfg.DistancesTable, s.cfg.DistancesIDColumn)
	}

	d := NewDistances()
	for _, row := range rows.Values {
		space := model.FormatValue(row[idCol])
		if row[idCol] == nil || space == "" {
			continue
		}
		for i, resident := range rows.Columns {
			if i == idCol {
				continue
			}
			if v, ok := toFloat(row[i]); ok {
				d.Set(space, resident, v)
			}
		}
	}
	return d, nil
}

func (s *Store) readPersonas(ctx context.Context) (map[string]Persona, error) {
	rows, err := s.selectAll(ctx, s.cfg.PersonasTable)
	if err != nil {
		return nil, err
	}
	keyCol := columnIndex(rows.Columns, personaKeyColumn)
	if keyCol < 0 {
		return nil, fmt.Errorf("read %s: no %q column", s.cfg.PersonasTable, personaKeyColumn)
	}
	nameCol := columnIndex(rows.Columns, personaNameColumn)
	popCol := columnIndex(rows.Columns, personaPopulationColumn)

	out := make(map[string]Persona, len(rows.Values))
	for _, row := range rows.Values {
		key := model.FormatValue(row[keyCol])
		if row[keyCol] == nil || key == "" {
			continue
		}
		p := Persona{Key: key, Population: 1}
		for i, c := range rows.Columns {
			switch i {
			case keyCol:
			case nameCol:
				p.Persona = model.FormatValue(row[i])
			case popCol:
				if v, ok := toFloat(row[i]); ok && v >= 1 {
					p.Population = int(v)
				}
			default:
				p.Details = append(p.Details, Field{Name: c, Value: model.FormatValue(row[i])})
			}
		}
		out[key] = p
	}
	return out, nil
}

// votes prefers the voting CSV and computes weights from persona
// preferences when it does not exist.
func (s *Store) votes(distances *Distances, personas map[string]Persona) ([]Vote, error) {
	votes, err := ReadVotesFile(s.cfg.VotingCSV)
	if err == nil {
		return votes, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	prefs, err := ReadPersonaActivitiesFile(s.cfg.PersonaActivities)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logx.Component("dataset").Warn().Msg("no voting weights or persona activities, votes empty")
			return nil, nil
		}
		return nil, err
	}
	logx.Component("dataset").Info().Str("file", s.cfg.VotingCSV).Msg("voting CSV missing, computing weights")
	return ComputeVotingWeights(distances, personas, prefs), nil
}

func (s *Store) optionalPredictions(path, column string) map[string]string {
	m, err := ReadPredictionsFile(path, column)
	if err != nil {
		logx.Component("dataset").Warn().Err(err).Str("file", path).Msg("predictions unavailable")
		return map[string]string{}
	}
	return m
}

func columnIndex(cols []string, name string) int {
	for i, c := range cols {
		if strings.EqualFold(strings.TrimSpace(c), name) {
			return i
		}
	}
	return -1
}

func toFloat(v any) (float64, bool) {
	f, ok := rawFloat(v)
	if !ok || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func rawFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
