// Package retrieval finds the passages of an embedding corpus closest to a
// question. Corpora are JSON files of {name, content, vector} records.
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	logx "github.com/spacecopilot/server/pkg/logger"
)

var tracer = otel.Tracer("spacecopilot.agent.retrieval")

// Match is one scored passage.
type Match struct {
	Name    string
	Content string
	Score   float64
}

// Retriever returns the k best passages of corpusID for query.
type Retriever interface {
	Retrieve(ctx context.Context, query, corpusID string, k int) ([]Match, error)
}

// Describer returns the content of a named record of a corpus.
type Describer interface {
	Describe(ctx context.Context, corpusID, name string) (string, bool, error)
}

// Record is one entry of an embedding corpus file.
type Record struct {
	Name    string    `json:"name"`
	Content string    `json:"content"`
	Vector  []float32 `json:"vector"`
}

// VectorRetriever scores corpus records against an embedded query.
// Corpora are read once and kept until Reload.
type VectorRetriever struct {
	embedder Embedder
	baseDir  string

	mu      sync.RWMutex
	corpora map[string][]Record
}

// NewVectorRetriever builds a retriever. Relative corpus ids resolve
// against baseDir.
func NewVectorRetriever(embedder Embedder, baseDir string) *VectorRetriever {
	return &VectorRetriever{
		embedder: embedder,
		baseDir:  baseDir,
		corpora:  make(map[string][]Record),
	}
}

// Reload drops every loaded corpus; the next lookup reads from disk.
func (r *VectorRetriever) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.corpora = make(map[string][]Record)
	logx.Component("retrieval").Debug().Msg("corpus cache cleared")
}

// Retrieve embeds query and returns the top k records by dot product,
// best first.
func (r *VectorRetriever) Retrieve(ctx context.Context, query, corpusID string, k int) ([]Match, error) {
	ctx, span := tracer.Start(ctx, "VectorRetriever.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.String("corpus", corpusID), attribute.Int("k", k))

	if k <= 0 {
		return nil, nil
	}
	records, err := r.corpus(corpusID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return TopK(vec, records, k), nil
}

// Describe returns the content of the record called name, or whose name
// starts with the word name ("activity_space" matches "activity_space table").
func (r *VectorRetriever) Describe(_ context.Context, corpusID, name string) (string, bool, error) {
	records, err := r.corpus(corpusID)
	if err != nil {
		return "", false, err
	}
	for _, rec := range records {
		if rec.Name == name || FirstWord(rec.Name) == name {
			return rec.Content, true, nil
		}
	}
	return "", false, nil
}

func (r *VectorRetriever) corpus(corpusID string) ([]Record, error) {
	r.mu.RLock()
	records, ok := r.corpora[corpusID]
	r.mu.RUnlock()
	if ok {
		return records, nil
	}

	path := corpusID
	if !filepath.IsAbs(path) && r.baseDir != "" {
		path = filepath.Join(r.baseDir, path)
	}
	records, err := LoadCorpus(path)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.corpora[corpusID] = records
	r.mu.Unlock()
	logx.Component("retrieval").Debug().
		Str("corpus", corpusID).
		Int("records", len(records)).
		Msg("corpus loaded")
	return records, nil
}

// LoadCorpus reads one embedding corpus file.
func LoadCorpus(path string) ([]Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode corpus %s: %w", path, err)
	}
	return records, nil
}

// TopK scores records against vec and keeps the k best. Ties keep file order.
func TopK(vec []float32, records []Record, k int) []Match {
	matches := make([]Match, 0, len(records))
	for _, rec := range records {
		matches = append(matches, Match{
			Name:    rec.Name,
			Content: rec.Content,
			Score:   Dot(vec, rec.Vector),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// Dot is the dot product over the shared prefix of a and b.
func Dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// FirstWord returns the first whitespace-separated word of s.
func FirstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
