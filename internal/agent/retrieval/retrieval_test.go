package retrieval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	calls   int
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[text], nil
}

func writeCorpus(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

const tablesCorpus = `[
  {"name": "activity_space table", "content": "Outdoor spaces with area and type.", "vector": [1, 0, 0]},
  {"name": "resident_distances table", "content": "Distance from each house to each space.", "vector": [0, 1, 0]},
  {"name": "personas_assigned table", "content": "Persona and population per house.", "vector": [0.6, 0.6, 0]}
]`

func TestVectorRetrieverRetrieve(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, "tables.json", tablesCorpus)
	emb := &fakeEmbedder{vectors: map[string][]float32{"how far is O1": {0.1, 0.9, 0}}}
	r := NewVectorRetriever(emb, dir)

	matches, err := r.Retrieve(context.Background(), "how far is O1", "tables.json", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "resident_distances table", matches[0].Name)
	assert.Equal(t, "personas_assigned table", matches[1].Name)
	assert.Greater(t, matches[0].Score, matches[1].Score)

	matches, err = r.Retrieve(context.Background(), "how far is O1", "tables.json", 10)
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}

func TestVectorRetrieverCachesUntilReload(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, "tables.json", tablesCorpus)
	r := NewVectorRetriever(&fakeEmbedder{}, dir)
	ctx := context.Background()

	desc, ok, err := r.Describe(ctx, "tables.json", "activity_space table")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Outdoor spaces with area and type.", desc)

	writeCorpus(t, dir, "tables.json", `[{"name": "activity_space table", "content": "changed", "vector": [1]}]`)
	desc, _, err = r.Describe(ctx, "tables.json", "activity_space table")
	require.NoError(t, err)
	assert.Equal(t, "Outdoor spaces with area and type.", desc)

	r.Reload()
	desc, _, err = r.Describe(ctx, "tables.json", "activity_space table")
	require.NoError(t, err)
	assert.Equal(t, "changed", desc)

	desc, ok, err = r.Describe(ctx, "tables.json", "activity_space")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "changed", desc)

	_, ok, err = r.Describe(ctx, "tables.json", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVectorRetrieverErrors(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, "bad.json", "{not json")
	ctx := context.Background()

	r := NewVectorRetriever(&fakeEmbedder{}, dir)
	_, err := r.Retrieve(ctx, "q", "missing.json", 1)
	assert.Error(t, err)
	_, err = r.Retrieve(ctx, "q", "bad.json", 1)
	assert.Error(t, err)

	writeCorpus(t, dir, "ok.json", tablesCorpus)
	r = NewVectorRetriever(&fakeEmbedder{err: errors.New("quota")}, dir)
	_, err = r.Retrieve(ctx, "q", "ok.json", 1)
	assert.Error(t, err)

	matches, err := r.Retrieve(ctx, "q", "ok.json", 0)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestDot(t *testing.T) {
	assert.InDelta(t, 11.0, Dot([]float32{1, 2}, []float32{3, 4}), 1e-9)
	assert.InDelta(t, 3.0, Dot([]float32{1, 2, 5}, []float32{3}), 1e-9)
	assert.Zero(t, Dot(nil, []float32{1}))
}

func openTestCache(t *testing.T) *BadgerCache {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewBadgerCache(db, time.Hour)
}

func TestBadgerCacheRoundTrip(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()
	key := CacheKey("text-embedding-004", "hello")

	vec, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, vec)

	require.NoError(t, cache.Set(ctx, key, []float32{0.25, -1.5, 3}))
	vec, ok, err = cache.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float32{0.25, -1.5, 3}, vec)

	require.NoError(t, cache.Set(ctx, CacheKey("m", "empty"), nil))
	_, ok, err = cache.Get(ctx, CacheKey("m", "empty"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheKeyDependsOnModel(t *testing.T) {
	assert.NotEqual(t, CacheKey("a", "text"), CacheKey("b", "text"))
	assert.Equal(t, CacheKey("a", "text"), CacheKey("a", "text"))
}

func TestCachedEmbedderEmbedsOnce(t *testing.T) {
	cache := openTestCache(t)
	next := &fakeEmbedder{vectors: map[string][]float32{"line one\nline two": {1, 2}}}
	emb := NewCachedEmbedder(next, cache, "m")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		vec, err := emb.Embed(ctx, "line one\nline two")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2}, vec)
	}
	assert.Equal(t, 1, next.calls)

	failing := NewCachedEmbedder(&fakeEmbedder{err: errors.New("down")}, cache, "m")
	_, err := failing.Embed(ctx, "other")
	assert.Error(t, err)
}
