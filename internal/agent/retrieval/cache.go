package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"

	logx "github.com/spacecopilot/server/pkg/logger"
)

const (
	// embeddingCacheDefaultTTL applies when no TTL is configured.
	embeddingCacheDefaultTTL = 7 * 24 * time.Hour

	embeddingCacheKeyPrefix = "retrieval/emb/v1/"
)

var errCacheMiss = errors.New("cache miss")

// CacheKey derives the cache key for text embedded by model.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// BadgerCache persists embeddings in a badger database.
type BadgerCache struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadgerCache wraps an open database. A non-positive ttl uses the default.
func NewBadgerCache(db *badger.DB, ttl time.Duration) *BadgerCache {
	if ttl <= 0 {
		ttl = embeddingCacheDefaultTTL
	}
	return &BadgerCache{db: db, ttl: ttl}
}

// OpenBadgerCache opens (or creates) a cache directory.
func OpenBadgerCache(dir string, ttl time.Duration) (*BadgerCache, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}
	return NewBadgerCache(db, ttl), nil
}

// Close closes the underlying database.
func (c *BadgerCache) Close() error {
	return c.db.Close()
}

func (c *BadgerCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(embeddingCacheKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errCacheMiss
		}
		if err != nil {
			return fmt.Errorf("get cache key: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copy value: %w", err)
		}
		return nil
	})
	if errors.Is(err, errCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("embedding cache load: %w", err)
	}

	vec, err := decodeVector(raw)
	if err != nil {
		return nil, false, fmt.Errorf("embedding cache decode: %w", err)
	}
	logx.Component("embedding_cache").Debug().Str("key", shortKey(key)).Msg("cache hit")
	return vec, true, nil
}

func (c *BadgerCache) Set(_ context.Context, key string, vec []float32) error {
	if len(vec) == 0 {
		return nil
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(embeddingCacheKeyPrefix+key), encodeVector(vec)).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("embedding cache save: %w", err)
	}
	return nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("vector length %d is not a multiple of 4", len(raw))
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return vec, nil
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
