package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"StockSense/internal/domain/models"
	"StockSense/pkg/cache"
)

// RedisModelStore keeps artifacts in a pkg/cache.Service (Redis in production). The three
// parts of an artifact are written with one MSet, which RedisCache runs as MULTI/EXEC.
type RedisModelStore struct {
	c   cache.Service
	ttl time.Duration
}

// NewRedisModelStore creates the store. A zero ttl keeps artifacts until overwritten.
func NewRedisModelStore(c cache.Service, ttl time.Duration) *RedisModelStore {
	return &RedisModelStore{c: c, ttl: ttl}
}

func partKeys(key string) (meta, scalers, weights string) {
	return cache.GenerateKey("model", key, "meta"),
		cache.GenerateKey("model", key, "scalers"),
		cache.GenerateKey("model", key, "weights")
}

func (s *RedisModelStore) Save(ctx context.Context, a *models.Artifact) error {
	key := models.ArtifactKey(a.Metadata.Symbol)
	if key == "" {
		return fmt.Errorf("%w: save artifact: empty symbol", models.ErrStorage)
	}
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("%w: marshal metadata: %w", models.ErrStorage, err)
	}
	scalers, err := json.Marshal(a.Scalers)
	if err != nil {
		return fmt.Errorf("%w: marshal scalers: %w", models.ErrStorage, err)
	}
	mk, sk, wk := partKeys(key)
	values := map[string]interface{}{
		mk: string(meta),
		sk: string(scalers),
		wk: string(a.Weights),
	}
	if err := s.c.MSet(ctx, values, s.ttl); err != nil {
		return fmt.Errorf("%w: save %s: %w", models.ErrStorage, key, err)
	}
	return nil
}

func (s *RedisModelStore) Load(ctx context.Context, symbol string) (*models.Artifact, bool, error) {
	key := models.ArtifactKey(symbol)
	mk, sk, wk := partKeys(key)
	got, err := s.c.MGet(ctx, mk, sk, wk)
	if err != nil {
		return nil, false, fmt.Errorf("%w: load %s: %w", models.ErrStorage, key, err)
	}
	meta, ok1 := got[mk]
	scalers, ok2 := got[sk]
	weights, ok3 := got[wk]
	if !ok1 || !ok2 || !ok3 {
		return nil, false, nil
	}

	var a models.Artifact
	if err := json.Unmarshal([]byte(meta), &a.Metadata); err != nil {
		return nil, false, fmt.Errorf("%w: %s metadata: %w", models.ErrArtifactCorrupt, key, err)
	}
	if err := json.Unmarshal([]byte(scalers), &a.Scalers); err != nil {
		return nil, false, fmt.Errorf("%w: %s scalers: %w", models.ErrArtifactCorrupt, key, err)
	}
	if a.Scalers.BundleID != a.Metadata.BundleID {
		return nil, false, fmt.Errorf("%w: %s bundle ids differ", models.ErrArtifactCorrupt, key)
	}
	a.Weights = []byte(weights)
	return &a, true, nil
}

// Count implements repository.ModelCounter. It counts metadata keys, so an artifact
// missing another part is still counted.
func (s *RedisModelStore) Count(ctx context.Context) (int, error) {
	keys, err := s.c.Keys(ctx, cache.GenerateKey("model", "*", "meta"))
	if err != nil {
		return 0, fmt.Errorf("%w: count models: %w", models.ErrStorage, err)
	}
	return len(keys), nil
}

// SaveSummary implements repository.SummaryStore on the same cache.
func (s *RedisModelStore) SaveSummary(ctx context.Context, sum *models.Summary) error {
	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("%w: marshal summary: %w", models.ErrStorage, err)
	}
	if err := s.c.Set(ctx, cache.GenerateKey("summary", sum.Market), string(data), 0); err != nil {
		return fmt.Errorf("%w: save summary %s: %w", models.ErrStorage, sum.Market, err)
	}
	return nil
}

func (s *RedisModelStore) LoadSummary(ctx context.Context, market string) (*models.Summary, bool, error) {
	var raw string
	err := s.c.Get(ctx, cache.GenerateKey("summary", market), &raw)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: load summary %s: %w", models.ErrStorage, market, err)
	}
	var sum models.Summary
	if err := json.Unmarshal([]byte(raw), &sum); err != nil {
		return nil, false, fmt.Errorf("%w: summary %s: %w", models.ErrArtifactCorrupt, market, err)
	}
	return &sum, true, nil
}
