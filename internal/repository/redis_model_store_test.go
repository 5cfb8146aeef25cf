package repository

import (
	"context"
	"testing"
	"time"

	"StockSense/internal/domain/models"
	"StockSense/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryModelStore(t *testing.T) (*RedisModelStore, *cache.MemoryCache) {
	t.Helper()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { mc.Close() })
	return NewRedisModelStore(mc, 0), mc
}

func TestRedisModelStore_RoundTrip(t *testing.T) {
	s, _ := newMemoryModelStore(t)
	ctx := context.Background()

	_, ok, err := s.Load(ctx, "AAPL")
	require.NoError(t, err)
	assert.False(t, ok)

	in := sampleArtifact("AAPL", "b-7")
	require.NoError(t, s.Save(ctx, in))

	out, ok, err := s.Load(ctx, "AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in.Metadata, out.Metadata)
	assert.Equal(t, in.Scalers, out.Scalers)
	assert.Equal(t, in.Weights, out.Weights)
}

func TestRedisModelStore_Count(t *testing.T) {
	s, _ := newMemoryModelStore(t)
	ctx := context.Background()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.Save(ctx, sampleArtifact("AAPL", "a")))
	require.NoError(t, s.Save(ctx, sampleArtifact("MSFT", "m")))
	require.NoError(t, s.Save(ctx, sampleArtifact("AAPL", "a2")))
	require.NoError(t, s.SaveSummary(ctx, &models.Summary{Market: "us"}))

	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRedisModelStore_PartialIsMiss(t *testing.T) {
	s, mc := newMemoryModelStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleArtifact("AAPL", "b")))
	require.NoError(t, mc.Delete(ctx, "model:AAPL:weights"))

	_, ok, err := s.Load(ctx, "AAPL")

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisModelStore_Corrupt(t *testing.T) {
	s, mc := newMemoryModelStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleArtifact("AAPL", "b")))
	require.NoError(t, mc.Set(ctx, "model:AAPL:meta", "{", 0))

	_, _, err := s.Load(ctx, "AAPL")
	assert.ErrorIs(t, err, models.ErrArtifactCorrupt)

	other := sampleArtifact("MSFT", "one")
	other.Scalers.BundleID = "two"
	require.NoError(t, s.Save(ctx, other))
	_, _, err = s.Load(ctx, "MSFT")
	assert.ErrorIs(t, err, models.ErrArtifactCorrupt)
}

func TestRedisModelStore_Summary(t *testing.T) {
	s, _ := newMemoryModelStore(t)
	ctx := context.Background()

	_, ok, err := s.LoadSummary(ctx, "us")
	require.NoError(t, err)
	assert.False(t, ok)

	in := &models.Summary{Market: "us", Successful: 2, TrainingDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, s.SaveSummary(ctx, in))

	out, ok, err := s.LoadSummary(ctx, "us")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, out)
}
