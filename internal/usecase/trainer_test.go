package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"StockSense/internal/domain/models"
	"StockSense/internal/services/dataset"
	"StockSense/internal/services/features"
	"StockSense/internal/services/lstm"
	"StockSense/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainer_TrainOne(t *testing.T) {
	store := testutil.NewMemStore()
	pub := &testutil.RecordingPublisher{}
	metrics := testutil.NewRecordingMetrics()
	tr := newTestTrainer(store, pub, metrics)

	art, err := tr.TrainOne(context.Background(), "RELIANCE.NS", testutil.SyntheticBars("RELIANCE.NS", 300))
	require.NoError(t, err)

	md := art.Metadata
	assert.Equal(t, "RELIANCE.NS", md.Symbol)
	assert.Equal(t, features.Names, md.Features)
	assert.Equal(t, 30, md.Lookback)
	// 300 bars -> 281 feature rows -> 251 samples, split 80/20
	assert.Equal(t, 200, md.TrainingSamples)
	assert.Equal(t, 51, md.TestSamples)
	assert.Equal(t, 300, md.DataPoints)
	assert.Equal(t, 2, md.Epochs)
	assert.Equal(t, 2, md.EpochsRun)
	assert.NotEmpty(t, md.BundleID)
	assert.Equal(t, md.BundleID, art.Scalers.BundleID)
	assert.False(t, md.TrainedDate.IsZero())
	for _, v := range []float64{md.TestLoss, md.TestMAE, md.FinalTrainLoss, md.R2Score} {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
	assert.Greater(t, md.TestMAE, 0.0)

	assert.Equal(t, []string{"RELIANCE_NS"}, store.Keys())
	require.Len(t, pub.Trained, 1)
	assert.Equal(t, md.BundleID, pub.Trained[0].BundleID)
	assert.Contains(t, metrics.Quality, "RELIANCE.NS")

	// the artifact decodes back into a usable model
	net, err := lstm.Decode(art.Weights)
	require.NoError(t, err)
	assert.Equal(t, 30, net.Config().Lookback)
	pair, err := dataset.PairFromState(art.Scalers)
	require.NoError(t, err)
	assert.Equal(t, features.NumFeatures, pair.Feature.Columns())
}

func TestTrainer_InsufficientData(t *testing.T) {
	store := testutil.NewMemStore()
	metrics := testutil.NewRecordingMetrics()
	tr := newTestTrainer(store, nil, metrics)

	_, err := tr.TrainOne(context.Background(), "SHORT", testutil.SyntheticBars("SHORT", 90))

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInsufficientData)
	assert.Equal(t, models.KindInsufficientData, models.KindOf(err))
	assert.Zero(t, store.Saves)
	assert.Equal(t, 1, metrics.Errors[string(models.KindInsufficientData)])
}

func TestTrainer_StorageFailure(t *testing.T) {
	store := testutil.NewMemStore()
	store.SaveErr = errors.New("disk full")
	tr := newTestTrainer(store, nil, nil)

	_, err := tr.TrainOne(context.Background(), "AAA", testutil.SyntheticBars("AAA", 200))

	assert.ErrorIs(t, err, models.ErrStorage)
	assert.Equal(t, models.KindStorage, models.KindOf(err))
}

func TestTrainer_Canceled(t *testing.T) {
	tr := newTestTrainer(testutil.NewMemStore(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.TrainOne(ctx, "AAA", testutil.SyntheticBars("AAA", 200))

	assert.Equal(t, models.KindCanceled, models.KindOf(err))
}

func TestTrainer_ForEpochs(t *testing.T) {
	tr := newTestTrainer(testutil.NewMemStore(), nil, nil)

	assert.Same(t, tr, tr.ForEpochs(0))
	other, ok := tr.ForEpochs(5).(*Trainer)
	require.True(t, ok)
	assert.Equal(t, 5, other.Config().Epochs)
	assert.Equal(t, 2, tr.Config().Epochs)
	assert.Same(t, tr.locks, other.locks)
}

func TestR2Score(t *testing.T) {
	assert.InDelta(t, 1.0, R2Score([]float64{1, 2, 3}, []float64{1, 2, 3}), 1e-12)
	assert.InDelta(t, 0.0, R2Score([]float64{1, 2, 3}, []float64{2, 2, 2}), 1e-12)
	assert.True(t, math.IsNaN(R2Score(nil, nil)))
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := newKeyedMutex()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("AAA")
			mu.Lock()
			active++
			maxSeen = max(maxSeen, active)
			mu.Unlock()
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, km.locks)
}
