package lstm

import (
	"context"
	"math"
	"testing"

	"StockSense/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tinyConfig() Config {
	cfg := DefaultConfig(4, 3)
	cfg.Units1, cfg.Units2, cfg.DenseUnits = 3, 2, 2
	cfg.Dropout = 0
	cfg.Seed = 7
	return cfg
}

// sineSet builds windows over a sine wave; the target is the next first-feature value.
func sineSet(n, lookback, feats int) ([][][]float64, []float64) {
	series := func(t int) float64 { return 0.5 + 0.4*math.Sin(float64(t)/4) }
	X := make([][][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		w := make([][]float64, lookback)
		for t := 0; t < lookback; t++ {
			row := make([]float64, feats)
			for f := range row {
				row[f] = series(i+t) * float64(f+1) / float64(feats)
			}
			w[t] = row
		}
		X[i] = w
		y[i] = series(i + lookback)
	}
	return X, y
}

func mseLoss(m *Model, X [][][]float64, y []float64) float64 {
	sum := 0.0
	for i := range X {
		d := m.forward(X[i], nil).out - y[i]
		sum += d * d
	}
	return sum / float64(len(X))
}

func TestGradient_MatchesNumerical(t *testing.T) {
	m, err := New(tinyConfig())
	require.NoError(t, err)
	X, y := sineSet(3, 4, 3)
	idx := []int{0, 1, 2}

	bufs := []gradSet{newGradSet(m.params)}
	m.gradient(X, y, idx, 0, false, bufs)
	analytic := bufs[0]

	const h = 1e-6
	for _, p := range m.params {
		for j := range p.w {
			orig := p.w[j]
			p.w[j] = orig + h
			lp := mseLoss(m, X, y)
			p.w[j] = orig - h
			lm := mseLoss(m, X, y)
			p.w[j] = orig

			num := (lp - lm) / (2 * h)
			a := analytic[p.idx][j]
			tol := 1e-6 + 1e-3*math.Max(math.Abs(a), math.Abs(num))
			require.InDeltaf(t, num, a, tol, "%s[%d]", p.name, j)
		}
	}
}

func TestNew_InitializesForgetBias(t *testing.T) {
	m, err := New(DefaultConfig(30, 9))
	require.NoError(t, err)

	u := m.cfg.Units1
	for k := 0; k < 4*u; k++ {
		want := 0.0
		if k >= u && k < 2*u {
			want = 1
		}
		assert.Equal(t, want, m.lstm1.bias.w[k])
	}
	// 4u(in+u+1) per LSTM, plus both dense layers
	assert.Equal(t, 4*50*(9+50+1)+4*50*(50+50+1)+25*50+25+25+1, m.ParamCount())
}

func TestOrthogonal_Columns(t *testing.T) {
	m, err := New(tinyConfig())
	require.NoError(t, err)
	p := m.lstm1.recurrent
	for a := 0; a < p.cols; a++ {
		for b := 0; b < p.cols; b++ {
			dot := 0.0
			for i := 0; i < p.rows; i++ {
				dot += p.w[i*p.cols+a] * p.w[i*p.cols+b]
			}
			want := 0.0
			if a == b {
				want = 1
			}
			assert.InDelta(t, want, dot, 1e-9)
		}
	}
}

func TestFit_LossDecreases(t *testing.T) {
	cfg := DefaultConfig(6, 2)
	cfg.Units1, cfg.Units2, cfg.DenseUnits = 8, 8, 4
	cfg.LearningRate = 0.01
	m, err := New(cfg)
	require.NoError(t, err)
	X, y := sineSet(80, 6, 2)
	before, _, err := m.Evaluate(X, y)
	require.NoError(t, err)

	var seen []EpochStats
	hist, err := m.Fit(context.Background(), X, y, FitOptions{
		Epochs:          25,
		BatchSize:       8,
		ValidationSplit: 0.05,
		Shuffle:         true,
		OnEpoch:         func(s EpochStats) { seen = append(seen, s) },
	})
	require.NoError(t, err)

	require.Len(t, hist.Loss, 25)
	require.Len(t, hist.ValLoss, 25)
	assert.Len(t, seen, 25)
	assert.Less(t, hist.Loss[24], hist.Loss[0])

	loss, mae, err := m.Evaluate(X, y)
	require.NoError(t, err)
	assert.Less(t, loss, before)
	assert.Greater(t, mae, 0.0)
}

func TestFit_Deterministic(t *testing.T) {
	X, y := sineSet(40, 4, 3)
	run := func() []byte {
		cfg := tinyConfig()
		cfg.Dropout = 0.2
		m, err := New(cfg)
		require.NoError(t, err)
		_, err = m.Fit(context.Background(), X, y, FitOptions{Epochs: 3, BatchSize: 8, Shuffle: true})
		require.NoError(t, err)
		data, err := m.Encode()
		require.NoError(t, err)
		return data
	}

	assert.Equal(t, run(), run())
}

func TestFit_Canceled(t *testing.T) {
	m, err := New(tinyConfig())
	require.NoError(t, err)
	X, y := sineSet(20, 4, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = m.Fit(ctx, X, y, FitOptions{Epochs: 2, BatchSize: 4})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.KindCanceled, models.KindOf(err))
}

func TestFit_RejectsWrongShape(t *testing.T) {
	m, err := New(tinyConfig())
	require.NoError(t, err)
	X, y := sineSet(10, 5, 3)

	_, err = m.Fit(context.Background(), X, y, FitOptions{Epochs: 1})
	assert.ErrorIs(t, err, models.ErrFeatureContract)

	_, err = m.Predict(X[0])
	assert.ErrorIs(t, err, models.ErrFeatureContract)
}

func TestEarlyStopper(t *testing.T) {
	tests := []struct {
		name     string
		patience int
		losses   []float64
		stopAt   int
		best     int
	}{
		{name: "keeps improving", patience: 2, losses: []float64{5, 4, 3, 2}, stopAt: -1, best: 3},
		{name: "plateau stops", patience: 2, losses: []float64{5, 4, 4, 4.5, 3}, stopAt: 3, best: 1},
		{name: "disabled", patience: 0, losses: []float64{1, 2, 3, 4}, stopAt: -1, best: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEarlyStopper(tt.patience)
			stopAt := -1
			for i, l := range tt.losses {
				if _, stop := e.observe(i, l); stop {
					stopAt = i
					break
				}
			}
			assert.Equal(t, tt.stopAt, stopAt)
			assert.Equal(t, tt.best, e.bestEpoch)
		})
	}
}

func TestFit_RestoresBestWeights(t *testing.T) {
	cfg := tinyConfig()
	cfg.LearningRate = 0.5
	m, err := New(cfg)
	require.NoError(t, err)
	X, y := sineSet(30, 4, 3)

	hist, err := m.Fit(context.Background(), X, y, FitOptions{Epochs: 12, BatchSize: 30, Patience: 1})
	require.NoError(t, err)

	if hist.Restored {
		assert.Equal(t, hist.Loss[hist.BestEpoch], hist.FinalLoss())
		for _, l := range hist.Loss {
			assert.GreaterOrEqual(t, l, hist.FinalLoss())
		}
	} else {
		assert.Equal(t, hist.Loss[len(hist.Loss)-1], hist.FinalLoss())
	}
}
