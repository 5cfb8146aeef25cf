package dataset

import (
	"math"
	"testing"

	"StockSense/internal/domain/models"
	"StockSense/internal/services/features"
	"StockSense/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameOf(t *testing.T, n int) features.Frame {
	t.Helper()
	f := features.ComputeIndicators(testutil.SyntheticBars("TEST", n))
	require.Equal(t, n-19, f.Len())
	return f
}

func TestBuildSequences_CausalWindowing(t *testing.T) {
	const lookback = 30
	f := frameOf(t, 150)
	n := f.Len()

	ds, err := BuildSequences(f, lookback)
	require.NoError(t, err)

	require.Equal(t, n-lookback, ds.Len())
	require.Len(t, ds.X, n-lookback)
	require.Len(t, ds.LabelDates, n-lookback)

	scaled, err := ds.Scalers.Feature.Transform(f.Rows)
	require.NoError(t, err)
	for i := 0; i < ds.Len(); i++ {
		require.Len(t, ds.X[i], lookback)
		// the label is the close of row i+lookback, strictly after the window
		wantY := ds.Scalers.Target.TransformValue(0, f.Rows[i+lookback][features.ColClose])
		assert.InDelta(t, wantY, ds.Y[i], 1e-12)
		assert.Equal(t, f.Dates[i+lookback], ds.LabelDates[i])
		assert.Equal(t, scaled[i], ds.X[i][0])
		assert.Equal(t, scaled[i+lookback-1], ds.X[i][lookback-1])
		assert.True(t, f.Dates[i+lookback-1].Before(ds.LabelDates[i]))
	}
}

func TestBuildSequences_InsufficientData(t *testing.T) {
	f := frameOf(t, 19+30+49)

	_, err := BuildSequences(f, 30)

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInsufficientData)
	assert.Equal(t, models.KindInsufficientData, models.KindOf(err))

	ds, err := BuildSequences(frameOf(t, 19+30+50), 30)
	require.NoError(t, err)
	assert.Equal(t, 50, ds.Len())
}

func TestBuildSequences_InvalidLookback(t *testing.T) {
	_, err := BuildSequences(frameOf(t, 120), 0)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestBuildSequences_CleansNonFinite(t *testing.T) {
	f := frameOf(t, 120)
	rows := make([][]float64, f.Len())
	for i, r := range f.Rows {
		rows[i] = append([]float64(nil), r...)
	}
	rows[0][features.ColRSI] = math.NaN()
	rows[10][features.ColVolume] = math.Inf(1)
	f.Rows = rows

	ds, err := BuildSequences(f, 30)
	require.NoError(t, err)
	assert.True(t, ds.Cleaned)
	for _, w := range ds.X {
		assert.True(t, AllFinite(w))
	}
}

func TestFillNonFinite(t *testing.T) {
	nan := math.NaN()
	rows := [][]float64{
		{nan, 1, nan},
		{2, math.Inf(-1), nan},
		{nan, 3, nan},
		{4, nan, nan},
	}

	out, changed := FillNonFinite(rows)

	assert.True(t, changed)
	assert.Equal(t, [][]float64{
		{2, 1, 0},
		{2, 1, 0},
		{2, 3, 0},
		{4, 3, 0},
	}, out)
	assert.True(t, math.IsNaN(rows[0][0]), "input must not be modified")

	_, changed = FillNonFinite([][]float64{{1, 2}})
	assert.False(t, changed)
}

func TestMinMaxScaler_RoundTrip(t *testing.T) {
	f := frameOf(t, 200)
	s, err := FitMinMax(f.Rows)
	require.NoError(t, err)

	scaled, err := s.Transform(f.Rows)
	require.NoError(t, err)
	back, err := s.InverseTransform(scaled)
	require.NoError(t, err)

	for i := range f.Rows {
		for j, want := range f.Rows[i] {
			assert.GreaterOrEqual(t, scaled[i][j], 0.0)
			assert.LessOrEqual(t, scaled[i][j], 1.0)
			tol := 1e-6 * math.Max(1, math.Abs(want))
			assert.InDelta(t, want, back[i][j], tol)
		}
	}
}

func TestMinMaxScaler_ConstantColumn(t *testing.T) {
	s, err := FitMinMax([][]float64{{5, 1}, {5, 3}})
	require.NoError(t, err)

	scaled, err := s.Transform([][]float64{{5, 2}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5}, scaled[0])
	assert.Equal(t, 5.0, s.InverseValue(0, 0))
}

func TestMinMaxScaler_ColumnMismatch(t *testing.T) {
	s, err := FitMinMax([][]float64{{1, 2, 3}})
	require.NoError(t, err)

	_, err = s.Transform([][]float64{{1, 2}})
	assert.ErrorIs(t, err, models.ErrFeatureContract)

	_, err = FitMinMax(nil)
	assert.ErrorIs(t, err, models.ErrInsufficientData)
}

func TestScalerPair_StateRoundTrip(t *testing.T) {
	ds, err := BuildSequences(frameOf(t, 150), 30)
	require.NoError(t, err)

	st := ds.Scalers.State("bundle-1")
	assert.Equal(t, "bundle-1", st.BundleID)
	require.Len(t, st.Feature.DataMin, features.NumFeatures)

	pair, err := PairFromState(st)
	require.NoError(t, err)
	assert.Equal(t, ds.Scalers.Feature.State(), pair.Feature.State())
	assert.Equal(t, ds.Scalers.Target.State(), pair.Target.State())

	st.Target = st.Feature
	_, err = PairFromState(st)
	assert.ErrorIs(t, err, models.ErrArtifactCorrupt)
}

func TestDatasetSplit_Chronological(t *testing.T) {
	ds, err := BuildSequences(frameOf(t, 150), 30)
	require.NoError(t, err)

	trX, trY, teX, teY := ds.Split(0.8)
	at := int(float64(ds.Len()) * 0.8)

	assert.Len(t, trX, at)
	assert.Len(t, trY, at)
	assert.Len(t, teX, ds.Len()-at)
	assert.Len(t, teY, ds.Len()-at)
	assert.Equal(t, ds.Y[at], teY[0])
}
