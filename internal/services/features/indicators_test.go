package features

import (
	"math"
	"testing"
	"time"

	"StockSense/internal/domain/models"
	"StockSense/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeIndicators_DropsWarmupRows(t *testing.T) {
	bars := testutil.SyntheticBars("TEST", 100)

	f := ComputeIndicators(bars)

	require.Equal(t, 100-19, f.Len())
	assert.Equal(t, bars[19].Date, f.Dates[0])
	assert.Equal(t, bars[99].Date, f.LastDate())
	for _, row := range f.Rows {
		require.Len(t, row, NumFeatures)
		for _, v := range row {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}
	}
}

func TestComputeIndicators_ColumnValues(t *testing.T) {
	bars := testutil.SyntheticBars("TEST", 40)
	f := ComputeIndicators(bars)
	require.NotZero(t, f.Len())

	// first frame row corresponds to bar index 19
	row := f.Rows[0]
	sum5, sum20 := 0.0, 0.0
	for i := 15; i <= 19; i++ {
		sum5 += bars[i].Close
	}
	for i := 0; i <= 19; i++ {
		sum20 += bars[i].Close
	}
	assert.InDelta(t, bars[19].Close, row[ColClose], 1e-12)
	assert.InDelta(t, bars[19].Volume, row[ColVolume], 1e-12)
	assert.InDelta(t, sum5/5, row[ColMA5], 1e-9)
	assert.InDelta(t, sum20/20, row[ColMA20], 1e-9)
	assert.InDelta(t, bars[19].Close/bars[18].Close-1, row[ColPriceChange], 1e-12)
	assert.InDelta(t, (bars[19].High-bars[19].Low)/bars[19].Close, row[ColPriceRange], 1e-12)
	assert.InDelta(t, bars[19].Volume/bars[18].Volume-1, row[ColVolumeChange], 1e-12)
}

func TestComputeIndicators_Idempotent(t *testing.T) {
	bars := testutil.SyntheticBars("TEST", 120)

	a := ComputeIndicators(bars)
	b := ComputeIndicators(bars)

	assert.Equal(t, a, b)
}

func TestComputeIndicators_ZeroCloseDropped(t *testing.T) {
	bars := testutil.SyntheticBars("TEST", 60)
	dropped := bars[30].Date
	bars[30].Close = 0

	f := ComputeIndicators(bars)

	assert.Equal(t, 60-1-19, f.Len())
	assert.NotContains(t, f.Dates, dropped)
}

func TestComputeIndicators_ZeroVolumeDaysDropped(t *testing.T) {
	bars := testutil.SyntheticBars("TEST", 40)
	bars[24].Volume = 0

	f := ComputeIndicators(bars)

	require.Equal(t, 40-19-1, f.Len())
	assert.NotContains(t, f.Dates, bars[24].Date)
	// bar 25 is row 5 and compares against bar 23, the last traded day
	require.Equal(t, bars[25].Date, f.Dates[5])
	assert.InDelta(t, bars[25].Volume/bars[23].Volume-1, f.Rows[5][ColVolumeChange], 1e-12)
	// moving averages still include the untraded day's close
	want := (bars[21].Close + bars[22].Close + bars[23].Close + bars[24].Close + bars[25].Close) / 5
	assert.InDelta(t, want, f.Rows[5][ColMA5], 1e-9)
}

func TestComputeIndicators_LeadingZeroVolume(t *testing.T) {
	bars := testutil.SyntheticBars("TEST", 40)
	for i := 0; i < 21; i++ {
		bars[i].Volume = 0
	}

	f := ComputeIndicators(bars)

	require.Equal(t, 19, f.Len())
	assert.Equal(t, bars[21].Date, f.Dates[0])
	assert.Equal(t, 0.0, f.Rows[0][ColVolumeChange])
}

func TestComputeIndicators_Empty(t *testing.T) {
	assert.Zero(t, ComputeIndicators(nil).Len())
	assert.Zero(t, ComputeIndicators(testutil.SyntheticBars("TEST", 10)).Len())
}

func TestRSI(t *testing.T) {
	up := make([]float64, 30)
	flat := make([]float64, 30)
	down := make([]float64, 30)
	for i := range up {
		up[i] = 10 + float64(i)
		flat[i] = 10
		down[i] = 100 - float64(i)
	}

	tests := []struct {
		name   string
		closes []float64
		want   float64
	}{
		{name: "no losses is neutral", closes: up, want: 50},
		{name: "flat is neutral", closes: flat, want: 50},
		{name: "no gains is zero", closes: down, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsi := RSI(tt.closes, RSIPeriod)
			assert.True(t, math.IsNaN(rsi[RSIPeriod-2]))
			for i := RSIPeriod - 1; i < len(rsi); i++ {
				assert.Equal(t, tt.want, rsi[i])
			}
		})
	}
}

func TestRSI_Bounds(t *testing.T) {
	closes := make([]float64, 500)
	x := uint64(42)
	price := 50.0
	for i := range closes {
		x = x*6364136223846793005 + 1442695040888963407
		step := float64(x>>33)/float64(1<<31) - 0.5
		price = math.Max(1, price+step*3)
		closes[i] = price
	}

	for _, v := range RSI(closes, RSIPeriod)[RSIPeriod-1:] {
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestFrameTailAndNames(t *testing.T) {
	f := ComputeIndicators(testutil.SyntheticBars("TEST", 80))

	tail := f.Tail(30)
	assert.Equal(t, 30, tail.Len())
	assert.Equal(t, f.LastDate(), tail.LastDate())
	assert.Equal(t, f.Len(), f.Tail(1000).Len())

	assert.True(t, NamesMatch(append([]string(nil), Names...)))
	swapped := append([]string(nil), Names...)
	swapped[0], swapped[1] = swapped[1], swapped[0]
	assert.False(t, NamesMatch(swapped))
	assert.False(t, NamesMatch(Names[:8]))
}

func TestComputeIndicators_KeepsSymbol(t *testing.T) {
	bars := []models.Bar{}
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		bars = append(bars, models.Bar{Date: day.AddDate(0, 0, i), Symbol: "ABC", Open: 1, High: 2, Low: 1, Close: 1.5 + float64(i%2), Volume: 10})
	}
	f := ComputeIndicators(bars)
	assert.Equal(t, "ABC", f.Symbol)
	assert.Equal(t, 6, f.Len())
}
