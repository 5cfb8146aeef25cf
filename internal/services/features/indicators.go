package features

import (
	"math"
	"time"

	"StockSense/internal/domain/models"
)

// Names is the fixed, order-significant feature column list.
var Names = []string{
	"close",
	"volume",
	"ma5",
	"ma10",
	"ma20",
	"price_change",
	"price_range",
	"volume_change",
	"rsi",
}

// Column indexes into a feature row.
const (
	ColClose = iota
	ColVolume
	ColMA5
	ColMA10
	ColMA20
	ColPriceChange
	ColPriceRange
	ColVolumeChange
	ColRSI
)

// NumFeatures is len(Names).
const NumFeatures = 9

// RSIPeriod is the rolling window of the relative strength index.
const RSIPeriod = 14

// Frame is the per-symbol feature table. Every row is fully finite.
type Frame struct {
	Symbol string
	Dates  []time.Time
	Rows   [][]float64
}

// Len returns the number of rows.
func (f Frame) Len() int { return len(f.Rows) }

// Column copies one feature column.
func (f Frame) Column(col int) []float64 {
	out := make([]float64, len(f.Rows))
	for i, r := range f.Rows {
		out[i] = r[col]
	}
	return out
}

// Tail returns the last n rows (or the whole frame when shorter). Rows are shared.
func (f Frame) Tail(n int) Frame {
	if n >= len(f.Rows) {
		return f
	}
	start := len(f.Rows) - n
	return Frame{Symbol: f.Symbol, Dates: f.Dates[start:], Rows: f.Rows[start:]}
}

// LastDate returns the date of the final row, zero time for an empty frame.
func (f Frame) LastDate() time.Time {
	if len(f.Dates) == 0 {
		return time.Time{}
	}
	return f.Dates[len(f.Dates)-1]
}

// NamesMatch reports whether names equals Names in the same order.
func NamesMatch(names []string) bool {
	if len(names) != len(Names) {
		return false
	}
	for i := range names {
		if names[i] != Names[i] {
			return false
		}
	}
	return true
}

// ComputeIndicators derives the feature frame from ascending daily bars.
// Zero closes are dropped first. Zero-volume days still feed the price indicators, their
// volume change is measured against the last traded day, and the days themselves are
// dropped last together with the moving-average warm-up rows.
func ComputeIndicators(bars []models.Bar) Frame {
	clean := make([]models.Bar, 0, len(bars))
	for _, b := range bars {
		if b.Close == 0 || !finite(b.Close) {
			continue
		}
		clean = append(clean, b)
	}
	if len(clean) == 0 {
		return Frame{}
	}

	n := len(clean)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	lastVolume := math.NaN()
	for i, b := range clean {
		closes[i] = b.Close
		if b.Volume != 0 && finite(b.Volume) {
			lastVolume = b.Volume
		}
		volumes[i] = lastVolume
	}

	ma5 := RollingMean(closes, 5)
	ma10 := RollingMean(closes, 10)
	ma20 := RollingMean(closes, 20)
	priceChange := PctChange(closes)
	volumeChange := PctChange(volumes)
	rsi := RSI(closes, RSIPeriod)

	f := Frame{Symbol: clean[0].Symbol}
	for i, b := range clean {
		if b.Volume == 0 {
			continue
		}
		pc := priceChange[i]
		if math.IsInf(pc, 0) {
			pc = 0
		}
		pr := (b.High - b.Low) / b.Close
		if !finite(pr) {
			pr = 0
		}
		vc := volumeChange[i]
		if !finite(vc) {
			vc = 0
		}
		row := []float64{b.Close, b.Volume, ma5[i], ma10[i], ma20[i], pc, pr, vc, rsi[i]}
		if !allFinite(row) {
			continue
		}
		f.Dates = append(f.Dates, b.Date)
		f.Rows = append(f.Rows, row)
	}
	return f
}

// RollingMean is the simple moving average over window; NaN until the window is full.
func RollingMean(xs []float64, window int) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		if window <= 0 || i < window-1 {
			out[i] = math.NaN()
			continue
		}
		sum := 0.0
		for j := i - window + 1; j <= i; j++ {
			sum += xs[j]
		}
		out[i] = sum / float64(window)
	}
	return out
}

// PctChange returns x[i]/x[i-1]-1; the first element is NaN.
func PctChange(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (xs[i] - xs[i-1]) / xs[i-1]
	}
	return out
}

// RSI computes the relative strength index from rolling simple means of gains and losses.
// A window without losses maps to the neutral 50; results are clipped to [0,100].
func RSI(closes []float64, period int) []float64 {
	n := len(closes)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i] = d
		} else if d < 0 {
			losses[i] = -d
		}
	}
	avgGain := RollingMean(gains, period)
	avgLoss := RollingMean(losses, period)

	out := make([]float64, n)
	for i := range out {
		g, l := avgGain[i], avgLoss[i]
		switch {
		case math.IsNaN(g) || math.IsNaN(l):
			out[i] = math.NaN()
		case l == 0:
			out[i] = 50
		default:
			out[i] = clip(100-100/(1+g/l), 0, 100)
		}
	}
	return out
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func allFinite(row []float64) bool {
	for _, v := range row {
		if !finite(v) {
			return false
		}
	}
	return true
}
