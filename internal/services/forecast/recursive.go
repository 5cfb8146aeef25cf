// Package forecast rolls a one-step model forward over multiple days.
package forecast

import (
	"fmt"
	"time"

	"StockSense/internal/domain/models"
	"StockSense/internal/services/dataset"
	"StockSense/internal/services/features"
)

// Regressor predicts the scaled next close from one scaled window.
type Regressor interface {
	Predict(window [][]float64) (float64, error)
}

// MaxDays bounds the forecast horizon.
const MaxDays = 90

// Recursive predicts days steps ahead. After each step the last row of the window is copied,
// its close column is replaced by the prediction and the window slides by one. The other
// columns keep their last observed values. The input window is not modified.
func Recursive(m Regressor, window [][]float64, days int) ([]float64, error) {
	if days < 1 || days > MaxDays {
		return nil, fmt.Errorf("forecast: %w: future_days %d outside 1-%d", models.ErrInvalidInput, days, MaxDays)
	}
	if len(window) == 0 {
		return nil, fmt.Errorf("forecast: %w: empty window", models.ErrInsufficientData)
	}
	cur := make([][]float64, len(window))
	copy(cur, window)

	out := make([]float64, 0, days)
	for d := 0; d < days; d++ {
		p, err := m.Predict(cur)
		if err != nil {
			return nil, fmt.Errorf("forecast step %d: %w", d+1, err)
		}
		out = append(out, p)
		next := append([]float64(nil), cur[len(cur)-1]...)
		next[features.ColClose] = p
		cur = append(cur[1:len(cur):len(cur)], next)
	}
	return out, nil
}

// Inverse maps scaled predictions back to prices through the target scaler.
func Inverse(target *dataset.MinMaxScaler, scaled []float64) []float64 {
	out := make([]float64, len(scaled))
	for i, v := range scaled {
		out[i] = target.InverseValue(0, v)
	}
	return out
}

// FutureDates returns the n consecutive calendar days after last.
func FutureDates(last time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = last.AddDate(0, 0, i+1)
	}
	return out
}

// ChangePercent is the relative move from current to predicted, in percent.
func ChangePercent(current, predicted float64) float64 {
	if current == 0 {
		return 0
	}
	return (predicted - current) / current * 100
}
