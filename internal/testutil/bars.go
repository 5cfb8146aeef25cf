// Package testutil builds deterministic market data for tests.
package testutil

import (
	"math"
	"time"

	"StockSense/internal/domain/models"
)

// Start is the first trading day used by SyntheticBars.
var Start = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

// SyntheticBars returns n weekday bars with an upward drift and a small oscillation.
func SyntheticBars(symbol string, n int) []models.Bar {
	return DriftBars(symbol, n, 0.3)
}

// DriftBars is SyntheticBars with a custom per-day drift.
func DriftBars(symbol string, n int, drift float64) []models.Bar {
	bars := make([]models.Bar, 0, n)
	day := Start
	prev := 100.0
	for i := 0; len(bars) < n; i++ {
		for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			day = day.AddDate(0, 0, 1)
		}
		c := 100 + drift*float64(i) + 2*math.Sin(float64(i)/3)
		bars = append(bars, models.Bar{
			Date:   day,
			Symbol: symbol,
			Open:   prev,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1e6 + 1e4*float64(i%7),
		})
		prev = c
		day = day.AddDate(0, 0, 1)
	}
	return bars
}
